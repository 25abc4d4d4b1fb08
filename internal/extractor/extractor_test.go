package extractor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/clock"
	"github.com/user/price-tracker/pkg/errs"
)

const sourceURL = "https://www.noon.com/saudi-en/N123/p/"

var scrapedAt = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

func extract(t *testing.T, html string) entity.ProductSnapshot {
	t.Helper()
	e := New(WithClock(clock.NewMockClock(scrapedAt)))
	snap, err := e.Extract(&entity.RawPage{URL: sourceURL, Body: html, StatusCode: 200}, sourceURL, "N123")
	require.NoError(t, err)
	return snap
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "got %s, want %s", got, want)
}

func TestExtract_BasicHTML(t *testing.T) {
	snap := extract(t, `
		<html>
			<h1 data-qa="pdp-name">Test Product Name</h1>
			<span data-qa="pdp-price-final">SAR 99.99</span>
			<a data-qa="pdp-seller-name">Test Seller</a>
		</html>`)

	assert.Equal(t, "N123", snap.ProductID())
	assert.Equal(t, "Test Product Name", snap.ProductName())
	assertDecimal(t, "99.99", snap.Price())
	assert.Equal(t, "Test Seller", snap.SellerID())
	assert.Equal(t, "SAR", snap.Currency())
	assert.True(t, snap.InStock())
	assert.Equal(t, sourceURL, snap.SourceURL())
	assert.Equal(t, scrapedAt, snap.ScrapedAt())

	_, ok := snap.OriginalPrice()
	assert.False(t, ok)
	_, ok = snap.DiscountPct()
	assert.False(t, ok)
}

func TestExtract_Discount(t *testing.T) {
	snap := extract(t, `
		<html>
			<h1 data-qa="pdp-name">Discounted Item</h1>
			<span data-qa="pdp-price-final">SAR 75.00</span>
			<span data-qa="pdp-price-was">SAR 100.00</span>
			<a data-qa="pdp-seller-name">noon</a>
		</html>`)

	assertDecimal(t, "75", snap.Price())
	orig, ok := snap.OriginalPrice()
	require.True(t, ok)
	assertDecimal(t, "100", orig)
	discount, ok := snap.DiscountPct()
	require.True(t, ok)
	assertDecimal(t, "25.0", discount)
}

func TestExtract_OutOfStockMarker(t *testing.T) {
	snap := extract(t, `
		<html>
			<h1 data-qa="pdp-name">Out of Stock Item</h1>
			<span data-qa="pdp-price-final">SAR 50.00</span>
			<div data-qa="pdp-out-of-stock">Out of Stock</div>
		</html>`)

	assert.False(t, snap.InStock())
}

func TestExtract_OutOfStockText(t *testing.T) {
	snap := extract(t, `<html><body><h1>Item</h1><p>Sorry, this item is currently OUT OF STOCK.</p></body></html>`)
	assert.False(t, snap.InStock())

	snap = extract(t, `<html><body><h1>Item</h1><script>var label = "out of stock";</script></body></html>`)
	assert.True(t, snap.InStock())
}

func TestExtract_InlineState(t *testing.T) {
	snap := extract(t, `
		<html><head>
		<script>window.__STATE__ = {"product":{"sale_price": 4649.00, "price": 5299.00, "store_name": "Tech Hub"}}</script>
		</head><body>
			<h1 data-qa="pdp-name">Phone</h1>
			<div class="priceNow">1.00</div>
			<a data-qa="pdp-seller-name">Other Seller</a>
		</body></html>`)

	assertDecimal(t, "4649", snap.Price())
	orig, ok := snap.OriginalPrice()
	require.True(t, ok)
	assertDecimal(t, "5299", orig)
	discount, _ := snap.DiscountPct()
	assertDecimal(t, "12.3", discount)
	assert.Equal(t, "Tech Hub", snap.SellerID())
}

func TestExtract_QuotedInlinePrices(t *testing.T) {
	snap := extract(t, `
		<html>
			<script>{"sale_price":"1,299.00","price":"1,499.00"}</script>
			<h1 data-qa="pdp-name">Laptop</h1>
			<span data-qa="pdp-price-final">SAR 1,299.00</span>
		</html>`)

	assertDecimal(t, "1299", snap.Price())
	original, ok := snap.OriginalPrice()
	require.True(t, ok)
	assertDecimal(t, "1499", original)
}

func TestExtract_JSONLD(t *testing.T) {
	snap := extract(t, `
		<html><head>
		<meta property="og:image" content="/images/N123.jpg">
		<script type="application/ld+json">
		{"@context":"https://schema.org","@graph":[
			{"@type":"BreadcrumbList"},
			{"@type":"Product","name":"Headphones","brand":{"@type":"Brand","name":"Sony"},
			 "offers":[{"@type":"Offer","price":"129.50","priceCurrency":"SAR"}]}
		]}
		</script>
		</head><body><h1 class="productTitle">Headphones</h1></body></html>`)

	assertDecimal(t, "129.50", snap.Price())
	_, ok := snap.OriginalPrice()
	assert.False(t, ok, "a list price equal to the sale price is not a markdown")
	assert.Equal(t, "Sony", snap.Brand())
	assert.Equal(t, "https://www.noon.com/images/N123.jpg", snap.ImageURL())
	assert.Equal(t, "noon", snap.SellerID())
}

func TestExtract_ClassFallback(t *testing.T) {
	snap := extract(t, `
		<html><body>
			<h2>Not the name</h2>
			<h1>Fallback Heading</h1>
			<div class="productPrice">SAR 10</div>
			<div class="salePrice">4,649.00 SAR</div>
			<span class="sellerBadge">Gadget Store</span>
		</body></html>`)

	assert.Equal(t, "Fallback Heading", snap.ProductName())
	assertDecimal(t, "4649", snap.Price())
	assert.Equal(t, "Gadget Store", snap.SellerID())
}

func TestExtract_NothingFound(t *testing.T) {
	snap := extract(t, `<html><body><p>Something went wrong</p></body></html>`)

	assert.Equal(t, entity.PlaceholderName, snap.ProductName())
	assert.False(t, snap.HasName())
	assert.True(t, snap.Price().IsZero())
	assert.Equal(t, "noon", snap.SellerID())
	assert.True(t, snap.InStock())
}

func TestExtract_EmptyPage(t *testing.T) {
	e := New()
	_, err := e.Extract(&entity.RawPage{Body: "   "}, sourceURL, "N123")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrExtraction))

	_, err = e.Extract(nil, sourceURL, "N123")
	assert.True(t, errs.Is(err, errs.ErrExtraction))
}

func TestExtract_StrategyPanicIsContained(t *testing.T) {
	chains := DefaultChains()
	chains.Name = []TextStrategy{func(p *Page) (string, bool) { panic("selector engine exploded") }}
	e := New(WithChains(chains))

	_, err := e.Extract(&entity.RawPage{Body: "<html></html>"}, sourceURL, "N123")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrExtraction))
	assert.Contains(t, err.Error(), "selector engine exploded")
}

func TestExtract_Options(t *testing.T) {
	e := New(WithCurrency("AED"), WithPlatformSeller("marketplace"), WithClock(clock.NewMockClock(scrapedAt)))
	snap, err := e.Extract(&entity.RawPage{Body: `<h1>X</h1><span data-qa="pdp-price-final">5</span>`}, sourceURL, "N9")
	require.NoError(t, err)
	assert.Equal(t, "AED", snap.Currency())
	assert.Equal(t, "marketplace", snap.SellerID())
}
