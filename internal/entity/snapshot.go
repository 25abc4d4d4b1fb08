package entity

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PlaceholderName is stored when no product name could be extracted.
const PlaceholderName = "Unknown"

var (
	ErrMissingProductID = errors.New("snapshot requires a product id")
	ErrMissingSellerID  = errors.New("snapshot requires a seller id")
	ErrNegativePrice    = errors.New("snapshot price must not be negative")
)

var hundred = decimal.NewFromInt(100)

// SnapshotParams carries the raw observations a ProductSnapshot is built from.
type SnapshotParams struct {
	ProductID     string
	ProductName   string
	SellerID      string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	Currency      string
	InStock       bool
	Brand         string
	ImageURL      string
	SourceURL     string
	ScrapedAt     time.Time
}

// ProductSnapshot is one point-in-time price and stock observation for a
// (product, seller) pair. It is immutable once built; the discount is always
// derived from the two prices and can't be set on its own.
type ProductSnapshot struct {
	productID     string
	productName   string
	sellerID      string
	price         decimal.Decimal
	originalPrice *decimal.Decimal
	discountPct   *decimal.Decimal
	currency      string
	inStock       bool
	brand         string
	imageURL      string
	sourceURL     string
	scrapedAt     time.Time
}

// NewProductSnapshot validates the structural invariants of a snapshot.
// An original price that is not strictly greater than a positive price is
// dropped, so the discount exists only for real markdowns.
func NewProductSnapshot(p SnapshotParams) (ProductSnapshot, error) {
	if p.ProductID == "" {
		return ProductSnapshot{}, ErrMissingProductID
	}
	if p.SellerID == "" {
		return ProductSnapshot{}, ErrMissingSellerID
	}
	if p.Price.IsNegative() {
		return ProductSnapshot{}, ErrNegativePrice
	}

	name := p.ProductName
	if name == "" {
		name = PlaceholderName
	}

	s := ProductSnapshot{
		productID:   p.ProductID,
		productName: name,
		sellerID:    p.SellerID,
		price:       p.Price,
		currency:    p.Currency,
		inStock:     p.InStock,
		brand:       p.Brand,
		imageURL:    p.ImageURL,
		sourceURL:   p.SourceURL,
		scrapedAt:   p.ScrapedAt.UTC(),
	}

	if p.OriginalPrice != nil && p.Price.IsPositive() && p.OriginalPrice.GreaterThan(p.Price) {
		orig := *p.OriginalPrice
		discount := DiscountPct(p.Price, orig)
		s.originalPrice = &orig
		s.discountPct = &discount
	}

	return s, nil
}

// DiscountPct is round((1 - price/original) * 100, 1).
func DiscountPct(price, original decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(price.Div(original)).Mul(hundred).Round(1)
}

func (s ProductSnapshot) ProductID() string { return s.productID }

func (s ProductSnapshot) ProductName() string { return s.productName }

func (s ProductSnapshot) SellerID() string { return s.sellerID }

func (s ProductSnapshot) Price() decimal.Decimal { return s.price }

func (s ProductSnapshot) Currency() string { return s.currency }

func (s ProductSnapshot) InStock() bool { return s.inStock }

func (s ProductSnapshot) Brand() string { return s.brand }

func (s ProductSnapshot) ImageURL() string { return s.imageURL }

func (s ProductSnapshot) SourceURL() string { return s.sourceURL }

func (s ProductSnapshot) ScrapedAt() time.Time { return s.scrapedAt }

// HasName is false when extraction fell back to the placeholder.
func (s ProductSnapshot) HasName() bool {
	return s.productName != "" && s.productName != PlaceholderName
}

// OriginalPrice returns the list price and whether the listing is marked down.
func (s ProductSnapshot) OriginalPrice() (decimal.Decimal, bool) {
	if s.originalPrice == nil {
		return decimal.Zero, false
	}
	return *s.originalPrice, true
}

func (s ProductSnapshot) DiscountPct() (decimal.Decimal, bool) {
	if s.discountPct == nil {
		return decimal.Zero, false
	}
	return *s.discountPct, true
}

// Day is the UTC calendar day the snapshot belongs to in price history.
func (s ProductSnapshot) Day() time.Time {
	return TruncateDay(s.scrapedAt)
}

// Key is the logical identity of the snapshot in the time-series store.
func (s ProductSnapshot) Key() SnapshotKey {
	return SnapshotKey{ProductID: s.productID, SellerID: s.sellerID, Day: s.Day()}
}

func (s ProductSnapshot) PricePoint() PricePoint {
	return PricePoint{ProductID: s.productID, SellerID: s.sellerID, Price: s.price}
}

// SnapshotKey identifies one logical history row: re-writing the same key
// replaces the row instead of adding another.
type SnapshotKey struct {
	ProductID string
	SellerID  string
	Day       time.Time
}

// PricePoint is the minimal (product, seller, price) observation alert
// detection works on.
type PricePoint struct {
	ProductID string          `json:"product_id"`
	SellerID  string          `json:"seller_id"`
	Price     decimal.Decimal `json:"price"`
}

// TruncateDay returns midnight UTC of t's day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
