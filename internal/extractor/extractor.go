package extractor

import (
	"strings"

	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/clock"
	"github.com/user/price-tracker/pkg/errs"
)

// Extractor turns a fetched product page into a ProductSnapshot.
type Extractor struct {
	currency       string
	platformSeller string
	chains         Chains
	clock          clock.Clock
	logger         *zap.Logger
}

type Option func(*Extractor)

func WithCurrency(currency string) Option {
	return func(e *Extractor) { e.currency = currency }
}

// WithPlatformSeller sets the seller recorded when none is shown on the page.
func WithPlatformSeller(seller string) Option {
	return func(e *Extractor) { e.platformSeller = seller }
}

func WithChains(c Chains) Option {
	return func(e *Extractor) { e.chains = c }
}

func WithClock(c clock.Clock) Option {
	return func(e *Extractor) { e.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		currency:       "SAR",
		platformSeller: "noon",
		chains:         DefaultChains(),
		clock:          clock.NewRealClock(),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses one page. A page whose price could not be found still
// yields a snapshot with a zero price, which the quality gate rejects. An
// error marked errs.ErrExtraction means no record could be built at all.
func (e *Extractor) Extract(raw *entity.RawPage, sourceURL, productID string) (snap entity.ProductSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Extraction panicked", zap.String("product_id", productID), zap.Any("panic", r))
			snap = entity.ProductSnapshot{}
			err = errs.Mark(errs.Newf("extract %s: panic: %v", productID, r), errs.ErrExtraction)
		}
	}()

	if raw == nil || strings.TrimSpace(raw.Body) == "" {
		return entity.ProductSnapshot{}, errs.Mark(errs.Newf("extract %s: empty page", productID), errs.ErrExtraction)
	}

	page, err := NewPage(raw.Body, sourceURL)
	if err != nil {
		return entity.ProductSnapshot{}, errs.Mark(errs.Wrapf(err, "extract %s: parse html", productID), errs.ErrExtraction)
	}

	params := entity.SnapshotParams{
		ProductID: productID,
		SellerID:  e.platformSeller,
		Currency:  e.currency,
		InStock:   true,
		SourceURL: sourceURL,
		ScrapedAt: e.clock.Now(),
	}

	params.ProductName, _ = firstText(page, e.chains.Name)
	if price, ok := firstPrice(page, e.chains.Price); ok {
		params.Price = price
	}
	if orig, ok := firstPrice(page, e.chains.OriginalPrice); ok {
		params.OriginalPrice = &orig
	}
	if seller, ok := firstText(page, e.chains.Seller); ok {
		params.SellerID = seller
	}
	if out, ok := firstFlag(page, e.chains.OutOfStock); ok {
		params.InStock = !out
	}
	params.Brand, _ = firstText(page, e.chains.Brand)
	params.ImageURL, _ = firstText(page, e.chains.Image)

	snap, err = entity.NewProductSnapshot(params)
	if err != nil {
		return entity.ProductSnapshot{}, errs.Mark(errs.Wrapf(err, "extract %s", productID), errs.ErrExtraction)
	}

	e.logger.Debug("Extracted product",
		zap.String("product_id", productID),
		zap.String("name", snap.ProductName()),
		zap.String("seller", snap.SellerID()),
		zap.String("price", snap.Price().String()),
		zap.Bool("in_stock", snap.InStock()),
	)
	return snap, nil
}
