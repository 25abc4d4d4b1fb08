// Package memory implements the repository interfaces in process memory.
// It honours the same replace and coalesce semantics as the PostgreSQL and
// Redis adapters and backs the pipeline and HTTP tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/user/price-tracker/internal/entity"
)

type alertKey struct {
	productID string
	sellerID  string
	day       time.Time
}

type trackedProduct struct {
	productID string
	active    bool
	createdAt time.Time
}

// Store is a thread-safe in-memory sink and product catalogue.
type Store struct {
	mu       sync.RWMutex
	history  map[entity.SnapshotKey]entity.ProductSnapshot
	products map[string]entity.ProductMaster
	tracked  []trackedProduct
	alerts   map[alertKey]entity.PriceAlert
	failed   map[string]*entity.FailedProduct

	// FailLoad, when set, is returned by Load without writing anything.
	FailLoad error
}

func NewStore() *Store {
	return &Store{
		history:  make(map[entity.SnapshotKey]entity.ProductSnapshot),
		products: make(map[string]entity.ProductMaster),
		alerts:   make(map[alertKey]entity.PriceAlert),
		failed:   make(map[string]*entity.FailedProduct),
	}
}

// Load is all or nothing like the transactional sink.
func (s *Store) Load(ctx context.Context, snapshots []entity.ProductSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailLoad != nil {
		return s.FailLoad
	}
	for _, snap := range snapshots {
		s.history[snap.Key()] = snap

		incoming := entity.ProductMasterFromSnapshot(snap)
		existing, ok := s.products[snap.ProductID()]
		if !ok {
			existing = entity.ProductMaster{ProductID: snap.ProductID()}
		}
		s.products[snap.ProductID()] = existing.Merge(incoming)
	}
	return nil
}

func (s *Store) PricesForDay(ctx context.Context, day time.Time) ([]entity.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day = entity.TruncateDay(day)
	var points []entity.PricePoint
	for key, snap := range s.history {
		if key.Day.Equal(day) {
			points = append(points, snap.PricePoint())
		}
	}
	slices.SortFunc(points, func(a, b entity.PricePoint) int {
		if c := cmp.Compare(a.ProductID, b.ProductID); c != 0 {
			return c
		}
		return cmp.Compare(a.SellerID, b.SellerID)
	})
	return points, nil
}

// HistoryLen is the number of logical price history rows.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// SeedPrice records a price point directly, e.g. yesterday's history.
func (s *Store) SeedPrice(snap entity.ProductSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[snap.Key()] = snap
}

// Track adds a watchlist entry.
func (s *Store) Track(productID string, active bool, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked = append(s.tracked, trackedProduct{productID: productID, active: active, createdAt: createdAt})
}

func (s *Store) ListTracked(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := make(map[string]time.Time)
	for _, t := range s.tracked {
		if !t.active {
			continue
		}
		if at, ok := first[t.productID]; !ok || t.createdAt.Before(at) {
			first[t.productID] = t.createdAt
		}
	}

	ids := make([]string, 0, len(first))
	for id := range first {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := first[a].Compare(first[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids, nil
}

func (s *Store) FindByID(ctx context.Context, productID string) (*entity.ProductMaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.products[productID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) SaveAlerts(ctx context.Context, day time.Time, alerts []entity.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day = entity.TruncateDay(day)
	for _, a := range alerts {
		s.alerts[alertKey{a.ProductID, a.SellerID, day}] = a
	}
	return nil
}

// AlertsForDay returns stored alerts of one day ordered by magnitude.
func (s *Store) AlertsForDay(day time.Time) []entity.PriceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day = entity.TruncateDay(day)
	var out []entity.PriceAlert
	for k, a := range s.alerts {
		if k.day.Equal(day) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b entity.PriceAlert) int {
		if c := b.ChangePct.Abs().Cmp(a.ChangePct.Abs()); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID+"\x00"+a.SellerID, b.ProductID+"\x00"+b.SellerID)
	})
	return out
}

func (s *Store) RecordFailure(ctx context.Context, failed *entity.FailedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *failed
	rec.ConsecutiveFailures = 1
	if existing, ok := s.failed[failed.ProductID]; ok {
		rec.ConsecutiveFailures = existing.ConsecutiveFailures + 1
	}
	s.failed[failed.ProductID] = &rec
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*entity.FailedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.FailedProduct, 0, len(s.failed))
	for _, f := range s.failed {
		c := *f
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *entity.FailedProduct) int {
		if c := cmp.Compare(b.ConsecutiveFailures, a.ConsecutiveFailures); c != 0 {
			return c
		}
		return b.LastAttemptTimestamp.Compare(a.LastAttemptTimestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failed, productID)
	return nil
}

// Price returns the stored price of one history row.
func (s *Store) Price(productID, sellerID string, day time.Time) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.history[entity.SnapshotKey{ProductID: productID, SellerID: sellerID, Day: entity.TruncateDay(day)}]
	if !ok {
		return decimal.Zero, false
	}
	return snap.Price(), true
}
