package memory

import (
	"context"
	"sync"
	"time"

	"github.com/user/price-tracker/internal/entity"
	"github.com/user/price-tracker/pkg/clock"
)

// State implements the run lock, run state and alert feed repositories.
type State struct {
	mu        sync.Mutex
	clock     clock.Clock
	lockToken string
	lockUntil time.Time
	report    *entity.RunReport
	feed      []entity.AlertSummary
}

func NewState(clk clock.Clock) *State {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &State{clock: clk}
}

func (s *State) Acquire(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.lockToken != "" && now.Before(s.lockUntil) {
		return false, nil
	}
	s.lockToken = token
	s.lockUntil = now.Add(ttl)
	return true, nil
}

func (s *State) Release(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lockToken == token {
		s.lockToken = ""
		s.lockUntil = time.Time{}
	}
	return nil
}

// Locked reports whether a live lock is held.
func (s *State) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockToken != "" && s.clock.Now().Before(s.lockUntil)
}

func (s *State) SaveReport(ctx context.Context, report *entity.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *report
	s.report = &r
	return nil
}

func (s *State) LatestReport(ctx context.Context) (*entity.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return nil, nil
	}
	r := *s.report
	return &r, nil
}

func (s *State) Publish(ctx context.Context, summary entity.AlertSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feed = append([]entity.AlertSummary{summary}, s.feed...)
	return nil
}

func (s *State) Latest(ctx context.Context) (*entity.AlertSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.feed) == 0 {
		return nil, nil
	}
	latest := s.feed[0]
	return &latest, nil
}
