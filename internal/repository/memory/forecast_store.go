package memory

import (
	"context"
	"sync"

	"github.com/stocksense/stocksense/internal/domain"
)

// ForecastStore keeps persisted forecasts in memory, mostly so tests can
// assert what would have been written.
type ForecastStore struct {
	mu      sync.Mutex
	results []domain.ForecastResult
}

func NewForecastStore() *ForecastStore {
	return &ForecastStore{}
}

func (s *ForecastStore) SaveForecasts(ctx context.Context, results []domain.ForecastResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, results...)
	return nil
}

// Results returns everything saved so far.
func (s *ForecastStore) Results() []domain.ForecastResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ForecastResult(nil), s.results...)
}
