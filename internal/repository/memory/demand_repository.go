// Package memory provides in-memory repository implementations for tests
// and for testbed runs that operate without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stocksense/stocksense/internal/domain"
)

// DemandRepository holds demand history in memory. Reads are safe to run
// concurrently, matching the contract of the database-backed repository.
type DemandRepository struct {
	mu           sync.RWMutex
	observations map[string][]domain.DemandObservation
	unitPrices   map[string]float64
}

func NewDemandRepository() *DemandRepository {
	return &DemandRepository{
		observations: make(map[string][]domain.DemandObservation),
		unitPrices:   make(map[string]float64),
	}
}

// AddObservation inserts one historical fact, keeping each item's series
// date-ordered.
func (r *DemandRepository) AddObservation(obs domain.DemandObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	series := append(r.observations[obs.ItemID], obs)
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	r.observations[obs.ItemID] = series
}

// SetUnitPrice records the selling price used for revenue ranking.
func (r *DemandRepository) SetUnitPrice(itemID string, price float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unitPrices[itemID] = price
}

func (r *DemandRepository) FetchRange(ctx context.Context, itemIDs []string, start, end time.Time) (map[string][]domain.DemandObservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]domain.DemandObservation)
	for _, id := range itemIDs {
		for _, obs := range r.observations[id] {
			if obs.Date.Before(start) || obs.Date.After(end) {
				continue
			}
			out[id] = append(out[id], obs)
		}
	}
	return out, nil
}

func (r *DemandRepository) FetchUpTo(ctx context.Context, itemIDs []string, cutoff time.Time) (map[string][]domain.DemandObservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]domain.DemandObservation)
	for _, id := range itemIDs {
		for _, obs := range r.observations[id] {
			if obs.Date.After(cutoff) {
				break
			}
			out[id] = append(out[id], obs)
		}
	}
	return out, nil
}

func (r *DemandRepository) RevenueByItem(ctx context.Context, end time.Time, windowDays int) (map[string]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := end.AddDate(0, 0, -windowDays)
	out := make(map[string]float64)
	for id, series := range r.observations {
		price, ok := r.unitPrices[id]
		if !ok {
			price = 1
		}
		for _, obs := range series {
			if obs.Date.After(end) || !obs.Date.After(start) {
				continue
			}
			out[id] += obs.UnitsSold * price
		}
	}
	return out, nil
}
