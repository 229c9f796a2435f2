// internal/repository/interfaces.go
package repository

import (
	"context"
	"time"

	"github.com/stocksense/stocksense/internal/domain"
)

// DemandRepository is the read-only historical time series. It must support
// concurrent reads; parallel simulation runs share nothing else.
type DemandRepository interface {
	// FetchRange returns observations for the items within [start, end],
	// keyed by item and ordered by date.
	FetchRange(ctx context.Context, itemIDs []string, start, end time.Time) (map[string][]domain.DemandObservation, error)

	// FetchUpTo returns observations with date <= cutoff. This is the
	// backtesting boundary: forecast training data comes only through
	// here, so lookahead is impossible rather than merely discouraged.
	FetchUpTo(ctx context.Context, itemIDs []string, cutoff time.Time) (map[string][]domain.DemandObservation, error)

	// RevenueByItem returns trailing revenue per item over the window
	// ending at end, across the whole population, for ABC ranking.
	RevenueByItem(ctx context.Context, end time.Time, windowDays int) (map[string]float64, error)
}

// PolicyInputsRepository provides product and supplier reference data.
// Implementations resolve the supplier condition marked primary and fall
// back to the documented defaults (7-day lead time, no MOQ).
type PolicyInputsRepository interface {
	FetchPolicyInputs(ctx context.Context, itemIDs []string) (map[string]domain.ItemPolicyInputs, error)
}

// ForecastSink persists produced forecasts. The noop implementation backs
// the skip-persistence mode used by comparison and testbed runs that must
// not pollute production data.
type ForecastSink interface {
	SaveForecasts(ctx context.Context, results []domain.ForecastResult) error
}

// NoopForecastSink discards forecasts.
type NoopForecastSink struct{}

func (NoopForecastSink) SaveForecasts(ctx context.Context, results []domain.ForecastResult) error {
	return nil
}

var _ ForecastSink = NoopForecastSink{}
