// Package forecast produces point-forecast series for items over a horizon,
// trained only on data up to a cutoff date, dispatching to one of several
// interchangeable method implementations.
package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stocksense/stocksense/internal/domain"
	"github.com/stocksense/stocksense/internal/repository"
)

// HistoryProvider supplies training data. FetchUpTo enforces the cutoff at
// the data-access boundary, which is what makes backtests honest.
type HistoryProvider interface {
	FetchUpTo(ctx context.Context, itemIDs []string, cutoff time.Time) (map[string][]domain.DemandObservation, error)
}

// MethodSelector recommends a forecasting method for an item, typically by
// classifying its demand series.
type MethodSelector interface {
	Recommend(ctx context.Context, itemID string, daily []float64) (domain.ForecastMethod, error)
}

// Options modify a single Forecast call.
type Options struct {
	// MethodOverride bypasses the selector's recommendation.
	MethodOverride domain.ForecastMethod
	// RunAllMethods appends one result per supported method after the
	// primary result, for side-by-side comparison. Primary selection is
	// unaffected.
	RunAllMethods bool
	// SkipPersist holds results in memory only.
	SkipPersist bool
}

// Config bounds the forecaster's retry and window behavior.
type Config struct {
	RetryAttempts      int
	RetryBackoff       time.Duration
	FallbackWindowDays int
	MovingAvgWindow    int
	MinMaxWindow       int
}

// DefaultConfig returns the engine's standard forecaster settings.
func DefaultConfig() Config {
	return Config{
		RetryAttempts:      3,
		RetryBackoff:       2 * time.Second,
		FallbackWindowDays: 30,
		MovingAvgWindow:    7,
		MinMaxWindow:       30,
	}
}

// Forecaster dispatches forecast requests to method implementations and
// applies the degenerate-result fallback policy.
type Forecaster struct {
	history     HistoryProvider
	selector    MethodSelector
	transformer TransformerBackend
	sink        repository.ForecastSink
	cfg         Config
}

func New(history HistoryProvider, selector MethodSelector, transformer TransformerBackend, sink repository.ForecastSink, cfg Config) *Forecaster {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.FallbackWindowDays <= 0 {
		cfg.FallbackWindowDays = 30
	}
	if sink == nil {
		sink = repository.NoopForecastSink{}
	}
	return &Forecaster{
		history:     history,
		selector:    selector,
		transformer: transformer,
		sink:        sink,
		cfg:         cfg,
	}
}

// Forecast produces one result per requested item that has history. Items
// without any observations up to the cutoff are skipped; callers detect
// them by absence and surface a warning. Every returned prediction is dated
// strictly after trainingEnd.
func (f *Forecaster) Forecast(ctx context.Context, itemIDs []string, horizonDays int, trainingEnd time.Time, opts Options) ([]domain.ForecastResult, error) {
	if horizonDays <= 0 {
		return nil, &domain.InvalidConfigError{Reason: fmt.Sprintf("horizon must be positive, got %d", horizonDays)}
	}
	if len(itemIDs) == 0 {
		return nil, &domain.InvalidConfigError{Reason: "empty item set"}
	}

	histories, err := f.history.FetchUpTo(ctx, itemIDs, trainingEnd)
	if err != nil {
		return nil, fmt.Errorf("fetch training data: %w", err)
	}

	series := make(map[string][]float64, len(histories))
	methods := make(map[string]domain.ForecastMethod, len(histories))
	ordered := make([]string, 0, len(itemIDs))

	for _, itemID := range itemIDs {
		obs := histories[itemID]
		if len(obs) == 0 {
			log.Warn().Str("item_id", itemID).Msg("no training data, skipping item")
			continue
		}
		daily := dailyValues(obs)
		series[itemID] = daily
		ordered = append(ordered, itemID)

		method := opts.MethodOverride
		if method == "" {
			method, err = f.recommend(ctx, itemID, daily)
			if err != nil {
				return nil, fmt.Errorf("select method for %s: %w", itemID, err)
			}
		}
		methods[itemID] = method
	}

	results := make([]domain.ForecastResult, 0, len(ordered))

	// The transformer is the expensive path: batch every item routed to it
	// into a single inference call.
	transformerItems := make([]string, 0)
	for _, itemID := range ordered {
		if methods[itemID] == domain.MethodTransformer {
			transformerItems = append(transformerItems, itemID)
		}
	}
	transformerOut := f.predictTransformerBatch(ctx, transformerItems, series, horizonDays)

	for _, itemID := range ordered {
		method := methods[itemID]
		var (
			values  []float64
			callErr error
		)
		if method == domain.MethodTransformer {
			out, ok := transformerOut[itemID]
			if !ok {
				callErr = &domain.ForecastGenerationError{
					ItemID: itemID,
					Method: method,
					Err:    fmt.Errorf("inference batch returned no series"),
				}
			}
			values = out
		} else {
			values = f.predictLocal(method, series[itemID], horizonDays)
		}

		result := f.buildResult(itemID, method, trainingEnd, horizonDays, values, series[itemID], callErr)
		results = append(results, result)
	}

	if opts.RunAllMethods {
		results = append(results, f.runAllMethods(ctx, ordered, series, horizonDays, trainingEnd, methods)...)
	}

	if !opts.SkipPersist {
		if err := f.sink.SaveForecasts(ctx, results); err != nil {
			// Persistence is best-effort; the forecasts themselves are
			// still valid for the caller.
			log.Warn().Err(err).Msg("persist forecasts failed")
		}
	}

	return results, nil
}

func (f *Forecaster) recommend(ctx context.Context, itemID string, daily []float64) (domain.ForecastMethod, error) {
	if f.selector == nil {
		return domain.MethodMovingAverage, nil
	}
	return f.selector.Recommend(ctx, itemID, daily)
}

// predictTransformerBatch runs one bounded inference call for all items,
// retrying up to the configured bound. A batch that keeps failing yields an
// empty map; per-item fallback handling happens at the call site.
func (f *Forecaster) predictTransformerBatch(ctx context.Context, itemIDs []string, series map[string][]float64, horizon int) map[string][]float64 {
	if len(itemIDs) == 0 {
		return nil
	}
	if f.transformer == nil {
		log.Warn().Int("items", len(itemIDs)).Msg("transformer backend not configured, falling back")
		return nil
	}

	batch := make(map[string][]float64, len(itemIDs))
	for _, id := range itemIDs {
		batch[id] = series[id]
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.RetryAttempts; attempt++ {
		out, err := f.transformer.PredictBatch(ctx, batch, horizon)
		if err == nil {
			return out
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", f.cfg.RetryAttempts).
			Msg("transformer inference failed")

		if attempt < f.cfg.RetryAttempts && f.cfg.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(f.cfg.RetryBackoff):
			}
		}
	}
	log.Error().Err(lastErr).Int("items", len(itemIDs)).Msg("transformer inference exhausted retries")
	return nil
}

func (f *Forecaster) predictLocal(method domain.ForecastMethod, series []float64, horizon int) []float64 {
	switch method {
	case domain.MethodMovingAverage:
		return movingAverage(series, horizon, f.cfg.MovingAvgWindow)
	case domain.MethodCroston:
		return croston(series, horizon, false)
	case domain.MethodSBA:
		return croston(series, horizon, true)
	case domain.MethodMinMax:
		return minMax(series, horizon, f.cfg.MinMaxWindow)
	default:
		return nil
	}
}

// buildResult validates raw method output and applies the degenerate-result
// policy: a failed, empty, all-zero or non-finite forecast is replaced by
// the mean of the recent window replicated across the horizon, and the
// substitution is flagged.
func (f *Forecaster) buildResult(itemID string, method domain.ForecastMethod, trainingEnd time.Time, horizon int, values, series []float64, callErr error) domain.ForecastResult {
	result := domain.ForecastResult{
		ItemID:          itemID,
		Method:          method,
		TrainingEndDate: trainingEnd,
	}

	reason := ""
	switch {
	case callErr != nil:
		reason = callErr.Error()
	case len(values) != horizon:
		reason = (&domain.NumericAnomaly{ItemID: itemID, Reason: fmt.Sprintf("forecast length %d, expected %d", len(values), horizon)}).Error()
	default:
		if anomaly := detectAnomaly(itemID, values); anomaly != nil {
			reason = anomaly.Error()
		}
	}

	if reason != "" {
		level := recentMean(series, f.cfg.FallbackWindowDays)
		values = flat(level, horizon)
		result.Fallback = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("degenerate forecast substituted with %d-day mean: %s", f.cfg.FallbackWindowDays, reason))
	}

	result.Predictions = make([]domain.ForecastPoint, horizon)
	for i := 0; i < horizon; i++ {
		result.Predictions[i] = domain.ForecastPoint{
			Date:  trainingEnd.AddDate(0, 0, i+1),
			Value: values[i],
		}
	}
	return result
}

// detectAnomaly flags forecasts that resolved to nothing usable.
func detectAnomaly(itemID string, values []float64) *domain.NumericAnomaly {
	allZero := true
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &domain.NumericAnomaly{ItemID: itemID, Reason: "non-finite forecast value"}
		}
		if v < 0 {
			return &domain.NumericAnomaly{ItemID: itemID, Reason: "negative forecast value"}
		}
		if v != 0 {
			allZero = false
		}
	}
	if allZero {
		return &domain.NumericAnomaly{ItemID: itemID, Reason: "all-zero forecast"}
	}
	return nil
}

// runAllMethods produces extra per-method results for comparison runs. The
// primary results are untouched; these are strictly additive.
func (f *Forecaster) runAllMethods(ctx context.Context, itemIDs []string, series map[string][]float64, horizon int, trainingEnd time.Time, primary map[string]domain.ForecastMethod) []domain.ForecastResult {
	extra := make([]domain.ForecastResult, 0)

	transformerOut := f.predictTransformerBatch(ctx, itemIDs, series, horizon)

	for _, itemID := range itemIDs {
		for _, method := range domain.AllForecastMethods() {
			if method == primary[itemID] {
				continue
			}
			var (
				values  []float64
				callErr error
			)
			if method == domain.MethodTransformer {
				out, ok := transformerOut[itemID]
				if !ok {
					callErr = &domain.ForecastGenerationError{
						ItemID: itemID,
						Method: method,
						Err:    fmt.Errorf("inference batch returned no series"),
					}
				}
				values = out
			} else {
				values = f.predictLocal(method, series[itemID], horizon)
			}
			extra = append(extra, f.buildResult(itemID, method, trainingEnd, horizon, values, series[itemID], callErr))
		}
	}
	return extra
}

// dailyValues flattens observations into an ordered value series.
func dailyValues(obs []domain.DemandObservation) []float64 {
	sorted := make([]domain.DemandObservation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	values := make([]float64, len(sorted))
	for i, o := range sorted {
		values[i] = o.UnitsSold
	}
	return values
}
