package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stocksense/stocksense/internal/domain"
)

type stubHistory struct {
	data map[string][]domain.DemandObservation
}

func (s *stubHistory) FetchUpTo(ctx context.Context, itemIDs []string, cutoff time.Time) (map[string][]domain.DemandObservation, error) {
	out := make(map[string][]domain.DemandObservation)
	for _, id := range itemIDs {
		for _, obs := range s.data[id] {
			if !obs.Date.After(cutoff) {
				out[id] = append(out[id], obs)
			}
		}
	}
	return out, nil
}

type stubSelector struct {
	method domain.ForecastMethod
}

func (s *stubSelector) Recommend(ctx context.Context, itemID string, daily []float64) (domain.ForecastMethod, error) {
	return s.method, nil
}

type stubTransformer struct {
	calls  int
	fail   bool
	output map[string][]float64
}

func (s *stubTransformer) PredictBatch(ctx context.Context, series map[string][]float64, horizon int) (map[string][]float64, error) {
	s.calls++
	if s.fail {
		return nil, errors.New("inference unavailable")
	}
	if s.output != nil {
		return s.output, nil
	}
	out := make(map[string][]float64, len(series))
	for id := range series {
		vals := make([]float64, horizon)
		for i := range vals {
			vals[i] = 5
		}
		out[id] = vals
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func historyFor(itemID string, start time.Time, values []float64) []domain.DemandObservation {
	obs := make([]domain.DemandObservation, len(values))
	for i, v := range values {
		obs[i] = domain.DemandObservation{ItemID: itemID, Date: start.AddDate(0, 0, i), UnitsSold: v}
	}
	return obs
}

func steady(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func newTestForecaster(history *stubHistory, selector MethodSelector, backend TransformerBackend) *Forecaster {
	cfg := DefaultConfig()
	cfg.RetryBackoff = 0
	return New(history, selector, backend, nil, cfg)
}

func TestForecast_NoLookahead(t *testing.T) {
	start := day("2024-01-01")
	cutoff := day("2024-03-01")

	// History extends well past the cutoff; none of it may leak.
	history := &stubHistory{data: map[string][]domain.DemandObservation{
		"item-1": historyFor("item-1", start, steady(180, 10)),
	}}
	f := newTestForecaster(history, &stubSelector{method: domain.MethodMovingAverage}, nil)

	results, err := f.Forecast(context.Background(), []string{"item-1"}, 14, cutoff, Options{})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}

	r := results[0]
	if !r.TrainingEndDate.Equal(cutoff) {
		t.Errorf("TrainingEndDate = %v, want %v", r.TrainingEndDate, cutoff)
	}
	if len(r.Predictions) != 14 {
		t.Fatalf("predictions = %d, want 14", len(r.Predictions))
	}
	for _, p := range r.Predictions {
		if !p.Date.After(cutoff) {
			t.Errorf("prediction date %v not strictly after cutoff %v", p.Date, cutoff)
		}
	}
}

func TestForecast_MethodOverride(t *testing.T) {
	start := day("2024-01-01")
	history := &stubHistory{data: map[string][]domain.DemandObservation{
		"item-1": historyFor("item-1", start, steady(60, 4)),
	}}
	// Selector would say transformer; the override must win.
	f := newTestForecaster(history, &stubSelector{method: domain.MethodTransformer}, &stubTransformer{})

	results, err := f.Forecast(context.Background(), []string{"item-1"}, 7, day("2024-02-20"), Options{
		MethodOverride: domain.MethodMovingAverage,
	})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if results[0].Method != domain.MethodMovingAverage {
		t.Errorf("Method = %s, want moving_average", results[0].Method)
	}
}

func TestForecast_TransformerBatchedOnce(t *testing.T) {
	start := day("2024-01-01")
	backend := &stubTransformer{}
	history := &stubHistory{data: map[string][]domain.DemandObservation{
		"item-1": historyFor("item-1", start, steady(60, 4)),
		"item-2": historyFor("item-2", start, steady(60, 9)),
		"item-3": historyFor("item-3", start, steady(60, 2)),
	}}
	f := newTestForecaster(history, &stubSelector{method: domain.MethodTransformer}, backend)

	_, err := f.Forecast(context.Background(), []string{"item-1", "item-2", "item-3"}, 7, day("2024-02-20"), Options{})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if backend.calls != 1 {
		t.Errorf("transformer calls = %d, want 1 (batched)", backend.calls)
	}
}

func TestForecast_TransformerFailureFallsBack(t *testing.T) {
	start := day("2024-01-01")
	backend := &stubTransformer{fail: true}
	history := &stubHistory{data: map[string][]domain.DemandObservation{
		"item-1": historyFor("item-1", start, steady(60, 6)),
	}}
	f := newTestForecaster(history, &stubSelector{method: domain.MethodTransformer}, backend)

	results, err := f.Forecast(context.Background(), []string{"item-1"}, 10, day("2024-02-29"), Options{})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if backend.calls != 3 {
		t.Errorf("transformer calls = %d, want 3 (retry bound)", backend.calls)
	}

	r := results[0]
	if !r.Fallback {
		t.Fatal("expected fallback flag after exhausted retries")
	}
	if len(r.Warnings) == 0 {
		t.Error("expected a warning describing the substitution")
	}
	// Fallback level is the mean of the last 30 observed days: steady 6.
	for _, p := range r.Predictions {
		if p.Value != 6 {
			t.Errorf("fallback value = %v, want 6", p.Value)
		}
	}
}

func TestForecast_AllZeroForecastFallsBack(t *testing.T) {
	start := day("2024-01-01")
	// Croston over a series whose recent window has demand but whose
	// history contains no nonzero demand yields zeros; here the series has
	// zero demand except in the fallback window, which makes the two paths
	// distinguishable.
	values := steady(60, 0)
	for i := 40; i < 60; i++ {
		values[i] = 3
	}
	history := &stubHistory{data: map[string][]domain.DemandObservation{
		"item-1": historyFor("item-1", start, values),
	}}

	// Transformer output of all zeros triggers the anomaly path.
	backend := &stubTransformer{output: map[string][]float64{"item-1": make([]float64, 5)}}
	f := newTestForecaster(history, &stubSelector{method: domain.MethodTransformer}, backend)

	results, err := f.Forecast(context.Background(), []string{"item-1"}, 5, day("2024-02-29"), Options{})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	r := results[0]
	if !r.Fallback {
		t.Fatal("expected fallback for all-zero forecast")
	}
	// Mean of the last 30 days: 20 days of 3 over 30 days = 2.
	for _, p := range r.Predictions {
		if p.Value != 2 {
			t.Errorf("fallback value = %v, want 2", p.Value)
		}
	}
}

func TestForecast_RunAllMethods(t *testing.T) {
	start := day("2024-01-01")
	history := &stubHistory{data: map[string][]domain.DemandObservation{
		"item-1": historyFor("item-1", start, steady(60, 4)),
	}}
	f := newTestForecaster(history, &stubSelector{method: domain.MethodMovingAverage}, &stubTransformer{})

	results, err := f.Forecast(context.Background(), []string{"item-1"}, 7, day("2024-02-20"), Options{RunAllMethods: true})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	// One primary plus one per remaining method.
	want := len(domain.AllForecastMethods())
	if len(results) != want {
		t.Fatalf("results = %d, want %d", len(results), want)
	}
	if results[0].Method != domain.MethodMovingAverage {
		t.Errorf("primary method = %s, want moving_average", results[0].Method)
	}
	seen := make(map[domain.ForecastMethod]bool)
	for _, r := range results {
		seen[r.Method] = true
	}
	for _, m := range domain.AllForecastMethods() {
		if !seen[m] {
			t.Errorf("method %s missing from run-all output", m)
		}
	}
}

func TestForecast_SkipsItemsWithoutHistory(t *testing.T) {
	start := day("2024-01-01")
	history := &stubHistory{data: map[string][]domain.DemandObservation{
		"item-1": historyFor("item-1", start, steady(60, 4)),
	}}
	f := newTestForecaster(history, &stubSelector{method: domain.MethodMovingAverage}, nil)

	results, err := f.Forecast(context.Background(), []string{"item-1", "ghost"}, 7, day("2024-02-20"), Options{})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(results) != 1 || results[0].ItemID != "item-1" {
		t.Errorf("expected only item-1 in results, got %d results", len(results))
	}
}

func TestForecast_InvalidInputs(t *testing.T) {
	f := newTestForecaster(&stubHistory{}, nil, nil)

	var cfgErr *domain.InvalidConfigError
	if _, err := f.Forecast(context.Background(), nil, 7, day("2024-02-20"), Options{}); !errors.As(err, &cfgErr) {
		t.Errorf("empty item set error = %v, want InvalidConfigError", err)
	}
	if _, err := f.Forecast(context.Background(), []string{"a"}, 0, day("2024-02-20"), Options{}); !errors.As(err, &cfgErr) {
		t.Errorf("zero horizon error = %v, want InvalidConfigError", err)
	}
}
