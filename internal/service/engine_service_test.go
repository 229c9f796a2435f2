package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stocksense/stocksense/internal/config"
	"github.com/stocksense/stocksense/internal/domain"
	"github.com/stocksense/stocksense/internal/repository/memory"
	"github.com/stocksense/stocksense/internal/simulation"
	"github.com/stocksense/stocksense/internal/storage"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// memoryObjectStore captures uploads so artifact export can be asserted
// without a real bucket.
type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: make(map[string][]byte)}
}

func (s *memoryObjectStore) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.ObjectInfo, 0)
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (s *memoryObjectStore) DownloadObject(ctx context.Context, key, destPath string) error {
	return errors.New("not supported")
}

func (s *memoryObjectStore) UploadObject(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

type fixture struct {
	demand  *memory.DemandRepository
	inputs  *memory.PolicyInputsRepository
	store   *memory.ForecastStore
	objects *memoryObjectStore
	service *EngineService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		demand:  memory.NewDemandRepository(),
		inputs:  memory.NewPolicyInputsRepository(),
		store:   memory.NewForecastStore(),
		objects: newMemoryObjectStore(),
	}
	f.service = NewEngineService(
		f.demand, f.inputs, f.store,
		nil, nil,
		storage.NewRunArtifactStore(f.objects),
		config.EngineConfig{MaxParallelRuns: 2},
	)
	return f
}

func seedDaily(repo *memory.DemandRepository, itemID string, start, end time.Time, units func(day int) float64) {
	day := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		repo.AddObservation(domain.DemandObservation{
			ItemID:    itemID,
			Date:      d,
			UnitsSold: units(day),
		})
		day++
	}
}

func TestClassify(t *testing.T) {
	f := newFixture(t)
	asOf := date("2024-03-01")

	// alpha sells steadily at a high price, beta moves one unit every
	// fifth day.
	seedDaily(f.demand, "alpha", date("2024-01-01"), asOf, func(int) float64 { return 10 })
	seedDaily(f.demand, "beta", date("2024-01-01"), asOf, func(day int) float64 {
		if day%5 == 0 {
			return 1
		}
		return 0
	})
	f.demand.SetUnitPrice("alpha", 10)
	f.demand.SetUnitPrice("beta", 1)

	alpha, err := f.service.Classify(context.Background(), "alpha", asOf)
	if err != nil {
		t.Fatalf("Classify alpha: %v", err)
	}
	if alpha.ABCClass != domain.ABCClassA {
		t.Errorf("alpha ABC = %s, want A", alpha.ABCClass)
	}
	if alpha.XYZClass != domain.XYZClassX {
		t.Errorf("alpha XYZ = %s, want X", alpha.XYZClass)
	}
	if alpha.DemandPattern != domain.PatternRegular {
		t.Errorf("alpha pattern = %s, want regular", alpha.DemandPattern)
	}
	if alpha.RecommendedMethod != domain.MethodTransformer {
		t.Errorf("alpha method = %s, want transformer", alpha.RecommendedMethod)
	}

	beta, err := f.service.Classify(context.Background(), "beta", asOf)
	if err != nil {
		t.Fatalf("Classify beta: %v", err)
	}
	if beta.ABCClass != domain.ABCClassC {
		t.Errorf("beta ABC = %s, want C", beta.ABCClass)
	}
	if beta.DemandPattern != domain.PatternIntermittent {
		t.Errorf("beta pattern = %s, want intermittent", beta.DemandPattern)
	}
	if beta.RecommendedMethod != domain.MethodCroston {
		t.Errorf("beta method = %s, want croston", beta.RecommendedMethod)
	}
}

func TestClassify_MissingData(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Classify(context.Background(), "ghost", date("2024-03-01"))
	var missing *domain.MissingDataError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingDataError", err)
	}
}

func TestForecast_PersistsToSink(t *testing.T) {
	f := newFixture(t)
	seedDaily(f.demand, "alpha", date("2024-01-01"), date("2024-03-01"), func(int) float64 { return 4 })

	results, err := f.service.Forecast(context.Background(), ForecastRequest{
		ItemIDs:     []string{"alpha"},
		HorizonDays: 14,
		TrainingEnd: date("2024-03-01"),
		Method:      domain.MethodMovingAverage,
	})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(results) != 1 || len(results[0].Predictions) != 14 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(f.store.Results()) != 1 {
		t.Errorf("sink holds %d results, want 1", len(f.store.Results()))
	}
}

func simCfg(items ...string) simulation.Config {
	return simulation.Config{
		ItemIDs:        items,
		StartDate:      date("2024-02-01"),
		EndDate:        date("2024-02-10"),
		MethodOverride: domain.MethodMovingAverage,
		SkipPersist:    true,
	}
}

func TestSimulate_ExportsArtifacts(t *testing.T) {
	f := newFixture(t)
	seedDaily(f.demand, "alpha", date("2024-01-01"), date("2024-02-10"), func(int) float64 { return 5 })
	f.inputs.AddInputs(domain.ItemPolicyInputs{
		ItemID: "alpha", UnitCost: 3, LeadTimeDays: 4, SafetyBufferDays: 2, ServiceLevel: 0.95,
	})

	result, err := f.service.Simulate(context.Background(), "test-run", simCfg("alpha"))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(result.DailyComparisons) != 10 {
		t.Fatalf("comparison rows = %d, want 10", len(result.DailyComparisons))
	}

	logCSV, ok := f.objects.objects["runs/test-run/comparison_log.csv"]
	if !ok {
		t.Fatal("comparison log was not exported")
	}
	lines := strings.Split(strings.TrimSpace(string(logCSV)), "\n")
	if len(lines) != 11 {
		t.Errorf("exported CSV has %d lines, want header plus 10 rows", len(lines))
	}
	if _, ok := f.objects.objects["runs/test-run/metrics.json"]; !ok {
		t.Error("metrics were not exported")
	}
}

func TestSimulateMany(t *testing.T) {
	f := newFixture(t)
	seedDaily(f.demand, "alpha", date("2024-01-01"), date("2024-02-10"), func(int) float64 { return 5 })
	seedDaily(f.demand, "beta", date("2024-01-01"), date("2024-02-10"), func(int) float64 { return 2 })

	results, err := f.service.SimulateMany(context.Background(), []NamedRun{
		{RunID: "run-alpha", Config: simCfg("alpha")},
		{RunID: "run-beta", Config: simCfg("beta")},
	})
	if err != nil {
		t.Fatalf("SimulateMany: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, runID := range []string{"run-alpha", "run-beta"} {
		result, ok := results[runID]
		if !ok || result == nil {
			t.Errorf("missing result for %s", runID)
		}
	}
}

func TestSimulateMany_FailureCancelsBatch(t *testing.T) {
	f := newFixture(t)
	seedDaily(f.demand, "alpha", date("2024-01-01"), date("2024-02-10"), func(int) float64 { return 5 })

	bad := simCfg("alpha")
	bad.EndDate = date("2024-01-01")

	_, err := f.service.SimulateMany(context.Background(), []NamedRun{
		{RunID: "good", Config: simCfg("alpha")},
		{RunID: "bad", Config: bad},
	})
	if err == nil {
		t.Fatal("expected batch error")
	}
	var invalid *domain.InvalidConfigError
	if !errors.As(err, &invalid) {
		t.Errorf("err = %v, want InvalidConfigError in chain", err)
	}
}
