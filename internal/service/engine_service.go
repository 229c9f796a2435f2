package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/stocksense/stocksense/internal/cache"
	"github.com/stocksense/stocksense/internal/classifier"
	"github.com/stocksense/stocksense/internal/config"
	"github.com/stocksense/stocksense/internal/domain"
	"github.com/stocksense/stocksense/internal/forecast"
	"github.com/stocksense/stocksense/internal/repository"
	"github.com/stocksense/stocksense/internal/simulation"
	"github.com/stocksense/stocksense/internal/storage"
)

// revenueWindowDays is the trailing window ABC ranking sums revenue over.
const revenueWindowDays = 90

// EngineService wires the classifier, forecaster and simulation orchestrator
// behind one API surface. It owns the cross-cutting pieces the engine
// packages stay free of: the classification cache, run artifact export and
// the parallelism bound for batched runs.
type EngineService struct {
	demand      repository.DemandRepository
	inputs      repository.PolicyInputsRepository
	sink        repository.ForecastSink
	transformer forecast.TransformerBackend
	classifier  *classifier.Classifier
	cache       cache.ClassificationCache

	forecastCfg forecast.Config
	maxParallel int

	// artifacts is nil when export is disabled.
	artifacts *storage.RunArtifactStore
}

func NewEngineService(
	demand repository.DemandRepository,
	inputs repository.PolicyInputsRepository,
	sink repository.ForecastSink,
	transformer forecast.TransformerBackend,
	cacheImpl cache.ClassificationCache,
	artifacts *storage.RunArtifactStore,
	engineCfg config.EngineConfig,
) *EngineService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopClassificationCache()
	}

	fcfg := forecast.DefaultConfig()
	if engineCfg.RetryAttempts > 0 {
		fcfg.RetryAttempts = engineCfg.RetryAttempts
	}
	if engineCfg.RetryBackoffMS > 0 {
		fcfg.RetryBackoff = time.Duration(engineCfg.RetryBackoffMS) * time.Millisecond
	}

	maxParallel := engineCfg.MaxParallelRuns
	if maxParallel <= 0 {
		maxParallel = 1
	}

	return &EngineService{
		demand:      demand,
		inputs:      inputs,
		sink:        sink,
		transformer: transformer,
		classifier:  classifier.New(),
		cache:       cacheImpl,
		forecastCfg: fcfg,
		maxParallel: maxParallel,
		artifacts:   artifacts,
	}
}

// Classify segments one item as of the given date. The ABC class depends on
// the whole population's revenue ranking, so a single-item request still
// runs the population query.
func (s *EngineService) Classify(ctx context.Context, itemID string, asOf time.Time) (domain.SKUClassification, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	asOf = truncateDay(asOf)

	if cls, ok, err := s.cache.Get(ctx, itemID, asOf); err == nil && ok {
		return cls, nil
	} else if err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("classification cache get failed")
	}

	histories, err := s.demand.FetchUpTo(ctx, []string{itemID}, asOf)
	if err != nil {
		return domain.SKUClassification{}, fmt.Errorf("fetch demand history: %w", err)
	}
	obs := histories[itemID]
	if len(obs) == 0 {
		return domain.SKUClassification{}, &domain.MissingDataError{ItemID: itemID}
	}

	abcByItem, err := s.classifyABCPopulation(ctx, asOf)
	if err != nil {
		return domain.SKUClassification{}, err
	}
	abc, ok := abcByItem[itemID]
	if !ok {
		// No revenue in the window puts the item at the bottom of the
		// ranking.
		abc = domain.ABCClassC
	}

	cls := s.classifier.Classify(itemID, dailySeries(obs), abc)

	if err := s.cache.Set(ctx, itemID, asOf, cls); err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("classification cache set failed")
	}

	return cls, nil
}

func (s *EngineService) classifyABCPopulation(ctx context.Context, asOf time.Time) (map[string]domain.ABCClass, error) {
	revenue, err := s.demand.RevenueByItem(ctx, asOf, revenueWindowDays)
	if err != nil {
		return nil, fmt.Errorf("fetch revenue ranking: %w", err)
	}
	return s.classifier.ClassifyABC(revenue), nil
}

// ForecastRequest describes one on-demand forecast call.
type ForecastRequest struct {
	ItemIDs       []string
	HorizonDays   int
	TrainingEnd   time.Time
	Method        domain.ForecastMethod
	RunAllMethods bool
	SkipPersist   bool
}

// Forecast generates forecasts for the requested items, trained only on
// data up to the training end date.
func (s *EngineService) Forecast(ctx context.Context, req ForecastRequest) ([]domain.ForecastResult, error) {
	trainingEnd := req.TrainingEnd
	if trainingEnd.IsZero() {
		trainingEnd = time.Now()
	}
	trainingEnd = truncateDay(trainingEnd)

	forecaster := s.newForecaster(trainingEnd)
	return forecaster.Forecast(ctx, req.ItemIDs, req.HorizonDays, trainingEnd, forecast.Options{
		MethodOverride: req.Method,
		RunAllMethods:  req.RunAllMethods,
		SkipPersist:    req.SkipPersist,
	})
}

// Simulate executes one simulation run. When artifact export is configured
// the comparison log and metrics are uploaded under the run ID; export
// failures are logged, not fatal, because the result is already complete.
func (s *EngineService) Simulate(ctx context.Context, runID string, cfg simulation.Config) (*domain.SimulationResult, error) {
	return s.SimulateWithProgress(ctx, runID, cfg, nil)
}

// SimulateWithProgress is Simulate with a per-day progress callback, for
// interactive callers.
func (s *EngineService) SimulateWithProgress(ctx context.Context, runID string, cfg simulation.Config, onDay func(day time.Time, index, total int)) (*domain.SimulationResult, error) {
	forecaster := s.newForecaster(truncateDay(cfg.StartDate))
	orch := simulation.NewOrchestrator(s.demand, s.inputs, forecaster)
	orch.OnDay = onDay

	result, err := orch.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if s.artifacts != nil && runID != "" {
		if err := s.artifacts.Export(ctx, runID, result); err != nil {
			log.Warn().Err(err).Str("run_id", runID).Msg("run artifact export failed")
		}
	}

	return result, nil
}

// NamedRun pairs a run ID with its configuration for batched execution.
type NamedRun struct {
	RunID  string
	Config simulation.Config
}

// SimulateMany executes independent runs in parallel, bounded by the
// configured limit. Each run is strictly sequential internally; the first
// failing run cancels the rest at their next day boundary.
func (s *EngineService) SimulateMany(ctx context.Context, runs []NamedRun) (map[string]*domain.SimulationResult, error) {
	results := make(map[string]*domain.SimulationResult, len(runs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for _, run := range runs {
		run := run
		g.Go(func() error {
			result, err := s.Simulate(gctx, run.RunID, run.Config)
			if err != nil {
				return fmt.Errorf("run %s: %w", run.RunID, err)
			}
			mu.Lock()
			results[run.RunID] = result
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// newForecaster builds a forecaster whose method selector classifies with
// data as of the given date. Selectors are per-call because the ABC ranking
// is date-dependent.
func (s *EngineService) newForecaster(asOf time.Time) *forecast.Forecaster {
	selector := &classifierSelector{
		service: s,
		asOf:    asOf,
	}
	return forecast.New(s.demand, selector, s.transformer, s.sink, s.forecastCfg)
}

// classifierSelector adapts the classifier to the forecaster's method
// selection hook. The population ABC ranking is loaded once per selector and
// shared across items of the same call.
type classifierSelector struct {
	service *EngineService
	asOf    time.Time

	mu  sync.Mutex
	abc map[string]domain.ABCClass
}

func (cs *classifierSelector) Recommend(ctx context.Context, itemID string, daily []float64) (domain.ForecastMethod, error) {
	abcByItem, err := cs.population(ctx)
	if err != nil {
		return "", err
	}
	abc, ok := abcByItem[itemID]
	if !ok {
		abc = domain.ABCClassC
	}

	cls := cs.service.classifier.Classify(itemID, daily, abc)
	return cls.RecommendedMethod, nil
}

func (cs *classifierSelector) population(ctx context.Context) (map[string]domain.ABCClass, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.abc != nil {
		return cs.abc, nil
	}

	abc, err := cs.service.classifyABCPopulation(ctx, cs.asOf)
	if err != nil {
		return nil, err
	}
	cs.abc = abc
	return abc, nil
}

func dailySeries(obs []domain.DemandObservation) []float64 {
	sorted := make([]domain.DemandObservation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	values := make([]float64, len(sorted))
	for i, o := range sorted {
		values[i] = o.UnitsSold
	}
	return values
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
