package simulation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stocksense/stocksense/internal/domain"
	"github.com/stocksense/stocksense/internal/forecast"
	"github.com/stocksense/stocksense/internal/policy"
	"github.com/stocksense/stocksense/internal/repository"
)

// Config describes one simulation run.
type Config struct {
	ItemIDs   []string
	StartDate time.Time
	EndDate   time.Time

	// ForecastCadenceDays is how often cached forecasts are regenerated.
	// Zero means the default weekly cadence.
	ForecastCadenceDays int
	// ForecastHorizonDays is the length of each generated forecast.
	ForecastHorizonDays int
	// SkipPersist keeps forecasts out of the persistence sink, for
	// comparison runs that must not pollute production data.
	SkipPersist bool
	// MethodOverride forces one forecasting method for every item.
	MethodOverride domain.ForecastMethod
}

const (
	defaultCadenceDays = 7
	defaultHorizonDays = 30
)

// Orchestrator composes the forecaster, policy calculator, order book and
// recorder into a day-by-day replay. One orchestrator may run many times;
// each Run owns fresh per-run state, so independent runs can execute in
// parallel from separate goroutines.
type Orchestrator struct {
	demand     repository.DemandRepository
	inputs     repository.PolicyInputsRepository
	forecaster *forecast.Forecaster

	// OnDay, when set, is called after each completed simulated day.
	// Drives progress reporting; must not block for long.
	OnDay func(day time.Time, index, total int)
}

func NewOrchestrator(demand repository.DemandRepository, inputs repository.PolicyInputsRepository, forecaster *forecast.Forecaster) *Orchestrator {
	return &Orchestrator{
		demand:     demand,
		inputs:     inputs,
		forecaster: forecaster,
	}
}

// itemState is the per-item mutable state of one run. Real stock is tracked
// independently of the simulated side: it never benefits from simulated
// order arrivals.
type itemState struct {
	itemID       string
	simStock     float64
	realStock    float64
	policyInputs domain.ItemPolicyInputs
	observations map[int64]domain.DemandObservation
}

// cachedForecast is one entry of the weekly, run-local forecast cache.
type cachedForecast struct {
	result   domain.ForecastResult
	avgDaily float64
	total    float64
}

// run holds everything one simulation run mutates.
type run struct {
	cfg      Config
	states   map[string]*itemState
	active   []string
	book     *OrderBook
	recorder *Recorder
	cache    map[string]cachedForecast
	warnings []string
	skipped  []string
}

// Run replays the configured period one calendar day at a time, start and
// end inclusive. Cancellation is honored at day boundaries only, so the
// comparison log never contains a half-recorded day.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*domain.SimulationResult, error) {
	if cfg.ForecastCadenceDays <= 0 {
		cfg.ForecastCadenceDays = defaultCadenceDays
	}
	if cfg.ForecastHorizonDays <= 0 {
		cfg.ForecastHorizonDays = defaultHorizonDays
	}
	cfg.StartDate = truncateDay(cfg.StartDate)
	cfg.EndDate = truncateDay(cfg.EndDate)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	r, err := o.prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}

	totalDays := int(cfg.EndDate.Sub(cfg.StartDate).Hours()/24) + 1
	for i := 0; i < totalDays; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation canceled at day boundary %d: %w", i, err)
		}
		day := cfg.StartDate.AddDate(0, 0, i)

		o.applyArrivals(r, day)

		if i%cfg.ForecastCadenceDays == 0 {
			if err := o.refreshForecasts(ctx, r, day); err != nil {
				return nil, err
			}
		}

		for _, itemID := range r.active {
			o.stepItem(r, r.states[itemID], day)
		}

		if o.OnDay != nil {
			o.OnDay(day, i, totalDays)
		}
	}

	perItem, global := r.recorder.Finalize(policyInputsByItem(r))

	return &domain.SimulationResult{
		StartDate:        cfg.StartDate,
		EndDate:          cfg.EndDate,
		PerItem:          perItem,
		Global:           global,
		DailyComparisons: r.recorder.Rows(),
		SkippedItems:     r.skipped,
		Warnings:         r.warnings,
	}, nil
}

func validate(cfg Config) error {
	if len(cfg.ItemIDs) == 0 {
		return &domain.InvalidConfigError{Reason: "empty item set"}
	}
	if cfg.EndDate.Before(cfg.StartDate) {
		return &domain.InvalidConfigError{
			Reason: fmt.Sprintf("end date %s before start date %s",
				cfg.EndDate.Format("2006-01-02"), cfg.StartDate.Format("2006-01-02")),
		}
	}
	return nil
}

// prepare loads reference data and observations and builds per-run state.
// Run-level configuration problems are fatal here, before any day executes;
// item-level data problems only skip the item.
func (o *Orchestrator) prepare(ctx context.Context, cfg Config) (*run, error) {
	policyInputs, err := o.inputs.FetchPolicyInputs(ctx, cfg.ItemIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch policy inputs: %w", err)
	}
	for _, in := range policyInputs {
		if in.LeadTimeDays < 0 {
			return nil, &domain.InvalidConfigError{Reason: fmt.Sprintf("negative lead time for item %s", in.ItemID)}
		}
		if in.MOQ < 0 {
			return nil, &domain.InvalidConfigError{Reason: fmt.Sprintf("negative MOQ for item %s", in.ItemID)}
		}
	}

	observations, err := o.demand.FetchRange(ctx, cfg.ItemIDs, cfg.StartDate, cfg.EndDate)
	if err != nil {
		return nil, fmt.Errorf("fetch demand observations: %w", err)
	}

	prior, err := o.demand.FetchUpTo(ctx, cfg.ItemIDs, cfg.StartDate.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("fetch prior history: %w", err)
	}

	r := &run{
		cfg:      cfg,
		states:   make(map[string]*itemState),
		book:     NewOrderBook(),
		recorder: NewRecorder(),
		cache:    make(map[string]cachedForecast),
	}

	// Deterministic item order regardless of caller input.
	itemIDs := append([]string(nil), cfg.ItemIDs...)
	sort.Strings(itemIDs)

	for _, itemID := range itemIDs {
		obs := observations[itemID]
		if len(obs) == 0 && len(prior[itemID]) == 0 {
			missing := &domain.MissingDataError{ItemID: itemID}
			log.Warn().Str("item_id", itemID).Msg("skipping item: no historical data")
			r.skipped = append(r.skipped, itemID)
			r.warnings = append(r.warnings, missing.Error())
			continue
		}

		in, ok := policyInputs[itemID]
		if !ok {
			in = domain.ItemPolicyInputs{
				ItemID:           itemID,
				LeadTimeDays:     domain.DefaultLeadTimeDays,
				SafetyBufferDays: domain.DefaultSafetyBufferDays,
				ServiceLevel:     domain.DefaultServiceLevel,
			}
		}

		st := &itemState{
			itemID:       itemID,
			policyInputs: in,
			observations: make(map[int64]domain.DemandObservation, len(obs)),
		}
		for _, ob := range obs {
			st.observations[dayKey(ob.Date)] = ob
		}

		initial := initialStock(prior[itemID], in)
		st.simStock = initial
		st.realStock = initial

		r.states[itemID] = st
		r.active = append(r.active, itemID)
	}

	if len(r.active) == 0 {
		return nil, &domain.InvalidConfigError{Reason: "no item in the set has historical data"}
	}

	return r, nil
}

// initialStock seeds both stock tracks at the start of a run: ground truth
// from the most recent prior observation when available, otherwise a
// normal operating level of mean demand over lead time plus buffer.
func initialStock(prior []domain.DemandObservation, in domain.ItemPolicyInputs) float64 {
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i].StockOnDate != nil {
			return math.Max(0, *prior[i].StockOnDate)
		}
	}

	window := prior
	if len(window) > 30 {
		window = window[len(window)-30:]
	}
	var sum float64
	for _, ob := range window {
		sum += ob.UnitsSold
	}
	mean := 0.0
	if len(window) > 0 {
		mean = sum / float64(len(window))
	}
	return mean * (float64(in.LeadTimeDays) + in.SafetyBufferDays)
}

// applyArrivals receives today's orders into simulated stock before any
// sales are subtracted.
func (o *Orchestrator) applyArrivals(r *run, day time.Time) {
	for _, order := range r.book.OrdersArriving(day) {
		st := r.states[order.ItemID]
		st.simStock += order.Quantity
		r.book.MarkReceived(order)
	}
}

// refreshForecasts regenerates the run-local forecast cache in one batched
// forecaster call with training cut off at the current day, so caching can
// never smuggle future data into a decision.
func (o *Orchestrator) refreshForecasts(ctx context.Context, r *run, day time.Time) error {
	results, err := o.forecaster.Forecast(ctx, r.active, r.cfg.ForecastHorizonDays, day, forecast.Options{
		MethodOverride: r.cfg.MethodOverride,
		SkipPersist:    r.cfg.SkipPersist,
	})
	if err != nil {
		return fmt.Errorf("refresh forecasts at %s: %w", day.Format("2006-01-02"), err)
	}

	refreshed := make(map[string]bool, len(results))
	for _, res := range results {
		total := res.Total()
		r.cache[res.ItemID] = cachedForecast{
			result:   res,
			total:    total,
			avgDaily: total / float64(r.cfg.ForecastHorizonDays),
		}
		refreshed[res.ItemID] = true
	}

	for _, itemID := range r.active {
		if !refreshed[itemID] {
			if _, ok := r.cache[itemID]; !ok {
				r.warnings = append(r.warnings,
					fmt.Sprintf("item %s: no forecast available at %s", itemID, day.Format("2006-01-02")))
			}
		}
	}
	return nil
}

// stepItem advances one item through one simulated day: subtract the day's
// actual sales from both stock tracks, check the reorder policy against the
// pre-sales snapshot, place an order if warranted, and record the
// comparison row.
func (o *Orchestrator) stepItem(r *run, st *itemState, day time.Time) {
	var sales float64
	obs, hasObs := st.observations[dayKey(day)]
	if hasObs {
		sales = obs.UnitsSold
	}

	// Pre-sales snapshot: the reorder check uses it so an order triggers on
	// the day stock crosses the threshold, not one day late.
	preSales := st.simStock
	st.simStock = math.Max(0, st.simStock-sales)

	// Real stock prefers ground truth; reconstruction is previous real
	// stock minus sales, deliberately blind to simulated order arrivals.
	if hasObs && obs.StockOnDate != nil {
		st.realStock = math.Max(0, *obs.StockOnDate)
	} else {
		st.realStock = math.Max(0, st.realStock-sales)
	}

	row := domain.DailyComparison{
		Date:              day,
		ItemID:            st.itemID,
		ActualSales:       sales,
		SimulatedStock:    st.simStock,
		RealStock:         st.realStock,
		SimulatedStockout: st.simStock <= 0,
		RealStockout:      st.realStock <= 0,
	}

	if fc, ok := r.cache[st.itemID]; ok {
		in := st.policyInputs
		values := policy.Compute(policy.Inputs{
			AvgDailyDemand:   fc.avgDaily,
			ForecastTotal:    fc.total,
			LeadTimeDays:     float64(in.LeadTimeDays),
			SafetyBufferDays: in.SafetyBufferDays,
			ServiceLevel:     in.ServiceLevel,
			CurrentStock:     st.simStock,
			MOQ:              in.MOQ,
		})

		if preSales <= values.ReorderPoint && values.RecommendedOrderQty > 0 && !r.book.HasInTransit(st.itemID) {
			if _, placed := r.book.PlaceOrder(st.itemID, values.RecommendedOrderQty, day, in.LeadTimeDays); placed {
				row.OrderPlaced = true
				row.OrderQuantity = values.RecommendedOrderQty
			}
		}
	}

	r.recorder.Record(row)
}

func policyInputsByItem(r *run) map[string]domain.ItemPolicyInputs {
	out := make(map[string]domain.ItemPolicyInputs, len(r.states))
	for id, st := range r.states {
		out[id] = st.policyInputs
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) int64 {
	return truncateDay(t).Unix()
}
