package simulation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/stocksense/stocksense/internal/domain"
)

// Recorder stores one record per (item, day) comparing simulated and real
// outcomes. Rows are append-only and never mutated; aggregation happens
// once, at the end of a run, so no mid-run reporting can leak partial
// results.
type Recorder struct {
	rows []domain.DailyComparison
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one daily comparison. The caller guarantees non-negative
// quantities; no validation happens here beyond that contract.
func (r *Recorder) Record(row domain.DailyComparison) {
	r.rows = append(r.rows, row)
}

// Rows returns the full append-only log in recording order.
func (r *Recorder) Rows() []domain.DailyComparison {
	return r.rows
}

// sideAccumulator sums one side (simulated or real) of the comparison.
// Inventory value uses decimal accumulation so thousands of item-day
// products stay numerically consistent regardless of ordering.
type sideAccumulator struct {
	days         int
	stockoutDays int
	valueSum     decimal.Decimal
}

func (a *sideAccumulator) add(stock float64, stockout bool, unitCost float64) {
	a.days++
	if stockout {
		a.stockoutDays++
	}
	value := decimal.NewFromFloat(stock).Mul(decimal.NewFromFloat(unitCost))
	a.valueSum = a.valueSum.Add(value)
}

func (a *sideAccumulator) metrics(scope, itemID string) domain.AggregateMetrics {
	m := domain.AggregateMetrics{
		Scope:        scope,
		ItemID:       itemID,
		Days:         a.days,
		StockoutDays: a.stockoutDays,
	}
	if a.days > 0 {
		m.StockoutRate = float64(a.stockoutDays) / float64(a.days)
		mean, _ := a.valueSum.Div(decimal.NewFromInt(int64(a.days))).Float64()
		m.InventoryValue = mean
	}
	m.ServiceLevel = 1 - m.StockoutRate
	m.TotalCost, _ = a.valueSum.Float64()
	return m
}

type scopeAccumulator struct {
	simulated sideAccumulator
	real      sideAccumulator
}

// Finalize aggregates the log into per-item and global metrics. Improvement
// deltas are relative: (real - simulated) / real, zero when the real side
// is zero.
func (r *Recorder) Finalize(inputs map[string]domain.ItemPolicyInputs) (map[string]domain.ScopeMetrics, domain.ScopeMetrics) {
	perItem := make(map[string]*scopeAccumulator)
	global := &scopeAccumulator{}

	for _, row := range r.rows {
		unitCost := inputs[row.ItemID].UnitCost

		acc, ok := perItem[row.ItemID]
		if !ok {
			acc = &scopeAccumulator{}
			perItem[row.ItemID] = acc
		}
		for _, a := range []*scopeAccumulator{acc, global} {
			a.simulated.add(row.SimulatedStock, row.SimulatedStockout, unitCost)
			a.real.add(row.RealStock, row.RealStockout, unitCost)
		}
	}

	itemIDs := make([]string, 0, len(perItem))
	for id := range perItem {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	out := make(map[string]domain.ScopeMetrics, len(perItem))
	for _, id := range itemIDs {
		acc := perItem[id]
		out[id] = buildScope("item", id, acc)
	}

	return out, buildScope("global", "", global)
}

func buildScope(scope, itemID string, acc *scopeAccumulator) domain.ScopeMetrics {
	sim := acc.simulated.metrics(scope, itemID)
	real := acc.real.metrics(scope, itemID)
	return domain.ScopeMetrics{
		Simulated: sim,
		Real:      real,
		Improvement: domain.Improvement{
			StockoutReduction:       relativeDelta(real.StockoutRate, sim.StockoutRate),
			InventoryReduction:      relativeDelta(real.InventoryValue, sim.InventoryValue),
			CostSavings:             relativeDelta(real.TotalCost, sim.TotalCost),
			ServiceLevelImprovement: relativeDelta(real.ServiceLevel, sim.ServiceLevel),
		},
	}
}

func relativeDelta(real, simulated float64) float64 {
	if real == 0 {
		return 0
	}
	return (real - simulated) / real
}
