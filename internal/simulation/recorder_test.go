package simulation

import (
	"math"
	"testing"

	"github.com/stocksense/stocksense/internal/domain"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestRecorder_Finalize(t *testing.T) {
	rec := NewRecorder()
	day := date("2024-01-01")

	// Four days for one item. Real side stocks out twice, simulated never.
	rows := []struct {
		sim, real       float64
		simOut, realOut bool
	}{
		{100, 50, false, false},
		{80, 0, false, true},
		{60, 0, false, true},
		{40, 30, false, false},
	}
	for i, r := range rows {
		rec.Record(domain.DailyComparison{
			Date:              day.AddDate(0, 0, i),
			ItemID:            "sku-1",
			SimulatedStock:    r.sim,
			RealStock:         r.real,
			SimulatedStockout: r.simOut,
			RealStockout:      r.realOut,
		})
	}

	inputs := map[string]domain.ItemPolicyInputs{
		"sku-1": {ItemID: "sku-1", UnitCost: 2},
	}
	perItem, global := rec.Finalize(inputs)

	m, ok := perItem["sku-1"]
	if !ok {
		t.Fatal("missing per-item metrics for sku-1")
	}

	approx(t, "real stockout rate", m.Real.StockoutRate, 0.5)
	approx(t, "sim stockout rate", m.Simulated.StockoutRate, 0)
	approx(t, "real service level", m.Real.ServiceLevel, 1-m.Real.StockoutRate)
	approx(t, "sim service level", m.Simulated.ServiceLevel, 1-m.Simulated.StockoutRate)

	// Inventory value is the mean of daily stock*cost.
	approx(t, "sim inventory value", m.Simulated.InventoryValue, (100+80+60+40)*2.0/4)
	approx(t, "real inventory value", m.Real.InventoryValue, (50+0+0+30)*2.0/4)
	approx(t, "sim total cost", m.Simulated.TotalCost, (100+80+60+40)*2.0)

	// Improvement deltas are relative to the real side.
	approx(t, "stockout reduction", m.Improvement.StockoutReduction, (0.5-0)/0.5)
	approx(t, "inventory reduction", m.Improvement.InventoryReduction, (40.0-140.0)/40.0)

	// With a single item the global scope mirrors it.
	approx(t, "global real stockout rate", global.Real.StockoutRate, 0.5)
	if global.Simulated.Days != 4 {
		t.Errorf("global days = %d, want 4", global.Simulated.Days)
	}
}

func TestRecorder_ZeroRealGuard(t *testing.T) {
	rec := NewRecorder()
	rec.Record(domain.DailyComparison{
		Date:           date("2024-01-01"),
		ItemID:         "sku-1",
		SimulatedStock: 10,
		RealStock:      20,
	})

	perItem, _ := rec.Finalize(map[string]domain.ItemPolicyInputs{
		"sku-1": {ItemID: "sku-1", UnitCost: 1},
	})
	m := perItem["sku-1"]

	// Neither side stocked out, so the real stockout rate is zero and the
	// delta must not divide by it.
	approx(t, "real stockout rate", m.Real.StockoutRate, 0)
	approx(t, "stockout reduction", m.Improvement.StockoutReduction, 0)
}

func TestRecorder_EmptyFinalize(t *testing.T) {
	rec := NewRecorder()
	perItem, global := rec.Finalize(nil)
	if len(perItem) != 0 {
		t.Errorf("expected no per-item metrics, got %d", len(perItem))
	}
	if global.Simulated.Days != 0 || global.Simulated.ServiceLevel != 1 {
		t.Errorf("empty global metrics = %+v", global.Simulated)
	}
}
