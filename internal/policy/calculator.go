// Package policy turns a forecast, lead time and service-level target into
// safety stock, reorder point and a recommended order quantity. All
// functions are pure: no I/O, no clock, deterministic given inputs.
package policy

import "math"

// Inputs is everything the calculator needs for one item on one day.
type Inputs struct {
	AvgDailyDemand   float64 // forecast total / horizon days
	ForecastTotal    float64
	LeadTimeDays     float64
	SafetyBufferDays float64
	ServiceLevel     float64 // 0..1
	CurrentStock     float64
	MOQ              float64
}

// Values is the computed reorder policy for one item on one day.
type Values struct {
	SafetyStock              float64
	ReorderPoint             float64
	RecommendedOrderQty      float64
	ServiceLevelZ            float64
	DaysOfInventoryRemaining float64
}

// zTable maps service levels to standard-normal quantiles, using the same
// rounded values the planning sheets use (0.95 -> 1.65, not 1.6449).
var zTable = []struct {
	level float64
	z     float64
}{
	{0.50, 0.00},
	{0.80, 0.84},
	{0.85, 1.04},
	{0.90, 1.28},
	{0.95, 1.65},
	{0.975, 1.96},
	{0.99, 2.33},
	{0.995, 2.58},
}

// ZForServiceLevel returns the safety factor for a service level, linearly
// interpolating between table entries. Out-of-range levels clamp to the
// table bounds.
func ZForServiceLevel(level float64) float64 {
	if level <= zTable[0].level {
		return zTable[0].z
	}
	last := zTable[len(zTable)-1]
	if level >= last.level {
		return last.z
	}
	for i := 1; i < len(zTable); i++ {
		if level <= zTable[i].level {
			lo, hi := zTable[i-1], zTable[i]
			frac := (level - lo.level) / (hi.level - lo.level)
			return lo.z + frac*(hi.z-lo.z)
		}
	}
	return last.z
}

// Compute derives the reorder policy values:
//
//	safety_stock   = avg_daily_demand * safety_buffer_days * (1 + z*0.2)
//	reorder_point  = avg_daily_demand * lead_time_days + safety_stock
//	order_quantity = max(forecast_total + safety_stock - current_stock, MOQ)
//
// The MOQ floor only applies when the raw quantity is positive; a raw
// quantity at or below zero means no order is needed and yields zero.
func Compute(in Inputs) Values {
	z := ZForServiceLevel(in.ServiceLevel)

	safetyStock := in.AvgDailyDemand * in.SafetyBufferDays * (1 + z*0.2)
	safetyStock = math.Max(0, safetyStock)

	reorderPoint := in.AvgDailyDemand*in.LeadTimeDays + safetyStock

	raw := in.ForecastTotal + safetyStock - in.CurrentStock
	var qty float64
	switch {
	case raw <= 0:
		qty = 0
	case in.MOQ > 0:
		qty = math.Max(raw, in.MOQ)
	default:
		qty = raw
	}

	var dir float64
	if in.AvgDailyDemand > 0 {
		dir = in.CurrentStock / in.AvgDailyDemand
	}

	return Values{
		SafetyStock:              safetyStock,
		ReorderPoint:             reorderPoint,
		RecommendedOrderQty:      qty,
		ServiceLevelZ:            z,
		DaysOfInventoryRemaining: dir,
	}
}
