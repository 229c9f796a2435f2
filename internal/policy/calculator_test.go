package policy

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompute_ReferenceScenario(t *testing.T) {
	// avg daily 10, lead 5, buffer 2, service 0.95 (z=1.65)
	got := Compute(Inputs{
		AvgDailyDemand:   10,
		ForecastTotal:    300,
		LeadTimeDays:     5,
		SafetyBufferDays: 2,
		ServiceLevel:     0.95,
		CurrentStock:     50,
	})

	if !almostEqual(got.SafetyStock, 26.6) {
		t.Errorf("SafetyStock = %v, want 26.6", got.SafetyStock)
	}
	if !almostEqual(got.ReorderPoint, 76.6) {
		t.Errorf("ReorderPoint = %v, want 76.6", got.ReorderPoint)
	}
}

func TestCompute_OrderQuantity(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want float64
	}{
		{
			name: "raw above moq keeps raw",
			in: Inputs{
				AvgDailyDemand:   10,
				ForecastTotal:    300,
				LeadTimeDays:     5,
				SafetyBufferDays: 2,
				ServiceLevel:     0.95,
				CurrentStock:     50,
				MOQ:              100,
			},
			// 300 + 26.6 - 50 = 276.6 >= 100, no MOQ bump
			want: 276.6,
		},
		{
			name: "raw below moq bumped to moq",
			in: Inputs{
				AvgDailyDemand:   2,
				ForecastTotal:    20,
				LeadTimeDays:     5,
				SafetyBufferDays: 1,
				ServiceLevel:     0.95,
				CurrentStock:     10,
				MOQ:              50,
			},
			want: 50,
		},
		{
			name: "raw non-positive yields zero even with moq",
			in: Inputs{
				AvgDailyDemand:   2,
				ForecastTotal:    20,
				LeadTimeDays:     5,
				SafetyBufferDays: 1,
				ServiceLevel:     0.95,
				CurrentStock:     500,
				MOQ:              50,
			},
			want: 0,
		},
		{
			name: "zero moq keeps raw",
			in: Inputs{
				AvgDailyDemand:   1,
				ForecastTotal:    30,
				LeadTimeDays:     7,
				SafetyBufferDays: 0,
				ServiceLevel:     0.95,
				CurrentStock:     10,
			},
			want: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.in)
			if !almostEqual(got.RecommendedOrderQty, tt.want) {
				t.Errorf("RecommendedOrderQty = %v, want %v", got.RecommendedOrderQty, tt.want)
			}
			if got.RecommendedOrderQty < 0 {
				t.Errorf("RecommendedOrderQty negative: %v", got.RecommendedOrderQty)
			}
		})
	}
}

func TestCompute_MOQFloorHolds(t *testing.T) {
	// Whenever MOQ > 0 and the raw quantity is positive, the
	// recommendation must be at least the MOQ.
	in := Inputs{
		AvgDailyDemand:   3,
		ForecastTotal:    90,
		LeadTimeDays:     7,
		SafetyBufferDays: 2,
		ServiceLevel:     0.9,
		CurrentStock:     80,
		MOQ:              40,
	}
	got := Compute(in)
	if got.RecommendedOrderQty > 0 && got.RecommendedOrderQty < in.MOQ {
		t.Errorf("RecommendedOrderQty = %v below MOQ %v", got.RecommendedOrderQty, in.MOQ)
	}
}

func TestZForServiceLevel(t *testing.T) {
	tests := []struct {
		level float64
		want  float64
	}{
		{0.95, 1.65},
		{0.90, 1.28},
		{0.99, 2.33},
		{0.50, 0},
		{0.10, 0},     // clamps low
		{0.999, 2.58}, // clamps high
	}
	for _, tt := range tests {
		if got := ZForServiceLevel(tt.level); !almostEqual(got, tt.want) {
			t.Errorf("ZForServiceLevel(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}

	// Interpolated value lands between its neighbors.
	z := ZForServiceLevel(0.925)
	if z <= 1.28 || z >= 1.65 {
		t.Errorf("ZForServiceLevel(0.925) = %v, want in (1.28, 1.65)", z)
	}
}

func TestCompute_DaysOfInventoryRemaining(t *testing.T) {
	got := Compute(Inputs{AvgDailyDemand: 5, CurrentStock: 50, ServiceLevel: 0.95})
	if !almostEqual(got.DaysOfInventoryRemaining, 10) {
		t.Errorf("DaysOfInventoryRemaining = %v, want 10", got.DaysOfInventoryRemaining)
	}

	zero := Compute(Inputs{AvgDailyDemand: 0, CurrentStock: 50, ServiceLevel: 0.95})
	if zero.DaysOfInventoryRemaining != 0 {
		t.Errorf("DaysOfInventoryRemaining with zero demand = %v, want 0", zero.DaysOfInventoryRemaining)
	}
}
