// internal/domain/models.go
package domain

import "time"

// DemandObservation is a single day of recorded sales for an item.
// StockOnDate is optional ground truth used only when comparing a simulated
// run against what actually happened, never for simulated-side decisions.
type DemandObservation struct {
	ItemID      string    `json:"item_id" db:"item_id"`
	Date        time.Time `json:"date" db:"sale_date"`
	UnitsSold   float64   `json:"units_sold" db:"units_sold"`
	StockOnDate *float64  `json:"stock_on_date,omitempty" db:"stock_on_date"`
}

// ItemPolicyInputs carries the reference data the policy calculator needs.
// Lead time and MOQ come from the supplier condition marked primary; when an
// item has none, DefaultLeadTimeDays and a zero MOQ apply.
type ItemPolicyInputs struct {
	ItemID           string  `json:"item_id" db:"item_id"`
	UnitCost         float64 `json:"unit_cost" db:"unit_cost"`
	SafetyBufferDays float64 `json:"safety_buffer_days" db:"safety_buffer_days"`
	LeadTimeDays     int     `json:"lead_time_days" db:"lead_time_days"`
	MOQ              float64 `json:"moq" db:"moq"`
	ServiceLevel     float64 `json:"service_level" db:"service_level"`
}

// Defaults applied when reference data is incomplete.
const (
	DefaultLeadTimeDays     = 7
	DefaultServiceLevel     = 0.95
	DefaultSafetyBufferDays = 3
)

// ABCClass segments items by revenue concentration.
type ABCClass string

const (
	ABCClassA ABCClass = "A"
	ABCClassB ABCClass = "B"
	ABCClassC ABCClass = "C"
)

// XYZClass segments items by demand variability.
type XYZClass string

const (
	XYZClassX XYZClass = "X"
	XYZClassY XYZClass = "Y"
	XYZClassZ XYZClass = "Z"
)

// DemandPattern tags the shape of an item's demand series.
type DemandPattern string

const (
	PatternRegular      DemandPattern = "regular"
	PatternIntermittent DemandPattern = "intermittent"
	PatternLumpy        DemandPattern = "lumpy"
)

// MAPERange is the expected forecast-accuracy band for a classification,
// in percent. Reporting only; it never drives control flow.
type MAPERange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// SKUClassification is the derived segmentation of one item. It is
// recomputed on request and never mutated in place.
type SKUClassification struct {
	ItemID               string         `json:"item_id"`
	ABCClass             ABCClass       `json:"abc_class"`
	XYZClass             XYZClass       `json:"xyz_class"`
	DemandPattern        DemandPattern  `json:"demand_pattern"`
	RecommendedMethod    ForecastMethod `json:"recommended_method"`
	ForecastabilityScore float64        `json:"forecastability_score"`
	ExpectedMAPERange    MAPERange      `json:"expected_mape_range"`
	Warnings             []string       `json:"warnings,omitempty"`
}

// ForecastPoint is one predicted day.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ForecastResult is an immutable point-forecast series. A new training end
// date always yields a new result, never an update to an old one; every
// prediction date is strictly after TrainingEndDate.
type ForecastResult struct {
	ItemID          string          `json:"item_id"`
	Method          ForecastMethod  `json:"method_used"`
	TrainingEndDate time.Time       `json:"training_end_date"`
	Predictions     []ForecastPoint `json:"predictions"`
	Fallback        bool            `json:"fallback"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// Total sums the point forecasts.
func (f *ForecastResult) Total() float64 {
	var total float64
	for _, p := range f.Predictions {
		total += p.Value
	}
	return total
}

// SimulatedOrder is owned by the order book for the lifetime of one run.
// It is only ever mutated to flip Received on arrival.
type SimulatedOrder struct {
	ItemID       string    `json:"item_id"`
	OrderDate    time.Time `json:"order_date"`
	ArrivalDate  time.Time `json:"arrival_date"`
	Quantity     float64   `json:"quantity"`
	LeadTimeDays int       `json:"lead_time_days"`
	Received     bool      `json:"received"`
}

// DailyComparison is one append-only row per item per simulated day.
type DailyComparison struct {
	Date              time.Time `json:"date"`
	ItemID            string    `json:"item_id"`
	SimulatedStock    float64   `json:"simulated_stock"`
	RealStock         float64   `json:"real_stock"`
	ActualSales       float64   `json:"actual_sales"`
	SimulatedStockout bool      `json:"simulated_stockout"`
	RealStockout      bool      `json:"real_stockout"`
	OrderPlaced       bool      `json:"order_placed"`
	OrderQuantity     float64   `json:"order_quantity,omitempty"`
}

// AggregateMetrics summarizes one side (simulated or real) of a run at a
// given scope.
type AggregateMetrics struct {
	Scope          string  `json:"scope"`
	ItemID         string  `json:"item_id,omitempty"`
	Days           int     `json:"days"`
	StockoutDays   int     `json:"stockout_days"`
	StockoutRate   float64 `json:"stockout_rate"`
	ServiceLevel   float64 `json:"service_level"`
	InventoryValue float64 `json:"inventory_value"`
	TotalCost      float64 `json:"total_cost"`
}

// Improvement holds the relative deltas between real and simulated outcomes,
// each computed as (real - simulated) / real.
type Improvement struct {
	StockoutReduction       float64 `json:"stockout_reduction"`
	InventoryReduction      float64 `json:"inventory_reduction"`
	CostSavings             float64 `json:"cost_savings"`
	ServiceLevelImprovement float64 `json:"service_level_improvement"`
}

// ScopeMetrics pairs the simulated and real aggregates for one scope.
type ScopeMetrics struct {
	Simulated   AggregateMetrics `json:"simulated"`
	Real        AggregateMetrics `json:"real"`
	Improvement Improvement      `json:"improvement"`
}

// SimulationResult is the terminal output of one simulation run.
type SimulationResult struct {
	StartDate        time.Time               `json:"start_date"`
	EndDate          time.Time               `json:"end_date"`
	PerItem          map[string]ScopeMetrics `json:"per_item_metrics"`
	Global           ScopeMetrics            `json:"global_metrics"`
	DailyComparisons []DailyComparison       `json:"daily_comparisons"`
	SkippedItems     []string                `json:"skipped_items,omitempty"`
	Warnings         []string                `json:"warnings,omitempty"`
}
