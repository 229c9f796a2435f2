package domain

import "fmt"

// ForecastMethod identifies one of the interchangeable forecasting
// implementations. Every method exposes the same capability: given a
// historical series and a horizon, return that many future point values.
type ForecastMethod string

const (
	// MethodTransformer is the transformer-based foundation time-series
	// model. Heavy, batched, highest expected accuracy for regular demand.
	MethodTransformer ForecastMethod = "transformer"
	// MethodMovingAverage is a short moving average.
	MethodMovingAverage ForecastMethod = "moving_average"
	// MethodCroston is Croston's method for intermittent demand.
	MethodCroston ForecastMethod = "croston"
	// MethodSBA is the Syntetos-Boylan bias-corrected Croston variant,
	// used for lumpy demand.
	MethodSBA ForecastMethod = "sba"
	// MethodMinMax is a min/max heuristic. No true forecast, just bounds.
	MethodMinMax ForecastMethod = "minmax"
)

// AllForecastMethods lists every supported method, for testbed runs that
// execute all of them side by side.
func AllForecastMethods() []ForecastMethod {
	return []ForecastMethod{
		MethodTransformer,
		MethodMovingAverage,
		MethodCroston,
		MethodSBA,
		MethodMinMax,
	}
}

// ParseForecastMethod validates a method name from an API or CLI caller.
func ParseForecastMethod(s string) (ForecastMethod, error) {
	switch ForecastMethod(s) {
	case MethodTransformer, MethodMovingAverage, MethodCroston, MethodSBA, MethodMinMax:
		return ForecastMethod(s), nil
	}
	return "", fmt.Errorf("unknown forecast method %q", s)
}
