package domain

import "fmt"

// MissingDataError reports an item with no usable historical series. The
// item is skipped for the run and surfaced as a warning; the run continues.
type MissingDataError struct {
	ItemID string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("no historical demand data for item %s", e.ItemID)
}

// ForecastGenerationError reports a method implementation failing or timing
// out. Callers retry up to a fixed bound, then substitute the degenerate
// fallback forecast.
type ForecastGenerationError struct {
	ItemID string
	Method ForecastMethod
	Err    error
}

func (e *ForecastGenerationError) Error() string {
	return fmt.Sprintf("forecast generation failed for item %s (method %s): %v", e.ItemID, e.Method, e.Err)
}

func (e *ForecastGenerationError) Unwrap() error { return e.Err }

// NumericAnomaly reports a forecast that resolved to zero, negative or NaN
// values. Handled exactly like a generation failure's fallback path.
type NumericAnomaly struct {
	ItemID string
	Reason string
}

func (e *NumericAnomaly) Error() string {
	return fmt.Sprintf("numeric anomaly for item %s: %s", e.ItemID, e.Reason)
}

// InvalidConfigError rejects a run before it starts. Never recovered.
type InvalidConfigError struct {
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid simulation config: %s", e.Reason)
}
