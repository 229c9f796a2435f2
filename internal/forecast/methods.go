package forecast

import "math"

// Smoothing constant for the Croston family. The conventional 0.1 keeps
// estimates stable on short retail series.
const crostonAlpha = 0.1

// movingAverage forecasts the mean of the last window observations,
// replicated across the horizon.
func movingAverage(series []float64, horizon, window int) []float64 {
	if window <= 0 {
		window = 7
	}
	if len(series) < window {
		window = len(series)
	}

	var sum float64
	for _, v := range series[len(series)-window:] {
		sum += v
	}
	level := 0.0
	if window > 0 {
		level = sum / float64(window)
	}
	return flat(level, horizon)
}

// croston runs Croston's method: exponential smoothing of nonzero demand
// sizes and of the intervals between them, forecasting size/interval as a
// flat rate. With sba set, the Syntetos-Boylan approximation multiplies the
// rate by (1 - alpha/2) to correct Croston's positive bias.
func croston(series []float64, horizon int, sba bool) []float64 {
	var (
		size     float64
		interval float64
		gap      = 1.0
		seen     bool
	)

	for _, v := range series {
		if v <= 0 {
			gap++
			continue
		}
		if !seen {
			size = v
			interval = gap
			seen = true
		} else {
			size = size + crostonAlpha*(v-size)
			interval = interval + crostonAlpha*(gap-interval)
		}
		gap = 1
	}

	if !seen || interval <= 0 {
		return flat(0, horizon)
	}

	rate := size / interval
	if sba {
		rate *= 1 - crostonAlpha/2
	}
	return flat(rate, horizon)
}

// minMax is not a true forecast: it takes the demand bounds over the recent
// window and emits their midpoint, the same heuristic planners apply to
// low-value erratic items.
func minMax(series []float64, horizon, window int) []float64 {
	if window <= 0 {
		window = 30
	}
	if len(series) < window {
		window = len(series)
	}
	if window == 0 {
		return flat(0, horizon)
	}

	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, v := range series[len(series)-window:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return flat((lo+hi)/2, horizon)
}

// recentMean is the degenerate-forecast fallback level: the mean of the
// last window observed days.
func recentMean(series []float64, window int) float64 {
	if len(series) == 0 {
		return 0
	}
	if window <= 0 || window > len(series) {
		window = len(series)
	}
	var sum float64
	for _, v := range series[len(series)-window:] {
		sum += v
	}
	return sum / float64(window)
}

func flat(level float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = level
	}
	return out
}
