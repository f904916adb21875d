// Package backtest provides the core backtest simulation and metrics engine.
package backtest

import "math"

// NullFloat is a rolling-indicator value that is undefined during the
// warm-up prefix. Downstream logic must check Valid; zero is a legitimate
// value, not a marker.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// RollingMean computes the rolling arithmetic mean over window bars.
// The first window-1 entries are invalid.
func RollingMean(values []float64, window int) []NullFloat {
	out := make([]NullFloat, len(values))
	if window < 1 || len(values) < window {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = NullFloat{Float64: sum / float64(window), Valid: true}
		}
	}
	return out
}

// RollingStd computes the rolling sample standard deviation (n-1 divisor)
// over window bars. The first window-1 entries are invalid.
func RollingStd(values []float64, window int) []NullFloat {
	out := make([]NullFloat, len(values))
	if window < 2 || len(values) < window {
		return out
	}

	for i := window - 1; i < len(values); i++ {
		start := i - window + 1
		var sum float64
		for j := start; j <= i; j++ {
			sum += values[j]
		}
		mean := sum / float64(window)

		var sumSquares float64
		for j := start; j <= i; j++ {
			diff := values[j] - mean
			sumSquares += diff * diff
		}
		out[i] = NullFloat{
			Float64: math.Sqrt(sumSquares / float64(window-1)),
			Valid:   true,
		}
	}
	return out
}

// ZScores computes the rolling z-score over lookback bars. An entry is
// invalid while history is short or the rolling deviation is zero.
func ZScores(values []float64, lookback int) []NullFloat {
	out := make([]NullFloat, len(values))
	means := RollingMean(values, lookback)
	stds := RollingStd(values, lookback)

	for i := range values {
		if !means[i].Valid || !stds[i].Valid || stds[i].Float64 == 0 {
			continue
		}
		out[i] = NullFloat{
			Float64: (values[i] - means[i].Float64) / stds[i].Float64,
			Valid:   true,
		}
	}
	return out
}
