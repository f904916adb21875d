package backtest

import (
	"math"

	"github.com/atlas-desktop/strategy-backtester/pkg/types"
)

// ComputeMetrics reduces an equity curve into summary risk/return statistics
// at the given bar periodicity (52/year weekly, 252/year daily).
//
// Max drawdown is reported as a positive fraction of the running peak. A
// degenerate curve (fewer than 2 points) yields all zeros; division-by-zero
// cases are guarded to zero rather than raised.
func ComputeMetrics(curve []types.EquityPoint, periodsPerYear int) types.MetricSummary {
	if len(curve) < 2 {
		return types.MetricSummary{}
	}

	first := curve[0].Equity.InexactFloat64()
	last := curve[len(curve)-1].Equity.InexactFloat64()
	if first == 0 {
		return types.MetricSummary{}
	}

	summary := types.MetricSummary{}
	summary.CumulativeReturn = last/first - 1

	periods := float64(len(curve) - 1)
	summary.CAGR = math.Pow(last/first, float64(periodsPerYear)/periods) - 1

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity.InexactFloat64()
		if prev == 0 {
			continue
		}
		returns = append(returns, curve[i].Equity.InexactFloat64()/prev-1)
	}

	summary.Volatility = stdDevPop(returns) * math.Sqrt(float64(periodsPerYear))
	if summary.Volatility > 0 {
		summary.SharpeRatio = mean(returns) * float64(periodsPerYear) / summary.Volatility
	}

	summary.MaxDrawdown = maxDrawdown(curve)
	return summary
}

// maxDrawdown tracks the running peak and returns the largest fractional
// decline from it.
func maxDrawdown(curve []types.EquityPoint) float64 {
	var maxDD float64
	peak := curve[0].Equity.InexactFloat64()

	for _, point := range curve {
		equity := point.Equity.InexactFloat64()
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDevPop is the population standard deviation (n divisor).
func stdDevPop(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}
