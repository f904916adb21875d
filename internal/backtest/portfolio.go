package backtest

import (
	"sort"

	"github.com/atlas-desktop/strategy-backtester/pkg/types"
	"github.com/shopspring/decimal"
)

// momentumLookback is the trailing-return window, in bars, for the ranking
// score. Bars near the start of the calendar score on the history available.
const momentumLookback = 12

// SymbolSeries carries one symbol's bars and realized positions, aligned
// index for index.
type SymbolSeries struct {
	Symbol    string
	Bars      []types.Bar
	Positions []types.PositionState
}

// Allocation is the portfolio weight vector at one bar, parallel to the
// series slice it was computed from. Weights sum to at most 1; the
// remainder is implicit cash.
type Allocation struct {
	Date    types.Date
	Weights []float64
}

// AlignCalendar restricts every series to the common trading calendar: only
// dates present in all series are kept, in order. Dates missing from any
// series are dropped rather than null-filled.
func AlignCalendar(series []SymbolSeries) []SymbolSeries {
	if len(series) == 0 {
		return nil
	}

	counts := make(map[types.Date]int)
	for _, s := range series {
		for _, b := range s.Bars {
			counts[b.Date]++
		}
	}

	aligned := make([]SymbolSeries, len(series))
	for i, s := range series {
		out := SymbolSeries{Symbol: s.Symbol}
		for j, b := range s.Bars {
			if counts[b.Date] == len(series) {
				out.Bars = append(out.Bars, b)
				out.Positions = append(out.Positions, s.Positions[j])
			}
		}
		aligned[i] = out
	}
	return aligned
}

// AllocateWeights computes per-bar portfolio weights over an aligned series
// set. Active symbols (realized state in the market) share weight equally;
// with ranking enabled, only the topN momentum names among them are funded.
// A bar with no active symbol is 100% cash.
func AllocateWeights(series []SymbolSeries, useRanking bool, topN int) []Allocation {
	if len(series) == 0 || len(series[0].Bars) == 0 {
		return nil
	}

	numBars := len(series[0].Bars)
	allocs := make([]Allocation, numBars)

	for i := 0; i < numBars; i++ {
		weights := make([]float64, len(series))

		var active []int
		for s := range series {
			if series[s].Positions[i].Sign() != 0 {
				active = append(active, s)
			}
		}

		if len(active) > 0 {
			selected := active
			if useRanking && topN < len(active) {
				selected = rankByMomentum(series, active, i)[:topN]
			}
			w := 1 / float64(len(selected))
			for _, s := range selected {
				weights[s] = w
			}
		}

		allocs[i] = Allocation{Date: series[0].Bars[i].Date, Weights: weights}
	}
	return allocs
}

// rankByMomentum orders the active symbol indices by trailing return at bar
// i, highest first, ties broken by ascending symbol name.
func rankByMomentum(series []SymbolSeries, active []int, i int) []int {
	scores := make(map[int]float64, len(active))
	for _, s := range active {
		scores[s] = momentumScore(series[s].Bars, i)
	}

	ranked := append([]int(nil), active...)
	sort.SliceStable(ranked, func(a, b int) bool {
		sa, sb := scores[ranked[a]], scores[ranked[b]]
		if sa != sb {
			return sa > sb
		}
		return series[ranked[a]].Symbol < series[ranked[b]].Symbol
	})
	return ranked
}

// momentumScore is the trailing momentumLookback-bar return as of bar i.
func momentumScore(bars []types.Bar, i int) float64 {
	start := i - momentumLookback
	if start < 0 {
		start = 0
	}
	base := bars[start].Close.InexactFloat64()
	if base == 0 {
		return 0
	}
	return bars[i].Close.InexactFloat64()/base - 1
}

// SimulatePortfolioEquity composes the weighted per-symbol returns into a
// single portfolio equity curve. Weights set at bar i-1 govern the return
// over (i-1, i], matching the single-symbol commitment convention.
func SimulatePortfolioEquity(series []SymbolSeries, allocs []Allocation, initialCapital decimal.Decimal) []types.EquityPoint {
	if len(series) == 0 || len(allocs) == 0 {
		return []types.EquityPoint{}
	}

	curve := make([]types.EquityPoint, 0, len(allocs))
	equity := initialCapital
	curve = append(curve, types.EquityPoint{Date: allocs[0].Date, Equity: equity})

	for i := 1; i < len(allocs); i++ {
		growth := decimal.Zero
		for s := range series {
			w := allocs[i-1].Weights[s]
			if w == 0 {
				continue
			}
			prev := series[s].Bars[i-1].Close
			if prev.IsZero() {
				continue
			}
			ret := series[s].Bars[i].Close.Div(prev).Sub(one)
			if series[s].Positions[i-1].Sign() < 0 {
				ret = ret.Neg()
			}
			growth = growth.Add(ret.Mul(decimal.NewFromFloat(w)))
		}
		equity = equity.Mul(one.Add(growth))
		curve = append(curve, types.EquityPoint{Date: allocs[i].Date, Equity: equity})
	}
	return curve
}

// EqualWeightBuyAndHold sums per-symbol buy-and-hold curves, each funded
// with an equal share of the initial capital, over the common calendar.
func EqualWeightBuyAndHold(series []SymbolSeries, initialCapital decimal.Decimal) []types.EquityPoint {
	if len(series) == 0 || len(series[0].Bars) == 0 {
		return []types.EquityPoint{}
	}

	share := initialCapital.Div(decimal.NewFromInt(int64(len(series))))
	curves := make([][]types.EquityPoint, len(series))
	for s := range series {
		curves[s] = BuyAndHold(series[s].Bars, share)
	}

	combined := make([]types.EquityPoint, len(curves[0]))
	for i := range combined {
		total := decimal.Zero
		for s := range curves {
			total = total.Add(curves[s][i].Equity)
		}
		combined[i] = types.EquityPoint{Date: curves[0][i].Date, Equity: total}
	}
	return combined
}

// CurrentHoldings reports the latest bar's weights and in-market flags for
// every requested symbol.
func CurrentHoldings(series []SymbolSeries, allocs []Allocation) []types.PortfolioHolding {
	holdings := make([]types.PortfolioHolding, 0, len(series))
	last := len(allocs) - 1

	for s := range series {
		h := types.PortfolioHolding{Symbol: series[s].Symbol}
		if last >= 0 {
			h.Weight = allocs[last].Weights[s]
			h.InMarket = series[s].Positions[last].Sign() != 0
		}
		holdings = append(holdings, h)
	}
	return holdings
}
