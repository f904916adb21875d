package backtest

import (
	"github.com/atlas-desktop/strategy-backtester/pkg/types"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// SimulateEquity walks the realized position sequence over bars and produces
// a mark-to-market equity curve starting at bar index from.
//
// The full current equity is committed at the close of the bar where the
// realized state changes, so the return over (i-1, i] accrues under the
// position held at bar i-1: the first bar of a LONG run is flat and the
// position starts tracking price from the next bar.
//
// A from of -1 (no bar ever has a defined signal) yields an empty curve.
func SimulateEquity(bars []types.Bar, positions []types.PositionState, initialCapital decimal.Decimal, from int) []types.EquityPoint {
	if from < 0 || from >= len(bars) {
		return []types.EquityPoint{}
	}

	curve := make([]types.EquityPoint, 0, len(bars)-from)
	equity := initialCapital
	curve = append(curve, types.EquityPoint{Date: bars[from].Date, Equity: equity})

	for i := from + 1; i < len(bars); i++ {
		sign := positions[i-1].Sign()
		if sign != 0 && !bars[i-1].Close.IsZero() {
			ret := bars[i].Close.Div(bars[i-1].Close).Sub(one)
			if sign < 0 {
				ret = ret.Neg()
			}
			equity = equity.Mul(one.Add(ret))
		}
		curve = append(curve, types.EquityPoint{Date: bars[i].Date, Equity: equity})
	}

	return curve
}

// BuyAndHold produces the baseline curve for a position fixed to LONG from
// the first available bar onward. Baselines have no warm-up period.
func BuyAndHold(bars []types.Bar, initialCapital decimal.Decimal) []types.EquityPoint {
	positions := make([]types.PositionState, len(bars))
	for i := range positions {
		positions[i] = types.PositionLong
	}
	return SimulateEquity(bars, positions, initialCapital, 0)
}
