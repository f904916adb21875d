package backtest

import (
	"fmt"

	"github.com/atlas-desktop/strategy-backtester/pkg/types"
)

// SignalSeries is the output of signal generation. Intents[i] is the target
// position decided with data available through bar i; it is not applied
// until bar i+1 (one-bar execution lag, see Realize).
type SignalSeries struct {
	// Intents is aligned 1:1 with the input bars.
	Intents []types.PositionState
	// FirstSignal is the index of the first bar with a defined signal,
	// or -1 when no bar ever has one (insufficient history).
	FirstSignal int
}

// GenerateSignals converts a bar sequence and strategy configuration into a
// position-intent sequence. The config must already be validated.
func GenerateSignals(bars []types.Bar, cfg types.StrategyConfig) (SignalSeries, error) {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close.InexactFloat64()
	}

	switch cfg.Type {
	case types.StrategySMACrossover:
		return smaCrossoverSignals(closes, cfg.SMA), nil
	case types.StrategyMeanReversionZScore:
		return meanReversionSignals(closes, cfg.MeanReversion), nil
	default:
		return SignalSeries{}, fmt.Errorf("unrecognized strategy type %q", cfg.Type)
	}
}

// smaCrossoverSignals targets LONG while the short moving average sits above
// the long one; otherwise CASH, or SHORT in long-short mode.
func smaCrossoverSignals(closes []float64, cfg *types.SMACrossoverConfig) SignalSeries {
	short := RollingMean(closes, cfg.ShortWindow)
	long := RollingMean(closes, cfg.LongWindow)

	intents := make([]types.PositionState, len(closes))
	first := -1

	for i := range closes {
		intents[i] = types.PositionCash
		if !short[i].Valid || !long[i].Valid {
			continue
		}
		if first < 0 {
			first = i
		}
		switch {
		case short[i].Float64 > long[i].Float64:
			intents[i] = types.PositionLong
		case cfg.PositionMode == types.PositionModeLongShort:
			intents[i] = types.PositionShort
		}
	}

	return SignalSeries{Intents: intents, FirstSignal: first}
}

// meanReversionSignals enters against z-score extremes and exits when the
// score reverts, the stop-loss override fires, or the holding limit elapses.
// Overrides take precedence over the raw z rule on the same bar.
func meanReversionSignals(closes []float64, cfg *types.MeanReversionConfig) SignalSeries {
	z := ZScores(closes, cfg.Lookback)

	intents := make([]types.PositionState, len(closes))
	first := -1

	active := types.PositionCash
	var entryPrice float64
	barsHeld := 0

	for i := range closes {
		if z[i].Valid && first < 0 {
			first = i
		}

		if active == types.PositionCash {
			switch {
			case z[i].Valid && z[i].Float64 <= -cfg.EntryZ:
				active = types.PositionLong
				entryPrice = closes[i]
				barsHeld = 0
			case z[i].Valid && cfg.AllowShort && z[i].Float64 >= cfg.EntryZ:
				active = types.PositionShort
				entryPrice = closes[i]
				barsHeld = 0
			}
			intents[i] = active
			continue
		}

		barsHeld++

		exitSignal := false
		if active == types.PositionLong && z[i].Valid && z[i].Float64 >= -cfg.ExitZ {
			exitSignal = true
		}
		if active == types.PositionShort && z[i].Valid && z[i].Float64 <= cfg.ExitZ {
			exitSignal = true
		}

		stopHit := false
		if cfg.StopLossPct != nil && entryPrice > 0 {
			var pnl float64
			if active == types.PositionLong {
				pnl = closes[i]/entryPrice - 1
			} else {
				pnl = entryPrice/closes[i] - 1
			}
			stopHit = pnl <= -*cfg.StopLossPct
		}

		timedExit := cfg.MaxHoldingBars != nil && barsHeld >= *cfg.MaxHoldingBars

		if exitSignal || stopHit || timedExit {
			active = types.PositionCash
			entryPrice = 0
			barsHeld = 0
		}

		intents[i] = active
	}

	return SignalSeries{Intents: intents, FirstSignal: first}
}
