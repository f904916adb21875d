package types

import "fmt"

// StrategyType selects the strategy variant of a backtest.
type StrategyType string

const (
	StrategySMACrossover        StrategyType = "sma_crossover"
	StrategyMeanReversionZScore StrategyType = "mean_reversion_zscore"
)

// SMACrossoverConfig parameterizes the moving-average crossover strategy.
type SMACrossoverConfig struct {
	ShortWindow  int          `json:"short_window"`
	LongWindow   int          `json:"long_window"`
	Timeframe    Timeframe    `json:"timeframe"`
	PositionMode PositionMode `json:"position_mode"`
}

// MeanReversionConfig parameterizes the z-score mean-reversion strategy.
// StopLossPct and MaxHoldingBars are disabled when nil; zero is a valid
// threshold, distinct from disabled.
type MeanReversionConfig struct {
	Lookback       int      `json:"lookback"`
	EntryZ         float64  `json:"entry_z"`
	ExitZ          float64  `json:"exit_z"`
	StopLossPct    *float64 `json:"stop_loss_pct,omitempty"`
	MaxHoldingBars *int     `json:"max_holding_bars,omitempty"`
	AllowShort     bool     `json:"allow_short"`
}

// StrategyConfig is a tagged union over the supported strategy variants.
// Exactly one variant matching Type must be set.
type StrategyConfig struct {
	Type          StrategyType         `json:"type"`
	SMA           *SMACrossoverConfig  `json:"sma,omitempty"`
	MeanReversion *MeanReversionConfig `json:"mean_reversion,omitempty"`
}

// DefaultSMAConfig returns the 5/20 weekly long-or-cash crossover strategy.
func DefaultSMAConfig() StrategyConfig {
	return StrategyConfig{
		Type: StrategySMACrossover,
		SMA: &SMACrossoverConfig{
			ShortWindow:  5,
			LongWindow:   20,
			Timeframe:    TimeframeWeekly,
			PositionMode: PositionModeLongOnly,
		},
	}
}

// BarTimeframe returns the bar cadence the strategy operates on.
func (c StrategyConfig) BarTimeframe() Timeframe {
	if c.Type == StrategySMACrossover && c.SMA != nil && c.SMA.Timeframe.Valid() {
		return c.SMA.Timeframe
	}
	return TimeframeWeekly
}

// LongestWindow returns the longest rolling window the strategy needs.
func (c StrategyConfig) LongestWindow() int {
	switch c.Type {
	case StrategySMACrossover:
		if c.SMA != nil {
			return c.SMA.LongWindow
		}
	case StrategyMeanReversionZScore:
		if c.MeanReversion != nil {
			return c.MeanReversion.Lookback
		}
	}
	return 0
}

// Validate checks the config for a recognized type and sane parameters.
func (c StrategyConfig) Validate() error {
	switch c.Type {
	case StrategySMACrossover:
		if c.SMA == nil {
			return fmt.Errorf("sma parameters missing for strategy type %q", c.Type)
		}
		s := c.SMA
		if s.ShortWindow < 1 || s.LongWindow < 1 {
			return fmt.Errorf("sma windows must be positive, got %d/%d", s.ShortWindow, s.LongWindow)
		}
		if s.ShortWindow >= s.LongWindow {
			return fmt.Errorf("short window %d must be below long window %d", s.ShortWindow, s.LongWindow)
		}
		if !s.Timeframe.Valid() {
			return fmt.Errorf("unrecognized timeframe %q", s.Timeframe)
		}
		if s.PositionMode != PositionModeLongOnly && s.PositionMode != PositionModeLongShort {
			return fmt.Errorf("unrecognized position mode %q", s.PositionMode)
		}
		return nil
	case StrategyMeanReversionZScore:
		if c.MeanReversion == nil {
			return fmt.Errorf("mean reversion parameters missing for strategy type %q", c.Type)
		}
		m := c.MeanReversion
		if m.Lookback < 5 {
			return fmt.Errorf("lookback must be at least 5, got %d", m.Lookback)
		}
		if m.EntryZ <= 0 {
			return fmt.Errorf("entry z must be positive, got %v", m.EntryZ)
		}
		if m.ExitZ < 0 {
			return fmt.Errorf("exit z must be non-negative, got %v", m.ExitZ)
		}
		if m.StopLossPct != nil && (*m.StopLossPct <= 0 || *m.StopLossPct >= 1) {
			return fmt.Errorf("stop loss must be in (0,1), got %v", *m.StopLossPct)
		}
		if m.MaxHoldingBars != nil && *m.MaxHoldingBars < 1 {
			return fmt.Errorf("max holding bars must be at least 1, got %d", *m.MaxHoldingBars)
		}
		return nil
	default:
		return fmt.Errorf("unrecognized strategy type %q", c.Type)
	}
}
