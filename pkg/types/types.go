// Package types provides shared type definitions for the backtest service.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one discrete closing-price observation for a fixed period.
// Bar sequences are strictly increasing by date with unique dates.
type Bar struct {
	Date  Date            `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// EquityPoint is the mark-to-market value of a simulated position at one bar.
type EquityPoint struct {
	Date   Date            `json:"date"`
	Equity decimal.Decimal `json:"equity"`
}

// MetricSummary holds the risk/return statistics of an equity curve.
// MaxDrawdown is a positive fraction of the running peak.
type MetricSummary struct {
	CumulativeReturn float64 `json:"cumulative_return"`
	CAGR             float64 `json:"cagr"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
}

// SeriesResult pairs an equity curve with its summary metrics.
type SeriesResult struct {
	Symbol      string        `json:"symbol"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Metrics     MetricSummary `json:"metrics"`
}

// PositionState represents the realized position at a bar.
type PositionState string

const (
	PositionCash  PositionState = "cash"
	PositionLong  PositionState = "long"
	PositionShort PositionState = "short"
)

// Sign returns the return multiplier of the state: +1 long, -1 short, 0 cash.
func (p PositionState) Sign() int {
	switch p {
	case PositionLong:
		return 1
	case PositionShort:
		return -1
	default:
		return 0
	}
}

// Timeframe represents the bar cadence of a backtest.
type Timeframe string

const (
	TimeframeWeekly Timeframe = "weekly"
	TimeframeDaily  Timeframe = "daily"
)

// PeriodsPerYear returns the annualization factor for the timeframe.
func (t Timeframe) PeriodsPerYear() int {
	if t == TimeframeDaily {
		return 252
	}
	return 52
}

// Valid reports whether the timeframe is a recognized value.
func (t Timeframe) Valid() bool {
	return t == TimeframeWeekly || t == TimeframeDaily
}

// Horizon is a coded lookback window resolved into a start date.
type Horizon string

const (
	Horizon1M  Horizon = "1M"
	Horizon6M  Horizon = "6M"
	Horizon1Y  Horizon = "1Y"
	Horizon5Y  Horizon = "5Y"
	Horizon10Y Horizon = "10Y"
)

// Start resolves the horizon into a start date relative to end.
func (h Horizon) Start(end time.Time) (time.Time, bool) {
	switch h {
	case Horizon1M:
		return end.AddDate(0, -1, 0), true
	case Horizon6M:
		return end.AddDate(0, -6, 0), true
	case Horizon1Y:
		return end.AddDate(-1, 0, 0), true
	case Horizon5Y:
		return end.AddDate(-5, 0, 0), true
	case Horizon10Y:
		return end.AddDate(-10, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// PositionMode controls whether a strategy may hold short positions.
type PositionMode string

const (
	PositionModeLongOnly  PositionMode = "long_only"
	PositionModeLongShort PositionMode = "long_short"
)

// PortfolioHolding is one symbol's allocation at the latest bar.
type PortfolioHolding struct {
	Symbol   string  `json:"symbol"`
	Weight   float64 `json:"weight"`
	InMarket bool    `json:"in_market"`
}
