package types

// BacktestRequest is the wire form of a single-symbol backtest.
// The strategy parameters are flat on the request; StrategyConfig assembles
// the tagged variant, applying defaults for missing fields.
type BacktestRequest struct {
	Ticker         string  `json:"ticker"`
	StartDate      Date    `json:"start_date"`
	EndDate        Date    `json:"end_date"`
	InitialCapital float64 `json:"initial_capital"`
	Horizon        Horizon `json:"horizon"`

	MATimeframe  Timeframe    `json:"ma_timeframe"`
	PositionMode PositionMode `json:"position_mode"`

	StrategyType     StrategyType `json:"strategy_type"`
	MRLookback       int          `json:"mr_lookback"`
	MREntryZ         float64      `json:"mr_entry_z"`
	MRExitZ          *float64     `json:"mr_exit_z"`
	MRStopLossPct    *float64     `json:"mr_stop_loss_pct"`
	MRMaxHoldingBars *int         `json:"mr_max_holding_bars"`
	MRAllowShort     bool         `json:"mr_allow_short"`
}

// StrategyConfig assembles the strategy variant from the flat request fields.
func (r BacktestRequest) StrategyConfig() StrategyConfig {
	if r.StrategyType == StrategyMeanReversionZScore {
		cfg := MeanReversionConfig{
			Lookback:       r.MRLookback,
			EntryZ:         r.MREntryZ,
			ExitZ:          0.5,
			StopLossPct:    r.MRStopLossPct,
			MaxHoldingBars: r.MRMaxHoldingBars,
			AllowShort:     r.MRAllowShort,
		}
		if cfg.Lookback == 0 {
			cfg.Lookback = 20
		}
		if cfg.EntryZ == 0 {
			cfg.EntryZ = 2.0
		}
		if r.MRExitZ != nil {
			cfg.ExitZ = *r.MRExitZ
		}
		return StrategyConfig{Type: StrategyMeanReversionZScore, MeanReversion: &cfg}
	}

	cfg := DefaultSMAConfig()
	if r.MATimeframe != "" {
		cfg.SMA.Timeframe = r.MATimeframe
	}
	if r.PositionMode != "" {
		cfg.SMA.PositionMode = r.PositionMode
	}
	return cfg
}

// BacktestResponse is the wire form of a single-symbol backtest result.
type BacktestResponse struct {
	ID         string         `json:"id"`
	Strategy   SeriesResult   `json:"strategy"`
	BuyAndHold SeriesResult   `json:"buy_and_hold"`
	Benchmarks []SeriesResult `json:"benchmarks"`
}

// PortfolioBacktestRequest is the wire form of a multi-symbol backtest.
type PortfolioBacktestRequest struct {
	Tickers        []string `json:"tickers"`
	StartDate      Date     `json:"start_date"`
	EndDate        Date     `json:"end_date"`
	InitialCapital float64  `json:"initial_capital"`
	Horizon        Horizon  `json:"horizon"`
	UseRanking     bool     `json:"use_ranking"`
	TopN           int      `json:"top_n"`
}

// PortfolioBacktestResponse is the wire form of a portfolio backtest result.
type PortfolioBacktestResponse struct {
	ID              string             `json:"id"`
	Strategy        SeriesResult       `json:"strategy"`
	BuyAndHold      SeriesResult       `json:"buy_and_hold"`
	Benchmark       SeriesResult       `json:"benchmark"`
	CurrentHoldings []PortfolioHolding `json:"current_holdings"`
}
