package backtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-backtester/internal/marketdata"
	"github.com/atlas-desktop/strategy-backtester/internal/workers"
	"github.com/atlas-desktop/strategy-backtester/pkg/types"
)

// RunnerConfig configures the backtest orchestrator.
type RunnerConfig struct {
	// Benchmarks are the index proxies compared against single-symbol runs.
	Benchmarks []string
	// PortfolioBenchmark is the single index proxy for portfolio runs.
	PortfolioBenchmark string
	// DefaultCapital is used when a request omits initial_capital.
	DefaultCapital float64
}

// DefaultRunnerConfig returns the standard US index baselines.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Benchmarks:         []string{"SPY", "QQQ", "DIA"},
		PortfolioBenchmark: "SPY",
		DefaultCapital:     10_000,
	}
}

// Runner validates backtest requests, resolves date ranges, fetches bar
// history and drives the signal, simulation and metrics stages. Each run is
// a pure computation over the fetched bars; the runner holds no per-request
// state.
type Runner struct {
	logger   *zap.Logger
	provider marketdata.Provider
	pool     *workers.Pool
	config   RunnerConfig
}

// NewRunner creates a runner. pool may be nil, in which case per-symbol
// work runs on plain goroutines.
func NewRunner(logger *zap.Logger, provider marketdata.Provider, pool *workers.Pool, config RunnerConfig) *Runner {
	if len(config.Benchmarks) == 0 {
		config.Benchmarks = DefaultRunnerConfig().Benchmarks
	}
	if config.PortfolioBenchmark == "" {
		config.PortfolioBenchmark = DefaultRunnerConfig().PortfolioBenchmark
	}
	if config.DefaultCapital <= 0 {
		config.DefaultCapital = DefaultRunnerConfig().DefaultCapital
	}
	return &Runner{
		logger:   logger,
		provider: provider,
		pool:     pool,
		config:   config,
	}
}

// Run executes a single-symbol backtest: the strategy curve, a buy-and-hold
// baseline on the same bars, and buy-and-hold curves for each benchmark.
func (r *Runner) Run(ctx context.Context, req types.BacktestRequest) (*types.BacktestResponse, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if symbol == "" {
		return nil, validationErrorf("ticker", "ticker must not be empty")
	}

	capital, err := r.resolveCapital(req.InitialCapital)
	if err != nil {
		return nil, err
	}

	cfg := req.StrategyConfig()
	if err := cfg.Validate(); err != nil {
		return nil, &ValidationError{Field: "strategy", Message: err.Error()}
	}

	start, end, err := r.resolveRange(req.StartDate, req.EndDate, req.Horizon)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	started := time.Now()
	timeframe := cfg.BarTimeframe()

	r.logger.Info("Running backtest",
		zap.String("id", id),
		zap.String("symbol", symbol),
		zap.String("strategy", string(cfg.Type)),
		zap.String("timeframe", string(timeframe)),
	)

	// The symbol fetch and each benchmark fetch are independent.
	symbols := append([]string{symbol}, r.config.Benchmarks...)
	allBars := make([][]types.Bar, len(symbols))
	fetches := make([]func() error, len(symbols))
	for i, s := range symbols {
		i, s := i, s
		fetches[i] = func() error {
			bars, err := r.provider.GetBars(ctx, s, timeframe, start, end)
			if err != nil {
				return err
			}
			allBars[i] = bars
			return nil
		}
	}
	if err := r.runParallel(fetches); err != nil {
		return nil, err
	}

	bars := allBars[0]
	periods := timeframe.PeriodsPerYear()

	strategy, err := r.runStrategy(symbol, bars, cfg, capital, periods)
	if err != nil {
		return nil, err
	}

	buyHoldCurve := BuyAndHold(bars, decimal.NewFromFloat(capital))
	resp := &types.BacktestResponse{
		ID:       id,
		Strategy: strategy,
		BuyAndHold: types.SeriesResult{
			Symbol:      symbol,
			EquityCurve: buyHoldCurve,
			Metrics:     ComputeMetrics(buyHoldCurve, periods),
		},
	}

	for i, benchmark := range r.config.Benchmarks {
		curve := BuyAndHold(allBars[i+1], decimal.NewFromFloat(capital))
		resp.Benchmarks = append(resp.Benchmarks, types.SeriesResult{
			Symbol:      benchmark,
			EquityCurve: curve,
			Metrics:     ComputeMetrics(curve, periods),
		})
	}

	r.logger.Info("Backtest completed",
		zap.String("id", id),
		zap.Int("bars", len(bars)),
		zap.Int("curve_points", len(strategy.EquityCurve)),
		zap.Duration("duration", time.Since(started)),
	)
	return resp, nil
}

// RunPortfolio executes a multi-symbol backtest with equal-weight or
// momentum-ranked allocation over the common trading calendar.
func (r *Runner) RunPortfolio(ctx context.Context, req types.PortfolioBacktestRequest) (*types.PortfolioBacktestResponse, error) {
	tickers := dedupeSymbols(req.Tickers)
	if len(tickers) == 0 {
		return nil, validationErrorf("tickers", "ticker list must not be empty")
	}
	if req.UseRanking && (req.TopN < 1 || req.TopN > len(tickers)) {
		return nil, validationErrorf("top_n", "top_n must be between 1 and %d, got %d", len(tickers), req.TopN)
	}

	capital, err := r.resolveCapital(req.InitialCapital)
	if err != nil {
		return nil, err
	}

	start, end, err := r.resolveRange(req.StartDate, req.EndDate, req.Horizon)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	started := time.Now()

	// Portfolio requests run the default weekly crossover per symbol.
	cfg := types.DefaultSMAConfig()
	timeframe := cfg.BarTimeframe()
	periods := timeframe.PeriodsPerYear()

	r.logger.Info("Running portfolio backtest",
		zap.String("id", id),
		zap.Strings("symbols", tickers),
		zap.Bool("ranking", req.UseRanking),
		zap.Int("top_n", req.TopN),
	)

	series := make([]SymbolSeries, len(tickers))
	var benchmarkBars []types.Bar

	tasks := make([]func() error, 0, len(tickers)+1)
	for i, symbol := range tickers {
		i, symbol := i, symbol
		tasks = append(tasks, func() error {
			bars, err := r.provider.GetBars(ctx, symbol, timeframe, start, end)
			if err != nil {
				return err
			}
			signals, err := GenerateSignals(bars, cfg)
			if err != nil {
				return err
			}
			series[i] = SymbolSeries{
				Symbol:    symbol,
				Bars:      bars,
				Positions: Realize(signals.Intents),
			}
			return nil
		})
	}
	tasks = append(tasks, func() error {
		bars, err := r.provider.GetBars(ctx, r.config.PortfolioBenchmark, timeframe, start, end)
		if err != nil {
			return err
		}
		benchmarkBars = bars
		return nil
	})
	if err := r.runParallel(tasks); err != nil {
		return nil, err
	}

	aligned := AlignCalendar(series)
	allocs := AllocateWeights(aligned, req.UseRanking, req.TopN)

	strategyCurve := SimulatePortfolioEquity(aligned, allocs, decimal.NewFromFloat(capital))
	buyHoldCurve := EqualWeightBuyAndHold(aligned, decimal.NewFromFloat(capital))
	benchmarkCurve := BuyAndHold(benchmarkBars, decimal.NewFromFloat(capital))

	resp := &types.PortfolioBacktestResponse{
		ID: id,
		Strategy: types.SeriesResult{
			Symbol:      strings.Join(tickers, ","),
			EquityCurve: strategyCurve,
			Metrics:     ComputeMetrics(strategyCurve, periods),
		},
		BuyAndHold: types.SeriesResult{
			Symbol:      strings.Join(tickers, ","),
			EquityCurve: buyHoldCurve,
			Metrics:     ComputeMetrics(buyHoldCurve, periods),
		},
		Benchmark: types.SeriesResult{
			Symbol:      r.config.PortfolioBenchmark,
			EquityCurve: benchmarkCurve,
			Metrics:     ComputeMetrics(benchmarkCurve, periods),
		},
		CurrentHoldings: CurrentHoldings(aligned, allocs),
	}

	r.logger.Info("Portfolio backtest completed",
		zap.String("id", id),
		zap.Int("calendar_bars", len(allocs)),
		zap.Duration("duration", time.Since(started)),
	)
	return resp, nil
}

// runStrategy drives the per-symbol pipeline: signals, one-bar lag,
// simulation from the first defined signal, metrics. Insufficient history
// yields an empty curve, not an error.
func (r *Runner) runStrategy(symbol string, bars []types.Bar, cfg types.StrategyConfig, capital float64, periods int) (types.SeriesResult, error) {
	signals, err := GenerateSignals(bars, cfg)
	if err != nil {
		return types.SeriesResult{}, err
	}

	positions := Realize(signals.Intents)
	curve := SimulateEquity(bars, positions, decimal.NewFromFloat(capital), signals.FirstSignal)

	return types.SeriesResult{
		Symbol:      symbol,
		EquityCurve: curve,
		Metrics:     ComputeMetrics(curve, periods),
	}, nil
}

func (r *Runner) resolveCapital(requested float64) (float64, error) {
	if requested < 0 {
		return 0, validationErrorf("initial_capital", "initial_capital must be positive, got %v", requested)
	}
	if requested == 0 {
		return r.config.DefaultCapital, nil
	}
	return requested, nil
}

// resolveRange turns the request dates and horizon code into a concrete
// range. An explicit start date wins over the horizon; the end date
// defaults to today.
func (r *Runner) resolveRange(startDate, endDate types.Date, horizon types.Horizon) (time.Time, time.Time, error) {
	end := endDate.Time
	if end.IsZero() {
		end = types.DateOf(time.Now()).Time
	}

	start := startDate.Time
	if start.IsZero() {
		if horizon == "" {
			horizon = types.Horizon1Y
		}
		resolved, ok := horizon.Start(end)
		if !ok {
			return time.Time{}, time.Time{}, validationErrorf("horizon", "unrecognized horizon %q", horizon)
		}
		start = resolved
	} else if horizon != "" {
		if _, ok := horizon.Start(end); !ok {
			return time.Time{}, time.Time{}, validationErrorf("horizon", "unrecognized horizon %q", horizon)
		}
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, validationErrorf("start_date", "start_date must be before end_date")
	}
	return start, end, nil
}

// runParallel executes fns concurrently, on the worker pool when one is
// configured, and returns the first error in submission order so identical
// inputs fail identically.
func (r *Runner) runParallel(fns []func() error) error {
	errs := make([]error, len(fns))
	var wg sync.WaitGroup

	for i, fn := range fns {
		i, fn := i, fn
		wg.Add(1)
		run := func() error {
			defer wg.Done()
			errs[i] = fn()
			return errs[i]
		}
		if r.pool != nil {
			if err := r.pool.Submit(workers.TaskFunc(run)); err == nil {
				continue
			}
		}
		go run()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func dedupeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
