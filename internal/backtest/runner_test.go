package backtest_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-backtester/internal/backtest"
	"github.com/atlas-desktop/strategy-backtester/internal/marketdata"
	"github.com/atlas-desktop/strategy-backtester/pkg/types"
)

// fakeProvider serves canned bar series keyed by symbol. Symbols without an
// entry report no data; symbols in failures report an upstream failure.
type fakeProvider struct {
	bars     map[string][]types.Bar
	failures map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		bars:     make(map[string][]types.Bar),
		failures: make(map[string]error),
	}
}

func (f *fakeProvider) GetBars(_ context.Context, symbol string, _ types.Timeframe, _, _ time.Time) ([]types.Bar, error) {
	if err, ok := f.failures[symbol]; ok {
		return nil, &marketdata.ProviderError{Symbol: symbol, Err: err}
	}
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w for symbol %q", marketdata.ErrNoData, symbol)
	}
	return bars, nil
}

func newTestRunner(provider marketdata.Provider) *backtest.Runner {
	return backtest.NewRunner(zap.NewNop(), provider, nil, backtest.DefaultRunnerConfig())
}

func seedStandardSymbols(provider *fakeProvider) {
	for i, symbol := range []string{"AAPL", "MSFT", "SPY", "QQQ", "DIA"} {
		provider.bars[symbol] = makeBars(ascendingCloses(40, 100+float64(10*i)))
	}
}

func TestRunnerRun(t *testing.T) {
	provider := newFakeProvider()
	seedStandardSymbols(provider)
	runner := newTestRunner(provider)

	resp, err := runner.Run(context.Background(), types.BacktestRequest{
		Ticker:         "aapl",
		InitialCapital: 10000,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.ID == "" {
		t.Error("Expected a run ID")
	}
	if resp.Strategy.Symbol != "AAPL" {
		t.Errorf("Expected symbol AAPL, got %s", resp.Strategy.Symbol)
	}
	// Default 5/20 crossover: the strategy curve starts at the warm-up
	// boundary, the baseline at the first bar.
	if len(resp.Strategy.EquityCurve) != 21 {
		t.Errorf("Expected 21 strategy points, got %d", len(resp.Strategy.EquityCurve))
	}
	if len(resp.BuyAndHold.EquityCurve) != 40 {
		t.Errorf("Expected 40 buy-and-hold points, got %d", len(resp.BuyAndHold.EquityCurve))
	}
	if len(resp.Benchmarks) != 3 {
		t.Fatalf("Expected 3 benchmark results, got %d", len(resp.Benchmarks))
	}
	for _, b := range resp.Benchmarks {
		if len(b.EquityCurve) != 40 {
			t.Errorf("Benchmark %s: expected 40 points, got %d", b.Symbol, len(b.EquityCurve))
		}
		if got := b.EquityCurve[0].Equity.InexactFloat64(); got != 10000 {
			t.Errorf("Benchmark %s: expected curve to start at 10000, got %v", b.Symbol, got)
		}
	}
	if got := resp.BuyAndHold.EquityCurve[0].Equity.InexactFloat64(); got != 10000 {
		t.Errorf("Expected buy-and-hold curve to start at 10000, got %v", got)
	}

	final := resp.Strategy.EquityCurve[len(resp.Strategy.EquityCurve)-1]
	if final.Equity.InexactFloat64() <= 10000 {
		t.Errorf("Rising series should end above initial capital, got %v", final.Equity)
	}
}

func TestRunnerDeterministic(t *testing.T) {
	provider := newFakeProvider()
	seedStandardSymbols(provider)
	runner := newTestRunner(provider)

	req := types.BacktestRequest{Ticker: "AAPL", InitialCapital: 10000}
	first, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	// Everything except the run ID must be byte-for-byte identical.
	first.ID, second.ID = "", ""
	if !reflect.DeepEqual(first, second) {
		t.Error("Identical requests must produce identical results")
	}
}

func TestRunnerInsufficientHistory(t *testing.T) {
	provider := newFakeProvider()
	seedStandardSymbols(provider)
	provider.bars["TINY"] = makeBars(ascendingCloses(5, 100))
	runner := newTestRunner(provider)

	resp, err := runner.Run(context.Background(), types.BacktestRequest{Ticker: "TINY"})
	if err != nil {
		t.Fatalf("Short history must not be an error: %v", err)
	}
	if len(resp.Strategy.EquityCurve) != 0 {
		t.Errorf("Expected empty strategy curve, got %d points", len(resp.Strategy.EquityCurve))
	}
	if resp.Strategy.Metrics != (types.MetricSummary{}) {
		t.Errorf("Expected zero metrics for empty curve, got %+v", resp.Strategy.Metrics)
	}
	if len(resp.BuyAndHold.EquityCurve) != 5 {
		t.Errorf("Baseline still covers all bars, got %d points", len(resp.BuyAndHold.EquityCurve))
	}
}

func TestRunnerValidation(t *testing.T) {
	provider := newFakeProvider()
	seedStandardSymbols(provider)
	runner := newTestRunner(provider)
	ctx := context.Background()

	cases := []struct {
		name string
		req  types.BacktestRequest
	}{
		{"empty ticker", types.BacktestRequest{}},
		{"negative capital", types.BacktestRequest{Ticker: "AAPL", InitialCapital: -100}},
		{"bad horizon", types.BacktestRequest{Ticker: "AAPL", Horizon: "3W"}},
		{"start after end", types.BacktestRequest{
			Ticker:    "AAPL",
			StartDate: types.NewDate(2024, 6, 1),
			EndDate:   types.NewDate(2024, 1, 1),
		}},
		{"bad strategy params", types.BacktestRequest{
			Ticker:       "AAPL",
			StrategyType: types.StrategyMeanReversionZScore,
			MRLookback:   2,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runner.Run(ctx, tc.req)
			var verr *backtest.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestRunnerNoData(t *testing.T) {
	provider := newFakeProvider()
	seedStandardSymbols(provider)
	runner := newTestRunner(provider)

	_, err := runner.Run(context.Background(), types.BacktestRequest{Ticker: "NOPE"})
	if !errors.Is(err, marketdata.ErrNoData) {
		t.Errorf("Expected no-data error, got %v", err)
	}
}

func TestRunnerUpstreamFailure(t *testing.T) {
	provider := newFakeProvider()
	seedStandardSymbols(provider)
	provider.failures["SPY"] = errors.New("rate limited")
	runner := newTestRunner(provider)

	_, err := runner.Run(context.Background(), types.BacktestRequest{Ticker: "AAPL"})
	var perr *marketdata.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected provider error, got %v", err)
	}
	if perr.Symbol != "SPY" {
		t.Errorf("Expected failing symbol SPY, got %s", perr.Symbol)
	}
}

func TestRunnerExplicitStartDateWinsOverHorizon(t *testing.T) {
	provider := newFakeProvider()
	seedStandardSymbols(provider)
	runner := newTestRunner(provider)

	// Both present and the horizon valid: the request is accepted.
	_, err := runner.Run(context.Background(), types.BacktestRequest{
		Ticker:    "AAPL",
		StartDate: types.NewDate(2024, 1, 1),
		EndDate:   types.NewDate(2024, 12, 1),
		Horizon:   types.Horizon5Y,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestRunPortfolio(t *testing.T) {
	provider := newFakeProvider()
	seedStandardSymbols(provider)
	runner := newTestRunner(provider)

	resp, err := runner.RunPortfolio(context.Background(), types.PortfolioBacktestRequest{
		Tickers:        []string{"aapl", "MSFT", "AAPL"},
		InitialCapital: 10000,
	})
	if err != nil {
		t.Fatalf("RunPortfolio failed: %v", err)
	}

	// Duplicates collapse after normalization.
	if resp.Strategy.Symbol != "AAPL,MSFT" {
		t.Errorf("Expected combined symbol AAPL,MSFT, got %s", resp.Strategy.Symbol)
	}
	if len(resp.CurrentHoldings) != 2 {
		t.Fatalf("Expected 2 holdings, got %d", len(resp.CurrentHoldings))
	}
	if resp.Benchmark.Symbol != "SPY" {
		t.Errorf("Expected benchmark SPY, got %s", resp.Benchmark.Symbol)
	}
	if len(resp.Strategy.EquityCurve) != 40 {
		t.Errorf("Expected 40 portfolio points, got %d", len(resp.Strategy.EquityCurve))
	}
	if len(resp.BuyAndHold.EquityCurve) != 40 {
		t.Errorf("Expected 40 buy-and-hold points, got %d", len(resp.BuyAndHold.EquityCurve))
	}
}

func TestRunPortfolioRanked(t *testing.T) {
	provider := newFakeProvider()
	seedStandardSymbols(provider)
	runner := newTestRunner(provider)

	resp, err := runner.RunPortfolio(context.Background(), types.PortfolioBacktestRequest{
		Tickers:    []string{"AAPL", "MSFT"},
		UseRanking: true,
		TopN:       1,
	})
	if err != nil {
		t.Fatalf("RunPortfolio failed: %v", err)
	}

	var total float64
	for _, h := range resp.CurrentHoldings {
		total += h.Weight
	}
	if total > 1+1e-9 {
		t.Errorf("Holding weights sum to %v, must not exceed 1", total)
	}
}

func TestRunPortfolioValidation(t *testing.T) {
	provider := newFakeProvider()
	seedStandardSymbols(provider)
	runner := newTestRunner(provider)
	ctx := context.Background()

	cases := []struct {
		name string
		req  types.PortfolioBacktestRequest
	}{
		{"no tickers", types.PortfolioBacktestRequest{}},
		{"blank tickers", types.PortfolioBacktestRequest{Tickers: []string{" ", ""}}},
		{"top_n zero", types.PortfolioBacktestRequest{
			Tickers: []string{"AAPL", "MSFT"}, UseRanking: true, TopN: 0,
		}},
		{"top_n too large", types.PortfolioBacktestRequest{
			Tickers: []string{"AAPL", "MSFT"}, UseRanking: true, TopN: 3,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runner.RunPortfolio(ctx, tc.req)
			var verr *backtest.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}
