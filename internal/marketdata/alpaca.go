package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	md "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/atlas-desktop/strategy-backtester/pkg/types"
)

// AlpacaConfig configures the Alpaca historical data provider.
type AlpacaConfig struct {
	APIKey         string
	APISecret      string
	BaseURL        string
	Feed           string
	RequestsPerSec int
	MaxRetries     uint64
}

// DefaultAlpacaConfig returns defaults matching the free IEX feed.
func DefaultAlpacaConfig() AlpacaConfig {
	return AlpacaConfig{
		Feed:           "iex",
		RequestsPerSec: 5,
		MaxRetries:     3,
	}
}

// AlpacaProvider fetches historical bars from the Alpaca market-data API.
// Calls are gated by a rate limiter and retried with exponential backoff
// before an upstream failure is surfaced.
type AlpacaProvider struct {
	client  *md.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	feed    string
	retries uint64
}

// NewAlpacaProvider creates a provider from the given credentials.
func NewAlpacaProvider(logger *zap.Logger, cfg AlpacaConfig) (*AlpacaProvider, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("missing Alpaca API key or secret")
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	opts := md.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}

	return &AlpacaProvider{
		client:  md.NewClient(opts),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestsPerSec),
		logger:  logger,
		feed:    cfg.Feed,
		retries: cfg.MaxRetries,
	}, nil
}

// GetBars fetches closing-price bars for symbol between start and end,
// de-duplicated and sorted by date.
func (p *AlpacaProvider) GetBars(ctx context.Context, symbol string, timeframe types.Timeframe, start, end time.Time) ([]types.Bar, error) {
	symbol = strings.ToUpper(symbol)

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := md.GetBarsRequest{
		TimeFrame:  alpacaTimeFrame(timeframe),
		Start:      start,
		End:        end,
		Adjustment: md.All,
		Feed:       md.Feed(p.feed),
		Sort:       md.SortAsc,
	}

	var raw []md.Bar
	operation := func() error {
		var err error
		raw, err = p.client.GetBars(symbol, req)
		return err
	}

	// Retries cover timeouts, 429s and transient 5xx responses; a hard
	// client error just burns the remaining attempts.
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.retries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		p.logger.Warn("bar fetch failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return nil, &ProviderError{Symbol: symbol, Err: err}
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w for symbol %q", ErrNoData, symbol)
	}

	bars := make([]types.Bar, 0, len(raw))
	seen := make(map[types.Date]bool, len(raw))
	for _, b := range raw {
		date := types.DateOf(b.Timestamp)
		if seen[date] {
			continue
		}
		seen[date] = true
		bars = append(bars, types.Bar{Date: date, Close: decimal.NewFromFloat(b.Close)})
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date.Time)
	})

	p.logger.Debug("fetched bars",
		zap.String("symbol", symbol),
		zap.String("timeframe", string(timeframe)),
		zap.Int("count", len(bars)),
	)
	return bars, nil
}

func alpacaTimeFrame(timeframe types.Timeframe) md.TimeFrame {
	if timeframe == types.TimeframeDaily {
		return md.OneDay
	}
	return md.NewTimeFrame(1, md.Week)
}
