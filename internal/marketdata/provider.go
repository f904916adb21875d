// Package marketdata provides historical bar retrieval and caching.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlas-desktop/strategy-backtester/pkg/types"
)

// ErrNoData is returned when a provider has no bars for a symbol and range.
var ErrNoData = errors.New("no bar data returned")

// ProviderError marks an upstream market-data failure (unavailable,
// rate-limited, rejected request). It is distinguishable from validation
// errors and from ErrNoData at the API boundary.
type ProviderError struct {
	Symbol string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("market data request failed for %s: %v", e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider supplies an ordered, de-duplicated sequence of dated closing
// prices for a symbol and timeframe. Implementations return ErrNoData when
// the range holds no bars and *ProviderError on upstream failures.
type Provider interface {
	GetBars(ctx context.Context, symbol string, timeframe types.Timeframe, start, end time.Time) ([]types.Bar, error)
}
