package collector

import (
	"context"

	"SeasonalDesk/internal/model"
)

// Fetcher defines the interface for fetching daily price bars.
type Fetcher interface {
	// FetchDailyBars returns daily bars for symbol over a lookback range
	// such as "1y", "5y" or "max", oldest first.
	FetchDailyBars(ctx context.Context, symbol, lookback string) ([]model.OHLCV, error)
	Name() string
}
