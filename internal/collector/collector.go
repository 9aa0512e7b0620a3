package collector

import (
	"context"
	"fmt"
	"time"

	"SeasonalDesk/internal/model"
)

// MockFetcher returns fixed bars for development and testing.
type MockFetcher struct {
	Bars []model.OHLCV
	Err  error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, _, _ string) ([]model.OHLCV, error) {
	return m.Bars, m.Err
}

// Collector turns fetched bars into raw rows for the derivation engine.
type Collector struct {
	Fetcher Fetcher
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{Fetcher: fetcher}
}

// RawRows fetches daily bars for symbol and returns them as raw rows keyed
// by the Date/Open/High/Low/Close columns. Date is the bar's calendar date
// in the zone its Time carries.
func (c *Collector) RawRows(ctx context.Context, symbol, lookback string) ([]model.RawRow, error) {
	bars, err := c.Fetcher.FetchDailyBars(ctx, symbol, lookback)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars: %w", err)
	}
	rows := make([]model.RawRow, len(bars))
	for i, b := range bars {
		rows[i] = model.RawRow{
			model.ColDate:  b.Time.Format(time.DateOnly),
			model.ColOpen:  b.Open,
			model.ColHigh:  b.High,
			model.ColLow:   b.Low,
			model.ColClose: b.Close,
		}
	}
	return rows, nil
}
