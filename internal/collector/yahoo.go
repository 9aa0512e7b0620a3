package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"SeasonalDesk/internal/model"
)

// DefaultYahooBaseURL is the public Yahoo Finance chart endpoint.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

var errNoChartData = errors.New("yahoo: no data returned")

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL string
	Client  *http.Client
	// Aliases maps common index names to Yahoo tickers.
	Aliases map[string]string
}

// NewYahooFetcher creates a fetcher with optional proxy support. An empty
// baseURL selects DefaultYahooBaseURL.
func NewYahooFetcher(baseURL, proxyURL string, timeout time.Duration) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &YahooFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout, Transport: transport},
		Aliases: map[string]string{
			"SPX":    "^GSPC",
			"SPX500": "^GSPC",
			"NDX":    "^NDX",
			"DJI":    "^DJI",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) ticker(symbol string) string {
	if t, ok := f.Aliases[symbol]; ok {
		return t
	}
	return symbol
}

// Chart API payload. Missing prices arrive as JSON null.
type (
	chartQuote struct {
		Open   []*float64 `json:"open"`
		High   []*float64 `json:"high"`
		Low    []*float64 `json:"low"`
		Close  []*float64 `json:"close"`
		Volume []*float64 `json:"volume"`
	}
	chartMeta struct {
		GMTOffset            int    `json:"gmtoffset"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	}
	chartResult struct {
		Meta       chartMeta `json:"meta"`
		Timestamp  []int64   `json:"timestamp"`
		Indicators struct {
			Quote []chartQuote `json:"quote"`
		} `json:"indicators"`
	}
	chartResponse struct {
		Chart struct {
			Result []chartResult `json:"result"`
			Error  *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
)

// location returns the exchange time zone. Daily timestamps are session
// opens, so the calendar date must be read in exchange time: an ASX open
// falls on the previous UTC day. The fixed gmtoffset is the fallback when
// the zone database does not know the exchange zone.
func (m chartMeta) location() *time.Location {
	if m.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(m.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	if m.GMTOffset == 0 {
		return time.UTC
	}
	return time.FixedZone(m.ExchangeTimezoneName, m.GMTOffset)
}

// bar builds the i-th bar. It reports false when every price is missing,
// as Yahoo does for market holidays.
func (q chartQuote) bar(i int, ts int64, loc *time.Location) (model.OHLCV, bool) {
	o, h, l, c := valueAt(q.Open, i), valueAt(q.High, i), valueAt(q.Low, i), valueAt(q.Close, i)
	if o == 0 && h == 0 && l == 0 && c == 0 {
		return model.OHLCV{}, false
	}
	return model.OHLCV{
		Time:   time.Unix(ts, 0).In(loc),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: valueAt(q.Volume, i),
	}, true
}

func valueAt(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

// FetchDailyBars downloads interval=1d bars for lookback (default "5y").
func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol, lookback string) ([]model.OHLCV, error) {
	if lookback == "" {
		lookback = "5y"
	}
	q := url.Values{"interval": {"1d"}, "range": {lookback}}
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(f.ticker(symbol)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, snippet)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if e := payload.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo api error %s: %s", e.Code, e.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, errNoChartData
	}

	result := payload.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	loc := result.Meta.location()
	bars := make([]model.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if b, ok := quote.bar(i, ts, loc); ok {
			bars = append(bars, b)
		}
	}
	slices.SortFunc(bars, func(a, b model.OHLCV) int { return a.Time.Compare(b.Time) })
	return bars, nil
}
