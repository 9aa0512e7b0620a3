package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SeasonalDesk/internal/model"
)

const chartBody = `{"chart":{"result":[{
	"timestamp":[1672756200,1672669800,1672842600],
	"indicators":{"quote":[{
		"open":[11,10,null],
		"high":[12,11,null],
		"low":[10,9,null],
		"close":[11.5,10.5,null],
		"volume":[200,100,null]
	}]}
}],"error":null}}`

func TestYahooFetcher_FetchDailyBars(t *testing.T) {
	var gotPath, gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	f := NewYahooFetcher(srv.URL, "", 5*time.Second)
	bars, err := f.FetchDailyBars(context.Background(), "^GSPC", "1y")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/^GSPC", gotPath)
	assert.Equal(t, "1y", gotRange)
	require.Len(t, bars, 2, "all-null bars are skipped")
	assert.True(t, bars[0].Time.Before(bars[1].Time), "bars are sorted oldest first")
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, 200.0, bars[1].Volume)
}

func TestYahooFetcher_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("range") == "bad" {
			w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid range"}}}`))
			return
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewYahooFetcher(srv.URL, "", time.Second)
	_, err := f.FetchDailyBars(context.Background(), "X", "bad")
	assert.ErrorContains(t, err, "Invalid range")

	_, err = f.FetchDailyBars(context.Background(), "X", "1y")
	assert.ErrorContains(t, err, "status 502")
}

func TestCollector_RawRows(t *testing.T) {
	c := NewCollector(&MockFetcher{Bars: []model.OHLCV{
		{Time: time.Date(2023, 1, 3, 14, 30, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5},
	}})
	rows, err := c.RawRows(context.Background(), "X", "1y")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2023-01-03", rows[0][model.ColDate])
	assert.Equal(t, 1.5, rows[0][model.ColClose])

	c = NewCollector(&MockFetcher{Err: errors.New("offline")})
	_, err = c.RawRows(context.Background(), "X", "1y")
	assert.ErrorContains(t, err, "offline")
}

func TestYahooFetcher_Aliases(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	f := NewYahooFetcher(srv.URL, "", time.Second)
	_, err := f.FetchDailyBars(context.Background(), "SPX", "")
	assert.ErrorIs(t, err, errNoChartData)
	assert.Equal(t, "/v8/finance/chart/^GSPC", gotPath)
}

func TestCollector_RawRows_ExchangeLocalDate(t *testing.T) {
	tests := []struct {
		name string
		meta string
	}{
		{"zone name", `{"gmtoffset":39600,"exchangeTimezoneName":"Australia/Sydney"}`},
		{"offset only", `{"gmtoffset":39600}`},
		{"unknown zone", `{"gmtoffset":39600,"exchangeTimezoneName":"Nowhere/Exchange"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 2024-01-08T23:00Z is the 10:00 open of the 2024-01-09 ASX session.
			body := `{"chart":{"result":[{"meta":` + tt.meta + `,
				"timestamp":[1704754800],
				"indicators":{"quote":[{"open":[7500],"high":[7550],"low":[7480],"close":[7520],"volume":[1]}]}
			}],"error":null}}`
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			c := NewCollector(NewYahooFetcher(srv.URL, "", time.Second))
			rows, err := c.RawRows(context.Background(), "^AXJO", "1y")
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "2024-01-09", rows[0][model.ColDate])
		})
	}
}
