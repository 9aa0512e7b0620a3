package calculator

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"SeasonalDesk/internal/model"
)

// Spreadsheet serial day 25569 is 1970-01-01 (serials count days since 1899-12-30).
const serialUnixEpoch = 25569.0

// maxSerialDays bounds serial offsets to roughly +/-8000 years around 1970.
const maxSerialDays = 3_000_000

var unixEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{"2006-01-02", "2006-1-2"}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05Z07:00"}

// Coerce turns a raw row into an Observation. It reports false when the
// row's Date cannot be parsed; such rows are dropped by Derive.
// Prices that are absent or unparseable default to 0.
func Coerce(row model.RawRow) (model.Observation, bool) {
	date, ok := ParseDate(row[model.ColDate])
	if !ok {
		return model.Observation{}, false
	}
	return model.Observation{
		Date:  date,
		Open:  priceOrZero(row[model.ColOpen]),
		High:  priceOrZero(row[model.ColHigh]),
		Low:   priceOrZero(row[model.ColLow]),
		Close: priceOrZero(row[model.ColClose]),
	}, true
}

// ParseDate accepts an ISO calendar date, an RFC 3339 timestamp (the time
// is discarded) or a spreadsheet day serial given as a number or numeric
// string. The result is midnight UTC.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case string:
		return parseDateString(d)
	case nil, bool:
		return time.Time{}, false
	default:
		n, ok := ParseNumber(v)
		if !ok {
			return time.Time{}, false
		}
		return SerialToDate(n)
	}
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return SerialToDate(n)
	}
	return time.Time{}, false
}

// SerialToDate converts a spreadsheet day serial to a calendar date using
// epoch(1970-01-01) + floor(serial - 25569) days.
func SerialToDate(serial float64) (time.Time, bool) {
	if !model.IsFinite(serial) {
		return time.Time{}, false
	}
	days := math.Floor(serial - serialUnixEpoch)
	if math.Abs(days) > maxSerialDays {
		return time.Time{}, false
	}
	return unixEpoch.AddDate(0, 0, int(days)), true
}

// ParseNumber coerces numeric values and numeric strings to float64.
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// priceOrZero reproduces the inherited behavior of treating a missing
// price as 0. This skews %change for gaps and is kept for compatibility.
func priceOrZero(v any) float64 {
	if f, ok := ParseNumber(v); ok {
		return f
	}
	return 0
}
