package model

import "time"

// OHLCV represents a single candlestick bar as returned by a quote source.
// Time is in the exchange's local zone.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Observation is one price row after input coercion. Missing or
// unparseable prices are already defaulted to 0.
type Observation struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// RawRow is a semi-structured input row as decoded from a spreadsheet,
// a query result or a JSON request. Values are strings, numbers or nil.
type RawRow map[string]any
