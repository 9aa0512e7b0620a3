package calculator

import (
	"math"

	"SeasonalDesk/internal/model"
)

// span is the finite min/max of one year's values.
type span struct {
	low, high float64
}

// width returns high-low, or 0 when the span holds no finite value or the
// difference overflows.
func (s span) width() float64 {
	w := s.high - s.low
	if !model.IsFinite(w) {
		return 0
	}
	return w
}

// yearSpans scans every row once and returns the finite extremes per
// calendar year. Years without finite values keep low=+Inf, high=-Inf.
func yearSpans(series []seasonalRow, value func(*seasonalRow) float64) map[int]span {
	spans := make(map[int]span)
	for i := range series {
		r := &series[i]
		s, ok := spans[r.year]
		if !ok {
			s = span{low: math.Inf(1), high: math.Inf(-1)}
		}
		if v := value(r); model.IsFinite(v) {
			if v < s.low {
				s.low = v
			}
			if v > s.high {
				s.high = v
			}
		}
		spans[r.year] = s
	}
	return spans
}

// normalizeByYear rescales value into 0..100 against its year's finite
// range. Extremes for every year are collected before any row is written.
func normalizeByYear(series []seasonalRow, policy model.NaNPolicy,
	value func(*seasonalRow) float64, set func(*seasonalRow, float64)) {
	spans := yearSpans(series, value)
	for i := range series {
		r := &series[i]
		s := spans[r.year]
		v := value(r)
		out := math.NaN()
		if w := s.width(); w != 0 && model.IsFinite(v) {
			out = (v - s.low) / w * 100
		}
		set(r, resolve(out, policy))
	}
}
