package calculator

import (
	"math"
	"slices"
	"time"

	"SeasonalDesk/internal/model"
)

// seasonalRow carries one observation through the derivation passes.
// Each pass fills in one more field.
type seasonalRow struct {
	obs          model.Observation
	year         int
	month        int
	pctChange    float64
	normalized   float64
	averageNorm  float64
	trueSeasonal float64
}

// Derive computes the seasonal columns for an unordered set of raw rows.
// Rows with an unparseable Date are dropped; the result is ordered by
// ascending date, ties keeping their input order. Derive never fails and
// holds no state between calls.
func Derive(rows []model.RawRow, policy model.NaNPolicy) []model.DerivedRow {
	obs := make([]model.Observation, 0, len(rows))
	for _, r := range rows {
		if o, ok := Coerce(r); ok {
			obs = append(obs, o)
		}
	}
	slices.SortStableFunc(obs, func(a, b model.Observation) int {
		return a.Date.Compare(b.Date)
	})

	series := sequentialPass(obs, policy)
	normalizeByYear(series, policy,
		func(r *seasonalRow) float64 { return r.pctChange },
		func(r *seasonalRow, v float64) { r.normalized = v })
	runningMonthlyAverage(series, policy)
	normalizeByYear(series, policy,
		func(r *seasonalRow) float64 { return r.averageNorm },
		func(r *seasonalRow, v float64) { r.trueSeasonal = v })

	return assemble(series)
}

// sequentialPass assigns month numbers and close-to-close changes over the
// chronologically sorted observations.
func sequentialPass(obs []model.Observation, policy model.NaNPolicy) []seasonalRow {
	series := make([]seasonalRow, len(obs))
	for i, o := range obs {
		change := math.NaN()
		if i > 0 {
			change = o.Close - obs[i-1].Close
		}
		series[i] = seasonalRow{
			obs:       o,
			year:      o.Date.Year(),
			month:     int(o.Date.Month()),
			pctChange: resolve(change, policy),
		}
	}
	return series
}

func assemble(series []seasonalRow) []model.DerivedRow {
	out := make([]model.DerivedRow, len(series))
	for i, r := range series {
		out[i] = model.DerivedRow{
			Date:         r.obs.Date.Format(time.DateOnly),
			Open:         r.obs.Open,
			High:         r.obs.High,
			Low:          r.obs.Low,
			Close:        r.obs.Close,
			PctChange:    r.pctChange,
			MonthNo:      r.month,
			Normalized:   r.normalized,
			AverageNorm:  r.averageNorm,
			TrueSeasonal: r.trueSeasonal,
		}
	}
	return out
}

// resolve applies the NaN policy to a raw derived value.
func resolve(v float64, policy model.NaNPolicy) float64 {
	if policy == model.PolicyReplace && !model.IsFinite(v) {
		return 0
	}
	return v
}
