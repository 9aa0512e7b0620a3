package calculator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SeasonalDesk/internal/model"
)

func closes(rows []model.DerivedRow, field func(model.DerivedRow) float64) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = field(r)
	}
	return out
}

func pct(r model.DerivedRow) float64  { return r.PctChange }
func norm(r model.DerivedRow) float64 { return r.Normalized }

func TestDerive_ConcreteScenario(t *testing.T) {
	in := []model.RawRow{
		{"Date": "2023-01-02", "Close": 100},
		{"Date": "2023-01-03", "Close": 110},
		{"Date": "2023-01-04", "Close": 90},
	}
	out := Derive(in, model.PolicyReplace)
	require.Len(t, out, 3)

	assert.Equal(t, []float64{0, 10, -20}, closes(out, pct))
	assert.InDelta(t, 66.6667, out[0].Normalized, 1e-3)
	assert.InDelta(t, 100, out[1].Normalized, 1e-9)
	assert.InDelta(t, 0, out[2].Normalized, 1e-9)

	// All rows share January, so Average_Norm is the running mean.
	assert.InDelta(t, 66.6667, out[0].AverageNorm, 1e-3)
	assert.InDelta(t, (66.6667+100)/2, out[1].AverageNorm, 1e-3)
	assert.InDelta(t, (66.6667+100)/3, out[2].AverageNorm, 1e-3)

	// Average_Norm range in 2023 is [55.56, 83.33].
	assert.InDelta(t, 40, out[0].TrueSeasonal, 1e-3)
	assert.InDelta(t, 100, out[1].TrueSeasonal, 1e-9)
	assert.InDelta(t, 0, out[2].TrueSeasonal, 1e-9)

	for _, r := range out {
		assert.Equal(t, 1, r.MonthNo)
	}
	assert.Equal(t, "2023-01-02", out[0].Date)
}

func TestDerive_SortsChronologically(t *testing.T) {
	in := []model.RawRow{
		{"Date": "2023-03-01", "Close": 3},
		{"Date": "2022-12-31", "Close": 1},
		{"Date": "2023-01-15", "Close": 2},
	}
	out := Derive(in, model.PolicyReplace)
	require.Len(t, out, 3)
	assert.Equal(t, "2022-12-31", out[0].Date)
	assert.Equal(t, "2023-01-15", out[1].Date)
	assert.Equal(t, "2023-03-01", out[2].Date)
	// %change crosses the year boundary.
	assert.Equal(t, []float64{0, 1, 1}, closes(out, pct))
}

func TestDerive_FirstRowChange(t *testing.T) {
	in := []model.RawRow{
		{"Date": "2021-06-01", "Close": 5},
		{"Date": "2021-06-02", "Close": 7},
	}

	replaced := Derive(in, model.PolicyReplace)
	assert.Equal(t, 0.0, replaced[0].PctChange)

	preserved := Derive(in, model.PolicyPreserve)
	assert.True(t, math.IsNaN(preserved[0].PctChange))
	assert.Equal(t, 2.0, preserved[1].PctChange)
}

func TestDerive_MonthMatchesDate(t *testing.T) {
	var in []model.RawRow
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 800; i += 9 {
		d := start.AddDate(0, 0, i)
		in = append(in, model.RawRow{"Date": d.Format(time.DateOnly), "Close": float64(i % 37)})
	}
	for _, r := range Derive(in, model.PolicyReplace) {
		d, err := time.Parse(time.DateOnly, r.Date)
		require.NoError(t, err)
		assert.Equal(t, int(d.Month()), r.MonthNo, r.Date)
	}
}

func TestDerive_DegenerateYearRange(t *testing.T) {
	in := []model.RawRow{
		{"Date": "2019-02-01", "Close": 50},
		{"Date": "2019-05-01", "Close": 50},
		{"Date": "2019-09-01", "Close": 50},
	}
	out := Derive(in, model.PolicyReplace)
	for _, r := range out {
		assert.Equal(t, 0.0, r.PctChange)
		assert.Equal(t, 0.0, r.Normalized)
		assert.Equal(t, 0.0, r.TrueSeasonal)
	}

	preserved := Derive(in, model.PolicyPreserve)
	for _, r := range preserved {
		assert.True(t, math.IsNaN(r.Normalized), r.Date)
		// No finite normalized value was accumulated for the month.
		assert.Equal(t, 0.0, r.AverageNorm, r.Date)
	}
}

func TestDerive_PreserveSingleRowYear(t *testing.T) {
	out := Derive([]model.RawRow{{"Date": "2024-07-04", "Close": 12}}, model.PolicyPreserve)
	require.Len(t, out, 1)
	r := out[0]
	assert.True(t, math.IsNaN(r.PctChange))
	assert.True(t, math.IsNaN(r.Normalized))
	assert.Equal(t, 0.0, r.AverageNorm)
	assert.True(t, math.IsNaN(r.TrueSeasonal))
}

func TestRunningMonthlyAverage_CrossYear(t *testing.T) {
	series := []seasonalRow{
		{year: 2022, month: 1, normalized: 10},
		{year: 2022, month: 1, normalized: 20},
		{year: 2022, month: 2, normalized: 90},
		{year: 2023, month: 1, normalized: 30},
		{year: 2023, month: 2, normalized: math.NaN()},
	}
	runningMonthlyAverage(series, model.PolicyReplace)

	assert.Equal(t, 10.0, series[0].averageNorm)
	assert.Equal(t, 15.0, series[1].averageNorm)
	assert.Equal(t, 90.0, series[2].averageNorm)
	assert.Equal(t, 20.0, series[3].averageNorm, "January mean must span both years")
	assert.Equal(t, 90.0, series[4].averageNorm, "NaN must not enter the accumulator")
}

func TestNormalizeByYear_GroupsIndependently(t *testing.T) {
	series := []seasonalRow{
		{year: 2020, pctChange: -5},
		{year: 2020, pctChange: 5},
		{year: 2021, pctChange: 100},
		{year: 2021, pctChange: math.NaN()},
		{year: 2021, pctChange: 300},
	}
	normalizeByYear(series, model.PolicyPreserve,
		func(r *seasonalRow) float64 { return r.pctChange },
		func(r *seasonalRow, v float64) { r.normalized = v })

	assert.Equal(t, 0.0, series[0].normalized)
	assert.Equal(t, 100.0, series[1].normalized)
	assert.Equal(t, 0.0, series[2].normalized)
	assert.True(t, math.IsNaN(series[3].normalized))
	assert.Equal(t, 100.0, series[4].normalized)
}

func TestDerive_OrderInvariant(t *testing.T) {
	var in []model.RawRow
	start := time.Date(2018, 11, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		d := start.AddDate(0, 0, i*5)
		in = append(in, model.RawRow{
			"Date":  d.Format(time.DateOnly),
			"Open":  float64(i),
			"Close": 100 + 10*math.Sin(float64(i)/3),
		})
	}
	want := Derive(in, model.PolicyReplace)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]model.RawRow(nil), in...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, Derive(shuffled, model.PolicyReplace))
	}
}

func TestDerive_Rederivation(t *testing.T) {
	in := []model.RawRow{
		{"Date": "2022-01-03", "Open": 1, "High": 2, "Low": 0.5, "Close": 10},
		{"Date": "2022-01-10", "Close": 14},
		{"Date": "2022-02-07", "Close": 9},
		{"Date": "2023-01-02", "Close": 11},
		{"Date": "2023-01-09", "Close": "15.5"},
		{"Date": "2023-02-06", "Close": 8},
	}
	first := Derive(in, model.PolicyReplace)

	base := make([]model.RawRow, len(first))
	for i, r := range first {
		base[i] = r.Base()
	}
	assert.Equal(t, first, Derive(base, model.PolicyReplace))
}

func TestDerive_DropsUnparseableDates(t *testing.T) {
	in := []model.RawRow{
		{"Date": "2023-01-02", "Close": 1},
		{"Date": "", "Close": 2},
		{"Date": "yesterday", "Close": 3},
		{"Close": 4},
		{"Date": "2023-01-03", "Close": 5},
	}
	out := Derive(in, model.PolicyReplace)
	require.Len(t, out, 2)
	assert.Equal(t, 4.0, out[1].PctChange)
}

func TestDerive_EqualDatesKeepInputOrder(t *testing.T) {
	in := []model.RawRow{
		{"Date": "2023-01-02", "Close": 1},
		{"Date": "2023-01-02", "Close": 3},
		{"Date": "2023-01-01", "Close": 0},
	}
	out := Derive(in, model.PolicyReplace)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{0, 1, 3}, closes(out, func(r model.DerivedRow) float64 { return r.Close }))
}

func TestDerive_Empty(t *testing.T) {
	assert.Empty(t, Derive(nil, model.PolicyReplace))
}
