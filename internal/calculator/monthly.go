package calculator

import "SeasonalDesk/internal/model"

// monthAccumulator is a running sum of finite normalized values for one
// calendar month.
type monthAccumulator struct {
	sum   float64
	count int
}

func (a *monthAccumulator) add(v float64) {
	if model.IsFinite(v) {
		a.sum += v
		a.count++
	}
}

func (a *monthAccumulator) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// runningMonthlyAverage walks the series in date order and sets each row's
// Average_Norm to the mean of every normalized value seen so far for the
// same calendar month, across all years and including the row itself.
func runningMonthlyAverage(series []seasonalRow, policy model.NaNPolicy) {
	var months [12]monthAccumulator
	for i := range series {
		r := &series[i]
		acc := &months[r.month-1]
		acc.add(r.normalized)
		r.averageNorm = resolve(acc.mean(), policy)
	}
}
