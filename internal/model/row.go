package model

import (
	"encoding/json"
	"math"
)

// Column names shared by the store schema, the JSON boundary and workbook
// export headers.
const (
	ColDate         = "Date"
	ColOpen         = "Open"
	ColHigh         = "High"
	ColLow          = "Low"
	ColClose        = "Close"
	ColPctChange    = "%change"
	ColMonthNo      = "M-no"
	ColNormalized   = "normalized"
	ColAverageNorm  = "Average_Norm"
	ColTrueSeasonal = "True_Seasonal"
)

// DerivedColumns lists the derived row columns in export order.
var DerivedColumns = []string{
	ColDate, ColOpen, ColHigh, ColLow, ColClose,
	ColPctChange, ColMonthNo, ColNormalized, ColAverageNorm, ColTrueSeasonal,
}

// NaNPolicy selects how non-finite derived values are reported.
type NaNPolicy int

const (
	// PolicyReplace coerces every non-finite derived value to 0.
	PolicyReplace NaNPolicy = iota
	// PolicyPreserve keeps NaN in the output.
	PolicyPreserve
)

// PolicyFor maps the boolean "replace NaN with zero" flag used by callers.
func PolicyFor(replaceNaN bool) NaNPolicy {
	if replaceNaN {
		return PolicyReplace
	}
	return PolicyPreserve
}

func (p NaNPolicy) String() string {
	if p == PolicyPreserve {
		return "preserve"
	}
	return "replace"
}

// DerivedRow is one fully derived observation. Date is an ISO calendar date.
type DerivedRow struct {
	Date         string
	Open         float64
	High         float64
	Low          float64
	Close        float64
	PctChange    float64
	MonthNo      int
	Normalized   float64
	AverageNorm  float64
	TrueSeasonal float64
}

// Base returns the row reduced to its raw Date/Open/High/Low/Close fields.
func (r DerivedRow) Base() RawRow {
	return RawRow{
		ColDate:  r.Date,
		ColOpen:  nullable(r.Open),
		ColHigh:  nullable(r.High),
		ColLow:   nullable(r.Low),
		ColClose: nullable(r.Close),
	}
}

// Values returns the row's cells in DerivedColumns order. Non-finite
// numbers are returned as nil.
func (r DerivedRow) Values() []any {
	return []any{
		r.Date,
		nullable(r.Open),
		nullable(r.High),
		nullable(r.Low),
		nullable(r.Close),
		nullable(r.PctChange),
		r.MonthNo,
		nullable(r.Normalized),
		nullable(r.AverageNorm),
		nullable(r.TrueSeasonal),
	}
}

// derivedJSON is the wire shape. JSON has no NaN, so non-finite values
// travel as null.
type derivedJSON struct {
	Date         string   `json:"Date"`
	Open         *float64 `json:"Open"`
	High         *float64 `json:"High"`
	Low          *float64 `json:"Low"`
	Close        *float64 `json:"Close"`
	PctChange    *float64 `json:"%change"`
	MonthNo      int      `json:"M-no"`
	Normalized   *float64 `json:"normalized"`
	AverageNorm  *float64 `json:"Average_Norm"`
	TrueSeasonal *float64 `json:"True_Seasonal"`
}

func (r DerivedRow) wire() derivedJSON {
	return derivedJSON{
		Date:         r.Date,
		Open:         finitePtr(r.Open),
		High:         finitePtr(r.High),
		Low:          finitePtr(r.Low),
		Close:        finitePtr(r.Close),
		PctChange:    finitePtr(r.PctChange),
		MonthNo:      r.MonthNo,
		Normalized:   finitePtr(r.Normalized),
		AverageNorm:  finitePtr(r.AverageNorm),
		TrueSeasonal: finitePtr(r.TrueSeasonal),
	}
}

func (w derivedJSON) row() DerivedRow {
	return DerivedRow{
		Date:         w.Date,
		Open:         fromPtr(w.Open),
		High:         fromPtr(w.High),
		Low:          fromPtr(w.Low),
		Close:        fromPtr(w.Close),
		PctChange:    fromPtr(w.PctChange),
		MonthNo:      w.MonthNo,
		Normalized:   fromPtr(w.Normalized),
		AverageNorm:  fromPtr(w.AverageNorm),
		TrueSeasonal: fromPtr(w.TrueSeasonal),
	}
}

func (r DerivedRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

func (r *DerivedRow) UnmarshalJSON(data []byte) error {
	var w derivedJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = w.row()
	return nil
}

// StoredRow is a DerivedRow as persisted by a Row Sink.
type StoredRow struct {
	ID            int64
	Asset         string
	ProcessedDate string
	DerivedRow
}

type storedJSON struct {
	ID int64 `json:"id"`
	derivedJSON
	Asset         string `json:"asset,omitempty"`
	ProcessedDate string `json:"processed_date,omitempty"`
}

func (s StoredRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(storedJSON{
		ID:            s.ID,
		derivedJSON:   s.DerivedRow.wire(),
		Asset:         s.Asset,
		ProcessedDate: s.ProcessedDate,
	})
}

func (s *StoredRow) UnmarshalJSON(data []byte) error {
	var w storedJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.ID = w.ID
	s.Asset = w.Asset
	s.ProcessedDate = w.ProcessedDate
	s.DerivedRow = w.derivedJSON.row()
	return nil
}

// Stats summarizes the whole store.
type Stats struct {
	TotalRecords int64   `json:"total_records"`
	AssetsCount  int64   `json:"assets_count"`
	MinDate      *string `json:"min_date"`
	MaxDate      *string `json:"max_date"`
}

// DateRange is the first and last stored date of one asset.
type DateRange struct {
	MinDate *string `json:"min_date"`
	MaxDate *string `json:"max_date"`
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePtr(v float64) *float64 {
	if !IsFinite(v) {
		return nil
	}
	return &v
}

func fromPtr(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func nullable(v float64) any {
	if !IsFinite(v) {
		return nil
	}
	return v
}
