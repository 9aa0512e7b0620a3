package recorder

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SeasonalDesk/internal/model"
)

func sampleRows() []model.DerivedRow {
	return []model.DerivedRow{
		{Date: "2023-01-03", Close: 110, PctChange: 10, MonthNo: 1, Normalized: 100, AverageNorm: 83.3, TrueSeasonal: 100},
		{Date: "2023-01-02", Close: 100, PctChange: math.NaN(), MonthNo: 1, Normalized: math.NaN(), AverageNorm: 0, TrueSeasonal: math.NaN()},
	}
}

// recorders runs the same contract against every implementation.
func recorders(t *testing.T) map[string]Recorder {
	t.Helper()
	sq, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "asset_data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Recorder{
		"sqlite": sq,
		"memory": NewMemoryRecorder(),
	}
}

func TestRecorder_SaveAndRead(t *testing.T) {
	ctx := context.Background()
	for name, rec := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			n, err := rec.SaveAsset(ctx, "GOLD", sampleRows())
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			rows, err := rec.AssetRows(ctx, "GOLD")
			require.NoError(t, err)
			require.Len(t, rows, 2)

			assert.Equal(t, "2023-01-02", rows[0].Date, "rows come back ordered by date")
			assert.True(t, math.IsNaN(rows[0].PctChange), "NULL reads back as NaN")
			assert.True(t, math.IsNaN(rows[0].TrueSeasonal))
			assert.Equal(t, 110.0, rows[1].Close)
			assert.Equal(t, 1, rows[1].MonthNo)
			assert.Equal(t, "GOLD", rows[1].Asset)
			assert.NotEmpty(t, rows[1].ProcessedDate)
			assert.NotZero(t, rows[0].ID)
			assert.NotEqual(t, rows[0].ID, rows[1].ID)
		})
	}
}

func TestRecorder_AssetsStatsAndRange(t *testing.T) {
	ctx := context.Background()
	for name, rec := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			st, err := rec.Stats(ctx)
			require.NoError(t, err)
			assert.Zero(t, st.TotalRecords)
			assert.Nil(t, st.MinDate)

			_, err = rec.SaveAsset(ctx, "SILVER", sampleRows())
			require.NoError(t, err)
			_, err = rec.SaveAsset(ctx, "GOLD", []model.DerivedRow{{Date: "2020-05-01", MonthNo: 5}})
			require.NoError(t, err)

			assets, err := rec.Assets(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"GOLD", "SILVER"}, assets)

			st, err = rec.Stats(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 3, st.TotalRecords)
			assert.EqualValues(t, 2, st.AssetsCount)
			require.NotNil(t, st.MinDate)
			assert.Equal(t, "2020-05-01", *st.MinDate)
			assert.Equal(t, "2023-01-03", *st.MaxDate)

			dr, err := rec.DateRange(ctx, "SILVER")
			require.NoError(t, err)
			assert.Equal(t, "2023-01-02", *dr.MinDate)
			assert.Equal(t, "2023-01-03", *dr.MaxDate)

			dr, err = rec.DateRange(ctx, "MISSING")
			require.NoError(t, err)
			assert.Nil(t, dr.MinDate)
			assert.Nil(t, dr.MaxDate)
		})
	}
}

func TestRecorder_ReplaceAndClear(t *testing.T) {
	ctx := context.Background()
	for name, rec := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			_, err := rec.SaveAsset(ctx, "GOLD", sampleRows())
			require.NoError(t, err)
			_, err = rec.SaveAsset(ctx, "OIL", sampleRows())
			require.NoError(t, err)

			require.NoError(t, rec.ReplaceAsset(ctx, "GOLD", []model.DerivedRow{{Date: "2024-02-02", Close: 1, MonthNo: 2}}))

			gold, err := rec.AssetRows(ctx, "GOLD")
			require.NoError(t, err)
			require.Len(t, gold, 1)
			assert.Equal(t, "2024-02-02", gold[0].Date)

			oil, err := rec.AssetRows(ctx, "OIL")
			require.NoError(t, err)
			assert.Len(t, oil, 2, "other assets are untouched")

			require.NoError(t, rec.Clear(ctx))
			assets, err := rec.Assets(ctx)
			require.NoError(t, err)
			assert.Empty(t, assets)

			_, err = rec.SaveAsset(ctx, "GOLD", sampleRows())
			assert.NoError(t, err, "store is usable after Clear")
		})
	}
}

func TestMemoryRecorder_Closed(t *testing.T) {
	rec := NewMemoryRecorder()
	require.NoError(t, rec.Close())
	_, err := rec.SaveAsset(context.Background(), "GOLD", sampleRows())
	assert.ErrorIs(t, err, ErrClosed)
}
