package recorder

import (
	"context"
	"errors"

	"SeasonalDesk/internal/model"
)

// ErrClosed is returned by operations on a closed recorder.
var ErrClosed = errors.New("recorder closed")

// Recorder persists derived rows tagged by asset name. Implementations
// assign row IDs and processed timestamps; rows are returned ordered by
// date, then by ID.
type Recorder interface {
	// SaveAsset appends rows for asset and returns how many were written.
	SaveAsset(ctx context.Context, asset string, rows []model.DerivedRow) (int, error)
	// ReplaceAsset atomically swaps every stored row of asset for rows.
	ReplaceAsset(ctx context.Context, asset string, rows []model.DerivedRow) error
	Assets(ctx context.Context) ([]string, error)
	AssetRows(ctx context.Context, asset string) ([]model.StoredRow, error)
	Stats(ctx context.Context) (model.Stats, error)
	DateRange(ctx context.Context, asset string) (model.DateRange, error)
	// Clear drops every stored row.
	Clear(ctx context.Context) error
	Close() error
}
