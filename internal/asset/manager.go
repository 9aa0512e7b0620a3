// Package asset coordinates the derivation engine with the row store. Every
// store-touching operation runs under one manager-wide lock so that the
// read-modify-recompute-replace cycle of row edits is never interleaved.
package asset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"SeasonalDesk/internal/calculator"
	"SeasonalDesk/internal/model"
	"SeasonalDesk/internal/recorder"
)

var (
	// ErrRowNotFound is returned when an update names an unknown row ID.
	ErrRowNotFound = errors.New("row not found")
	// ErrAssetRequired is returned for an empty asset name.
	ErrAssetRequired = errors.New("asset name is required")
)

// Metrics receives engine and store observations.
type Metrics interface {
	ObserveDerivation(in, out int)
	ObserveStore(op string, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ObserveDerivation(int, int) {}
func (nopMetrics) ObserveStore(string, time.Duration) {}

// Manager handles asset row operations with concurrency safety.
type Manager struct {
	mu      sync.Mutex
	rec     recorder.Recorder
	metrics Metrics
}

// NewManager creates a Manager over rec. A nil m disables metrics.
func NewManager(rec recorder.Recorder, m Metrics) *Manager {
	if m == nil {
		m = nopMetrics{}
	}
	return &Manager{rec: rec, metrics: m}
}

// Process derives rows without touching the store.
func (m *Manager) Process(rows []model.RawRow, policy model.NaNPolicy) []model.DerivedRow {
	out := calculator.Derive(rows, policy)
	m.metrics.ObserveDerivation(len(rows), len(out))
	if dropped := len(rows) - len(out); dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("rows with unparseable dates dropped")
	}
	return out
}

// Save appends derived rows for asset and returns a confirmation message.
func (m *Manager) Save(ctx context.Context, asset string, rows []model.DerivedRow) (string, error) {
	asset, err := normalizeAsset(asset)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	n, err := m.rec.SaveAsset(ctx, asset, rows)
	m.metrics.ObserveStore("save", time.Since(start))
	if err != nil {
		return "", fmt.Errorf("save asset %q: %w", asset, err)
	}
	log.Info().Str("asset", asset).Int("rows", n).Msg("asset saved")
	return fmt.Sprintf("Successfully saved %d rows for '%s'", n, asset), nil
}

// Assets lists stored asset names.
func (m *Manager) Assets(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.observe("assets", time.Now())
	return m.rec.Assets(ctx)
}

// AssetRows returns the stored rows of asset.
func (m *Manager) AssetRows(ctx context.Context, asset string) ([]model.StoredRow, error) {
	asset, err := normalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.observe("asset_rows", time.Now())
	return m.rec.AssetRows(ctx, asset)
}

// Stats summarizes the store.
func (m *Manager) Stats(ctx context.Context) (model.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.observe("stats", time.Now())
	return m.rec.Stats(ctx)
}

// DateRange returns the first and last stored dates of asset.
func (m *Manager) DateRange(ctx context.Context, asset string) (model.DateRange, error) {
	asset, err := normalizeAsset(asset)
	if err != nil {
		return model.DateRange{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.observe("date_range", time.Now())
	return m.rec.DateRange(ctx, asset)
}

// Clear removes every stored row.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.observe("clear", time.Now())
	if err := m.rec.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	log.Info().Msg("store cleared")
	return nil
}

// AddRow appends raw to the asset's base rows and re-derives the asset.
func (m *Manager) AddRow(ctx context.Context, asset string, raw model.RawRow) ([]model.DerivedRow, error) {
	return m.edit(ctx, asset, "add_row", func(base []model.StoredRow) ([]model.RawRow, error) {
		rows := baseRows(base)
		return append(rows, raw), nil
	})
}

// UpdateRow merges patch into the base row with the given ID and re-derives
// the asset.
func (m *Manager) UpdateRow(ctx context.Context, asset string, id int64, patch model.RawRow) ([]model.DerivedRow, error) {
	return m.edit(ctx, asset, "update_row", func(base []model.StoredRow) ([]model.RawRow, error) {
		rows := baseRows(base)
		for i, r := range base {
			if r.ID != id {
				continue
			}
			for k, v := range patch {
				rows[i][k] = v
			}
			return rows, nil
		}
		return nil, fmt.Errorf("row %d: %w", id, ErrRowNotFound)
	})
}

// DeleteRow drops the base row with the given ID and re-derives the asset.
// An unknown ID leaves the base rows unchanged.
func (m *Manager) DeleteRow(ctx context.Context, asset string, id int64) ([]model.DerivedRow, error) {
	return m.edit(ctx, asset, "delete_row", func(base []model.StoredRow) ([]model.RawRow, error) {
		rows := make([]model.RawRow, 0, len(base))
		for _, r := range base {
			if r.ID != id {
				rows = append(rows, r.Base())
			}
		}
		return rows, nil
	})
}

// edit runs one read-modify-recompute-replace cycle under the manager lock.
// Edited assets are always re-derived with zero replacement.
func (m *Manager) edit(ctx context.Context, asset, op string, modify func([]model.StoredRow) ([]model.RawRow, error)) ([]model.DerivedRow, error) {
	asset, err := normalizeAsset(asset)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.observe(op, time.Now())

	stored, err := m.rec.AssetRows(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("load asset %q: %w", asset, err)
	}
	raw, err := modify(stored)
	if err != nil {
		return nil, err
	}

	derived := m.Process(raw, model.PolicyReplace)
	if err := m.rec.ReplaceAsset(ctx, asset, derived); err != nil {
		return nil, fmt.Errorf("replace asset %q: %w", asset, err)
	}
	log.Info().Str("asset", asset).Str("op", op).Int("rows", len(derived)).Msg("asset re-derived")
	return derived, nil
}

func (m *Manager) observe(op string, start time.Time) {
	m.metrics.ObserveStore(op, time.Since(start))
}

func baseRows(stored []model.StoredRow) []model.RawRow {
	rows := make([]model.RawRow, len(stored))
	for i, r := range stored {
		rows[i] = r.Base()
	}
	return rows
}

func normalizeAsset(asset string) (string, error) {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return "", ErrAssetRequired
	}
	return asset, nil
}
