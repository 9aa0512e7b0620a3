package recorder

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"SeasonalDesk/internal/model"
)

// MemoryRecorder keeps rows in process memory. It is used when no SQLite
// path is configured and in tests.
type MemoryRecorder struct {
	mu     sync.RWMutex
	rows   []model.StoredRow
	nextID int64
	closed bool
}

func NewMemoryRecorder() *MemoryRecorder { return &MemoryRecorder{nextID: 1} }

func (m *MemoryRecorder) SaveAsset(_ context.Context, asset string, rows []model.DerivedRow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.append(asset, rows)
	return len(rows), nil
}

func (m *MemoryRecorder) ReplaceAsset(_ context.Context, asset string, rows []model.DerivedRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.rows = slices.DeleteFunc(m.rows, func(s model.StoredRow) bool { return s.Asset == asset })
	m.append(asset, rows)
	return nil
}

func (m *MemoryRecorder) append(asset string, rows []model.DerivedRow) {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range rows {
		m.rows = append(m.rows, model.StoredRow{
			ID:            m.nextID,
			Asset:         asset,
			ProcessedDate: now,
			DerivedRow:    r,
		})
		m.nextID++
	}
}

func (m *MemoryRecorder) Assets(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	assets := []string{}
	for _, r := range m.rows {
		if !slices.Contains(assets, r.Asset) {
			assets = append(assets, r.Asset)
		}
	}
	slices.Sort(assets)
	return assets, nil
}

func (m *MemoryRecorder) AssetRows(_ context.Context, asset string) ([]model.StoredRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := []model.StoredRow{}
	for _, r := range m.rows {
		if r.Asset == asset {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.StoredRow) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *MemoryRecorder) Stats(_ context.Context) (model.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return model.Stats{}, ErrClosed
	}
	st := model.Stats{TotalRecords: int64(len(m.rows))}
	seen := make(map[string]struct{})
	var dates []string
	for _, r := range m.rows {
		seen[r.Asset] = struct{}{}
		dates = append(dates, r.Date)
	}
	st.AssetsCount = int64(len(seen))
	st.MinDate, st.MaxDate = bounds(dates)
	return st, nil
}

func (m *MemoryRecorder) DateRange(_ context.Context, asset string) (model.DateRange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return model.DateRange{}, ErrClosed
	}
	var dates []string
	for _, r := range m.rows {
		if r.Asset == asset {
			dates = append(dates, r.Date)
		}
	}
	lo, hi := bounds(dates)
	return model.DateRange{MinDate: lo, MaxDate: hi}, nil
}

func (m *MemoryRecorder) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.rows = nil
	return nil
}

func (m *MemoryRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func bounds(dates []string) (lo, hi *string) {
	if len(dates) == 0 {
		return nil, nil
	}
	first, last := slices.Min(dates), slices.Max(dates)
	return &first, &last
}
