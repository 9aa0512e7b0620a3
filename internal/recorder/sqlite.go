package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"SeasonalDesk/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS asset_data (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	Date           TEXT,
	Open           REAL,
	High           REAL,
	Low            REAL,
	Close          REAL,
	"%change"      REAL,
	"M-no"         INTEGER,
	normalized     REAL,
	Average_Norm   REAL,
	True_Seasonal  REAL,
	asset          TEXT,
	processed_date TEXT
)`

const insertRow = `INSERT INTO asset_data
	(Date, Open, High, Low, Close, "%change", "M-no", normalized, Average_Norm, True_Seasonal, asset, processed_date)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`

const selectRows = `SELECT id, Date, Open, High, Low, Close, "%change", "M-no",
	normalized, Average_Norm, True_Seasonal, asset, processed_date
	FROM asset_data WHERE asset = ? ORDER BY Date, id`

// SQLiteRecorder persists asset rows to the asset_data table.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps transactions and pragmas on one handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate(ctx context.Context) error {
	stmts := []string{
		schema,
		`CREATE INDEX IF NOT EXISTS idx_asset_data_asset_date ON asset_data(asset, Date)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) SaveAsset(ctx context.Context, asset string, rows []model.DerivedRow) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if err := insertRows(ctx, tx, asset, rows); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save: %w", err)
	}
	return len(rows), nil
}

func (r *SQLiteRecorder) ReplaceAsset(ctx context.Context, asset string, rows []model.DerivedRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_data WHERE asset = ?`, asset); err != nil {
		return fmt.Errorf("delete asset rows: %w", err)
	}
	if err := insertRows(ctx, tx, asset, rows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, asset string, rows []model.DerivedRow) error {
	stmt, err := tx.PrepareContext(ctx, insertRow)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.Date, sqlValue(row.Open), sqlValue(row.High), sqlValue(row.Low), sqlValue(row.Close),
			sqlValue(row.PctChange), row.MonthNo, sqlValue(row.Normalized),
			sqlValue(row.AverageNorm), sqlValue(row.TrueSeasonal),
			asset, now,
		)
		if err != nil {
			return fmt.Errorf("insert row %s: %w", row.Date, err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Assets(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT asset FROM asset_data WHERE asset IS NOT NULL ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	assets := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *SQLiteRecorder) AssetRows(ctx context.Context, asset string) ([]model.StoredRow, error) {
	rows, err := r.db.QueryContext(ctx, selectRows, asset)
	if err != nil {
		return nil, fmt.Errorf("query asset rows: %w", err)
	}
	defer rows.Close()

	out := []model.StoredRow{}
	for rows.Next() {
		var (
			s                        model.StoredRow
			date, name, processed    sql.NullString
			open, high, low, cl, chg sql.NullFloat64
			norm, avg, seasonal      sql.NullFloat64
			month                    sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &date, &open, &high, &low, &cl, &chg, &month,
			&norm, &avg, &seasonal, &name, &processed); err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		s.Date = date.String
		s.Open, s.High, s.Low, s.Close = orNaN(open), orNaN(high), orNaN(low), orNaN(cl)
		s.PctChange = orNaN(chg)
		s.MonthNo = int(month.Int64)
		s.Normalized, s.AverageNorm, s.TrueSeasonal = orNaN(norm), orNaN(avg), orNaN(seasonal)
		s.Asset = name.String
		s.ProcessedDate = processed.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Stats(ctx context.Context) (model.Stats, error) {
	var (
		st     model.Stats
		lo, hi sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT asset), MIN(Date), MAX(Date) FROM asset_data`,
	).Scan(&st.TotalRecords, &st.AssetsCount, &lo, &hi)
	if err != nil {
		return st, fmt.Errorf("query stats: %w", err)
	}
	st.MinDate, st.MaxDate = strPtr(lo), strPtr(hi)
	return st, nil
}

func (r *SQLiteRecorder) DateRange(ctx context.Context, asset string) (model.DateRange, error) {
	var lo, hi sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MIN(Date), MAX(Date) FROM asset_data WHERE asset = ?`, asset,
	).Scan(&lo, &hi)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("query date range: %w", err)
	}
	return model.DateRange{MinDate: strPtr(lo), MaxDate: strPtr(hi)}, nil
}

func (r *SQLiteRecorder) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DROP TABLE IF EXISTS asset_data`); err != nil {
		return fmt.Errorf("drop asset_data: %w", err)
	}
	return r.migrate(ctx)
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

// sqlValue maps non-finite values to NULL.
func sqlValue(v float64) any {
	if !model.IsFinite(v) {
		return nil
	}
	return v
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
