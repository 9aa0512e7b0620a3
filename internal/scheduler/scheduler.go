package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"SeasonalDesk/internal/model"
	"SeasonalDesk/internal/workbook"
)

// AssetSource lists stored assets and their rows.
type AssetSource interface {
	Assets(ctx context.Context) ([]string, error)
	AssetRows(ctx context.Context, asset string) ([]model.StoredRow, error)
}

// Metrics receives snapshot outcomes.
type Metrics interface {
	ObserveSnapshot(status string)
}

// Scheduler exports workbook snapshots of every stored asset on a cron
// schedule.
type Scheduler struct {
	Cron        *cron.Cron
	Source      AssetSource
	Metrics     Metrics
	Dir         string
	Concurrency int
	Ctx         context.Context

	now func() time.Time
}

// NewScheduler creates a new Scheduler writing snapshots into dir, at most
// concurrency workbooks at a time. m may be nil.
func NewScheduler(ctx context.Context, src AssetSource, dir string, concurrency int, m Metrics) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds()),
		Source:      src,
		Metrics:     m,
		Dir:         dir,
		Concurrency: concurrency,
		Ctx:         ctx,
		now:         time.Now,
	}
}

// Register schedules the snapshot job. spec has a leading seconds field.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running snapshot to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes the snapshot immediately and returns the written paths.
func (s *Scheduler) RunNow() ([]string, error) {
	return s.Snapshot(s.Ctx)
}

func (s *Scheduler) snapshotTask() {
	log.Info().Msg("running snapshot task")
	paths, err := s.Snapshot(s.Ctx)
	if err != nil {
		log.Error().Err(err).Int("written", len(paths)).Msg("snapshot task")
		return
	}
	log.Info().Int("written", len(paths)).Msg("snapshot task done")
}

// Snapshot writes one <asset>_<YYYYMMDD>.xlsx per stored asset. A failing
// asset is logged and counted; the others are still written, and the
// failures are returned joined alongside the written paths.
func (s *Scheduler) Snapshot(ctx context.Context) ([]string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	assets, err := s.Source.Assets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	names := fileNames(assets)
	stamp := s.now().Format("20060102")
	var (
		mu       sync.Mutex
		paths    []string
		failures []error
		g        errgroup.Group
	)
	g.SetLimit(s.Concurrency)

	for _, asset := range assets {
		g.Go(func() error {
			path := filepath.Join(s.Dir, fmt.Sprintf("%s_%s.xlsx", names[asset], stamp))
			if err := s.exportAsset(ctx, asset, path); err != nil {
				log.Error().Err(err).Str("asset", asset).Msg("snapshot export failed")
				s.observe("error")
				mu.Lock()
				failures = append(failures, fmt.Errorf("asset %q: %w", asset, err))
				mu.Unlock()
				return nil
			}
			s.observe("ok")
			mu.Lock()
			paths = append(paths, path)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.Sort(paths)
	return paths, errors.Join(failures...)
}

func (s *Scheduler) exportAsset(ctx context.Context, asset, path string) error {
	rows, err := s.Source.AssetRows(ctx, asset)
	if err != nil {
		return fmt.Errorf("load rows: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := workbook.WriteStored(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Scheduler) observe(status string) {
	if s.Metrics != nil {
		s.Metrics.ObserveSnapshot(status)
	}
}

// fileSafe replaces characters that are not allowed in file names.
func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// fileNames maps every asset to a distinct file name stem. Names that need
// no sanitizing keep their stem; a sanitized name that collides with one
// already taken gets a _2, _3, ... suffix. Stems are compared
// case-insensitively so they stay distinct on case-folding filesystems.
func fileNames(assets []string) map[string]string {
	sorted := slices.Clone(assets)
	slices.SortStableFunc(sorted, func(a, b string) int {
		ca, cb := fileSafe(a) == a, fileSafe(b) == b
		switch {
		case ca && !cb:
			return -1
		case !ca && cb:
			return 1
		}
		return strings.Compare(a, b)
	})

	taken := make(map[string]bool, len(sorted))
	out := make(map[string]string, len(sorted))
	for _, a := range sorted {
		stem := fileSafe(a)
		for n := 2; taken[strings.ToLower(stem)]; n++ {
			stem = fmt.Sprintf("%s_%d", fileSafe(a), n)
		}
		taken[strings.ToLower(stem)] = true
		out[a] = stem
	}
	return out
}
