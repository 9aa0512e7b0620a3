package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"SeasonalDesk/internal/api"
	"SeasonalDesk/internal/asset"
	"SeasonalDesk/internal/collector"
	"SeasonalDesk/internal/config"
	"SeasonalDesk/internal/logger"
	"SeasonalDesk/internal/metrics"
	"SeasonalDesk/internal/recorder"
	"SeasonalDesk/internal/scheduler"
)

func main() {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("setup logger")
	}
	log.Info().Msg("SeasonalDesk starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Server.Addr).Msg("listen")
	}
	if err := run(ctx, cfg, ln); err != nil {
		log.Fatal().Err(err).Msg("SeasonalDesk failed")
	}
	log.Info().Msg("SeasonalDesk stopped")
}

// run wires the service and serves HTTP on ln until ctx is cancelled or the
// server fails.
func run(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := openSQLite(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using memory")
			rec = recorder.NewMemoryRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewMemoryRecorder()
	}
	defer rec.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	mgr := asset.NewManager(rec, m)

	fetcher := collector.NewYahooFetcher(cfg.Source.BaseURL, cfg.Source.Proxy, cfg.Source.Timeout)
	log.Info().Str("source", fetcher.Name()).Msg("quote source ready")
	col := collector.NewCollector(fetcher)

	sched := scheduler.NewScheduler(ctx, mgr, cfg.Snapshot.Dir, cfg.Snapshot.Concurrency, m)
	if cfg.Snapshot.Cron != "" {
		if err := sched.Register(cfg.Snapshot.Cron); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, writing snapshots now")
		go func() {
			if _, err := sched.RunNow(); err != nil {
				log.Error().Err(err).Msg("startup snapshot")
			}
		}()
	}

	srv := &http.Server{
		Handler:      api.NewServer(mgr, col, reg, cfg.ReplaceNaN()).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, stopping")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return serveErr
}

func openSQLite(path string) (*recorder.SQLiteRecorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return recorder.NewSQLiteRecorder(path)
}
