// Command derive runs the seasonal derivation once over a workbook or a
// Yahoo Finance symbol and writes the result as xlsx or JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"SeasonalDesk/internal/asset"
	"SeasonalDesk/internal/collector"
	"SeasonalDesk/internal/logger"
	"SeasonalDesk/internal/model"
	"SeasonalDesk/internal/recorder"
	"SeasonalDesk/internal/workbook"
)

func main() {
	if err := logger.Setup("info", "console", os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("derive")
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	in := fs.String("in", "", "input xlsx workbook (first sheet, Date/Open/High/Low/Close headers)")
	symbol := fs.String("symbol", "", "fetch daily bars for this Yahoo Finance symbol instead of -in")
	lookback := fs.String("range", "5y", "lookback range for -symbol, e.g. 1y, 5y, max")
	out := fs.String("out", "", "output path; .xlsx writes a workbook, anything else JSON (default stdout JSON)")
	keepNaN := fs.Bool("keep-nan", false, "keep undefined values as NaN instead of replacing them with 0")
	db := fs.String("db", "", "also save the rows to this SQLite database")
	assetName := fs.String("asset", "", "asset name used with -db (defaults to -symbol)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*in == "") == (*symbol == "") {
		return errors.New("exactly one of -in or -symbol is required")
	}

	var (
		raw []model.RawRow
		err error
	)
	if *in != "" {
		raw, err = workbook.ReadFile(*in)
	} else {
		fetcher := collector.NewYahooFetcher("", os.Getenv("HTTPS_PROXY"), 30*time.Second)
		raw, err = collector.NewCollector(fetcher).RawRows(ctx, *symbol, *lookback)
	}
	if err != nil {
		return err
	}

	var rec recorder.Recorder = recorder.NewMemoryRecorder()
	if *db != "" {
		sr, err := recorder.NewSQLiteRecorder(*db)
		if err != nil {
			return err
		}
		rec = sr
	}
	defer rec.Close()

	mgr := asset.NewManager(rec, nil)
	rows := mgr.Process(raw, model.PolicyFor(!*keepNaN))
	log.Info().Int("input", len(raw)).Int("derived", len(rows)).Msg("derivation done")

	if *db != "" {
		name := *assetName
		if name == "" {
			name = *symbol
		}
		msg, err := mgr.Save(ctx, name, rows)
		if err != nil {
			return err
		}
		log.Info().Msg(msg)
	}

	return write(*out, stdout, rows)
}

// createOutput opens the -out destination.
var createOutput = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

func write(path string, stdout io.Writer, rows []model.DerivedRow) error {
	if path == "" {
		return encode(stdout, path, rows)
	}
	f, err := createOutput(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := encode(f, path, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func encode(w io.Writer, path string, rows []model.DerivedRow) error {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return workbook.WriteDerived(w, rows)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
