// Package app wires configuration, input loading, the scan pipeline and the
// result sinks into one command run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yumyai/regionfinder/internal/config"
	"github.com/yumyai/regionfinder/logger"
	"github.com/yumyai/regionfinder/pkg/db"
	"github.com/yumyai/regionfinder/pkg/model"
	"github.com/yumyai/regionfinder/pkg/pipeline"
	"github.com/yumyai/regionfinder/pkg/report"
	"github.com/yumyai/regionfinder/pkg/signal"
	"github.com/yumyai/regionfinder/pkg/threshold"
)

// Exit statuses.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitUsage     = 2
	ExitIO        = 3
	ExitCancelled = 130
)

// Run executes one command line and returns the process exit status.
func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

// RunContext is Run with a context that stops the scan when cancelled.
func RunContext(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	// Try load env
	dotenvErr := godotenv.Load()

	cfg, err := config.ParseArgs(argv, stdout, stderr)
	if errors.Is(err, config.ErrExit) {
		return ExitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "regionfinder: %v\n", err)
		return ExitUsage
	}

	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		fmt.Fprintf(stderr, "regionfinder: init logger: %v\n", err)
		return ExitFailure
	}
	defer logger.Sync()

	if dotenvErr != nil {
		logger.Warn("No .env found, using local environment")
	}
	logger.Info("Start:", zap.String("Version", config.Version))
	logDefaults(cfg)

	if err := execute(ctx, cfg); err != nil {
		return exitStatus(err)
	}
	return ExitOK
}

func logDefaults(cfg config.Config) {
	for _, name := range cfg.Defaulted {
		switch name {
		case "max-cov":
			logger.Info("No maximal coverage given, using default", zap.String("mode", string(cfg.Params.Mode)), zap.Float64("max_cov", cfg.Params.MaxCovFraction))
		case "min-cov":
			logger.Info("No minimal coverage given, using default", zap.Float64("min_cov", cfg.Params.MinCovFraction))
		}
	}
}

// inputError marks failures reading the input table or contig list.
type inputError struct {
	err error
}

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

// exitStatus maps a run error onto an exit status. Input and sink failures
// are both I/O failures.
func exitStatus(err error) int {
	var ie *inputError
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("Run cancelled")
		return ExitCancelled
	case errors.As(err, &ie):
		logger.Error("Failed to read input", zap.Error(err))
	default:
		logger.Error("Failed to write results", zap.Error(err))
	}
	return ExitIO
}

func execute(ctx context.Context, cfg config.Config) (err error) {
	started := time.Now()

	sig, err := signal.Load(ctx, cfg.Input)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &inputError{err: err}
	}

	var expected []string
	if cfg.ContigList != "" {
		if expected, err = readContigList(cfg.ContigList); err != nil {
			return &inputError{err: err}
		}
		logger.Info("Contig list loaded", zap.String("path", cfg.ContigList), zap.Int("contigs", len(expected)))
	}

	tsv, err := report.Create(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := tsv.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	sinks := pipeline.MultiSink{tsv}

	if cfg.DBPath != "" {
		rdb, err := db.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer rdb.Close()

		run := model.Run{
			ID:          db.NewRunID(),
			StartedAt:   started,
			Input:       cfg.Input,
			InputDigest: sig.Digest,
			Assembly:    cfg.Assembly,
			Params:      cfg.Params,
		}
		if err := rdb.BeginRun(ctx, run); err != nil {
			return err
		}
		sinks = append(sinks, rdb)
	}

	calc := threshold.NewCalculator(sig, cfg.Params, cfg.Assembly)
	if cfg.Assembly == model.AssemblyShort {
		m := threshold.GlobalMeans(sig)
		logger.Info("Global means", zap.Float64("coverage", m.Coverage), zap.Float64("variant", m.Variant))
	}

	summary, err := pipeline.Run(ctx,
		pipeline.Config{Params: cfg.Params, Threads: cfg.Threads, Expected: expected},
		sig, calc, sinks)
	if err != nil {
		return err
	}

	logger.Info("Done",
		zap.Int("contigs", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("regions", summary.Regions),
		zap.Int64("covered_bases", summary.CoveredBases),
		zap.String("output_dir", cfg.OutputDir),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func readContigList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ids, err := signal.LoadContigList(f)
	if err != nil {
		return nil, fmt.Errorf("read contig list %s: %w", path, err)
	}
	return ids, nil
}
