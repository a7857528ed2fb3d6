package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/dataset"
	"github.com/ridelens/ridelens/internal/observability"
	"github.com/ridelens/ridelens/internal/storage"
	"github.com/ridelens/ridelens/internal/storage/memory"
	s3store "github.com/ridelens/ridelens/internal/storage/s3"
)

type options struct {
	csvPath     string
	generate    int
	seed        int64
	start       string
	days        int
	batchID     string
	rowsPerFile int
	replace     bool
	dryRun      bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv("ridelens-load")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("dataset load failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("ridelens-load", flag.ContinueOnError)
	fs.StringVar(&opts.csvPath, "csv", "", "cleaned trips CSV to load")
	fs.IntVar(&opts.generate, "generate", 0, "number of synthetic trips to generate instead of reading a CSV")
	fs.Int64Var(&opts.seed, "seed", 1, "random seed for -generate")
	fs.StringVar(&opts.start, "start", "2024-01-01", "first booking date for -generate (YYYY-MM-DD)")
	fs.IntVar(&opts.days, "days", 90, "number of booking days for -generate")
	fs.StringVar(&opts.batchID, "batch-id", "", "batch id used in file names (default: current UTC timestamp)")
	fs.IntVar(&opts.rowsPerFile, "rows-per-file", dataset.DefaultRowsPerFile, "maximum trips per Parquet file")
	fs.BoolVar(&opts.replace, "replace", false, "remove existing dataset files before uploading")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "encode into memory without touching the dataset bucket")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	switch {
	case opts.csvPath == "" && opts.generate <= 0:
		return options{}, fmt.Errorf("one of -csv or -generate is required")
	case opts.csvPath != "" && opts.generate > 0:
		return options{}, fmt.Errorf("-csv and -generate are mutually exclusive")
	case opts.days <= 0:
		return options{}, fmt.Errorf("-days must be > 0")
	}
	return opts, nil
}

func run(ctx context.Context, cfg config.Config, opts options, logger *slog.Logger) error {
	trips, err := readTrips(opts)
	if err != nil {
		return err
	}

	var store storage.ObjectStore
	if opts.dryRun {
		store = memory.New()
	} else {
		s3, err := s3store.New(ctx, s3store.ConfigFromDataset(cfg.Dataset))
		if err != nil {
			return fmt.Errorf("open dataset store: %w", err)
		}
		store = s3
	}

	publisher, err := dataset.NewPublisher(store, logger)
	if err != nil {
		return err
	}
	result, err := publisher.Publish(ctx, trips, dataset.PublishOptions{
		BatchID:     opts.batchID,
		RowsPerFile: opts.rowsPerFile,
		Replace:     opts.replace,
	})
	if err != nil {
		return err
	}

	var bytes int64
	for _, file := range result.Files {
		bytes += file.Size
	}
	logger.Info("dataset load finished",
		slog.Bool("dry_run", opts.dryRun),
		slog.String("bucket", cfg.Dataset.Bucket),
		slog.String("prefix", cfg.Dataset.Prefix),
		slog.Int("trips", result.Trips),
		slog.Int("files", len(result.Files)),
		slog.Int64("bytes", bytes),
		slog.Int("removed", result.Removed),
	)
	return nil
}

func readTrips(opts options) ([]dataset.Trip, error) {
	if opts.generate > 0 {
		start, err := time.Parse(time.DateOnly, opts.start)
		if err != nil {
			return nil, fmt.Errorf("invalid -start %q: %w", opts.start, err)
		}
		return dataset.NewGenerator(opts.seed, start, opts.days).Batch(opts.generate), nil
	}

	file, err := os.Open(opts.csvPath)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = file.Close() }()
	return dataset.ReadCSV(file)
}
