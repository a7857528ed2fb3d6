// Package duckdb materializes gold.cleaned_dataset as a local DuckDB view
// over the Parquet files in the dataset bucket.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/ridelens/ridelens/internal/schema"
	"github.com/ridelens/ridelens/internal/storage"
)

const databaseFile = "warehouse.duckdb"

type Config struct {
	// CacheDir keeps the downloaded files and the database between runs.
	// Empty means a temporary directory removed on Close.
	CacheDir     string
	MaxOpenConns int
	Logger       *slog.Logger
}

// Database is a read-only DuckDB handle. The driver has no read-only
// transactions, so the database file itself is opened read-only.
type Database struct {
	DB    *sql.DB
	Files []string

	dir     string
	ownsDir bool
}

// TxOptions are the transaction options the executor must use for this
// driver.
func (d *Database) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{}
}

func (d *Database) Close() error {
	err := d.DB.Close()
	if d.ownsDir {
		err = errors.Join(err, os.RemoveAll(d.dir))
	}
	return err
}

func Open(ctx context.Context, store storage.ObjectStore, cfg Config) (*Database, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dir, ownsDir := strings.TrimSpace(cfg.CacheDir), false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "ridelens-warehouse-")
		if err != nil {
			return nil, fmt.Errorf("create warehouse temp dir: %w", err)
		}
		dir, ownsDir = tmp, true
	}
	cleanup := func() {
		if ownsDir {
			_ = os.RemoveAll(dir)
		}
	}

	start := time.Now()
	files, err := download(ctx, store, filepath.Join(dir, "files"))
	if err != nil {
		cleanup()
		return nil, err
	}

	dbPath := filepath.Join(dir, databaseFile)
	if err := build(ctx, dbPath, files); err != nil {
		cleanup()
		return nil, err
	}

	db, err := sql.Open("duckdb", dbPath+"?access_mode=read_only")
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open duckdb read-only: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		cleanup()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	logger.Info("duckdb warehouse ready",
		slog.String("path", dbPath),
		slog.Int("files", len(files)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return &Database{DB: db, Files: files, dir: dir, ownsDir: ownsDir}, nil
}

func download(ctx context.Context, store storage.ObjectStore, dir string) ([]string, error) {
	objects, err := store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list dataset files: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear local dataset dir: %w", err)
	}

	paths := make([]string, 0, len(objects))
	for _, object := range objects {
		if !storage.IsParquetKey(object.Key) {
			continue
		}
		reader, err := store.Get(ctx, object.Key)
		if err != nil {
			return nil, fmt.Errorf("get object %q: %w", object.Key, err)
		}
		localPath := filepath.Join(dir, localName(object.Key))
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			return nil, fmt.Errorf("write local parquet file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return nil, fmt.Errorf("close object %q: %w", object.Key, err)
		}
		paths = append(paths, localPath)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no dataset files found")
	}
	return paths, nil
}

func build(ctx context.Context, dbPath string, files []string) error {
	for _, suffix := range []string{"", ".wal"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale database: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	schemaName, _, _ := strings.Cut(schema.TripDataset.Table, ".")
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + schemaName,
		ViewSQL(schema.TripDataset, files),
	}
	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("build warehouse view: %w", err)
		}
	}
	return db.Close()
}

// ViewSQL selects the descriptor's columns from the Parquet files, typed as
// the descriptor declares them.
func ViewSQL(descriptor schema.Descriptor, files []string) string {
	columns := make([]string, 0, len(descriptor.Columns))
	for _, col := range descriptor.Columns {
		columns = append(columns, columnExpr(col))
	}
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT %s FROM read_parquet(%s)",
		descriptor.Table, strings.Join(columns, ", "), quoteStringArray(files))
}

func columnExpr(col schema.Column) string {
	switch strings.ToUpper(col.Type) {
	case "DATE", "TIME", "INTEGER":
		return fmt.Sprintf("CAST(%s AS %s) AS %s", col.Name, strings.ToUpper(col.Type), col.Name)
	case "DECIMAL":
		return fmt.Sprintf("CAST(%s AS DECIMAL(18,%d)) AS %s", col.Name, decimalScale(col.Name), col.Name)
	default:
		return col.Name
	}
}

func decimalScale(column string) int {
	switch column {
	case "driver_rating", "customer_rating":
		return 1
	case "revenue_per_km":
		return 4
	default:
		return 2
	}
}
