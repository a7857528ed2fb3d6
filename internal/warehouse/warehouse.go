// Package warehouse opens the database that serves gold.cleaned_dataset for
// the configured driver.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/storage/s3"
	"github.com/ridelens/ridelens/internal/warehouse/duckdb"
	"github.com/ridelens/ridelens/internal/warehouse/postgres"
)

type Warehouse struct {
	DB *sql.DB
	// Dialect names the SQL dialect in completion prompts.
	Dialect string
	// TxOptions is nil when read-only transactions are available.
	TxOptions *sql.TxOptions

	close func() error
}

func (w *Warehouse) Close() error {
	if w.close == nil {
		return w.DB.Close()
	}
	return w.close()
}

func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Warehouse, error) {
	switch cfg.Warehouse.Driver {
	case config.WarehouseDriverPostgres:
		db, err := postgres.Open(ctx, postgres.ConfigFromWarehouse(cfg.Warehouse))
		if err != nil {
			return nil, err
		}
		return &Warehouse{DB: db, Dialect: "PostgreSQL"}, nil

	case config.WarehouseDriverDuckDB:
		store, err := s3.New(ctx, s3.ConfigFromDataset(cfg.Dataset))
		if err != nil {
			return nil, fmt.Errorf("open dataset store: %w", err)
		}
		db, err := duckdb.Open(ctx, store, duckdb.Config{
			CacheDir:     cfg.Dataset.CacheDir,
			MaxOpenConns: cfg.Warehouse.MaxOpenConns,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return &Warehouse{DB: db.DB, Dialect: "DuckDB", TxOptions: db.TxOptions(), close: db.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Warehouse.Driver)
	}
}
