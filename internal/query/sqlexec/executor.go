// Package sqlexec runs ad-hoc statements against a database/sql warehouse.
package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ridelens/ridelens/internal/query"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxConcurrent = 8
)

type Options struct {
	Timeout       time.Duration
	MaxConcurrent int
	// TxOptions defaults to a read-only transaction. Drivers that cannot
	// begin read-only transactions pass an explicit value and enforce
	// read-only access at the database level instead.
	TxOptions *sql.TxOptions
}

type Executor struct {
	db        *sql.DB
	timeout   time.Duration
	slots     *semaphore.Weighted
	txOptions *sql.TxOptions
}

var _ query.Executor = (*Executor)(nil)

func New(db *sql.DB, opts Options) (*Executor, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	txOptions := opts.TxOptions
	if txOptions == nil {
		txOptions = &sql.TxOptions{ReadOnly: true}
	}
	return &Executor{
		db:        db,
		timeout:   opts.Timeout,
		slots:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		txOptions: txOptions,
	}, nil
}

// Execute runs statement verbatim, without parameter binding, and returns
// every row it produces. The transaction is always rolled back.
func (e *Executor) Execute(ctx context.Context, statement string) (query.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.slots.Acquire(ctx, 1); err != nil {
		return query.Result{}, fmt.Errorf("%w: %v", query.ErrBusy, err)
	}
	defer e.slots.Release(1)

	start := time.Now()
	result, err := e.run(ctx, statement)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return query.Result{}, fmt.Errorf("%w after %s", query.ErrTimeout, e.timeout)
		}
		return query.Result{}, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Executor) run(ctx context.Context, statement string) (query.Result, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return query.Result{}, query.Wrap("acquire connection", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, e.txOptions)
	if err != nil {
		return query.Result{}, query.Wrap("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, statement)
	if err != nil {
		return query.Result{}, query.Wrap("execute query", err)
	}
	defer func() { _ = rows.Close() }()

	return collect(rows)
}

func collect(rows *sql.Rows) (query.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, query.Wrap("query columns", err)
	}
	columns = query.UniqueNames(columns)
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return query.Result{}, query.Wrap("query column types", err)
	}
	typeNames := make([]string, len(columns))
	for i, columnType := range columnTypes {
		if i < len(typeNames) {
			typeNames[i] = columnType.DatabaseTypeName()
		}
	}

	resultRows := make([]query.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, query.Wrap("scan row", err)
		}
		row := make(query.Row, len(columns))
		for i, name := range columns {
			row[i] = query.Field{Name: name, Value: query.FromDriver(values[i], typeNames[i])}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, query.Wrap("iterate rows", err)
	}

	return query.Result{Columns: columns, Rows: resultRows}, nil
}
