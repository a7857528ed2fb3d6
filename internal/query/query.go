package query

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTimeout = errors.New("query timed out")
	ErrBusy    = errors.New("query capacity exhausted")
)

// ExecutionError is a failure reported by the warehouse while running a
// statement. Err carries the driver's message unchanged.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Wrap marks err as an execution failure of op unless it already carries a
// more specific classification.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrBusy) {
		return err
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	return &ExecutionError{Op: op, Err: err}
}

type Result struct {
	Columns  []string
	Rows     []Row
	Duration time.Duration
}

type Executor interface {
	Execute(ctx context.Context, sql string) (Result, error)
}
