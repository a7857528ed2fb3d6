// Package storage abstracts the object store that holds the trip dataset's
// Parquet files.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// ParquetContentType is attached to uploaded dataset files.
const ParquetContentType = "application/vnd.apache.parquet"

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

// ObjectStore keys are relative to the store's configured prefix.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	// List returns every object under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
