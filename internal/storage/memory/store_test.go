package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ridelens/ridelens/internal/storage"
)

func TestStoreRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	info, err := store.Put(ctx, "/month=2024-01/part-a-00000.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Key != "month=2024-01/part-a-00000.parquet" || info.Size != 3 || info.ETag == "" {
		t.Fatalf("info = %+v", info)
	}

	reader, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, _ := io.ReadAll(reader)
	if string(data) != "abc" {
		t.Fatalf("data = %q", data)
	}

	if err := store.Delete(ctx, info.Key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Stat(ctx, info.Key); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v", err)
	}
	if _, err := store.Get(ctx, info.Key); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestStoreListFiltersByPrefix(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, key := range []string{"month=2024-02/b.parquet", "month=2024-01/a.parquet", "month=2024-010/c.parquet"} {
		if _, err := store.Put(ctx, key, bytes.NewBufferString("x"), 1, storage.PutOptions{}); err != nil {
			t.Fatalf("Put(%q) error = %v", key, err)
		}
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].Key != "month=2024-01/a.parquet" {
		t.Fatalf("all = %+v", all)
	}

	january, err := store.List(ctx, "month=2024-01")
	if err != nil {
		t.Fatalf("List(prefix) error = %v", err)
	}
	if len(january) != 1 || january[0].Key != "month=2024-01/a.parquet" {
		t.Fatalf("january = %+v", january)
	}
}
