package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/storage"
)

func TestPutUsesPrefixAndParquetContentType(t *testing.T) {
	fake := &fakeClient{}
	store, err := NewWithClient("bucket-a", "/gold/cleaned_dataset/", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	info, err := store.Put(context.Background(), "/month=2024-03/part-b1-00000.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastPutBucket != "bucket-a" {
		t.Fatalf("bucket = %q", fake.lastPutBucket)
	}
	if fake.lastPutKey != "gold/cleaned_dataset/month=2024-03/part-b1-00000.parquet" {
		t.Fatalf("key = %q", fake.lastPutKey)
	}
	if fake.lastContentType != storage.ParquetContentType {
		t.Fatalf("content type = %q", fake.lastContentType)
	}
	if info.Key != "month=2024-03/part-b1-00000.parquet" {
		t.Fatalf("returned key = %q", info.Key)
	}
}

func TestPutRejectsPathTraversal(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", &fakeClient{})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	for _, key := range []string{"../secrets.txt", "a/../../b", ".."} {
		if _, err := store.Put(context.Background(), key, bytes.NewBufferString("x"), 1, storage.PutOptions{}); err == nil {
			t.Fatalf("expected path traversal validation error for %q", key)
		}
	}
}

func TestListStripsPrefixAndSorts(t *testing.T) {
	fake := &fakeClient{listed: []storage.ObjectInfo{
		{Key: "gold/cleaned_dataset/month=2024-02/part-b-00000.parquet", Size: 20},
		{Key: "gold/cleaned_dataset/month=2024-01/part-a-00000.parquet", Size: 10},
	}}
	store, err := NewWithClient("bucket-a", "gold/cleaned_dataset", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	objects, err := store.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if fake.lastListPrefix != "gold/cleaned_dataset/" {
		t.Fatalf("list prefix = %q", fake.lastListPrefix)
	}
	if len(objects) != 2 || objects[0].Key != "month=2024-01/part-a-00000.parquet" || objects[1].Size != 20 {
		t.Fatalf("objects = %+v", objects)
	}

	if _, err := store.List(context.Background(), "month=2024-01"); err != nil {
		t.Fatalf("List(sub) error = %v", err)
	}
	if fake.lastListPrefix != "gold/cleaned_dataset/month=2024-01/" {
		t.Fatalf("sub list prefix = %q", fake.lastListPrefix)
	}
}

func TestListMissingBucketIsNotFound(t *testing.T) {
	store, err := NewWithClient("bucket-a", "", &fakeClient{listErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.List(context.Background(), ""); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("List() error = %v", err)
	}
}

func TestGetMapsNotFound(t *testing.T) {
	store, err := NewWithClient("bucket-a", "p", &fakeClient{getErr: storage.ErrObjectNotFound})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "missing.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeClient{bucketExists: false}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if !fake.createBucketCalled {
		t.Fatal("expected CreateBucket to be called")
	}
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	fake := &fakeClient{deleteErr: storage.ErrObjectNotFound}
	store, err := NewWithClient("bucket-a", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := store.Delete(context.Background(), "missing/file.parquet"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	endpoint, secure, err := parseEndpoint("https://minio.example.com", false)
	if err != nil {
		t.Fatalf("parseEndpoint() error = %v", err)
	}
	if endpoint != "minio.example.com" || !secure {
		t.Fatalf("endpoint/secure = %q/%v", endpoint, secure)
	}
	endpoint, secure, err = parseEndpoint("localhost:9000", false)
	if err != nil || endpoint != "localhost:9000" || secure {
		t.Fatalf("endpoint/secure/err = %q/%v/%v", endpoint, secure, err)
	}
	if _, _, err := parseEndpoint("http://", false); err == nil {
		t.Fatal("expected missing host error")
	}
}

func TestConfigFromDataset(t *testing.T) {
	cfg := ConfigFromDataset(config.DatasetConfig{Endpoint: "minio:9000", Bucket: "ridelens", Prefix: "gold", UseSSL: true})
	if cfg.Endpoint != "minio:9000" || cfg.Bucket != "ridelens" || cfg.Prefix != "gold" || !cfg.UseSSL {
		t.Fatalf("ConfigFromDataset() = %+v", cfg)
	}
}

type fakeClient struct {
	lastPutBucket      string
	lastPutKey         string
	lastContentType    string
	lastListPrefix     string
	listed             []storage.ObjectInfo
	listErr            error
	getErr             error
	bucketExists       bool
	createBucketCalled bool
	deleteErr          error
}

func (f *fakeClient) Put(_ context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	f.lastPutBucket = bucket
	f.lastPutKey = key
	f.lastContentType = contentType
	_, _ = io.Copy(io.Discard, reader)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeClient) Get(_ context.Context, _, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeClient) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC()}, nil
}

func (f *fakeClient) Delete(_ context.Context, _, _ string) error {
	return f.deleteErr
}

func (f *fakeClient) List(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	f.lastListPrefix = prefix
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]storage.ObjectInfo, len(f.listed))
	copy(out, f.listed)
	return out, nil
}

func (f *fakeClient) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeClient) CreateBucket(_ context.Context, _, _ string) error {
	f.createBucketCalled = true
	return nil
}
