// Package memory is an in-process storage.ObjectStore for tests and dry runs.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ridelens/ridelens/internal/storage"
)

type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

type object struct {
	data     []byte
	etag     string
	modified time.Time
}

var _ storage.ObjectStore = (*Store)(nil)

func New() *Store {
	return &Store{objects: make(map[string]object), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return storage.ObjectInfo{}, fmt.Errorf("object key is required")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("read object body: %w", err)
	}
	sum := md5.Sum(data)
	obj := object{data: data, etag: hex.EncodeToString(sum[:]), modified: s.now()}

	s.mu.Lock()
	s.objects[key] = obj
	s.mu.Unlock()
	return info(key, obj), nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objects[strings.TrimPrefix(key, "/")]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	key = strings.TrimPrefix(key, "/")
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return info(key, obj), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, strings.TrimPrefix(key, "/"))
	s.mu.Unlock()
	return nil
}

func (s *Store) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	s.mu.RLock()
	out := make([]storage.ObjectInfo, 0, len(s.objects))
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, info(key, obj))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Len is the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func info(key string, obj object) storage.ObjectInfo {
	return storage.ObjectInfo{Key: key, Size: int64(len(obj.data)), ETag: obj.etag, LastModified: obj.modified}
}
