package dataset

import (
	"io"
	"testing"
)

func readAll(t *testing.T, reader io.ReadCloser) []byte {
	t.Helper()
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	return data
}
