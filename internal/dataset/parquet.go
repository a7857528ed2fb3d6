package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// EncodeParquet writes trips as a single Parquet file.
func EncodeParquet(trips []Trip) ([]byte, error) {
	if len(trips) == 0 {
		return nil, fmt.Errorf("trips are required")
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Trip](buf)
	if _, err := writer.Write(trips); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeParquet reads back a file written by EncodeParquet.
func DecodeParquet(data []byte) ([]Trip, error) {
	reader := parquet.NewGenericReader[Trip](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	trips := make([]Trip, reader.NumRows())
	n, err := reader.Read(trips)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return trips[:n], nil
}
