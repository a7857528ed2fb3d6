package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var batchIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildTripFilePath places one Parquet part of a load batch under the
// booking month it covers, e.g. month=2024-03/part-<batch>-00001.parquet.
func BuildTripFilePath(batchID string, bookingMonth time.Time, sequence int) (string, error) {
	if !batchIDPattern.MatchString(batchID) {
		return "", fmt.Errorf("invalid batch id: %q", batchID)
	}
	if sequence < 0 {
		return "", fmt.Errorf("sequence must be >= 0")
	}
	ts := bookingMonth.UTC()
	return path.Join(
		fmt.Sprintf("month=%04d-%02d", ts.Year(), ts.Month()),
		fmt.Sprintf("part-%s-%05d.parquet", batchID, sequence),
	), nil
}

// IsParquetKey reports whether key names a dataset Parquet file.
func IsParquetKey(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ".parquet")
}
