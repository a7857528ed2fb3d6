package duckdb

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

func writeFile(path string, reader io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, reader); err != nil {
		return err
	}
	return file.Sync()
}

// localName flattens an object key into a single file name.
func localName(key string) string {
	name := strings.NewReplacer("/", "_", "=", "-", "..", "_").Replace(strings.Trim(key, "/"))
	if name == "" {
		return "part.parquet"
	}
	return name
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
