package utils

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// SaveTOMLFile encodes v into path, replacing the file atomically.
func SaveTOMLFile(path string, v any) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(v)
	})
}

// DecodeTOMLFile decodes path into v and returns the keys present in the file
// that v has no field for.
func DecodeTOMLFile(path string, v any) (undecoded []string, err error) {
	md, err := toml.DecodeFile(path, v)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		undecoded = append(undecoded, key.String())
	}
	return undecoded, nil
}

// DecodeTOMLTable decodes path into plain tables, ignoring field types. It
// is the fallback when DecodeTOMLFile rejects a value.
func DecodeTOMLTable(path string) (map[string]any, error) {
	table := make(map[string]any)
	if _, err := toml.DecodeFile(path, &table); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return table, nil
}

// Extract returns data[key] when it holds a T.
func Extract[T any](data map[string]any, key string) (T, bool) {
	val, ok := data[key].(T)
	return val, ok
}

// ExtractInt returns data[key] when it holds a TOML integer.
func ExtractInt(data map[string]any, key string) (int, bool) {
	val, ok := data[key].(int64)
	return int(val), ok
}
