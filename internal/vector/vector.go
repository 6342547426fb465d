// Package vector implements the embedding persistence/search boundary:
// a pgvector-backed Store plus a pure-Go brute-force fallback
// used by tests that don't stand up Postgres. Grounded on
// internal/embedding/engine.go's CosineSimilarity/FindTopK (teacher),
// adapted into SQL for the "hundreds of thousands of rows" scale this system
// requires, and kept here as an in-memory path for unit tests.
package vector

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Vector is a fixed-dimension embedding, encoded to/from the pgvector text
// wire format ("[x,y,z]") so no separate pgvector client library is needed.
type Vector []float32

// Value implements driver.Valuer, encoding to pgvector's "[x,y,z]" text form.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

// Scan implements sql.Scanner, decoding pgvector's "[x,y,z]" text form.
func (v *Vector) Scan(src any) error {
	if src == nil {
		*v = nil
		return nil
	}
	var s string
	switch t := src.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return fmt.Errorf("vector: unsupported scan source %T", src)
	}

	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		*v = Vector{}
		return nil
	}

	fields := strings.Split(s, ",")
	out := make(Vector, len(fields))
	for i, f := range fields {
		val, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return fmt.Errorf("vector: invalid component %q: %w", f, err)
		}
		out[i] = float32(val)
	}
	*v = out
	return nil
}
