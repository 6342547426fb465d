package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JSONMap is a dynamic JSON-valued column (characteristics, raw_data,
// match_candidates, metadata) with typed accessors, avoiding ad-hoc string
// coercion scattered across call sites.
type JSONMap map[string]any

// GetString returns the string value at key, or "" if absent/wrong type.
func (m JSONMap) GetString(key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// GetFloat returns the numeric value at key, or 0 if absent/unparseable.
func (m JSONMap) GetFloat(key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

// GetBoolTolerant extracts a boolean from a tolerant set of representations:
// an actual bool, or the strings "true"/"yes"/"1" (case-insensitive). Every
// other value, including absence, is false.
func (m JSONMap) GetBoolTolerant(key string) bool {
	if m == nil {
		return false
	}
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}

// Set stores a value. The map must be non-nil: a value receiver cannot
// allocate it, so Set on a nil JSONMap panics.
func (m JSONMap) Set(key string, value any) {
	m[key] = value
}

// Value implements driver.Valuer for jsonb columns.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(m))
}

// Scan implements sql.Scanner for jsonb columns.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}
	if len(data) == 0 {
		*m = JSONMap{}
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal JSONMap: %w", err)
	}
	*m = out
	return nil
}
