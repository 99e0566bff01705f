package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a schema-less JSONB column. Row variables and call analysis payloads
// are free-form key/value maps whose shape is defined per-campaign at runtime.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for JSONMap
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(JSONMap{})
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for JSONMap
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	return json.Unmarshal(bytes, m)
}

// GetString returns the value for key if it is a non-empty string
func (m JSONMap) GetString(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// GetBool interprets the value for key as a flag. Booleans and their string
// representations ("true"/"false") are both accepted because older provider
// payloads serialized analysis flags as strings.
func (m JSONMap) GetBool(key string) bool {
	if m == nil {
		return false
	}
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "True" || v == "TRUE"
	default:
		return false
	}
}
