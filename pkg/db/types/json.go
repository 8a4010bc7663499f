package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON stores V as a JSON document (jsonb in Postgres, text in SQLite).
type JSON[V any] struct {
	V V
}

// NewJSON wraps v for persistence.
func NewJSON[V any](v V) JSON[V] {
	return JSON[V]{V: v}
}

func (j *JSON[V]) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		var zero V
		j.V = zero
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("JSON: unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		var zero V
		j.V = zero
		return nil
	}
	if err := json.Unmarshal(raw, &j.V); err != nil {
		return fmt.Errorf("JSON: decode: %w", err)
	}
	return nil
}

func (j JSON[V]) Value() (driver.Value, error) {
	raw, err := json.Marshal(j.V)
	if err != nil {
		return nil, fmt.Errorf("JSON: encode: %w", err)
	}
	return string(raw), nil
}

func (j JSON[V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.V)
}

func (j *JSON[V]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.V)
}
