package models

import (
	"database/sql/driver"
	"fmt"

	json "github.com/goccy/go-json"
)

// RawJSON holds a JSONB column verbatim
type RawJSON json.RawMessage

func (r RawJSON) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return string(r), nil
}

func (r *RawJSON) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*r = append((*r)[:0], v...)
	case string:
		*r = RawJSON(v)
	default:
		return fmt.Errorf("scan raw json: unexpected type %T", value)
	}
	return nil
}

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawJSON) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// jsonbValue and scanJSONB back the typed JSONB columns below. Values go out
// as text; lib/pq would send []byte as bytea.
func jsonbValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return string(data), nil
}

func scanJSONB(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan jsonb: unexpected type %T", value)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}

// Details are the structured answers a customer gave on top of the free-text
// description (tap type, leak severity, ...)
type Details map[string]string

func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	return jsonbValue(d)
}

func (d *Details) Scan(value interface{}) error {
	return scanJSONB(value, d)
}

// Provided counts non-empty detail answers
func (d Details) Provided() int {
	n := 0
	for _, v := range d {
		if v != "" {
			n++
		}
	}
	return n
}
