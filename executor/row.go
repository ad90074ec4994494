package executor

import (
	"bytes"
	"encoding/json"
)

// Row is one result row: column labels in result order mapped to values.
// A label repeated in the result keeps its first position and its last value.
type Row struct {
	columns []string
	values  map[string]any
}

func newRow(labels []string, values []any) Row {
	r := Row{columns: make([]string, 0, len(labels)), values: make(map[string]any, len(labels))}
	for i, label := range labels {
		if _, seen := r.values[label]; !seen {
			r.columns = append(r.columns, label)
		}
		r.values[label] = values[i]
	}
	return r
}

// Columns returns the distinct labels in result order.
func (r Row) Columns() []string {
	return r.columns
}

// Get returns the value for label.
func (r Row) Get(label string) (any, bool) {
	v, ok := r.values[label]
	return v, ok
}

func (r Row) Len() int {
	return len(r.columns)
}

// Map returns the row as an unordered map with byte slices rendered as strings.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = jsonValue(v)
	}
	return m
}

// MarshalJSON writes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(jsonValue(r.values[label]))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue renders driver byte slices (text columns on several drivers) as strings.
func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
