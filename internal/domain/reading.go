package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Field is one named metric value inside a Reading.
type Field struct {
	Name  string
	Value float64
}

// Reading is a point-in-time snapshot of every enabled metric. Fields keep
// the order in which they were assembled so that storage columns and display
// rotation stay stable for the lifetime of a run.
type Reading struct {
	Timestamp time.Time
	Fields    []Field
}

// NewReading builds a Reading and truncates the timestamp to whole seconds in UTC.
func NewReading(ts time.Time, fields []Field) Reading {
	return Reading{
		Timestamp: ts.UTC().Truncate(time.Second),
		Fields:    fields,
	}
}

func (r Reading) Get(name string) (float64, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

func (r Reading) Names() []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Name
	}
	return out
}

// Values flattens the fields into a map; ordering is lost.
func (r Reading) Values() map[string]float64 {
	out := make(map[string]float64, len(r.Fields))
	for _, f := range r.Fields {
		out[f.Name] = f.Value
	}
	return out
}

func (r Reading) Clone() Reading {
	fields := make([]Field, len(r.Fields))
	copy(fields, r.Fields)
	return Reading{Timestamp: r.Timestamp, Fields: fields}
}

type readingJSON struct {
	Timestamp time.Time       `json:"timestamp"`
	Fields    json.RawMessage `json:"fields"`
}

// MarshalJSON emits {"timestamp": ..., "fields": {...}} with field keys in
// Reading order.
func (r Reading) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')

	return json.Marshal(readingJSON{Timestamp: r.Timestamp, Fields: b.Bytes()})
}

// UnmarshalJSON restores field order from the object key order.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var raw readingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Timestamp = raw.Timestamp
	r.Fields = nil
	if len(raw.Fields) == 0 || string(raw.Fields) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Fields))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("reading fields: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("reading fields: expected key, got %v", tok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("reading field %s: %w", name, err)
		}
		r.Fields = append(r.Fields, Field{Name: name, Value: v})
	}
	_, err = dec.Token()
	return err
}
