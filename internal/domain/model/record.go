// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind distinguishes the two telemetry record flavors.
type Kind string

// Record kinds.
const (
	KindEvent  Kind = "event"
	KindMetric Kind = "metric"
)

// Attr is a single scalar attribute. Values are strings, numbers or booleans.
type Attr struct {
	Key   string
	Value any
}

// Attributes is an insertion-ordered set of scalar attributes. It serializes
// to a flat JSON object whose keys appear in insertion order.
type Attributes []Attr

// Set appends or replaces the attribute with the given key, preserving the
// position of an existing key.
func (a Attributes) Set(key string, value any) Attributes {
	for i := range a {
		if a[i].Key == key {
			a[i].Value = value
			return a
		}
	}
	return append(a, Attr{Key: key, Value: value})
}

// Get returns the value for key and whether it exists.
func (a Attributes) Get(key string) (any, bool) {
	for i := range a {
		if a[i].Key == key {
			return a[i].Value, true
		}
	}
	return nil, false
}

// MarshalJSON renders the attributes as a JSON object in insertion order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(attr.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", attr.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a flat JSON object, keeping key order.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("attributes: expected object, got %v", tok)
	}
	out := Attributes{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("attributes: non-string key %v", keyTok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("attributes: value for %q: %w", key, err)
		}
		out = append(out, Attr{Key: key, Value: val})
	}
	*a = out
	return nil
}

// TelemetryRecord is a single event or metric observation. Records are
// immutable after creation; the timestamp is set once and never touched.
type TelemetryRecord struct {
	Kind       Kind
	Name       string
	Value      *float64 // set for metrics only
	Timestamp  time.Time
	Attributes Attributes
}

// NewEvent creates an event record stamped with the current UTC time.
func NewEvent(name string, attrs Attributes) (TelemetryRecord, error) {
	if name == "" {
		return TelemetryRecord{}, ErrEmptyName
	}
	return TelemetryRecord{
		Kind:       KindEvent,
		Name:       name,
		Timestamp:  time.Now().UTC(),
		Attributes: attrs,
	}, nil
}

// NewMetric creates a metric record stamped with the current UTC time.
func NewMetric(name string, value float64, attrs Attributes) (TelemetryRecord, error) {
	if name == "" {
		return TelemetryRecord{}, ErrEmptyName
	}
	v := value
	return TelemetryRecord{
		Kind:       KindMetric,
		Name:       name,
		Value:      &v,
		Timestamp:  time.Now().UTC(),
		Attributes: attrs,
	}, nil
}

// wireRecord is the JSON shape a record serializes to. Event and metric
// names are carried in distinct keys for backend compatibility.
type wireRecord struct {
	Type       string     `json:"type"`
	EventName  string     `json:"eventName,omitempty"`
	MetricName string     `json:"metricName,omitempty"`
	Value      *float64   `json:"value,omitempty"`
	Timestamp  string     `json:"timestamp"`
	Attributes Attributes `json:"attributes"`
}

// MarshalJSON renders the record in its wire shape.
func (r TelemetryRecord) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		Type:       string(r.Kind),
		Value:      r.Value,
		Timestamp:  r.Timestamp.UTC().Format(time.RFC3339Nano),
		Attributes: r.Attributes,
	}
	if w.Attributes == nil {
		w.Attributes = Attributes{}
	}
	switch r.Kind {
	case KindMetric:
		w.MetricName = r.Name
	default:
		w.EventName = r.Name
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the wire shape back into a record.
func (r *TelemetryRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return fmt.Errorf("record timestamp: %w", err)
	}
	r.Kind = Kind(w.Type)
	r.Value = w.Value
	r.Timestamp = ts
	r.Attributes = w.Attributes
	if w.MetricName != "" {
		r.Name = w.MetricName
	} else {
		r.Name = w.EventName
	}
	if r.Name == "" {
		return ErrEmptyName
	}
	return nil
}
