package agtype

import (
	"encoding/json"
	"fmt"
	"math"
)

// Kind classifies a graph record.
type Kind string

const (
	KindVertex Kind = "vertex"
	KindEdge   Kind = "edge"
)

// Map keys recognized by FromMap. Anything else is a *SchemaError.
const (
	fieldLabel      = "label"
	fieldProperties = "properties"
	fieldID         = "id"
	fieldStartID    = "start_id"
	fieldEndID      = "end_id"
	fieldKind       = "kind"
)

// Record is a decoded graph vertex or edge.
//
// Label is always non-empty and Properties is never nil. ID is set once the
// record has been persisted. StartID and EndID are both set if and only if the
// record is an edge. A Record is treated as immutable once decoded.
type Record struct {
	Label      string
	Properties map[string]any
	ID         *int64
	StartID    *int64
	EndID      *int64

	// explicit kind supplied at construction; overrides classification
	kind Kind
}

// New creates a Record, defaulting Properties to an empty map.
// An empty label is ErrMissingLabel.
func New(label string, properties map[string]any) (*Record, error) {
	if label == "" {
		return nil, ErrMissingLabel
	}
	if properties == nil {
		properties = map[string]any{}
	}
	return &Record{Label: label, Properties: properties}, nil
}

// NewWithKind creates a Record whose kind is fixed at construction rather than
// derived from its endpoint IDs.
func NewWithKind(label string, properties map[string]any, kind Kind) (*Record, error) {
	r, err := New(label, properties)
	if err != nil {
		return nil, err
	}
	r.kind = kind
	return r, nil
}

// Kind reports whether the record is a vertex or an edge. An explicit kind
// supplied at construction wins; otherwise the record is an edge iff both
// StartID and EndID are set.
func (r *Record) Kind() Kind {
	if r.kind != "" {
		return r.kind
	}
	if r.StartID != nil && r.EndID != nil {
		return KindEdge
	}
	return KindVertex
}

// IsVertex reports whether the record classifies as a vertex.
func (r *Record) IsVertex() bool { return r.Kind() == KindVertex }

// IsEdge reports whether the record classifies as an edge.
func (r *Record) IsEdge() bool { return r.Kind() == KindEdge }

// ToMap converts the record to a plain map. Optional fields appear only when
// set, so FromMap(ToMap(r)) is value-equal to r.
func (r *Record) ToMap() map[string]any {
	m := map[string]any{
		fieldLabel:      r.Label,
		fieldProperties: r.Properties,
	}
	if r.ID != nil {
		m[fieldID] = *r.ID
	}
	if r.StartID != nil {
		m[fieldStartID] = *r.StartID
	}
	if r.EndID != nil {
		m[fieldEndID] = *r.EndID
	}
	if r.kind != "" {
		m[fieldKind] = string(r.kind)
	}
	return m
}

// ToJSON encodes the record's map form as JSON. Property values JSON cannot
// represent are stringified rather than failing the whole record.
func (r *Record) ToJSON() (string, error) {
	m := r.ToMap()
	data, err := json.Marshal(m)
	if err == nil {
		return string(data), nil
	}

	// Retry with unrepresentable property values stringified.
	props := make(map[string]any, len(r.Properties))
	for k, v := range r.Properties {
		if _, verr := json.Marshal(v); verr != nil {
			props[k] = fmt.Sprint(v)
		} else {
			props[k] = v
		}
	}
	m[fieldProperties] = props
	data, err = json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("agtype: failed to encode record %q: %w", r.Label, err)
	}
	return string(data), nil
}

// FromMap builds a Record from a decoded map. Unrecognized keys are a
// *SchemaError; missing optional keys take their defaults.
func FromMap(m map[string]any) (*Record, error) {
	r := &Record{Properties: map[string]any{}}
	for key, value := range m {
		switch key {
		case fieldLabel:
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("agtype: field %q: expected string, got %T", key, value)
			}
			r.Label = s
		case fieldProperties:
			if value == nil {
				continue
			}
			props, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("agtype: field %q: expected object, got %T", key, value)
			}
			r.Properties = props
		case fieldID, fieldStartID, fieldEndID:
			if value == nil {
				continue
			}
			id, err := toInt64(value)
			if err != nil {
				return nil, fmt.Errorf("agtype: field %q: %w", key, err)
			}
			switch key {
			case fieldID:
				r.ID = &id
			case fieldStartID:
				r.StartID = &id
			case fieldEndID:
				r.EndID = &id
			}
		case fieldKind:
			if value == nil {
				continue
			}
			s, ok := value.(string)
			if !ok || (Kind(s) != KindVertex && Kind(s) != KindEdge) {
				return nil, fmt.Errorf("agtype: field %q: invalid kind %v", key, value)
			}
			r.kind = Kind(s)
		default:
			return nil, &SchemaError{Key: key}
		}
	}
	if r.Label == "" {
		return nil, ErrMissingLabel
	}
	return r, nil
}

// FromJSON parses a JSON object and delegates to FromMap.
func FromJSON(data string) (*Record, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, &DecodeError{Text: data, Err: err}
	}
	return FromMap(m)
}

// RecordsFromRows decodes a batch of rows (see DecodeRows) and maps each
// resulting object into a Record.
func RecordsFromRows(rows []Row) ([]*Record, error) {
	maps, err := DecodeRows(rows)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(maps))
	for _, m := range maps {
		r, err := FromMap(m)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// Int64 returns a pointer to v, for building records with literal IDs.
func Int64(v int64) *int64 { return &v }

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}
