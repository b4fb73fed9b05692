// Package agtype decodes Apache AGE agtype result values into Go structures.
//
// AGE returns graph values as tagged text: a JSON payload optionally suffixed
// with a type tag, e.g. `{"label":"City",...}::vertex`. Agtype is a superset of
// JSON, so only value shapes that look like JSON containers need structural
// parsing; plain scalars pass through as text.
//
// Three decoding entry points are provided, all pure functions over
// already-fetched rows (no I/O):
//
//   - DecodeScalar: one tagged-text scalar → object, array, or pass-through string
//   - DecodeRow: one result row → column map with tagged values decoded in place
//   - DecodeRows: a batch of rows → one bulk JSON parse over all tagged values
package agtype

import (
	"encoding/json"
	"strings"
)

// Recognized type tags. Only vertex and edge tags are stripped; other tags
// (::numeric, ::path, ...) are left intact for the caller.
const (
	vertexTag = "::vertex"
	edgeTag   = "::edge"
)

// Row is one query result row: column names paired with values in result
// order. Values are plain scalars or agtype tagged-text strings.
type Row struct {
	Columns []string
	Values  []any
}

// DecodeScalar converts one agtype text value into a structured Go value.
//
// Text shaped like a JSON object or array is parsed; anything else is returned
// unchanged. Malformed JSON inside a container wrapper is a *DecodeError.
func DecodeScalar(text string) (any, error) {
	switch {
	case strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}"):
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, &DecodeError{Text: text, Err: err}
		}
		return obj, nil
	case strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]"):
		var arr []any
		if err := json.Unmarshal([]byte(text), &arr); err != nil {
			return nil, &DecodeError{Text: text, Err: err}
		}
		return arr, nil
	default:
		return text, nil
	}
}

// stripKnownTags removes every occurrence of the recognized vertex and edge
// tags. Unrecognized tags are preserved.
func stripKnownTags(s string) string {
	s = strings.ReplaceAll(s, vertexTag, "")
	s = strings.ReplaceAll(s, edgeTag, "")
	return s
}

// DecodeRow decodes a single result row. String values containing "::" are
// treated as agtype text: recognized vertex/edge tags are stripped and the
// remainder decoded with DecodeScalar. All other values pass through unchanged.
func DecodeRow(row Row) (map[string]any, error) {
	result := make(map[string]any, len(row.Columns))
	for i, col := range row.Columns {
		value := row.Values[i]
		if s, ok := value.(string); ok && strings.Contains(s, "::") {
			decoded, err := DecodeScalar(stripKnownTags(s))
			if err != nil {
				return nil, err
			}
			value = decoded
		}
		result[col] = value
	}
	return result, nil
}

// DecodeRows decodes a batch of rows with a single bulk JSON parse, optimized
// for the common case of one tagged column per row.
//
// Every string value containing "::" is collected in row order (then column
// order within a row), recognized tags are stripped, and the values are joined
// into one JSON array parsed in a single pass. Rows carrying no tagged value
// contribute nothing: if the batch holds no tagged strings at all the result is
// empty, even for non-empty input — this path deliberately does not fall back
// to per-row decoding.
//
// Callers with more than one tagged column per row must reconcile the
// array-index-to-row mapping themselves.
func DecodeRows(rows []Row) ([]map[string]any, error) {
	var tagged []string
	for _, row := range rows {
		for _, value := range row.Values {
			if s, ok := value.(string); ok && strings.Contains(s, "::") {
				tagged = append(tagged, s)
			}
		}
	}
	if len(tagged) == 0 {
		return nil, nil
	}

	concat := stripKnownTags(strings.Join(tagged, ","))
	payload := "[" + concat + "]"

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, &DecodeError{Text: payload, Err: err}
	}
	return decoded, nil
}
