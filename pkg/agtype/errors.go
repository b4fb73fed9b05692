package agtype

import (
	"errors"
	"fmt"
)

// Agtype decoding error types.
var (
	// ErrMissingLabel is returned when a record is built without a label.
	ErrMissingLabel = errors.New("agtype record requires a label")
)

// DecodeError reports malformed agtype/JSON text encountered while decoding a
// row or batch. It carries the offending text so callers can present the
// failure as a data-integrity problem without re-deriving it.
type DecodeError struct {
	Text string // the text that failed to decode (truncated for batches)
	Err  error  // underlying JSON error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("agtype: decode %q: %v", truncate(e.Text, 120), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SchemaError reports a decoded map whose keys do not match the record shape.
type SchemaError struct {
	Key string // the unrecognized key
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("agtype: unrecognized record field %q", e.Key)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
