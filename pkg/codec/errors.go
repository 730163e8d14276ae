package codec

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrTruncated           = errors.New("codec: truncated input")
	ErrInvalidUTF8         = errors.New("codec: invalid utf-8")
	ErrUnknownType         = errors.New("codec: unknown type code")
	ErrMalformedFixedWidth = errors.New("codec: malformed fixed-width value")
	ErrDepthExceeded       = errors.New("codec: message nesting too deep")
)

// DecodeError locates a decode failure. Offset is relative to the start of
// the buffer passed to Decode; Depth is 0 for the top-level record.
type DecodeError struct {
	Offset int
	Depth  int
	Kind   Kind
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Kind.Valid() {
		return fmt.Sprintf("%v at offset %d (depth %d, %s field)", e.Err, e.Offset, e.Depth, e.Kind)
	}
	return fmt.Sprintf("%v at offset %d (depth %d)", e.Err, e.Offset, e.Depth)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(err error, offset, depth int, kind Kind) error {
	return &DecodeError{Offset: offset, Depth: depth, Kind: kind, Err: err}
}
