package codec

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// DefaultMaxDepth bounds message nesting for decoders built without
// WithMaxDepth. The top-level record is depth 0.
const DefaultMaxDepth = 256

// NestedPolicy selects what happens when a child record inside a message
// payload fails to decode.
type NestedPolicy uint8

const (
	// NestedStrict fails the whole record.
	NestedStrict NestedPolicy = iota
	// NestedLenient keeps the children decoded before the failure and drops
	// the rest of the payload.
	NestedLenient
)

func (p NestedPolicy) String() string {
	switch p {
	case NestedStrict:
		return "strict"
	case NestedLenient:
		return "lenient"
	}
	return "unknown"
}

// ParseNestedPolicy accepts "strict" or "lenient". The empty string is strict.
func ParseNestedPolicy(s string) (NestedPolicy, error) {
	switch s {
	case "", "strict":
		return NestedStrict, nil
	case "lenient":
		return NestedLenient, nil
	}
	return 0, errors.Newf("codec: unknown nested policy %q", s)
}

// Decoder parses field records. The zero value is not ready for use; build
// one with NewDecoder. A Decoder holds only configuration and is safe for
// concurrent use.
type Decoder struct {
	maxDepth int
	policy   NestedPolicy
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxDepth sets the deepest message nesting accepted. Values below zero
// are treated as zero, which rejects any message containing children.
func WithMaxDepth(depth int) DecoderOption {
	return func(d *Decoder) {
		if depth < 0 {
			depth = 0
		}
		d.maxDepth = depth
	}
}

// WithNestedPolicy sets how failures inside message payloads are handled.
func WithNestedPolicy(p NestedPolicy) DecoderOption {
	return func(d *Decoder) {
		d.policy = p
	}
}

// NewDecoder creates a decoder with the given options applied over the
// defaults (DefaultMaxDepth, NestedStrict).
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{maxDepth: DefaultMaxDepth, policy: NestedStrict}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxDepth returns the configured nesting limit.
func (d *Decoder) MaxDepth() int { return d.maxDepth }

// Policy returns the configured nested failure policy.
func (d *Decoder) Policy() NestedPolicy { return d.policy }

var defaultDecoder = NewDecoder()

// DecodeField parses the record at the front of data with the default
// decoder. Bytes after the first record are ignored.
func DecodeField(data []byte) (Field, error) {
	f, _, err := defaultDecoder.Decode(data)
	return f, err
}

// Decode parses the record at the front of data and returns it together with
// the number of bytes it occupied. On error the returned Field is the zero
// value and the error is a *DecodeError wrapping one of the package sentinels.
//
// The result never aliases data.
func (d *Decoder) Decode(data []byte) (Field, int, error) {
	f, n, err := d.decode(data, 0, 0)
	if err != nil {
		return Field{}, 0, err
	}
	return f, n, nil
}

// header is the framing of one record, with positions relative to the
// record start.
type header struct {
	kind     Kind
	keyStart int
	keyEnd   int
	valStart int
	valEnd   int
}

// readHeader frames the record at the front of data. base is the absolute
// offset of data, used only for error reporting.
func readHeader(data []byte, base, depth int) (header, error) {
	var h header
	if len(data) < 1 {
		return h, decodeErr(errors.Wrap(ErrTruncated, "missing type code"), base, depth, 0)
	}
	h.kind = Kind(data[0])

	keyLen, ok := readLength(data, 1)
	if !ok {
		return h, decodeErr(errors.Wrapf(ErrTruncated, "key length needs 4 bytes, %d remain", len(data)-1),
			base+1, depth, h.kind)
	}
	h.keyStart = 5
	if keyLen > uint64(len(data)-h.keyStart) {
		return h, decodeErr(errors.Wrapf(ErrTruncated, "key declares %d bytes, %d remain", keyLen, len(data)-h.keyStart),
			base+h.keyStart, depth, h.kind)
	}
	h.keyEnd = h.keyStart + int(keyLen)

	valLen, ok := readLength(data, h.keyEnd)
	if !ok {
		return h, decodeErr(errors.Wrapf(ErrTruncated, "value length needs 4 bytes, %d remain", len(data)-h.keyEnd),
			base+h.keyEnd, depth, h.kind)
	}
	h.valStart = h.keyEnd + 4
	if valLen > uint64(len(data)-h.valStart) {
		return h, decodeErr(errors.Wrapf(ErrTruncated, "value declares %d bytes, %d remain", valLen, len(data)-h.valStart),
			base+h.valStart, depth, h.kind)
	}
	h.valEnd = h.valStart + int(valLen)
	return h, nil
}

func readLength(data []byte, at int) (uint64, bool) {
	if len(data)-at < 4 {
		return 0, false
	}
	return uint64(binary.BigEndian.Uint32(data[at : at+4])), true
}

func (d *Decoder) decode(data []byte, base, depth int) (Field, int, error) {
	h, err := readHeader(data, base, depth)
	if err != nil {
		return Field{}, 0, err
	}

	key := data[h.keyStart:h.keyEnd]
	if !utf8.Valid(key) {
		return Field{}, 0, decodeErr(errors.Wrap(ErrInvalidUTF8, "key"), base+h.keyStart, depth, h.kind)
	}
	if !h.kind.Valid() {
		return Field{}, 0, decodeErr(errors.Wrapf(ErrUnknownType, "type code %d", uint8(h.kind)), base, depth, h.kind)
	}

	payload := data[h.valStart:h.valEnd]
	value, err := d.decodeValue(h.kind, payload, base+h.valStart, depth)
	if err != nil {
		return Field{}, 0, err
	}
	return Field{Key: string(key), Value: value}, h.valEnd, nil
}

func (d *Decoder) decodeValue(kind Kind, payload []byte, base, depth int) (Value, error) {
	switch kind {
	case KindInt32, KindFloat32:
		if len(payload) != 4 {
			return nil, decodeErr(errors.Wrapf(ErrMalformedFixedWidth, "%s payload is %d bytes, want 4", kind, len(payload)),
				base, depth, kind)
		}
		bits := binary.BigEndian.Uint32(payload)
		if kind == KindInt32 {
			return Int32(int32(bits)), nil
		}
		return Float32(math.Float32frombits(bits)), nil
	case KindBool:
		if len(payload) != 1 {
			return nil, decodeErr(errors.Wrapf(ErrMalformedFixedWidth, "bool payload is %d bytes, want 1", len(payload)),
				base, depth, kind)
		}
		return Bool(payload[0] != 0), nil
	case KindString:
		if !utf8.Valid(payload) {
			return nil, decodeErr(errors.Wrap(ErrInvalidUTF8, "string value"), base, depth, kind)
		}
		return String(payload), nil
	case KindBytes:
		out := make([]byte, len(payload))
		copy(out, payload)
		return Bytes(out), nil
	case KindMessage:
		return d.decodeMessage(payload, base, depth)
	}
	return nil, decodeErr(errors.Wrapf(ErrUnknownType, "type code %d", uint8(kind)), base, depth, kind)
}

// decodeMessage walks the concatenated child records of a message payload,
// advancing by the length each child header declares.
func (d *Decoder) decodeMessage(payload []byte, base, depth int) (Value, error) {
	if len(payload) == 0 {
		return Message{}, nil
	}
	if depth >= d.maxDepth {
		return nil, decodeErr(errors.Wrapf(ErrDepthExceeded, "limit %d", d.maxDepth), base, depth+1, KindMessage)
	}

	children := make(Message, 0, 4)
	for offset := 0; offset < len(payload); {
		child, n, err := d.decode(payload[offset:], base+offset, depth+1)
		if err != nil {
			// The depth limit holds under either policy.
			if d.policy == NestedLenient && !errors.Is(err, ErrDepthExceeded) {
				break
			}
			return nil, err
		}
		children = append(children, child)
		offset += n
	}
	return children, nil
}

// SplitRecord returns the first record in data and the bytes that follow it.
// Only the record header is inspected; the payload is not validated.
func SplitRecord(data []byte) (record, rest []byte, err error) {
	h, err := readHeader(data, 0, 0)
	if err != nil {
		return nil, nil, err
	}
	return data[:h.valEnd], data[h.valEnd:], nil
}
