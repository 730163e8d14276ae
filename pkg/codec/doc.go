// Package codec implements the FieldWire binary format: a self-describing
// encoding for labeled values ("fields") of six kinds, with nested messages.
//
// # Record Format
//
// Every field is encoded as one contiguous record:
//
//	[TypeCode(1)][KeyLen(4)][Key][ValueLen(4)][Payload]
//
// Fields:
//   - TypeCode: 1=int32, 2=float32, 3=bool, 4=string, 5=bytes, 6=message
//   - KeyLen: key length in bytes (big-endian uint32)
//   - Key: UTF-8 key bytes
//   - ValueLen: payload length in bytes (big-endian uint32)
//   - Payload: interpreted according to TypeCode
//
// Payloads:
//   - int32, float32: 4 bytes, big-endian two's complement / IEEE-754 bits
//   - bool: 1 byte, any non-zero byte decodes as true
//   - string: UTF-8 bytes
//   - bytes: opaque bytes
//   - message: zero or more complete records, back to back, with no count
//
// A record is self-delimiting: its total size (HeaderSize + KeyLen +
// ValueLen) is known once the header has been read. There is no top-level
// container, magic number, version or checksum. Callers that store several
// records together provide their own framing (see package store).
//
// # Usage
//
//	f := codec.NewField("user", codec.Message{
//	    codec.NewField("name", codec.String("ada")),
//	    codec.NewField("age", codec.Int32(36)),
//	})
//	data := codec.EncodeField(f)
//
//	decoded, err := codec.DecodeField(data)
//	if err != nil {
//	    return err
//	}
//
// # Error Handling
//
// Encoding has no error path. Decoding fails with a *DecodeError that wraps
// exactly one of ErrTruncated, ErrInvalidUTF8, ErrUnknownType,
// ErrMalformedFixedWidth or ErrDepthExceeded; match with errors.Is and
// locate the failure with errors.As.
//
// Failures inside a message payload fail the whole record under
// NestedStrict (the default). NestedLenient keeps the children decoded so
// far instead. Nesting is bounded by the decoder's MaxDepth under both
// policies.
//
// # Thread Safety
//
// EncodeField, DecodeField and Decoder methods keep no state between calls
// and are safe for concurrent use. Decoded fields own their memory and never
// alias the input buffer.
package codec
