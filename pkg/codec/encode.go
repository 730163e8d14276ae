package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HeaderSize is the fixed per-record overhead:
// type code (1) + key length (4) + value length (4).
const HeaderSize = 1 + 4 + 4

const maxLength = int64(math.MaxUint32)

// Size returns the number of bytes EncodeField produces for f.
func (f Field) Size() int {
	return HeaderSize + len(f.Key) + payloadSize(f.Value)
}

func payloadSize(v Value) int {
	switch v := v.(type) {
	case Int32, Float32:
		return 4
	case Bool:
		return 1
	case String:
		return len(v)
	case Bytes:
		return len(v)
	case Message:
		n := 0
		for _, child := range v {
			n += child.Size()
		}
		return n
	case nil:
		panic("codec: field has nil value")
	}
	panic(fmt.Sprintf("codec: unsupported value type %T", v))
}

// EncodeField serializes f into a newly allocated record:
//
//	[TypeCode(1)][KeyLen(4)][Key][ValueLen(4)][Payload]
//
// All integers are big-endian. Message payloads are the concatenation of the
// children's records in order. EncodeField panics if a length does not fit in
// 32 bits or if a value is nil.
func EncodeField(f Field) []byte {
	return AppendField(make([]byte, 0, f.Size()), f)
}

// AppendField appends the record for f to dst and returns the extended slice.
func AppendField(dst []byte, f Field) []byte {
	if f.Value == nil {
		panic("codec: field has nil value")
	}
	dst = append(dst, byte(f.Value.Kind()))
	dst = appendLength(dst, len(f.Key), "key")
	dst = append(dst, f.Key...)

	switch v := f.Value.(type) {
	case Int32:
		dst = binary.BigEndian.AppendUint32(dst, 4)
		dst = binary.BigEndian.AppendUint32(dst, uint32(v))
	case Float32:
		dst = binary.BigEndian.AppendUint32(dst, 4)
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	case Bool:
		dst = binary.BigEndian.AppendUint32(dst, 1)
		if v {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case String:
		dst = appendLength(dst, len(v), "string value")
		dst = append(dst, v...)
	case Bytes:
		dst = appendLength(dst, len(v), "bytes value")
		dst = append(dst, v...)
	case Message:
		dst = appendLength(dst, payloadSize(v), "message payload")
		for _, child := range v {
			dst = AppendField(dst, child)
		}
	}
	return dst
}

func appendLength(dst []byte, n int, what string) []byte {
	if int64(n) > maxLength {
		panic(fmt.Sprintf("codec: %s too large: %d bytes", what, n))
	}
	return binary.BigEndian.AppendUint32(dst, uint32(n))
}
