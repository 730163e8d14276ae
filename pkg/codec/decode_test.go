package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleFields covers every kind, empty keys and payloads, and nesting.
func sampleFields() []Field {
	return []Field{
		NewField("age", Int32(42)),
		NewField("min", Int32(math.MinInt32)),
		NewField("max", Int32(math.MaxInt32)),
		NewField("ratio", Float32(0.25)),
		NewField("neg", Float32(-3.75)),
		NewField("inf", Float32(float32(math.Inf(1)))),
		NewField("yes", Bool(true)),
		NewField("no", Bool(false)),
		NewField("", String("")),
		NewField("🔑 key", String("🎯 value with émojis")),
		NewField("blob", Bytes{0x00, 0x01, 0xFE, 0xFF}),
		NewField("big", Bytes(bytes.Repeat([]byte("v"), 10240))),
		NewField("empty", Message{}),
		NewField("", Message{NewField("x", Bool(true))}),
		NewField("user", Message{
			NewField("name", String("ada")),
			NewField("tags", Message{
				NewField("tag", String("a")),
				NewField("tag", String("b")),
			}),
			NewField("avatar", Bytes{1, 2, 3}),
			NewField("score", Float32(99.5)),
		}),
	}
}

func TestDecodeField_RoundTrip(t *testing.T) {
	for _, f := range sampleFields() {
		t.Run(f.Key+"/"+f.Value.Kind().String(), func(t *testing.T) {
			encoded := EncodeField(f)

			decoded, err := DecodeField(encoded)
			require.NoError(t, err)
			requireSameField(t, f, decoded)
			assert.True(t, f.Equal(decoded))
		})
	}
}

func TestDecodeField_NaNRoundTrip(t *testing.T) {
	f := NewField("nan", Float32(math.Float32frombits(0x7fc00123)))

	decoded, err := DecodeField(EncodeField(f))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7fc00123), math.Float32bits(float32(decoded.Value.(Float32))))
}

func TestDecodeField_ConcreteScenarios(t *testing.T) {
	t.Run("int32 age", func(t *testing.T) {
		data := []byte{1, 0, 0, 0, 3, 'a', 'g', 'e', 0, 0, 0, 4, 0, 0, 0, 42}

		f, err := DecodeField(data)
		require.NoError(t, err)
		assert.Equal(t, "age", f.Key)
		assert.Equal(t, Int32(42), f.Value)
	})

	t.Run("message with one bool", func(t *testing.T) {
		in := NewField("", Message{NewField("x", Bool(true))})

		f, err := DecodeField(EncodeField(in))
		require.NoError(t, err)
		msg, ok := f.Value.(Message)
		require.True(t, ok)
		require.Len(t, msg, 1)
		assert.Equal(t, NewField("x", Bool(true)), msg[0])
	})
}

func TestDecodeField_IgnoresTrailingBytes(t *testing.T) {
	trailers := [][]byte{
		{0x00},
		{0xFF, 0xFF, 0xFF},
		EncodeField(NewField("next", Int32(7))),
	}

	for _, f := range sampleFields() {
		for _, trailer := range trailers {
			data := append(EncodeField(f), trailer...)

			decoded, n, err := NewDecoder().Decode(data)
			require.NoError(t, err)
			assert.Equal(t, f.Size(), n)
			requireSameField(t, f, decoded)
		}
	}
}

func TestDecodeField_TruncationFailsClosed(t *testing.T) {
	for _, f := range sampleFields() {
		if f.Size() > 4096 {
			continue
		}
		encoded := EncodeField(f)
		for p := 0; p < len(encoded); p++ {
			decoded, err := DecodeField(encoded[:p])
			require.Error(t, err, "prefix %d of %d decoded", p, len(encoded))
			assert.True(t, errors.Is(err, ErrTruncated), "prefix %d: %v", p, err)
			assert.Equal(t, Field{}, decoded)
		}
	}
}

func TestDecodeField_Malformed(t *testing.T) {
	record := func(code byte, key string, payload []byte) []byte {
		buf := []byte{code}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(key)))
		buf = append(buf, key...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
		return append(buf, payload...)
	}

	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty data", []byte{}, ErrTruncated},
		{"only type code", []byte{1}, ErrTruncated},
		{"short key length", []byte{1, 0, 0}, ErrTruncated},
		{"key longer than data", []byte{1, 0, 0, 0, 100, 'a'}, ErrTruncated},
		{"missing value length", []byte{1, 0, 0, 0, 1, 'a', 0, 0}, ErrTruncated},
		{"value longer than data", []byte{5, 0, 0, 0, 0, 0, 0, 0, 100, 1, 2}, ErrTruncated},
		{"huge declared key", []byte{1, 0xFF, 0xFF, 0xFF, 0xFF}, ErrTruncated},
		{"invalid utf-8 string", record(4, "s", []byte{0xFF}), ErrInvalidUTF8},
		{"invalid utf-8 key", record(5, "\xc3\x28", nil), ErrInvalidUTF8},
		{"unknown type code 9", record(9, "k", []byte{0, 0, 0, 1}), ErrUnknownType},
		{"type code 0", record(0, "k", nil), ErrUnknownType},
		{"int32 with 2 bytes", record(1, "i", []byte{0, 1}), ErrMalformedFixedWidth},
		{"int32 with 8 bytes", record(1, "i", make([]byte, 8)), ErrMalformedFixedWidth},
		{"float32 with 0 bytes", record(2, "f", nil), ErrMalformedFixedWidth},
		{"bool with 0 bytes", record(3, "b", nil), ErrMalformedFixedWidth},
		{"bool with 2 bytes", record(3, "b", []byte{1, 1}), ErrMalformedFixedWidth},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := DecodeField(tc.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v, want %v", err, tc.want)
			assert.Equal(t, Field{}, f)

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, 0, decErr.Depth)
		})
	}
}

func TestDecodeField_BoolNonZeroIsTrue(t *testing.T) {
	for _, b := range []byte{1, 2, 0x80, 0xFF} {
		f, err := DecodeField([]byte{3, 0, 0, 0, 0, 0, 0, 0, 1, b})
		require.NoError(t, err)
		assert.Equal(t, Bool(true), f.Value)
	}
}

// corruptChildMessage returns a message record whose second child carries an
// unknown type code.
func corruptChildMessage() []byte {
	good := EncodeField(NewField("a", Int32(1)))
	bad := EncodeField(NewField("b", Int32(2)))
	bad[0] = 9
	after := EncodeField(NewField("c", Int32(3)))

	payload := append(append(append([]byte{}, good...), bad...), after...)
	buf := []byte{6, 0, 0, 0, 1, 'm'}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

func TestDecoder_NestedPolicy(t *testing.T) {
	data := corruptChildMessage()

	t.Run("strict fails the record", func(t *testing.T) {
		_, _, err := NewDecoder(WithNestedPolicy(NestedStrict)).Decode(data)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownType))

		var decErr *DecodeError
		require.True(t, errors.As(err, &decErr))
		assert.Equal(t, 1, decErr.Depth)
		assert.Equal(t, HeaderSize+1+NewField("a", Int32(1)).Size(), decErr.Offset)
	})

	t.Run("package default is strict", func(t *testing.T) {
		_, err := DecodeField(data)
		assert.True(t, errors.Is(err, ErrUnknownType))
	})

	t.Run("lenient keeps leading children", func(t *testing.T) {
		f, n, err := NewDecoder(WithNestedPolicy(NestedLenient)).Decode(data)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		requireSameField(t, NewField("m", Message{NewField("a", Int32(1))}), f)
	})
}

func nested(depth int) Field {
	f := NewField("leaf", Int32(1))
	for i := 0; i < depth; i++ {
		f = NewField("level", Message{f})
	}
	return f
}

func TestDecoder_MaxDepth(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		f := nested(5)
		decoded, _, err := NewDecoder(WithMaxDepth(5)).Decode(EncodeField(f))
		require.NoError(t, err)
		requireSameField(t, f, decoded)
	})

	t.Run("beyond limit", func(t *testing.T) {
		_, _, err := NewDecoder(WithMaxDepth(4)).Decode(EncodeField(nested(5)))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDepthExceeded))
	})

	t.Run("lenient still enforces limit", func(t *testing.T) {
		d := NewDecoder(WithMaxDepth(2), WithNestedPolicy(NestedLenient))
		_, _, err := d.Decode(EncodeField(nested(3)))
		assert.True(t, errors.Is(err, ErrDepthExceeded))
	})

	t.Run("zero depth allows scalars and empty messages", func(t *testing.T) {
		d := NewDecoder(WithMaxDepth(0))
		_, _, err := d.Decode(EncodeField(NewField("m", Message{})))
		require.NoError(t, err)
		_, _, err = d.Decode(EncodeField(nested(1)))
		assert.True(t, errors.Is(err, ErrDepthExceeded))
	})

	t.Run("negative depth clamps to zero", func(t *testing.T) {
		assert.Equal(t, 0, NewDecoder(WithMaxDepth(-3)).MaxDepth())
	})

	t.Run("default limit", func(t *testing.T) {
		d := NewDecoder()
		assert.Equal(t, DefaultMaxDepth, d.MaxDepth())
		assert.Equal(t, NestedStrict, d.Policy())

		_, err := DecodeField(EncodeField(nested(DefaultMaxDepth)))
		require.NoError(t, err)
		_, err = DecodeField(EncodeField(nested(DefaultMaxDepth + 1)))
		assert.True(t, errors.Is(err, ErrDepthExceeded))
	})
}

func TestDecodeField_DoesNotAliasInput(t *testing.T) {
	f := NewField("key", Message{
		NewField("s", String("text")),
		NewField("b", Bytes{1, 2, 3}),
	})
	data := EncodeField(f)

	decoded, err := DecodeField(data)
	require.NoError(t, err)

	for i := range data {
		data[i] = 0xAA
	}
	requireSameField(t, f, decoded)
}

func TestParseNestedPolicy(t *testing.T) {
	p, err := ParseNestedPolicy("")
	require.NoError(t, err)
	assert.Equal(t, NestedStrict, p)

	p, err = ParseNestedPolicy("lenient")
	require.NoError(t, err)
	assert.Equal(t, NestedLenient, p)
	assert.Equal(t, "lenient", p.String())

	_, err = ParseNestedPolicy("loose")
	assert.Error(t, err)
}

func TestSplitRecord(t *testing.T) {
	first := EncodeField(NewField("a", String("one")))
	second := EncodeField(NewField("b", Message{NewField("c", Int32(3))}))
	data := append(append([]byte{}, first...), second...)

	record, rest, err := SplitRecord(data)
	require.NoError(t, err)
	assert.Equal(t, first, record)
	assert.Equal(t, second, rest)

	record, rest, err = SplitRecord(rest)
	require.NoError(t, err)
	assert.Equal(t, second, record)
	assert.Empty(t, rest)

	_, _, err = SplitRecord(first[:len(first)-1])
	assert.True(t, errors.Is(err, ErrTruncated))
}

func TestDecodeError_Message(t *testing.T) {
	_, err := DecodeField([]byte{4, 0, 0, 0, 1, 's', 0, 0, 0, 1, 0xFF})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid utf-8"), err.Error())
	assert.True(t, strings.Contains(err.Error(), "offset 10"), err.Error())
	assert.True(t, strings.Contains(err.Error(), "string field"), err.Error())
}
