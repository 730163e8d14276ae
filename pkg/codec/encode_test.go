package codec

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeField_Layout(t *testing.T) {
	testCases := []struct {
		name  string
		field Field
		want  []byte
	}{
		{
			name:  "int32",
			field: NewField("age", Int32(42)),
			want:  []byte{1, 0, 0, 0, 3, 'a', 'g', 'e', 0, 0, 0, 4, 0, 0, 0, 42},
		},
		{
			name:  "negative int32",
			field: NewField("n", Int32(-2)),
			want:  []byte{1, 0, 0, 0, 1, 'n', 0, 0, 0, 4, 0xFF, 0xFF, 0xFF, 0xFE},
		},
		{
			name:  "float32",
			field: NewField("pi", Float32(1.5)),
			want:  []byte{2, 0, 0, 0, 2, 'p', 'i', 0, 0, 0, 4, 0x3F, 0xC0, 0x00, 0x00},
		},
		{
			name:  "bool true",
			field: NewField("ok", Bool(true)),
			want:  []byte{3, 0, 0, 0, 2, 'o', 'k', 0, 0, 0, 1, 1},
		},
		{
			name:  "bool false",
			field: NewField("ok", Bool(false)),
			want:  []byte{3, 0, 0, 0, 2, 'o', 'k', 0, 0, 0, 1, 0},
		},
		{
			name:  "string",
			field: NewField("s", String("hé")),
			want:  []byte{4, 0, 0, 0, 1, 's', 0, 0, 0, 3, 'h', 0xC3, 0xA9},
		},
		{
			name:  "bytes",
			field: NewField("b", Bytes{0x00, 0xFF}),
			want:  []byte{5, 0, 0, 0, 1, 'b', 0, 0, 0, 2, 0x00, 0xFF},
		},
		{
			name:  "empty bytes",
			field: NewField("", Bytes(nil)),
			want:  []byte{5, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name:  "empty message",
			field: NewField("m", Message{}),
			want:  []byte{6, 0, 0, 0, 1, 'm', 0, 0, 0, 0},
		},
		{
			name:  "nested message",
			field: NewField("", Message{NewField("x", Bool(true))}),
			want: []byte{
				6, 0, 0, 0, 0, 0, 0, 0, 11,
				3, 0, 0, 0, 1, 'x', 0, 0, 0, 1, 1,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := EncodeField(tc.field)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, len(tc.want), tc.field.Size())
		})
	}
}

func TestEncodeField_MessagePayloadIsByteLength(t *testing.T) {
	children := Message{
		NewField("a", Int32(1)),
		NewField("b", String("hello")),
		NewField("c", Message{NewField("d", Bytes{1, 2, 3})}),
	}
	f := NewField("root", children)

	encoded := EncodeField(f)

	var want []byte
	for _, child := range children {
		want = append(want, EncodeField(child)...)
	}
	valLenAt := 1 + 4 + len("root")
	require.Len(t, encoded, valLenAt+4+len(want))
	assert.Equal(t, []byte{0, 0, 0, byte(len(want))}, encoded[valLenAt:valLenAt+4])
	assert.Equal(t, want, encoded[valLenAt+4:])
}

func TestEncodeField_Deterministic(t *testing.T) {
	f := NewField("doc", Message{
		NewField("k", String("v")),
		NewField("k", String("v2")),
		NewField("f", Float32(float32(math.Inf(-1)))),
	})
	assert.Equal(t, EncodeField(f), EncodeField(f))
}

func TestAppendField(t *testing.T) {
	prefix := []byte("prefix")
	f := NewField("age", Int32(42))

	out := AppendField(append([]byte(nil), prefix...), f)

	require.True(t, bytes.HasPrefix(out, prefix))
	assert.Equal(t, EncodeField(f), out[len(prefix):])
}

func TestEncodeField_NilValuePanics(t *testing.T) {
	assert.Panics(t, func() { EncodeField(Field{Key: "k"}) })
	assert.Panics(t, func() {
		EncodeField(NewField("m", Message{{Key: "child"}}))
	})
}

func TestField_Size(t *testing.T) {
	testCases := []struct {
		name     string
		field    Field
		expected int
	}{
		{"int32", NewField("key", Int32(0)), HeaderSize + 3 + 4},
		{"float32", NewField("", Float32(0)), HeaderSize + 4},
		{"bool", NewField("k", Bool(false)), HeaderSize + 1 + 1},
		{"string", NewField("k", String("value")), HeaderSize + 1 + 5},
		{"large bytes", NewField("k", Bytes(bytes.Repeat([]byte{1}, 2000))), HeaderSize + 1 + 2000},
		{
			"message",
			NewField("m", Message{NewField("a", Int32(1)), NewField("b", Bool(true))}),
			HeaderSize + 1 + (HeaderSize + 1 + 4) + (HeaderSize + 1 + 1),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.field.Size())
			assert.Len(t, EncodeField(tc.field), tc.expected)
		})
	}
}
