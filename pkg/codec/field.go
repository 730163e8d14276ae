package codec

import (
	"bytes"
	"math"
)

// Kind identifies the value variant of a field. Its numeric value is the
// type code written as the first byte of every record.
type Kind uint8

const (
	KindInt32   Kind = 1
	KindFloat32 Kind = 2
	KindBool    Kind = 3
	KindString  Kind = 4
	KindBytes   Kind = 5
	KindMessage Kind = 6
)

var kindNames = [...]string{
	KindInt32:   "int32",
	KindFloat32: "float32",
	KindBool:    "bool",
	KindString:  "string",
	KindBytes:   "bytes",
	KindMessage: "message",
}

// Valid reports whether k is one of the six known kinds.
func (k Kind) Valid() bool {
	return k >= KindInt32 && k <= KindMessage
}

func (k Kind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind maps a kind name as returned by Kind.String back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k := KindInt32; k <= KindMessage; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return 0, false
}

// Value is one of Int32, Float32, Bool, String, Bytes or Message.
// The set is closed: the interface cannot be implemented outside this package.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	Int32   int32
	Float32 float32
	Bool    bool
	String  string
	Bytes   []byte
	// Message is an ordered list of fields. Keys may repeat.
	Message []Field
)

func (Int32) Kind() Kind   { return KindInt32 }
func (Float32) Kind() Kind { return KindFloat32 }
func (Bool) Kind() Kind    { return KindBool }
func (String) Kind() Kind  { return KindString }
func (Bytes) Kind() Kind   { return KindBytes }
func (Message) Kind() Kind { return KindMessage }

func (Int32) sealed()   {}
func (Float32) sealed() {}
func (Bool) sealed()    {}
func (String) sealed()  {}
func (Bytes) sealed()   {}
func (Message) sealed() {}

// Field is a labeled value, the unit the codec encodes and decodes.
type Field struct {
	Key   string
	Value Value
}

// NewField is shorthand for Field{Key: key, Value: value}.
func NewField(key string, value Value) Field {
	return Field{Key: key, Value: value}
}

// Equal reports whether f and other describe the same tree. Floats are
// compared by bit pattern, and nil and empty Bytes or Message values are equal,
// matching what survives an encode/decode round trip.
func (f Field) Equal(other Field) bool {
	if f.Key != other.Key {
		return false
	}
	return valuesEqual(f.Value, other.Value)
}

func valuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Int32:
		return av == b.(Int32)
	case Float32:
		return math.Float32bits(float32(av)) == math.Float32bits(float32(b.(Float32)))
	case Bool:
		return av == b.(Bool)
	case String:
		return av == b.(String)
	case Bytes:
		return bytes.Equal(av, b.(Bytes))
	case Message:
		bv := b.(Message)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !av[i].Equal(bv[i]) {
				return false
			}
		}
		return true
	}
	return false
}
