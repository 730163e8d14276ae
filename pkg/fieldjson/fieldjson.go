// Package fieldjson converts fields to and from a JSON form meant for
// people and HTTP clients:
//
//	{"key": "user", "type": "message", "value": [
//	  {"key": "age", "type": "int32", "value": 42},
//	  {"key": "avatar", "type": "bytes", "value": "AAEC"}
//	]}
//
// Bytes values are standard base64. Non-finite float32 values are written as
// the strings "NaN", "+Inf" and "-Inf".
package fieldjson

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/buger/jsonparser"
	"github.com/cockroachdb/errors"

	"github.com/ssargent/fieldwire/pkg/codec"
)

// ErrInvalid is wrapped by every Parse error.
var ErrInvalid = errors.New("fieldjson: invalid field")

// View is the JSON shape of a field. Value holds an int32, float32 or
// string for non-finite floats, bool, string, []byte or []View.
type View struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// ToView converts f into its JSON shape.
func ToView(f codec.Field) View {
	v := View{Key: f.Key}
	if f.Value == nil {
		return v
	}
	v.Type = f.Value.Kind().String()

	switch val := f.Value.(type) {
	case codec.Int32:
		v.Value = int32(val)
	case codec.Float32:
		v.Value = floatValue(float32(val))
	case codec.Bool:
		v.Value = bool(val)
	case codec.String:
		v.Value = string(val)
	case codec.Bytes:
		if val == nil {
			val = codec.Bytes{}
		}
		v.Value = []byte(val)
	case codec.Message:
		children := make([]View, 0, len(val))
		for _, child := range val {
			children = append(children, ToView(child))
		}
		v.Value = children
	}
	return v
}

func floatValue(f float32) any {
	switch {
	case math.IsNaN(float64(f)):
		return "NaN"
	case math.IsInf(float64(f), 1):
		return "+Inf"
	case math.IsInf(float64(f), -1):
		return "-Inf"
	}
	return f
}

// Marshal returns the compact JSON form of f.
func Marshal(f codec.Field) ([]byte, error) {
	return json.Marshal(ToView(f))
}

// MarshalIndent is like Marshal with indentation applied.
func MarshalIndent(f codec.Field, prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(ToView(f), prefix, indent)
}

// Parse reads one field object. Unknown members, out-of-range numbers and
// type/value mismatches are rejected.
func Parse(data []byte) (codec.Field, error) {
	return parseField(data, 0)
}

// ParseList reads a JSON array of field objects.
func ParseList(data []byte) ([]codec.Field, error) {
	_, dt, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalid, "%v", err)
	}
	if dt != jsonparser.Array {
		return nil, errors.Wrapf(ErrInvalid, "expected array, got %s", dt)
	}
	msg, err := parseMessage(data, 0)
	if err != nil {
		return nil, err
	}
	return []codec.Field(msg), nil
}

func parseField(data []byte, depth int) (codec.Field, error) {
	if depth > codec.DefaultMaxDepth {
		return codec.Field{}, errors.Wrapf(ErrInvalid, "nesting deeper than %d", codec.DefaultMaxDepth)
	}

	var (
		key      string
		typeName string
		raw      []byte
		rawType  jsonparser.ValueType
		seen     = map[string]bool{}
	)
	err := jsonparser.ObjectEach(data, func(k, v []byte, dt jsonparser.ValueType, _ int) error {
		name := string(k)
		if seen[name] {
			return errors.Wrapf(ErrInvalid, "duplicate member %q", name)
		}
		seen[name] = true

		switch name {
		case "key":
			if dt != jsonparser.String {
				return errors.Wrapf(ErrInvalid, "key must be a string, got %s", dt)
			}
			s, err := jsonparser.ParseString(v)
			if err != nil {
				return errors.Wrapf(ErrInvalid, "key: %v", err)
			}
			key = s
		case "type":
			if dt != jsonparser.String {
				return errors.Wrapf(ErrInvalid, "type must be a string, got %s", dt)
			}
			typeName = string(v)
		case "value":
			raw, rawType = v, dt
		default:
			return errors.Wrapf(ErrInvalid, "unknown member %q", name)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalid) {
			return codec.Field{}, err
		}
		return codec.Field{}, errors.Wrapf(ErrInvalid, "%v", err)
	}

	if !utf8.ValidString(key) {
		return codec.Field{}, errors.Wrap(ErrInvalid, "key is not valid UTF-8")
	}
	kind, ok := codec.ParseKind(typeName)
	if !ok {
		return codec.Field{}, errors.Wrapf(ErrInvalid, "unknown type %q", typeName)
	}
	if !seen["value"] {
		return codec.Field{}, errors.Wrapf(ErrInvalid, "field %q has no value", key)
	}

	value, err := parseValue(kind, raw, rawType, depth)
	if err != nil {
		return codec.Field{}, errors.Wrapf(err, "field %q", key)
	}
	return codec.NewField(key, value), nil
}

func parseValue(kind codec.Kind, raw []byte, dt jsonparser.ValueType, depth int) (codec.Value, error) {
	mismatch := func() error {
		return errors.Wrapf(ErrInvalid, "%s value cannot be %s", kind, dt)
	}

	switch kind {
	case codec.KindInt32:
		if dt != jsonparser.Number {
			return nil, mismatch()
		}
		n, err := strconv.ParseInt(string(raw), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalid, "int32 value %s", raw)
		}
		return codec.Int32(n), nil
	case codec.KindFloat32:
		switch dt {
		case jsonparser.Number:
			f, err := strconv.ParseFloat(string(raw), 32)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalid, "float32 value %s", raw)
			}
			return codec.Float32(f), nil
		case jsonparser.String:
			switch string(raw) {
			case "NaN":
				return codec.Float32(math.NaN()), nil
			case "+Inf", "Inf":
				return codec.Float32(math.Inf(1)), nil
			case "-Inf":
				return codec.Float32(math.Inf(-1)), nil
			}
			return nil, errors.Wrapf(ErrInvalid, "float32 value %q", raw)
		}
		return nil, mismatch()
	case codec.KindBool:
		if dt != jsonparser.Boolean {
			return nil, mismatch()
		}
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalid, "bool value %s", raw)
		}
		return codec.Bool(b), nil
	case codec.KindString:
		if dt != jsonparser.String {
			return nil, mismatch()
		}
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalid, "string value: %v", err)
		}
		if !utf8.ValidString(s) {
			return nil, errors.Wrap(ErrInvalid, "string value is not valid UTF-8")
		}
		return codec.String(s), nil
	case codec.KindBytes:
		if dt != jsonparser.String {
			return nil, mismatch()
		}
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalid, "bytes value: %v", err)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalid, "bytes value: %v", err)
		}
		return codec.Bytes(b), nil
	case codec.KindMessage:
		switch dt {
		case jsonparser.Null:
			return codec.Message{}, nil
		case jsonparser.Array:
			return parseMessage(raw, depth+1)
		}
		return nil, mismatch()
	}
	return nil, errors.Wrapf(ErrInvalid, "unsupported kind %s", kind)
}

func parseMessage(raw []byte, depth int) (codec.Message, error) {
	msg := codec.Message{}
	var firstErr error
	_, err := jsonparser.ArrayEach(raw, func(v []byte, dt jsonparser.ValueType, _ int, err error) {
		if firstErr != nil {
			return
		}
		if err != nil {
			firstErr = errors.Wrapf(ErrInvalid, "%v", err)
			return
		}
		if dt != jsonparser.Object {
			firstErr = errors.Wrapf(ErrInvalid, "message element must be an object, got %s", dt)
			return
		}
		child, err := parseField(v, depth)
		if err != nil {
			firstErr = err
			return
		}
		msg = append(msg, child)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if err != nil {
		return nil, errors.Wrapf(ErrInvalid, "%v", err)
	}
	return msg, nil
}
