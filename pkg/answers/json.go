package answers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON is returned when a payload is not well-formed JSON.
	ErrInvalidJSON = errors.New("answers: invalid JSON")
	// ErrNotMapping is returned when a payload is valid JSON but its top
	// level is not an object.
	ErrNotMapping = errors.New("answers: top level is not an object")
)

// Parse decodes a JSON document into a Value. Object keys keep the order in
// which they appear in the document.
func Parse(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 || !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// ParseMapping decodes a JSON document whose top level must be an object.
func ParseMapping(data []byte) (*Mapping, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*Mapping)
	if !ok {
		return nil, fmt.Errorf("%w (got %s)", ErrNotMapping, v.Kind())
	}
	return m, nil
}

func fromResult(r gjson.Result) Value {
	switch {
	case r.IsObject():
		m := NewMapping()
		r.ForEach(func(key, value gjson.Result) bool {
			m.Set(key.String(), fromResult(value))
			return true
		})
		return m
	case r.IsArray():
		list := List{}
		r.ForEach(func(_, value gjson.Result) bool {
			list = append(list, fromResult(value))
			return true
		})
		return list
	}

	switch r.Type {
	case gjson.String:
		return String(r.Str)
	case gjson.Number:
		return Number(r.Num)
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	default:
		return Null{}
	}
}

// Marshal encodes v as compact JSON. Mapping key order is preserved and HTML
// characters are left unescaped.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Scalar:
		switch t.typ {
		case ScalarNumber:
			if math.IsInf(t.num, 0) || math.IsNaN(t.num) {
				return fmt.Errorf("answers: unsupported number %v", t.num)
			}
			buf.WriteString(formatNumber(t.num))
		case ScalarBool:
			if t.b {
				buf.WriteString("true")
			} else {
				buf.WriteString("false")
			}
		default:
			return encodeString(buf, t.str)
		}
	case List:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Mapping:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('{')
		for i, entry := range t.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, entry.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, entry.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("answers: unsupported value %T", v)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	buf.WriteByte('"')
	// encoding/json escapes U+2028 and U+2029; browsers write them raw, so
	// the separators are emitted between separately encoded segments.
	for {
		cut := strings.IndexFunc(s, isLineSeparator)
		segment := s
		if cut >= 0 {
			segment = s[:cut]
		}
		if err := encodeSegment(buf, segment); err != nil {
			return err
		}
		if cut < 0 {
			break
		}
		r, size := utf8.DecodeRuneInString(s[cut:])
		buf.WriteRune(r)
		s = s[cut+size:]
	}
	buf.WriteByte('"')
	return nil
}

func encodeSegment(buf *bytes.Buffer, s string) error {
	if s == "" {
		return nil
	}
	var scratch bytes.Buffer
	enc := json.NewEncoder(&scratch)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	out := bytes.TrimSuffix(scratch.Bytes(), []byte("\n"))
	buf.Write(out[1 : len(out)-1])
	return nil
}

func isLineSeparator(r rune) bool { return r == '\u2028' || r == '\u2029' }

// MarshalJSON implements json.Marshaler.
func (m *Mapping) MarshalJSON() ([]byte, error) { return Marshal(m) }

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	parsed, err := ParseMapping(data)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l List) MarshalJSON() ([]byte, error) { return Marshal(l) }

// MarshalJSON implements json.Marshaler.
func (s Scalar) MarshalJSON() ([]byte, error) { return Marshal(s) }

// MarshalJSON implements json.Marshaler.
func (n Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }
