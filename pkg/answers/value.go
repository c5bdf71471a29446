package answers

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindList
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is the closed set of answer variants: *Mapping, List, Scalar and Null.
// The unexported marker keeps the set closed so visitors can switch over it
// exhaustively.
type Value interface {
	Kind() Kind
	isValue()
}

// Null is the JSON null variant.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) isValue()   {}

// ScalarType distinguishes the primitive payload carried by a Scalar.
type ScalarType int

const (
	ScalarString ScalarType = iota
	ScalarNumber
	ScalarBool
)

// Scalar carries a string, number or boolean leaf.
type Scalar struct {
	typ ScalarType
	str string
	num float64
	b   bool
}

// String builds a string scalar.
func String(s string) Scalar { return Scalar{typ: ScalarString, str: s} }

// Number builds a numeric scalar.
func Number(n float64) Scalar { return Scalar{typ: ScalarNumber, num: n} }

// Bool builds a boolean scalar.
func Bool(b bool) Scalar { return Scalar{typ: ScalarBool, b: b} }

func (Scalar) Kind() Kind { return KindScalar }
func (Scalar) isValue()   {}

// Type reports the primitive payload type.
func (s Scalar) Type() ScalarType { return s.typ }

// Text returns the string payload when the scalar is a string.
func (s Scalar) Text() (string, bool) {
	if s.typ != ScalarString {
		return "", false
	}
	return s.str, true
}

// Float returns the numeric payload when the scalar is a number.
func (s Scalar) Float() (float64, bool) {
	if s.typ != ScalarNumber {
		return 0, false
	}
	return s.num, true
}

// Truth returns the boolean payload when the scalar is a boolean.
func (s Scalar) Truth() (bool, bool) {
	if s.typ != ScalarBool {
		return false, false
	}
	return s.b, true
}

// IsEmpty reports whether the scalar is the empty string.
func (s Scalar) IsEmpty() bool {
	return s.typ == ScalarString && s.str == ""
}

// String renders the scalar the way it appears in a flattened cell: strings
// verbatim, numbers in their shortest form (5, 5.5) and booleans as
// true/false.
func (s Scalar) String() string {
	switch s.typ {
	case ScalarNumber:
		return formatNumber(s.num)
	case ScalarBool:
		return strconv.FormatBool(s.b)
	default:
		return s.str
	}
}

// Equal reports structural equality. go-cmp picks this method up as well.
func (s Scalar) Equal(other Scalar) bool {
	if s.typ != other.typ {
		return false
	}
	switch s.typ {
	case ScalarNumber:
		return s.num == other.num
	case ScalarBool:
		return s.b == other.b
	default:
		return s.str == other.str
	}
}

// List is an ordered sequence of values.
type List []Value

func (List) Kind() Kind { return KindList }
func (List) isValue()   {}

// Equal reports whether two values are structurally identical, including key
// order inside mappings.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil, Null:
		return isNull(b)
	case Scalar:
		y, ok := b.(Scalar)
		return ok && x.Equal(y)
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Mapping:
		y, ok := b.(*Mapping)
		if !ok {
			return isNull(b) && x == nil
		}
		return x.Equal(y)
	default:
		return false
	}
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch t := v.(type) {
	case *Mapping:
		return t.Clone()
	case List:
		out := make(List, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	case nil:
		return Null{}
	default:
		return t
	}
}

func isNull(v Value) bool {
	switch t := v.(type) {
	case nil, Null:
		return true
	case *Mapping:
		return t == nil
	default:
		return false
	}
}

// formatNumber renders n the way a browser stringifies numbers: plain
// decimals between 1e-6 and 1e21, exponent form outside that range with no
// zero padding in the exponent, and "0" for negative zero.
func formatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	abs := math.Abs(n)
	if abs < 1e21 && abs >= 1e-6 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	s := strconv.FormatFloat(n, 'e', -1, 64)
	mark := strings.IndexByte(s, 'e')
	if mark < 0 || mark+2 >= len(s) {
		return s
	}
	digits := strings.TrimLeft(s[mark+2:], "0")
	if digits == "" {
		digits = "0"
	}
	return s[:mark+2] + digits
}
