package submission

import (
	"fmt"

	"github.com/goliatone/go-formsheet/pkg/answers"
)

// NA is the cell value written for null and empty-string leaves.
const NA = "NA"

// Row is one flattened submission: a "<path>: <value>" entry per leaf, in
// the insertion order of the answers.
type Row []string

// Cells converts the row into the generic cell slice most sheet APIs expect.
func (r Row) Cells() []interface{} {
	out := make([]interface{}, len(r))
	for i, cell := range r {
		out[i] = cell
	}
	return out
}

// Flatten renders node as path/value entries. Mappings are walked in order
// with segments joined by ".". A list is emitted as a single entry holding
// its compact JSON and is never walked. Null and the empty string render
// as NA.
func Flatten(node answers.Value, prefix string) ([]string, error) {
	var out []string
	if err := flatten(node, prefix, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(node answers.Value, prefix string, out *[]string) error {
	switch v := node.(type) {
	case *answers.Mapping:
		if v == nil {
			*out = append(*out, entry(prefix, NA))
			return nil
		}
		var err error
		v.Range(func(key string, child answers.Value) bool {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			err = flatten(child, path, out)
			return err == nil
		})
		return err
	case answers.List:
		encoded, err := answers.Marshal(v)
		if err != nil {
			return Wrap(CodeMalformedInput, fmt.Sprintf("encode list at %q", prefix), err)
		}
		*out = append(*out, entry(prefix, string(encoded)))
	case answers.Scalar:
		if v.IsEmpty() {
			*out = append(*out, entry(prefix, NA))
			return nil
		}
		*out = append(*out, entry(prefix, v.String()))
	case nil, answers.Null:
		*out = append(*out, entry(prefix, NA))
	default:
		return NewError(CodeMalformedInput, fmt.Sprintf("unsupported value %T at %q", node, prefix))
	}
	return nil
}

func entry(path, value string) string {
	return path + ": " + value
}

// BuildRow flattens a complete accumulated answer object. The top level must
// be a mapping.
func BuildRow(v answers.Value) (Row, error) {
	m, ok := v.(*answers.Mapping)
	if !ok || m == nil {
		kind := "null"
		if v != nil {
			kind = v.Kind().String()
		}
		return nil, NewError(CodeMalformedInput, "answers must be an object, got "+kind)
	}
	cells, err := Flatten(m, "")
	if err != nil {
		return nil, err
	}
	return Row(cells), nil
}
