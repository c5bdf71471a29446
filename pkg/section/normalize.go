package section

import "github.com/goliatone/go-formsheet/pkg/answers"

// Normalize returns a deep copy of a section's answers in which every mapping
// leaf holding the empty string, at any depth, is replaced by null. Lists are
// copied as they are.
func Normalize(value answers.Value) answers.Value {
	m, ok := value.(*answers.Mapping)
	if !ok || m == nil {
		return answers.Clone(value)
	}
	return normalizeMapping(m)
}

func normalizeMapping(m *answers.Mapping) *answers.Mapping {
	out := answers.NewMapping()
	m.Range(func(key string, value answers.Value) bool {
		switch t := value.(type) {
		case *answers.Mapping:
			if t == nil {
				out.Set(key, answers.Null{})
			} else {
				out.Set(key, normalizeMapping(t))
			}
		case answers.Scalar:
			if t.IsEmpty() {
				out.Set(key, answers.Null{})
			} else {
				out.Set(key, t)
			}
		default:
			out.Set(key, answers.Clone(value))
		}
		return true
	})
	return out
}
