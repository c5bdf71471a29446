package section

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-formsheet/pkg/answers"
)

// ErrInvalid is matched by every *ValidationError through errors.Is.
var ErrInvalid = errors.New("section: invalid answers")

// Issue is one validation failure, addressed by a dotted path relative to the
// section ("goals.0.targetAmount").
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError aggregates every issue found in a section's answers.
type ValidationError struct {
	Section string  `json:"section"`
	Issues  []Issue `json:"issues"`
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.Path + ": " + issue.Message
	}
	return fmt.Sprintf("section: %s: %s", e.Section, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// IssueFor returns the first issue recorded for path.
func (e *ValidationError) IssueFor(path string) (Issue, bool) {
	if e == nil {
		return Issue{}, false
	}
	for _, issue := range e.Issues {
		if issue.Path == path {
			return issue, true
		}
	}
	return Issue{}, false
}

// Validate checks a section's answers against its field definitions and
// returns a *ValidationError listing every problem, or nil.
func Validate(sec Section, value answers.Value) error {
	v := &validator{}
	switch m := value.(type) {
	case *answers.Mapping:
		v.fields(sec.Fields, m, "")
	case nil, answers.Null:
		v.fields(sec.Fields, nil, "")
	default:
		v.add("", fmt.Sprintf("expected an object, got %s", value.Kind()))
	}
	if len(v.issues) == 0 {
		return nil
	}
	return &ValidationError{Section: sec.Key, Issues: v.issues}
}

// ValidateField checks a single answer against one field definition. The
// returned issues use the field name as their path root.
func ValidateField(field Field, value answers.Value) []Issue {
	v := &validator{}
	v.field(field, value, field.Name)
	return v.issues
}

type validator struct {
	issues []Issue
}

func (v *validator) add(path, msg string) {
	v.issues = append(v.issues, Issue{Path: path, Message: msg})
}

func (v *validator) fields(fields []Field, m *answers.Mapping, prefix string) {
	for _, field := range fields {
		var value answers.Value = answers.Null{}
		if got, ok := m.Get(field.Name); ok {
			value = got
		}
		v.field(field, value, joinPath(prefix, field.Name))
	}
}

func (v *validator) field(field Field, value answers.Value, path string) {
	if isBlank(value) {
		if field.Required {
			v.add(path, "is required")
		}
		return
	}

	switch field.Type {
	case FieldTypeNumber, FieldTypeInteger:
		v.number(field, value, path)
	case FieldTypeBoolean:
		if s, ok := value.(answers.Scalar); !ok || s.Type() != answers.ScalarBool {
			v.add(path, "must be true or false")
		}
	case FieldTypeObject:
		m, ok := value.(*answers.Mapping)
		if !ok {
			v.add(path, "must be an object")
			return
		}
		v.fields(field.Nested, m, path)
	case FieldTypeArray:
		v.array(field, value, path)
	default:
		v.text(field, value, path)
	}
}

func (v *validator) text(field Field, value answers.Value, path string) {
	s, ok := value.(answers.Scalar)
	if !ok || s.Type() != answers.ScalarString {
		v.add(path, "must be text")
		return
	}
	text, _ := s.Text()

	if field.HasOptions() && !containsOption(field, text) {
		v.add(path, fmt.Sprintf("must be one of %s", strings.Join(field.OptionValues(), ", ")))
		return
	}
	length := utf8.RuneCountInString(text)
	if field.MinLength != nil && length < *field.MinLength {
		v.add(path, fmt.Sprintf("must be at least %d characters", *field.MinLength))
	}
	if field.MaxLength != nil && length > *field.MaxLength {
		v.add(path, fmt.Sprintf("must be at most %d characters", *field.MaxLength))
	}
	re, err := field.Regexp()
	if err != nil {
		v.add(path, err.Error())
		return
	}
	if re != nil && !re.MatchString(text) {
		msg := field.PatternMessage
		if msg == "" {
			msg = "does not match the expected format"
		}
		v.add(path, msg)
	}
	if field.Type == FieldTypeDate || field.Format == "date" {
		if _, err := time.Parse(time.DateOnly, text); err != nil {
			v.add(path, "must be a date (YYYY-MM-DD)")
		}
	}
}

func (v *validator) number(field Field, value answers.Value, path string) {
	s, ok := value.(answers.Scalar)
	if !ok {
		v.add(path, "must be a number")
		return
	}
	n, ok := s.Float()
	if !ok {
		v.add(path, "must be a number")
		return
	}
	if field.Type == FieldTypeInteger && n != math.Trunc(n) {
		v.add(path, "must be a whole number")
	}
	if field.Min != nil && n < *field.Min {
		v.add(path, fmt.Sprintf("must be at least %s", answers.Number(*field.Min)))
	}
	if field.Max != nil && n > *field.Max {
		v.add(path, fmt.Sprintf("must be at most %s", answers.Number(*field.Max)))
	}
}

func (v *validator) array(field Field, value answers.Value, path string) {
	list, ok := value.(answers.List)
	if !ok {
		v.add(path, "must be a list")
		return
	}
	if field.Required && len(list) == 0 {
		v.add(path, "is required")
		return
	}
	if field.MinLength != nil && len(list) < *field.MinLength {
		v.add(path, fmt.Sprintf("must have at least %d items", *field.MinLength))
	}
	if field.MaxLength != nil && len(list) > *field.MaxLength {
		v.add(path, fmt.Sprintf("must have at most %d items", *field.MaxLength))
	}
	if field.Items == nil {
		return
	}
	for i, item := range list {
		v.field(*field.Items, item, fmt.Sprintf("%s.%d", path, i))
	}
}

func containsOption(field Field, value string) bool {
	for _, opt := range field.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func isBlank(value answers.Value) bool {
	switch t := value.(type) {
	case nil, answers.Null:
		return true
	case answers.Scalar:
		text, ok := t.Text()
		return ok && strings.TrimSpace(text) == ""
	case *answers.Mapping:
		return t == nil
	default:
		return false
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
