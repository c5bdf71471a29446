package section

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType enumerates the answer shapes a field accepts.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeInteger FieldType = "integer"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
	FieldTypeObject  FieldType = "object"
	FieldTypeArray   FieldType = "array"
)

func (t FieldType) valid() bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeInteger, FieldTypeBoolean,
		FieldTypeDate, FieldTypeObject, FieldTypeArray:
		return true
	default:
		return false
	}
}

// Option is one allowed value of an enumerated field. Catalogue files may
// declare an option either as a bare string or as {value, label}.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Display returns the label, falling back to the raw value.
func (o Option) Display() string {
	if o.Label != "" {
		return o.Label
	}
	return o.Value
}

type optionAlias Option

func (o *Option) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*o = Option{Value: value}
		return nil
	}
	var alias optionAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*o = Option(alias)
	return nil
}

func (o *Option) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*o = Option{Value: node.Value}
		return nil
	}
	var alias optionAlias
	if err := node.Decode(&alias); err != nil {
		return err
	}
	*o = Option(alias)
	return nil
}

// Field describes a single answer inside a section.
type Field struct {
	Name           string    `json:"name" yaml:"name"`
	Label          string    `json:"label,omitempty" yaml:"label,omitempty"`
	Type           FieldType `json:"type,omitempty" yaml:"type,omitempty"`
	Required       bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Options        []Option  `json:"options,omitempty" yaml:"options,omitempty"`
	Pattern        string    `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	PatternMessage string    `json:"patternMessage,omitempty" yaml:"patternMessage,omitempty"`
	Min            *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max            *float64  `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength      *int      `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength      *int      `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Format         string    `json:"format,omitempty" yaml:"format,omitempty"`
	Help           string    `json:"help,omitempty" yaml:"help,omitempty"`
	Nested         []Field   `json:"fields,omitempty" yaml:"fields,omitempty"`
	Items          *Field    `json:"items,omitempty" yaml:"items,omitempty"`

	pattern *regexp.Regexp
}

// DisplayLabel returns the label, falling back to the field name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// HasOptions reports whether the field is an enumeration.
func (f Field) HasOptions() bool { return len(f.Options) > 0 }

// OptionValues returns the raw option values in declaration order.
func (f Field) OptionValues() []string {
	out := make([]string, len(f.Options))
	for i, opt := range f.Options {
		out[i] = opt.Value
	}
	return out
}

// Regexp returns the compiled pattern. Fields produced by the loader carry a
// pre-compiled expression; hand-built fields are compiled on demand.
func (f Field) Regexp() (*regexp.Regexp, error) {
	if f.pattern != nil {
		return f.pattern, nil
	}
	if f.Pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		return nil, fmt.Errorf("section: field %q pattern: %w", f.Name, err)
	}
	return re, nil
}

// Section is one step of the multi-step form.
type Section struct {
	Key         string  `json:"key,omitempty" yaml:"key,omitempty"`
	Title       string  `json:"title" yaml:"title"`
	Order       int     `json:"order,omitempty" yaml:"order,omitempty"`
	Required    bool    `json:"required,omitempty" yaml:"required,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`
}

// Field looks up a top-level field by name.
func (s Section) Field(name string) (Field, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// KeyFor derives the answer key for a section title: the title lower-cased
// with its first space removed ("Personal Profile" -> "personalprofile").
func KeyFor(title string) string {
	return strings.Replace(strings.ToLower(strings.TrimSpace(title)), " ", "", 1)
}

// Catalogue is the ordered, immutable list of sections.
type Catalogue struct {
	sections []Section
	index    map[string]int
}

// NewCatalogue builds a catalogue from sections that are already ordered and
// keyed. Most callers use Load or Default instead.
func NewCatalogue(sections ...Section) (*Catalogue, error) {
	c := &Catalogue{
		sections: make([]Section, 0, len(sections)),
		index:    make(map[string]int, len(sections)),
	}
	for _, sec := range sections {
		if sec.Key == "" {
			sec.Key = KeyFor(sec.Title)
		}
		if sec.Key == "" {
			return nil, fmt.Errorf("section: section %d has neither key nor title", len(c.sections))
		}
		if _, exists := c.index[sec.Key]; exists {
			return nil, fmt.Errorf("section: duplicate section key %q", sec.Key)
		}
		c.index[sec.Key] = len(c.sections)
		c.sections = append(c.sections, sec)
	}
	return c, nil
}

// Len returns the number of sections.
func (c *Catalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.sections)
}

// At returns the section at position i.
func (c *Catalogue) At(i int) (Section, bool) {
	if c == nil || i < 0 || i >= len(c.sections) {
		return Section{}, false
	}
	return c.sections[i], true
}

// Lookup returns the section stored under key.
func (c *Catalogue) Lookup(key string) (Section, bool) {
	if c == nil {
		return Section{}, false
	}
	idx, ok := c.index[key]
	if !ok {
		return Section{}, false
	}
	return c.sections[idx], true
}

// Sections returns a copy of the ordered sections.
func (c *Catalogue) Sections() []Section {
	if c == nil {
		return nil
	}
	return append([]Section(nil), c.sections...)
}

// Keys returns the section keys in order.
func (c *Catalogue) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, len(c.sections))
	for i, sec := range c.sections {
		keys[i] = sec.Key
	}
	return keys
}

// Subset returns a catalogue restricted to the named keys, keeping catalogue
// order. Unknown keys are an error.
func (c *Catalogue) Subset(keys ...string) (*Catalogue, error) {
	if len(keys) == 0 {
		return c, nil
	}
	want := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if _, ok := c.Lookup(key); !ok {
			return nil, fmt.Errorf("section: unknown section %q", key)
		}
		want[key] = struct{}{}
	}
	var picked []Section
	for _, sec := range c.sections {
		if _, ok := want[sec.Key]; ok {
			picked = append(picked, sec)
		}
	}
	return NewCatalogue(picked...)
}
