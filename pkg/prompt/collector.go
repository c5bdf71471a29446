package prompt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formsheet/pkg/answers"
	"github.com/goliatone/go-formsheet/pkg/section"
)

const (
	// FormatTextArea marks a string field that is captured as multi-line text.
	FormatTextArea = "textarea"

	blankOption = "(leave blank)"
)

// Collector asks for every field of a section through a PromptDriver and
// assembles the answers in field order.
type Collector struct {
	driver PromptDriver
}

// NewCollector returns a collector bound to driver.
func NewCollector(driver PromptDriver) (*Collector, error) {
	if driver == nil {
		return nil, errors.New("prompt: driver is required")
	}
	return &Collector{driver: driver}, nil
}

// Collect prompts for sec. Values in prefill are offered as defaults. Fields
// of required sections are checked as they are entered; optional sections
// accept blanks but still reject malformed values.
func (c *Collector) Collect(ctx context.Context, sec section.Section, prefill *answers.Mapping) (*answers.Mapping, error) {
	return c.fields(ctx, sec.Fields, prefill, sec.Required)
}

func (c *Collector) fields(ctx context.Context, fields []section.Field, prefill *answers.Mapping, strict bool) (*answers.Mapping, error) {
	out := answers.NewMapping()
	for _, field := range fields {
		var prev answers.Value = answers.Null{}
		if got, ok := prefill.Get(field.Name); ok {
			prev = got
		}
		value, err := c.field(ctx, field, prev, strict)
		if err != nil {
			return nil, err
		}
		out.Set(field.Name, value)
	}
	return out, nil
}

func (c *Collector) field(ctx context.Context, field section.Field, prev answers.Value, strict bool) (answers.Value, error) {
	switch {
	case field.Type == section.FieldTypeObject:
		if err := c.driver.Info(ctx, field.DisplayLabel()); err != nil {
			return nil, err
		}
		nested, _ := prev.(*answers.Mapping)
		return c.fields(ctx, field.Nested, nested, strict)
	case field.Type == section.FieldTypeArray:
		return c.list(ctx, field, prev, strict)
	case field.Type == section.FieldTypeBoolean:
		return c.confirm(ctx, field, prev)
	case field.HasOptions():
		return c.choice(ctx, field, prev)
	default:
		return c.text(ctx, field, prev, strict)
	}
}

func (c *Collector) text(ctx context.Context, field section.Field, prev answers.Value, strict bool) (answers.Value, error) {
	current := scalarText(prev)
	for {
		raw, err := c.ask(ctx, field, current)
		if err != nil {
			return nil, err
		}
		current = SanitizeText(raw)

		value, parseErr := parseAnswer(field, current)
		if parseErr != "" {
			if err := c.invalid(ctx, field, parseErr); err != nil {
				return nil, err
			}
			continue
		}
		if issue, ok := firstIssue(field, value, strict); ok {
			if err := c.invalid(ctx, field, issue.Message); err != nil {
				return nil, err
			}
			continue
		}
		return value, nil
	}
}

func (c *Collector) ask(ctx context.Context, field section.Field, current string) (string, error) {
	help := field.Help
	if help == "" && field.Type == section.FieldTypeDate {
		help = "YYYY-MM-DD"
	}
	if field.Format == FormatTextArea {
		return c.driver.TextArea(ctx, TextAreaConfig{
			Message: fieldMessage(field),
			Default: current,
			Help:    help,
		})
	}
	return c.driver.Input(ctx, InputConfig{
		Message: fieldMessage(field),
		Default: current,
		Help:    help,
	})
}

func (c *Collector) confirm(ctx context.Context, field section.Field, prev answers.Value) (answers.Value, error) {
	var def bool
	if s, ok := prev.(answers.Scalar); ok {
		def, _ = s.Truth()
	}
	yes, err := c.driver.Confirm(ctx, ConfirmConfig{
		Message: fieldMessage(field),
		Default: def,
		Help:    field.Help,
	})
	if err != nil {
		return nil, err
	}
	return answers.Bool(yes), nil
}

func (c *Collector) choice(ctx context.Context, field section.Field, prev answers.Value) (answers.Value, error) {
	options := make([]string, 0, len(field.Options)+1)
	for _, opt := range field.Options {
		options = append(options, opt.Display())
	}
	if !field.Required {
		options = append(options, blankOption)
	}

	def := 0
	if current := scalarText(prev); current != "" {
		for i, opt := range field.Options {
			if opt.Value == current {
				def = i
				break
			}
		}
	} else if !field.Required {
		def = len(options) - 1
	}

	idx, err := c.driver.Select(ctx, SelectConfig{
		Message:      fieldMessage(field),
		Options:      options,
		DefaultIndex: def,
		Help:         field.Help,
	})
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(field.Options) {
		return answers.Null{}, nil
	}
	return answers.String(field.Options[idx].Value), nil
}

func (c *Collector) list(ctx context.Context, field section.Field, prev answers.Value, strict bool) (answers.Value, error) {
	if field.Items == nil {
		return nil, fmt.Errorf("prompt: array field %q has no item definition", field.Name)
	}
	saved, _ := prev.(answers.List)
	if field.Items.HasOptions() {
		return c.multiChoice(ctx, field, saved, strict)
	}

	label := field.Items.Label
	if label == "" {
		label = field.DisplayLabel()
	}

	var items answers.List
	if len(saved) > 0 {
		keep, err := c.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Keep the %d saved %s entries?", len(saved), label),
			Default: true,
		})
		if err != nil {
			return nil, err
		}
		if keep {
			items = answers.Clone(saved).(answers.List)
		}
	}

	for {
		message := fmt.Sprintf("Add a %s?", label)
		if len(items) > 0 {
			message = fmt.Sprintf("Add another %s?", label)
		}
		more, err := c.driver.Confirm(ctx, ConfirmConfig{Message: message})
		if err != nil {
			return nil, err
		}
		if more {
			item, err := c.field(ctx, *field.Items, answers.Null{}, strict)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			continue
		}

		if items == nil {
			items = answers.List{}
		}
		issue, ok := firstIssue(field, items, strict)
		if !ok {
			return items, nil
		}
		if err := c.invalid(ctx, field, issue.Message); err != nil {
			return nil, err
		}
	}
}

func (c *Collector) multiChoice(ctx context.Context, field section.Field, saved answers.List, strict bool) (answers.Value, error) {
	options := make([]string, len(field.Items.Options))
	for i, opt := range field.Items.Options {
		options[i] = opt.Display()
	}
	var defaults []int
	for _, v := range saved {
		text := scalarText(v)
		for i, opt := range field.Items.Options {
			if opt.Value == text {
				defaults = append(defaults, i)
			}
		}
	}

	for {
		picked, err := c.driver.MultiSelect(ctx, SelectConfig{
			Message:  fieldMessage(field),
			Options:  options,
			Defaults: defaults,
			Help:     field.Help,
		})
		if err != nil {
			return nil, err
		}
		items := answers.List{}
		for _, idx := range picked {
			if idx >= 0 && idx < len(field.Items.Options) {
				items = append(items, answers.String(field.Items.Options[idx].Value))
			}
		}
		issue, ok := firstIssue(field, items, strict)
		if !ok {
			return items, nil
		}
		if err := c.invalid(ctx, field, issue.Message); err != nil {
			return nil, err
		}
		defaults = picked
	}
}

func (c *Collector) invalid(ctx context.Context, field section.Field, message string) error {
	return c.driver.Info(ctx, fmt.Sprintf("Invalid %s: %s", field.DisplayLabel(), message))
}

// parseAnswer converts the sanitized text into the field's value type. The
// second return is a user-facing message when the text cannot be converted.
func parseAnswer(field section.Field, text string) (answers.Value, string) {
	switch field.Type {
	case section.FieldTypeNumber, section.FieldTypeInteger:
		if text == "" {
			return answers.Null{}, ""
		}
		n, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
		if err != nil {
			return nil, "must be a number"
		}
		return answers.Number(n), ""
	default:
		return answers.String(text), ""
	}
}

// firstIssue validates value for field. When strict is false a blank value is
// accepted even for required fields.
func firstIssue(field section.Field, value answers.Value, strict bool) (section.Issue, bool) {
	if !strict {
		field = relaxed(field)
	}
	issues := section.ValidateField(field, value)
	if len(issues) == 0 {
		return section.Issue{}, false
	}
	return issues[0], true
}

// relaxed returns a copy of field with every required flag cleared.
func relaxed(field section.Field) section.Field {
	field.Required = false
	if len(field.Nested) > 0 {
		nested := make([]section.Field, len(field.Nested))
		for i, child := range field.Nested {
			nested[i] = relaxed(child)
		}
		field.Nested = nested
	}
	if field.Items != nil {
		items := relaxed(*field.Items)
		field.Items = &items
	}
	return field
}

func fieldMessage(field section.Field) string {
	label := field.DisplayLabel()
	if field.Required {
		return label + " *"
	}
	return label
}

func scalarText(v answers.Value) string {
	if s, ok := v.(answers.Scalar); ok {
		return s.String()
	}
	return ""
}
