package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// InputConfig describes a one-line answer prompt for a text or number field.
type InputConfig struct {
	Message string
	Default string
	Help    string
}

// ConfirmConfig describes a yes/no question such as "resume saved answers?".
type ConfirmConfig struct {
	Message string
	Default bool
	Help    string
}

// SelectConfig describes a choice among a field's options. Select reads
// DefaultIndex, MultiSelect reads Defaults.
type SelectConfig struct {
	Message      string
	Options      []string
	DefaultIndex int
	Defaults     []int
	Help         string
	PageSize     int
}

// TextAreaConfig describes a free-text answer that may span lines.
type TextAreaConfig struct {
	Message string
	Default string
	Help    string
}

// PromptDriver is the terminal seen by the collector and the runner. Every
// call checks ctx first and returns ErrAborted on Ctrl+C.
type PromptDriver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
	Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error)
	Select(ctx context.Context, cfg SelectConfig) (int, error)
	MultiSelect(ctx context.Context, cfg SelectConfig) ([]int, error)
	TextArea(ctx context.Context, cfg TextAreaConfig) (string, error)
	Info(ctx context.Context, msg string) error
}

type surveyDriver struct {
	in   terminal.FileReader
	out  terminal.FileWriter
	errw io.Writer
}

// NewSurveyDriver prompts on stdin/stdout.
func NewSurveyDriver() PromptDriver {
	return NewSurveyDriverWithStdio(os.Stdin, os.Stdout, os.Stderr)
}

// NewSurveyDriverWithStdio prompts on the given streams; out also receives
// Info messages.
func NewSurveyDriverWithStdio(in terminal.FileReader, out terminal.FileWriter, errw io.Writer) PromptDriver {
	return &surveyDriver{in: in, out: out, errw: errw}
}

func ask[T any](ctx context.Context, d *surveyDriver, p survey.Prompt) (T, error) {
	var answer T
	if err := ctx.Err(); err != nil {
		return answer, err
	}
	err := survey.AskOne(p, &answer, survey.WithStdio(d.in, d.out, d.errw))
	if errors.Is(err, terminal.InterruptErr) {
		return answer, ErrAborted
	}
	return answer, err
}

func (d *surveyDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	return ask[string](ctx, d, &survey.Input{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default})
}

func (d *surveyDriver) Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error) {
	return ask[bool](ctx, d, &survey.Confirm{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default})
}

func (d *surveyDriver) TextArea(ctx context.Context, cfg TextAreaConfig) (string, error) {
	return ask[string](ctx, d, &survey.Multiline{Message: cfg.Message, Help: cfg.Help, Default: cfg.Default})
}

func (d *surveyDriver) Select(ctx context.Context, cfg SelectConfig) (int, error) {
	p := &survey.Select{Message: cfg.Message, Options: cfg.Options, Help: cfg.Help}
	if cfg.PageSize > 0 {
		p.PageSize = cfg.PageSize
	}
	if cfg.DefaultIndex >= 0 && cfg.DefaultIndex < len(cfg.Options) {
		p.Default = cfg.Options[cfg.DefaultIndex]
	}
	picked, err := ask[string](ctx, d, p)
	if err != nil {
		return 0, err
	}
	return optionIndex(cfg.Options, picked), nil
}

func (d *surveyDriver) MultiSelect(ctx context.Context, cfg SelectConfig) ([]int, error) {
	p := &survey.MultiSelect{Message: cfg.Message, Options: cfg.Options, Help: cfg.Help}
	if cfg.PageSize > 0 {
		p.PageSize = cfg.PageSize
	}
	if len(cfg.Defaults) > 0 {
		p.Default = optionsAt(cfg.Options, cfg.Defaults)
	}
	picked, err := ask[[]string](ctx, d, p)
	if err != nil {
		return nil, err
	}
	return optionIndices(cfg.Options, picked), nil
}

func (d *surveyDriver) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.out, msg)
	return err
}

// optionIndex returns -1 when picked is not one of options.
func optionIndex(options []string, picked string) int {
	for i, option := range options {
		if option == picked {
			return i
		}
	}
	return -1
}

// optionIndices keeps option order, not pick order.
func optionIndices(options, picked []string) []int {
	chosen := make(map[string]bool, len(picked))
	for _, p := range picked {
		chosen[p] = true
	}
	var out []int
	for i, option := range options {
		if chosen[option] {
			out = append(out, i)
		}
	}
	return out
}

func optionsAt(options []string, indices []int) []string {
	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(options) {
			out = append(out, options[idx])
		}
	}
	return out
}
