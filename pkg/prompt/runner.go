package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/flosch/pongo2/v6"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsheet/pkg/answers"
	"github.com/goliatone/go-formsheet/pkg/draft"
	"github.com/goliatone/go-formsheet/pkg/section"
	"github.com/goliatone/go-formsheet/pkg/submission"
)

// Menu entries offered between sections.
const (
	ChoiceFill        = "Fill in this section"
	ChoiceBack        = "Go back to previous section"
	ChoiceSubmit      = "Submit"
	ChoiceBackToLast  = "Go back to last section"
	ChoiceRetry       = "Retry submission"
	ChoiceQuitAndKeep = "Quit and keep my draft"
)

// Runner drives a draft.Controller from an interactive terminal.
type Runner struct {
	controller *draft.Controller
	driver     PromptDriver
	screens    *Screens
	collector  *Collector
	logger     *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPromptDriver injects the driver used for every prompt.
func WithPromptDriver(driver PromptDriver) RunnerOption {
	return func(r *Runner) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithScreens overrides the screen templates.
func WithScreens(screens *Screens) RunnerOption {
	return func(r *Runner) {
		if screens != nil {
			r.screens = screens
		}
	}
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner builds a runner. Without WithPromptDriver it talks to the
// process's terminal through survey.
func NewRunner(controller *draft.Controller, opts ...RunnerOption) (*Runner, error) {
	if controller == nil {
		return nil, errors.New("prompt: controller is required")
	}
	r := &Runner{
		controller: controller,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver()
	}
	if r.screens == nil {
		screens, err := DefaultScreens()
		if err != nil {
			return nil, err
		}
		r.screens = screens
	}
	collector, err := NewCollector(r.driver)
	if err != nil {
		return nil, err
	}
	r.collector = collector
	return r, nil
}

// Run walks the user from the first section to a successful submission. It
// returns ErrAborted when the user interrupts a prompt and ErrQuit when they
// give up after a failed submission; in both cases the draft keeps every
// section completed so far.
func (r *Runner) Run(ctx context.Context) (draft.Session, error) {
	s, err := r.controller.Start(ctx)
	if err != nil {
		return s, err
	}
	if s.Answers.Len() > 0 {
		if err := r.show(ctx, ScreenResume, pongo2.Context{"sections": s.Answers.Keys()}); err != nil {
			return s, err
		}
	}

	pending := make(map[string]*answers.Mapping)
	for {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		r.logger.Debug("form state", zap.Stringer("state", s))

		switch s.Phase {
		case draft.PhaseEditing:
			s, err = r.edit(ctx, s, pending)
		case draft.PhaseSubmitting:
			s, err = r.review(ctx, s)
		case draft.PhaseFailed:
			s, err = r.failed(ctx, s)
		case draft.PhaseSubmitted:
			return s, r.show(ctx, ScreenComplete, pongo2.Context{})
		default:
			return s, fmt.Errorf("prompt: unexpected phase %s", s.Phase)
		}
		if err != nil {
			return s, err
		}
	}
}

func (r *Runner) edit(ctx context.Context, s draft.Session, pending map[string]*answers.Mapping) (draft.Session, error) {
	sec, ok := s.Current()
	if !ok {
		return s, fmt.Errorf("prompt: no section at position %d", s.Position)
	}

	header, err := r.screens.Section(sec, s.Position, s.Total(), s.Answers.Has(sec.Key))
	if err != nil {
		return s, err
	}
	if err := r.driver.Info(ctx, header); err != nil {
		return s, err
	}

	if s.CanRetreat() {
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message: "What would you like to do?",
			Options: []string{ChoiceFill, ChoiceBack},
		})
		if err != nil {
			return s, err
		}
		if idx == 1 {
			return r.controller.Retreat(s)
		}
	}

	prefill, ok := pending[sec.Key]
	if !ok {
		prefill, _ = s.SectionAnswers(sec.Key)
	}
	collected, err := r.collector.Collect(ctx, sec, prefill)
	if err != nil {
		return s, err
	}

	for {
		next, err := r.controller.Advance(ctx, s, collected)
		if err == nil {
			delete(pending, sec.Key)
			return next, nil
		}

		pending[sec.Key] = collected
		var verr *section.ValidationError
		if errors.As(err, &verr) {
			text, rerr := r.screens.Issues(verr)
			if rerr != nil {
				return s, rerr
			}
			return s, r.driver.Info(ctx, text)
		}

		r.logger.Warn("section not saved", zap.String("section", sec.Key), zap.Error(err))
		if err := r.driver.Info(ctx, fmt.Sprintf("Could not save your progress: %v", err)); err != nil {
			return s, err
		}
		retry, cerr := r.driver.Confirm(ctx, ConfirmConfig{Message: "Try saving again?", Default: true})
		if cerr != nil {
			return s, cerr
		}
		if !retry {
			return s, err
		}
	}
}

func (r *Runner) review(ctx context.Context, s draft.Session) (draft.Session, error) {
	if err := r.show(ctx, ScreenReview, pongo2.Context{"total": s.Total()}); err != nil {
		return s, err
	}
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message: "Ready to submit?",
		Options: []string{ChoiceSubmit, ChoiceBackToLast},
	})
	if err != nil {
		return s, err
	}
	if idx == 1 {
		return r.controller.Retreat(s)
	}
	return r.submit(ctx, s)
}

func (r *Runner) failed(ctx context.Context, s draft.Session) (draft.Session, error) {
	if err := r.show(ctx, ScreenFailed, pongo2.Context{"detail": failureDetail(s.Err)}); err != nil {
		return s, err
	}
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message: "What would you like to do?",
		Options: []string{ChoiceRetry, ChoiceBackToLast, ChoiceQuitAndKeep},
	})
	if err != nil {
		return s, err
	}
	switch idx {
	case 0:
		return r.submit(ctx, s)
	case 1:
		return r.controller.Retreat(s)
	default:
		return s, ErrQuit
	}
}

func (r *Runner) submit(ctx context.Context, s draft.Session) (draft.Session, error) {
	next, err := r.controller.Submit(ctx, s)
	if err != nil && next.Phase == draft.PhaseFailed {
		r.logger.Info("submission failed", zap.String("code", string(submission.CodeOf(err))))
		return next, nil
	}
	return next, err
}

func (r *Runner) show(ctx context.Context, screen string, data pongo2.Context) error {
	text, err := r.screens.Render(screen, data)
	if err != nil {
		return err
	}
	return r.driver.Info(ctx, text)
}

func failureDetail(err error) string {
	if err == nil {
		return ""
	}
	var serr *submission.Error
	if errors.As(err, &serr) {
		return serr.Detail()
	}
	return err.Error()
}
