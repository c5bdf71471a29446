package draft

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formsheet/pkg/answers"
	"github.com/goliatone/go-formsheet/pkg/section"
)

// Submitter performs the final submission of the accumulated answers.
// submission.Pipeline and submission.Client both satisfy it.
type Submitter interface {
	SubmitValue(ctx context.Context, value answers.Value) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, value answers.Value) error

func (f SubmitterFunc) SubmitValue(ctx context.Context, value answers.Value) error {
	return f(ctx, value)
}

// Controller sequences a user through the catalogue's sections. It holds no
// per-session state; every transition takes and returns a Session.
type Controller struct {
	catalogue      *section.Catalogue
	store          Store
	submitter      Submitter
	clearOnSuccess bool
	logger         *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClearOnSuccess enables clearing the draft store after a successful
// submission. Drafts are retained by default.
func WithClearOnSuccess(enabled bool) Option {
	return func(c *Controller) {
		c.clearOnSuccess = enabled
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController wires a controller. The catalogue must contain at least one
// section.
func NewController(catalogue *section.Catalogue, store Store, submitter Submitter, opts ...Option) (*Controller, error) {
	if catalogue.Len() == 0 {
		return nil, errors.New("draft: catalogue has no sections")
	}
	if store == nil {
		return nil, errors.New("draft: store is required")
	}
	if submitter == nil {
		return nil, errors.New("draft: submitter is required")
	}
	c := &Controller{
		catalogue: catalogue,
		store:     store,
		submitter: submitter,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Catalogue returns the sections the controller walks.
func (c *Controller) Catalogue() *section.Catalogue { return c.catalogue }

// Start returns the initial session, AtSection(0), with answers rehydrated
// from the draft store when a draft exists.
func (c *Controller) Start(ctx context.Context) (Session, error) {
	saved, err := c.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoDraft):
		saved = answers.NewMapping()
	case err != nil:
		return Session{}, fmt.Errorf("draft: load: %w", err)
	case saved == nil:
		saved = answers.NewMapping()
	default:
		c.logger.Info("draft rehydrated", zap.Strings("sections", saved.Keys()))
	}
	return Session{
		Position:  0,
		Phase:     PhaseEditing,
		Answers:   saved,
		catalogue: c.catalogue,
	}, nil
}

// Advance records the answers for the current section and moves forward.
// Section answers must be an object (or null) whatever the section's
// Required flag, and required sections must also validate; a
// *section.ValidationError is returned with the session unchanged otherwise. The merged answers are persisted
// before the session moves on; a persistence failure also leaves the session
// unchanged.
func (c *Controller) Advance(ctx context.Context, s Session, sectionAnswers answers.Value) (Session, error) {
	if s.Phase != PhaseEditing {
		return s, ErrNotEditing
	}
	s = c.bind(s)
	sec, ok := s.Current()
	if !ok {
		return s, fmt.Errorf("draft: position %d out of range", s.Position)
	}

	if sectionAnswers == nil {
		sectionAnswers = answers.NewMapping()
	}
	switch sectionAnswers.(type) {
	case *answers.Mapping, answers.Null:
	default:
		return s, &section.ValidationError{
			Section: sec.Key,
			Issues:  []section.Issue{{Message: fmt.Sprintf("expected an object, got %s", sectionAnswers.Kind())}},
		}
	}
	if sec.Required {
		if err := section.Validate(sec, sectionAnswers); err != nil {
			return s, err
		}
	}

	merged := s.Answers.Clone()
	if merged == nil {
		merged = answers.NewMapping()
	}
	merged.Set(sec.Key, section.Normalize(sectionAnswers))

	if err := c.store.Save(ctx, merged); err != nil {
		c.logger.Warn("draft save failed", zap.String("section", sec.Key), zap.Error(err))
		return s, fmt.Errorf("draft: save: %w", err)
	}
	c.logger.Debug("section saved", zap.String("section", sec.Key), zap.Int("position", s.Position))

	return s.with(func(next *Session) {
		next.Answers = merged
		next.Err = nil
		if s.Position+1 < c.catalogue.Len() {
			next.Position = s.Position + 1
			return
		}
		next.Position = c.catalogue.Len()
		next.Phase = PhaseSubmitting
	}), nil
}

// Retreat moves back one section without touching the answers. From a
// pending or failed submission it returns to the last section.
func (c *Controller) Retreat(s Session) (Session, error) {
	if !s.CanRetreat() {
		return s, ErrCannotRetreat
	}
	s = c.bind(s)
	if s.Phase != PhaseEditing {
		return s.with(func(next *Session) {
			next.Phase = PhaseEditing
			next.Position = c.catalogue.Len() - 1
			next.Err = nil
		}), nil
	}
	return s.with(func(next *Session) {
		next.Position = s.Position - 1
	}), nil
}

// Submit hands the accumulated answers to the submitter. On failure the
// session moves to PhaseFailed with Err set, the draft store is left alone
// and Submit may be called again.
func (c *Controller) Submit(ctx context.Context, s Session) (Session, error) {
	if s.Phase != PhaseSubmitting && s.Phase != PhaseFailed {
		return s, ErrNotReady
	}
	s = c.bind(s)

	if err := c.submitter.SubmitValue(ctx, s.Answers); err != nil {
		c.logger.Warn("submission failed", zap.Error(err))
		return s.with(func(next *Session) {
			next.Phase = PhaseFailed
			next.Err = err
		}), err
	}

	if c.clearOnSuccess {
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Warn("draft clear failed", zap.Error(err))
		}
	}
	c.logger.Info("submission complete", zap.Bool("draft_cleared", c.clearOnSuccess))
	return s.with(func(next *Session) {
		next.Phase = PhaseSubmitted
		next.Err = nil
	}), nil
}

func (c *Controller) bind(s Session) Session {
	if s.catalogue == nil {
		s.catalogue = c.catalogue
	}
	return s
}
