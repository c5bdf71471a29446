package draft

import (
	"fmt"

	"github.com/goliatone/go-formsheet/pkg/answers"
	"github.com/goliatone/go-formsheet/pkg/section"
)

// Phase is the coarse state of a form session.
type Phase int

const (
	// PhaseEditing means the user is on section Position.
	PhaseEditing Phase = iota
	// PhaseSubmitting means every section is complete and the final
	// submission has not succeeded yet.
	PhaseSubmitting
	// PhaseSubmitted is terminal.
	PhaseSubmitted
	// PhaseFailed means the last submission attempt failed; Submit may be
	// retried.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseEditing:
		return "editing"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSubmitted:
		return "submitted"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Session is the explicit state threaded through every Controller
// transition. Transitions return a new Session and never modify the one they
// were given, including its Answers mapping.
type Session struct {
	Position int
	Phase    Phase
	Answers  *answers.Mapping
	Err      error

	catalogue *section.Catalogue
}

// Current returns the section being edited.
func (s Session) Current() (section.Section, bool) {
	if s.Phase != PhaseEditing {
		return section.Section{}, false
	}
	return s.catalogue.At(s.Position)
}

// SectionAnswers returns the accumulated answers for key, used to prefill a
// section that is revisited or resumed.
func (s Session) SectionAnswers(key string) (*answers.Mapping, bool) {
	return s.Answers.Mapping(key)
}

// Total returns the number of sections in the session's catalogue.
func (s Session) Total() int { return s.catalogue.Len() }

// CanRetreat reports whether Retreat would succeed: from AtSection(i) with
// i > 0, or from a pending or failed submission back to the last section.
func (s Session) CanRetreat() bool {
	switch s.Phase {
	case PhaseEditing:
		return s.Position > 0
	case PhaseSubmitting, PhaseFailed:
		return true
	default:
		return false
	}
}

func (s Session) String() string {
	if s.Phase == PhaseEditing {
		return fmt.Sprintf("AtSection(%d)", s.Position)
	}
	return s.Phase.String()
}

func (s Session) with(fn func(*Session)) Session {
	next := s
	fn(&next)
	return next
}
