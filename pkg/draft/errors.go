package draft

import "errors"

var (
	// ErrNoDraft is returned by Store.Load when the slot is empty.
	ErrNoDraft = errors.New("draft: no saved draft")
	// ErrCannotRetreat is returned by Retreat outside AtSection(i) with i > 0.
	ErrCannotRetreat = errors.New("draft: cannot go back from here")
	// ErrNotEditing is returned by Advance when no section is being edited.
	ErrNotEditing = errors.New("draft: session is not editing a section")
	// ErrNotReady is returned by Submit before every section is complete or
	// after a successful submission.
	ErrNotReady = errors.New("draft: session is not ready to submit")
)
