package prompt

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C). The draft is
	// left as it was after the last completed section.
	ErrAborted = errors.New("prompt: aborted")
	// ErrQuit is returned when the user chooses to stop after a failed
	// submission, keeping the draft for later.
	ErrQuit = errors.New("prompt: quit with draft saved")
)
