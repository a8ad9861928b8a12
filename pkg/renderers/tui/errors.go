package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C) or declined
	// to submit.
	ErrAborted = errors.New("tui: aborted")
	// ErrRejected is returned when a submission fails on messages no prompt
	// can fix, such as form-level refinement errors.
	ErrRejected = errors.New("tui: submission rejected")
)
