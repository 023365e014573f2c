package dialog

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not allowed in the current state
	ErrInvalidTransition = errors.New("invalid conversation transition")

	// ErrInvalidState is returned when a stored state is not a known state
	ErrInvalidState = errors.New("invalid conversation state")
)
