package automation

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCollaborator is returned by New when a required dependency
	// is nil.
	ErrMissingCollaborator = errors.New("missing collaborator")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("hub already running")
)

// QueryError wraps a failure of an OS or UI query made while moving windows.
// It is delivered through OnException, never returned to the UI layer.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// panicError carries a recovered panic value.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
