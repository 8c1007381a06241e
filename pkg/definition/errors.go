package definition

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned by queries on a set that has not finished loading.
	ErrNotLoaded = &StateError{Op: "query", Reason: "definitions not loaded"}
	// ErrLoaded is returned by mutations of a loaded set.
	ErrLoaded = &StateError{Op: "mutate", Reason: "definitions already loaded"}
)

// StateError reports an operation invalid in the current lifecycle state of a
// set.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is matches any StateError with the same reason, so callers can test with
// errors.Is(err, ErrNotLoaded).
func (e *StateError) Is(target error) bool {
	var t *StateError
	if !errors.As(target, &t) {
		return false
	}
	return e.Reason == t.Reason
}

// AspectError attaches a build failure to the aspect that caused it.
type AspectError struct {
	Aspect string
	Err    error
}

func (e *AspectError) Error() string {
	return fmt.Sprintf("aspect %q: %v", e.Aspect, e.Err)
}

func (e *AspectError) Unwrap() error { return e.Err }
