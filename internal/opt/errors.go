package opt

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the errors.Is target for all input validation
// failures.
var ErrInvalidInput = errors.New("opt: invalid input")

// ErrBackend is the errors.Is target for all backend failures.
var ErrBackend = errors.New("opt: backend failure")

// InputError reports malformed run inputs: an empty x0, bounds whose
// lengths do not match x0, inverted bounds, or bounds the selected backend
// cannot honor. It is raised before any backend invocation and before any
// objective evaluation.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool {
	if target == ErrInvalidInput {
		return true
	}
	_, ok := target.(*InputError)
	return ok
}

// BackendError reports a failure raised by a wrapped backend during setup
// or execution. The original error is reachable through Unwrap; adapters
// never retry or suppress it.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}
