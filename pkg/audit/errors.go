package audit

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrCallbackNotCallable indicates SetCallback was given a nil callback.
	ErrCallbackNotCallable = errors.New("callback must be callable")

	// ErrRuntimeClosed indicates the bridge's runtime state is nil or closed.
	ErrRuntimeClosed = errors.New("runtime state not available")
)

// RegistrationError indicates the one-time instrumentation of the runtime
// failed. Interception is not active when this is returned.
type RegistrationError struct {
	// Operation is the audited operation whose instrumentation failed.
	Operation string

	// Cause is the underlying failure.
	Cause error
}

// Error returns the error message.
func (e *RegistrationError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("audit hook registration failed for %q: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("audit hook registration failed: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RegistrationError) Unwrap() error {
	return e.Cause
}
