package registry

import (
	"errors"
	"fmt"
)

// ErrMergeSafety is matched by every SafetyError.
var ErrMergeSafety = errors.New("registry merge safety violation")

// SafetyError reports a merge that would corrupt an entry the daemon does
// not own, or leave the registry without its bootstrap entry.
type SafetyError struct {
	Name   string
	Reason string
}

func (e *SafetyError) Error() string {
	return fmt.Sprintf("refusing to merge %q: %s", e.Name, e.Reason)
}

func (e *SafetyError) Unwrap() error {
	return ErrMergeSafety
}
