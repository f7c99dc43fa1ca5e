package reconciler

import (
	"errors"
	"fmt"
)

// ErrUnsupportedEnvironment fails a pass on a host where the subsystem
// cannot be managed. It is returned before any artifact is written.
var ErrUnsupportedEnvironment = errors.New("unsupported environment")

// Unsupported wraps ErrUnsupportedEnvironment with a reason.
func Unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedEnvironment, fmt.Sprintf(format, args...))
}

// PanicError is the failure recorded when a rebuild or restart panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic during pass: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
