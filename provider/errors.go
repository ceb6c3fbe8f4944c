package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned by constructors given unusable settings.
	ErrInvalidConfiguration = errors.New("provider: invalid configuration")
	// ErrUnavailable marks transport failures: refused/closed connections, timeouts.
	ErrUnavailable = errors.New("provider: backend unavailable")
	// ErrProtocol marks errors replied by the backend itself.
	ErrProtocol = errors.New("provider: protocol error")
)

// Error is a classified backend failure. errors.Is matches both Kind and the
// underlying Err.
type Error struct {
	Backend string
	Op      string
	Kind    error
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Backend, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Invalid wraps a constructor validation failure.
func Invalid(backend, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", backend, ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
