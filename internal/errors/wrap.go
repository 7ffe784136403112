package errors

import (
	"errors"
	"fmt"
)

// Wrapper tags errors raised by one operation of one module.
type Wrapper struct {
	module    string
	operation string
}

// NewWrapper creates a wrapper, e.g. NewWrapper("karma", "update").
func NewWrapper(module, operation string) *Wrapper {
	return &Wrapper{module: module, operation: operation}
}

// Wrap attaches the user-facing reply to err. Returns nil if err is nil.
func (w *Wrapper) Wrap(err error, userMessage string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Module:      w.module,
		Operation:   w.operation,
		Cause:       err,
		UserMessage: userMessage,
	}
}

// Wrapf is Wrap with a formatted reply.
func (w *Wrapper) Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return w.Wrap(err, fmt.Sprintf(format, args...))
}

// WrappedError carries the internal cause and the reply the user sees.
type WrappedError struct {
	Module      string
	Operation   string
	Cause       error
	UserMessage string
}

func (e *WrappedError) Error() string {
	return fmt.Sprintf("[%s:%s] %v", e.Module, e.Operation, e.Cause)
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the reply attached anywhere in err's chain.
func UserMessage(err error) (string, bool) {
	var wrapped *WrappedError
	if errors.As(err, &wrapped) && wrapped.UserMessage != "" {
		return wrapped.UserMessage, true
	}
	return "", false
}
