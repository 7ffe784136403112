package bot

import (
	"context"
	"fmt"
	"runtime/debug"
)

// PanicError is returned when a handler panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// respondFunc is the common shape of Handler.Respond and Fallback.Respond.
type respondFunc func(ctx context.Context, event InboundEvent, text string) error

// recovered runs fn, turning a panic into a *PanicError.
func recovered(fn respondFunc) respondFunc {
	return func(ctx context.Context, event InboundEvent, text string) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		return fn(ctx, event, text)
	}
}
