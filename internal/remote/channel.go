package remote

import (
	"context"
	"io"
)

// Channel delivers a Task to the side that executes it and returns its
// Result. An error means the exchange itself failed; task failures are
// reported in Result.Failure.
type Channel interface {
	Call(ctx context.Context, task Task, out io.Writer) (Result, error)
}

// Local is a Channel that executes tasks in the current process.
type Local struct {
	d *Dispatcher
}

// NewLocal returns a Channel backed by d.
func NewLocal(d *Dispatcher) *Local {
	return &Local{d: d}
}

// Call dispatches task in-process.
func (l *Local) Call(ctx context.Context, task Task, out io.Writer) (Result, error) {
	return l.d.Dispatch(ctx, task, out), nil
}
