package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
)

// Handler executes one task kind. Output meant for the operator is written
// to out while the handler runs. The returned value is encoded as the result
// value; a returned *Failure is passed through unchanged.
type Handler func(ctx context.Context, task Task, out io.Writer) (any, error)

// Dispatcher maps task kinds to handlers.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger.With("component", "remote"),
		handlers: make(map[string]Handler),
	}
}

// Register installs h for kind, replacing any previous handler.
func (d *Dispatcher) Register(kind string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Kinds returns the registered task kinds in sorted order.
func (d *Dispatcher) Kinds() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	kinds := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Dispatch runs the handler for task.Kind and folds its outcome into a
// Result. It never returns an error: every failure becomes Result.Failure.
func (d *Dispatcher) Dispatch(ctx context.Context, task Task, out io.Writer) Result {
	if out == nil {
		out = io.Discard
	}
	res := Result{TaskID: task.ID}

	d.mu.RLock()
	h, ok := d.handlers[task.Kind]
	d.mu.RUnlock()
	if !ok {
		res.Failure = &Failure{Kind: KindUnknownTask, Message: fmt.Sprintf("no handler for %q", task.Kind)}
		return res
	}

	d.logger.Debug("task started", "task_id", task.ID, "kind", task.Kind)

	value, err := h(ctx, task, out)
	if err != nil {
		res.Failure = toFailure(ctx, err)
		d.logger.Debug("task failed",
			"task_id", task.ID,
			"kind", task.Kind,
			"failure", res.Failure.Kind,
			"error", err,
		)
		return res
	}

	if value != nil {
		data, err := json.Marshal(value)
		if err != nil {
			res.Failure = &Failure{Kind: KindInternal, Message: fmt.Sprintf("encode result: %v", err)}
			return res
		}
		res.Value = data
	}
	d.logger.Debug("task completed", "task_id", task.ID, "kind", task.Kind)
	return res
}

func toFailure(ctx context.Context, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindInterrupted, Message: err.Error()}
	}
	return &Failure{Kind: KindInternal, Message: err.Error()}
}
