package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// maxTaskSize bounds a task read from a stream.
const maxTaskSize = 1 << 20

// ReadTask reads one JSON-encoded Task from r.
func ReadTask(r io.Reader) (Task, error) {
	var t Task
	if err := json.NewDecoder(io.LimitReader(r, maxTaskSize)).Decode(&t); err != nil {
		return Task{}, fmt.Errorf("remote: read task: %w", err)
	}
	if t.Kind == "" {
		return Task{}, fmt.Errorf("remote: read task: missing kind")
	}
	return t, nil
}

// Serve is the receiving end of a process-boundary Channel: it dispatches
// task, streaming operator output to progress, and writes the Result as a
// single JSON document to results.
func Serve(ctx context.Context, d *Dispatcher, task Task, results, progress io.Writer) error {
	res := d.Dispatch(ctx, task, progress)
	if err := json.NewEncoder(results).Encode(res); err != nil {
		return fmt.Errorf("remote: write result: %w", err)
	}
	return nil
}
