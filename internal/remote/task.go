// Package remote carries self-contained units of work across a process or
// machine boundary as plain request/response values.
package remote

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Task is a serializable request. It holds only plain data: the receiving
// side looks Kind up in its Dispatcher and decodes Payload itself.
type Task struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Result is the response to a Task: either a Value or a Failure.
type Result struct {
	TaskID  string          `json:"task_id"`
	Value   json.RawMessage `json:"value,omitempty"`
	Failure *Failure        `json:"failure,omitempty"`
}

// Failure kinds understood by every dispatcher.
const (
	// KindInterrupted means the task was cancelled while running.
	KindInterrupted = "interrupted"
	// KindUnknownTask means the receiver has no handler for the task kind.
	KindUnknownTask = "unknown_task"
	// KindBadPayload means the payload could not be decoded.
	KindBadPayload = "bad_payload"
	// KindInternal is any other handler error.
	KindInternal = "internal"
)

// Failure is a structured task failure. It is an error so handlers can
// return it directly and callers can inspect it with errors.As.
type Failure struct {
	Kind     string `json:"kind"`
	Reason   string `json:"reason,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	Message  string `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("remote: %s: %s", f.Kind, f.Message)
}

// NewTask builds a Task of the given kind with payload encoded as JSON.
func NewTask(kind string, payload any) (Task, error) {
	t := Task{ID: uuid.NewString(), Kind: kind}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Task{}, fmt.Errorf("remote: encode %s payload: %w", kind, err)
		}
		t.Payload = data
	}
	return t, nil
}

// Decode unmarshals the task payload into v.
func (t Task) Decode(v any) error {
	if len(t.Payload) == 0 {
		return &Failure{Kind: KindBadPayload, Message: "empty payload for " + t.Kind}
	}
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return &Failure{Kind: KindBadPayload, Message: err.Error()}
	}
	return nil
}

// Err returns the Failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Failure != nil {
		return r.Failure
	}
	return nil
}

// DecodeValue unmarshals the result value into v.
func (r Result) DecodeValue(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Value) == 0 {
		return errors.New("remote: result has no value")
	}
	if err := json.Unmarshal(r.Value, v); err != nil {
		return fmt.Errorf("remote: decode result: %w", err)
	}
	return nil
}

// EncodeTask returns t as base64 JSON, safe to pass as a single argv element.
func EncodeTask(t Task) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("remote: encode task: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeTask reverses EncodeTask.
func DecodeTask(s string) (Task, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Task{}, fmt.Errorf("remote: decode task: %w", err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("remote: decode task: %w", err)
	}
	if t.Kind == "" {
		return Task{}, errors.New("remote: decode task: missing kind")
	}
	return t, nil
}

// DecodeResult turns the output of an exec-task process into a Result.
// A well-formed result wins over a non-zero exit; without one, runErr (or a
// decode error) is the failure of the exchange.
func DecodeResult(task Task, stdout []byte, runErr error) (Result, error) {
	var res Result
	if len(bytes.TrimSpace(stdout)) > 0 {
		if err := json.Unmarshal(stdout, &res); err == nil {
			if res.TaskID != "" && res.TaskID != task.ID {
				return Result{}, fmt.Errorf("remote: result for task %s, want %s", res.TaskID, task.ID)
			}
			return res, nil
		} else if runErr == nil {
			return Result{}, fmt.Errorf("remote: decode result: %w", err)
		}
	}
	if runErr != nil {
		return Result{}, fmt.Errorf("remote: %s: %w", task.Kind, runErr)
	}
	return Result{}, fmt.Errorf("remote: %s: no result", task.Kind)
}
