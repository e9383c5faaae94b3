// Package elevate runs remote tasks with administrator privileges. How the
// privileges are obtained (Strategy) is kept apart from what the task does.
package elevate

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/plexsphere/plexinstall/internal/remote"
)

// Credential is an administrator login and secret, obtained interactively
// right before use. It must never be logged or persisted; String and
// LogValue redact the secret.
type Credential struct {
	User   string
	Secret string
}

// String returns the credential with the secret redacted.
func (c Credential) String() string {
	return fmt.Sprintf("%s:<redacted>", c.User)
}

// LogValue implements slog.LogValuer.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(slog.String("user", c.User), slog.Bool("secret_set", c.Secret != ""))
}

// Strategy executes a task under elevated privileges. Task failures come
// back in the Result; an *Error means elevation itself failed and nothing
// ran.
type Strategy interface {
	Run(ctx context.Context, cred Credential, task remote.Task, out io.Writer) (remote.Result, error)
}

// Error reports that elevation could not be established, for example
// because the secret was rejected or sudo could not be run. A task that was
// started with elevated privileges but exited without a result is not an
// Error; see Sudo.Run.
type Error struct {
	User string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("elevate: as %s: %v", e.User, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Direct runs tasks in-process without changing privileges. It is used when
// the process already runs as root, and in tests.
type Direct struct {
	d *remote.Dispatcher
}

// NewDirect returns a Strategy that dispatches tasks to d.
func NewDirect(d *remote.Dispatcher) *Direct {
	return &Direct{d: d}
}

// Run dispatches task ignoring cred.
func (s *Direct) Run(ctx context.Context, _ Credential, task remote.Task, out io.Writer) (remote.Result, error) {
	return s.d.Dispatch(ctx, task, out), nil
}

// RootChecker abstracts privilege checking for testability.
type RootChecker interface {
	// IsRoot returns true if the current process has root privileges.
	IsRoot() bool
}

type realRootChecker struct{}

// NewRootChecker returns a RootChecker that checks the effective UID.
func NewRootChecker() RootChecker {
	return realRootChecker{}
}

func (realRootChecker) IsRoot() bool {
	return unix.Geteuid() == 0
}

// Select returns direct when root reports root privileges, and otherwise
// elevated.
func Select(root RootChecker, direct, elevated Strategy) Strategy {
	if root.IsRoot() {
		return direct
	}
	return elevated
}
