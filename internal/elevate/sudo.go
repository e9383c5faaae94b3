package elevate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/plexsphere/plexinstall/internal/remote"
)

// DefaultSudoPath is the elevation helper.
const DefaultSudoPath = "sudo"

// ExitNoResult is the exit status of an exec-task process that failed before
// it could write a result, for example on a bad flag or an undecodable task.
// sudo itself exits with status 1 when it refuses to run the command.
const ExitNoResult = 3

// Config holds elevation settings.
type Config struct {
	// SudoPath is the sudo binary. Default: sudo
	SudoPath string `yaml:"sudo_path"`

	// Executable is the program re-invoked under sudo as "<Executable>
	// exec-task". Default: the running executable.
	Executable string `yaml:"executable"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.SudoPath == "" {
		c.SudoPath = DefaultSudoPath
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.SudoPath == "" {
		return errors.New("elevate: config: SudoPath is required")
	}
	return nil
}

// Sudo runs tasks by re-invoking this program under sudo:
//
//	sudo -S -p "" -u <user> -- <exe> exec-task --task <base64 JSON>
//
// The secret is written to sudo's stdin. The child's stderr (sudo's own
// messages and the task's progress output) is forwarded to out as it is
// produced; its stdout carries the JSON result.
type Sudo struct {
	sudoPath string
	exe      string
	execArgs []string
	logger   *slog.Logger
}

// NewSudo creates a Sudo strategy. execArgs are appended after "exec-task"
// (for example a log level flag).
func NewSudo(cfg Config, logger *slog.Logger, execArgs ...string) (*Sudo, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exe := cfg.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("elevate: resolve executable: %w", err)
		}
		if exe, err = filepath.EvalSymlinks(self); err != nil {
			return nil, fmt.Errorf("elevate: resolve symlinks: %w", err)
		}
	}

	return &Sudo{
		sudoPath: cfg.SudoPath,
		exe:      exe,
		execArgs: execArgs,
		logger:   logger.With("component", "elevate"),
	}, nil
}

// Run executes task as cred.User through sudo.
func (s *Sudo) Run(ctx context.Context, cred Credential, task remote.Task, out io.Writer) (remote.Result, error) {
	if out == nil {
		out = io.Discard
	}
	if cred.User == "" {
		return remote.Result{}, &Error{User: cred.User, Err: errors.New("empty user name")}
	}

	encoded, err := remote.EncodeTask(task)
	if err != nil {
		return remote.Result{}, err
	}

	args := []string{"-S", "-p", "", "-u", cred.User, "--", s.exe, "exec-task", "--task", encoded}
	args = append(args, s.execArgs...)

	cmd := exec.CommandContext(ctx, s.sudoPath, args...)
	if cred.Secret != "" {
		cmd.Stdin = strings.NewReader(cred.Secret + "\n")
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = out

	s.logger.Info("running elevated task", "task_id", task.ID, "kind", task.Kind, "credential", cred)
	runErr := cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return remote.Result{}, fmt.Errorf("elevate: %s: %w", task.Kind, ctxErr)
	}

	res, err := remote.DecodeResult(task, stdout.Bytes(), runErr)
	if err != nil {
		if taskStarted(runErr) {
			return remote.Result{}, fmt.Errorf("elevate: %s ran as %s without a result: %w", task.Kind, cred.User, err)
		}
		// sudo refused or could not start.
		return remote.Result{}, &Error{User: cred.User, Err: err}
	}
	return res, nil
}

// taskStarted reports whether a run that produced no result got past sudo.
// sudo exits with status 1 for every failure of its own; any other status
// (ExitNoResult, a Go panic's 2, a clean 0) comes from the task process.
func taskStarted(runErr error) bool {
	if runErr == nil {
		return true
	}
	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return false
	}
	code := exitErr.ExitCode()
	return code != 1 && code != -1
}
