// Package probe decides, without privileges and without mutating state,
// whether a host can run services under systemd.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/plexsphere/plexinstall/internal/proc"
)

// DefaultUnitDir is where system unit files are written.
const DefaultUnitDir = "/etc/systemd/system"

// DefaultSystemctl is the service manager command queried by the probe.
const DefaultSystemctl = "systemctl"

// ErrAborted is returned when the probe was interrupted while waiting for
// the service manager query. It is distinct from a negative result.
var ErrAborted = errors.New("probe: aborted")

// Systemd checks for a usable systemd installation.
type Systemd struct {
	// UnitDir must exist and be a directory. Default: /etc/systemd/system
	UnitDir string

	// Systemctl is the command run as "<Systemctl> list-units". Default: systemctl
	Systemctl string

	Logger *slog.Logger
}

// Check returns true iff UnitDir is a directory and "systemctl list-units"
// exits with status 0.
//
// A service manager command that cannot be spawned at all is a negative
// result, not an error: that is the expected outcome on hosts without
// systemd. Cancellation of ctx while the query runs returns ErrAborted.
func (p Systemd) Check(ctx context.Context) (bool, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "probe")

	unitDir := p.UnitDir
	if unitDir == "" {
		unitDir = DefaultUnitDir
	}
	systemctl := p.Systemctl
	if systemctl == "" {
		systemctl = DefaultSystemctl
	}

	info, err := os.Stat(unitDir)
	if err != nil {
		logger.Debug("unit directory not usable", "path", unitDir, "error", err)
		return false, nil
	}
	if !info.IsDir() {
		logger.Debug("unit directory is not a directory", "path", unitDir)
		return false, nil
	}

	res, err := proc.Run(ctx, io.Discard, systemctl, "list-units")
	if err != nil {
		var startErr *proc.StartError
		switch {
		case ctx.Err() != nil:
			return false, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		case errors.As(err, &startErr):
			logger.Debug("service manager not available", "command", systemctl, "error", err)
			return false, nil
		default:
			return false, fmt.Errorf("probe: list-units: %w", err)
		}
	}

	if !res.Success() {
		logger.Debug("service manager not running", "command", systemctl, "exit_code", res.ExitCode)
		return false, nil
	}
	return true, nil
}
