package installer

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/plexsphere/plexinstall/internal/probe"
	"github.com/plexsphere/plexinstall/internal/remote"
)

// Remote task kinds handled by RegisterTasks.
const (
	TaskProbe   = "systemd.probe"
	TaskInstall = "systemd.install"
)

// ProbeTask carries the probe parameters so the receiving side needs no
// configuration of its own.
type ProbeTask struct {
	UnitDir   string `json:"unit_dir"`
	Systemctl string `json:"systemctl"`
}

// RegisterTasks installs the probe and install handlers on d. Both the
// unprivileged remote side and the elevated side serve tasks through a
// Dispatcher set up this way.
func RegisterTasks(d *remote.Dispatcher, logger *slog.Logger) {
	d.Register(TaskProbe, func(ctx context.Context, task remote.Task, _ io.Writer) (any, error) {
		var p ProbeTask
		if err := task.Decode(&p); err != nil {
			return nil, err
		}
		ok, err := probe.Systemd{UnitDir: p.UnitDir, Systemctl: p.Systemctl, Logger: logger}.Check(ctx)
		if err != nil {
			if errors.Is(err, probe.ErrAborted) {
				return nil, &remote.Failure{Kind: remote.KindInterrupted, Message: err.Error()}
			}
			return nil, err
		}
		return ok, nil
	})

	d.Register(TaskInstall, func(ctx context.Context, task remote.Task, out io.Writer) (any, error) {
		var t InstallTask
		if err := task.Decode(&t); err != nil {
			return nil, err
		}
		if err := Apply(ctx, t, out, logger); err != nil {
			return nil, toFailure(err)
		}
		return true, nil
	})
}
