package installer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/plexsphere/plexinstall/internal/elevate"
	"github.com/plexsphere/plexinstall/internal/identity"
	"github.com/plexsphere/plexinstall/internal/remote"
)

// Factory decides whether the systemd strategy applies to a target host and
// builds Installers for it.
type Factory struct {
	cfg      Config
	channel  remote.Channel
	ids      identity.Provider
	elevator elevate.Strategy
	listener io.Writer
	logger   *slog.Logger
}

// NewFactory creates a Factory with defaults applied to cfg. The probe runs
// through channel with the target's ordinary credentials; installers it
// builds elevate through elevator and stream progress to listener.
func NewFactory(cfg Config, channel remote.Channel, ids identity.Provider, elevator elevate.Strategy, listener io.Writer, logger *slog.Logger) *Factory {
	cfg.ApplyDefaults()
	if listener == nil {
		listener = io.Discard
	}
	return &Factory{
		cfg:      cfg,
		channel:  channel,
		ids:      ids,
		elevator: elevator,
		listener: listener,
		logger:   logger,
	}
}

// Probe runs the capability probe on the target host. It does not prompt
// and does not modify the host.
func (f *Factory) Probe(ctx context.Context) (bool, error) {
	task, err := remote.NewTask(TaskProbe, ProbeTask{UnitDir: f.cfg.UnitDir, Systemctl: f.cfg.Systemctl})
	if err != nil {
		return false, fmt.Errorf("installer: probe: %w", err)
	}

	res, err := f.channel.Call(ctx, task, f.listener)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, fmt.Errorf("%w: %w", ErrProbeAborted, ctxErr)
		}
		return false, fmt.Errorf("installer: probe: %w", err)
	}
	if res.Failure != nil {
		if res.Failure.Kind == remote.KindInterrupted {
			return false, fmt.Errorf("%w: %s", ErrProbeAborted, res.Failure.Message)
		}
		return false, fmt.Errorf("installer: probe: %w", res.Failure)
	}

	var ok bool
	if err := res.DecodeValue(&ok); err != nil {
		return false, fmt.Errorf("installer: probe: %w", err)
	}
	return ok, nil
}

// CreateIfApplicable returns an Installer when the target host runs
// systemd, or nil and no error when it does not. The service identity is
// derived only on the positive path.
func (f *Factory) CreateIfApplicable(ctx context.Context) (*Installer, error) {
	if err := f.cfg.Validate(); err != nil {
		return nil, err
	}

	ok, err := f.Probe(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		f.logger.Debug("systemd installer not applicable", "component", "installer")
		return nil, nil
	}

	id, err := identity.ForProvider(f.ids)
	if err != nil {
		return nil, fmt.Errorf("installer: %w", err)
	}

	ins := newInstaller(f.cfg, id, f.elevator, f.listener, f.logger)
	ins.logger.Info("systemd installer applicable", "service", ins.ServiceName())
	return ins, nil
}
