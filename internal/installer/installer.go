package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/user"
	"path/filepath"

	"github.com/plexsphere/plexinstall/internal/elevate"
	"github.com/plexsphere/plexinstall/internal/prompt"
	"github.com/plexsphere/plexinstall/internal/remote"
	"github.com/plexsphere/plexinstall/internal/unitfile"
)

// Prompt texts shown to the operator, in the order they are asked.
const (
	promptSuperuser = "Specify the super user name to 'sudo' to"
	promptSecret    = "Specify your password for sudo (or empty if you can sudo without password)"
)

// LaunchConfiguration describes the worker to install. It is read-only for
// the duration of an Install call.
type LaunchConfiguration struct {
	// ArtifactPath is the local artifact copied into StorageDir.
	ArtifactPath string

	// StorageDir is the worker's storage directory; the artifact is
	// deployed inside it.
	StorageDir string

	// Args are the worker's command-line arguments.
	Args []string

	// RuntimePath is the program that runs the artifact. Empty selects
	// Config.DefaultRuntime.
	RuntimePath string
}

// Validate checks that required fields are set.
func (l LaunchConfiguration) Validate() error {
	if l.ArtifactPath == "" {
		return errors.New("installer: launch: ArtifactPath is required")
	}
	if l.StorageDir == "" {
		return errors.New("installer: launch: StorageDir is required")
	}
	return nil
}

// Outcome is the result of a successful Install.
type Outcome int

const (
	// OutcomeTerminateSession means the service manager now owns the
	// worker and the calling program should exit with status 0.
	OutcomeTerminateSession Outcome = iota
	// OutcomeContinue means the caller may keep running.
	OutcomeContinue
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTerminateSession:
		return "terminate_session"
	case OutcomeContinue:
		return "continue"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Installer performs the privileged half of the installation for one
// service identity. It is created by Factory.CreateIfApplicable.
type Installer struct {
	cfg      Config
	identity string
	elevator elevate.Strategy
	listener io.Writer
	logger   *slog.Logger
}

func newInstaller(cfg Config, identity string, elevator elevate.Strategy, listener io.Writer, logger *slog.Logger) *Installer {
	if listener == nil {
		listener = io.Discard
	}
	return &Installer{
		cfg:      cfg,
		identity: identity,
		elevator: elevator,
		listener: listener,
		logger:   logger.With("component", "installer"),
	}
}

// Identity returns the service identity.
func (ins *Installer) Identity() string {
	return ins.identity
}

// ServiceName returns the systemd service name, "<prefix><identity>".
func (ins *Installer) ServiceName() string {
	return ins.cfg.ServicePrefix + ins.identity
}

// UnitPath returns the path of the unit file Install writes.
func (ins *Installer) UnitPath() string {
	return filepath.Join(ins.cfg.UnitDir, unitfile.ServiceFileName(ins.ServiceName()))
}

// ConfirmationText describes what Install is about to do, for display
// before the operator is asked for credentials.
func (ins *Installer) ConfirmationText() string {
	return fmt.Sprintf("This will install the worker as the systemd service %s so that it starts automatically when the machine boots.", ins.ServiceName())
}

// Install asks for administrator credentials through p and runs the
// elevated install sequence. The login prompt is always issued before the
// secret prompt, and neither is retried.
//
// Side effects happen in order (artifact copy, unit file write, service
// start) and are not reverted when a later step fails.
func (ins *Installer) Install(ctx context.Context, launch LaunchConfiguration, p prompt.Prompter) (Outcome, error) {
	task, err := ins.prepare(launch)
	if err != nil {
		return 0, err
	}

	login, err := p.Prompt(promptSuperuser, ins.cfg.DefaultSuperuser)
	if err != nil {
		return 0, fmt.Errorf("installer: prompt login: %w", err)
	}
	if login == "" {
		login = ins.cfg.DefaultSuperuser
	}
	secret, err := p.PromptPassword(promptSecret)
	if err != nil {
		return 0, fmt.Errorf("installer: prompt secret: %w", err)
	}
	cred := elevate.Credential{User: login, Secret: secret}

	rt, err := remote.NewTask(TaskInstall, task)
	if err != nil {
		return 0, fmt.Errorf("installer: %w", err)
	}

	ins.logger.Info("installing service",
		"service", task.ServiceName,
		"artifact", task.ArtifactPath(),
		"credential", cred,
	)

	res, err := ins.elevator.Run(ctx, cred, rt, ins.listener)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("%w: %w", ErrInterrupted, ctxErr)
		}
		return 0, fmt.Errorf("installer: %w", err)
	}
	if res.Failure != nil {
		err := fromFailure(res.Failure, task)
		var ie *InstallError
		if errors.As(err, &ie) && ie.Partial() {
			ins.logger.Error("service installed but not started",
				"service", task.ServiceName,
				"unit", task.UnitPath(),
				"exit_code", ie.ExitCode,
			)
		}
		return 0, err
	}

	ins.logger.Info("service installed and started", "service", task.ServiceName)
	if ins.cfg.KeepSession {
		return OutcomeContinue, nil
	}
	return OutcomeTerminateSession, nil
}

// prepare resolves everything the elevated side needs without prompting.
func (ins *Installer) prepare(launch LaunchConfiguration) (InstallTask, error) {
	if err := launch.Validate(); err != nil {
		return InstallTask{}, err
	}

	src, err := filepath.Abs(launch.ArtifactPath)
	if err != nil {
		return InstallTask{}, fmt.Errorf("installer: resolve artifact path: %w", err)
	}
	storage, err := filepath.Abs(launch.StorageDir)
	if err != nil {
		return InstallTask{}, fmt.Errorf("installer: resolve storage dir: %w", err)
	}
	u, err := user.Current()
	if err != nil {
		return InstallTask{}, fmt.Errorf("installer: resolve current user: %w", err)
	}

	runtime := launch.RuntimePath
	if runtime == "" {
		runtime = ins.cfg.DefaultRuntime
	}

	return InstallTask{
		ServiceName:    ins.ServiceName(),
		UnitDir:        ins.cfg.UnitDir,
		Systemctl:      ins.cfg.Systemctl,
		StorageDir:     storage,
		ArtifactName:   ins.cfg.ArtifactName,
		SourceArtifact: src,
		UserName:       u.Username,
		Runtime:        runtime,
		Args:           unitfile.QuoteArgs(launch.Args),
	}, nil
}
