package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plexsphere/plexinstall/internal/elevate"
	"github.com/plexsphere/plexinstall/internal/identity"
	"github.com/plexsphere/plexinstall/internal/installer"
	"github.com/plexsphere/plexinstall/internal/prompt"
	"github.com/plexsphere/plexinstall/internal/remote"
)

var (
	installArtifact   string
	installStorageDir string
	installRuntime    string
)

// Overridable in tests.
var (
	exitFunc    = os.Exit
	rootChecker = elevate.NewRootChecker()
	newPrompter = func(cmd *cobra.Command) prompt.Prompter {
		return prompt.NewTerminal(os.Stdin, cmd.ErrOrStderr())
	}
)

var installCmd = &cobra.Command{
	Use:   "install --artifact PATH --storage-dir DIR [-- WORKER_ARGS...]",
	Short: "Install the worker as a systemd service",
	Long: "Install copies the worker artifact into the storage directory, writes a systemd\n" +
		"unit that runs it on boot and starts the service. Administrator credentials are\n" +
		"asked for interactively unless plexinstall already runs as root.\n\n" +
		"On success the process exits: the service manager now owns the worker.",
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installArtifact, "artifact", "", "worker artifact to deploy")
	installCmd.Flags().StringVar(&installStorageDir, "storage-dir", "", "worker storage directory")
	installCmd.Flags().StringVar(&installRuntime, "runtime", "", "program that runs the artifact (overrides config default_runtime)")
	_ = installCmd.MarkFlagRequired("artifact")
	_ = installCmd.MarkFlagRequired("storage-dir")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("plexinstall install: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	d := remote.NewDispatcher(logger)
	installer.RegisterTasks(d, logger)

	// Loaded only once the probe is positive.
	key := identity.NewKeyFile(cfg.Identity.KeyPath, logger)

	sudo, err := elevate.NewSudo(cfg.Elevation, logger, "--log-level", cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("plexinstall install: %w", err)
	}
	strategy := elevate.Select(rootChecker, elevate.NewDirect(d), sudo)

	factory := installer.NewFactory(cfg.Installer, remote.NewLocal(d), key, strategy, cmd.ErrOrStderr(), logger)
	ins, err := factory.CreateIfApplicable(ctx)
	if err != nil {
		return fmt.Errorf("plexinstall install: %w", err)
	}
	if ins == nil {
		return errors.New("plexinstall install: systemd is not available on this host")
	}

	fmt.Fprintln(cmd.OutOrStdout(), ins.ConfirmationText())

	launch := installer.LaunchConfiguration{
		ArtifactPath: installArtifact,
		StorageDir:   installStorageDir,
		Args:         args,
		RuntimePath:  installRuntime,
	}
	outcome, err := ins.Install(ctx, launch, newPrompter(cmd))
	if err != nil {
		var ie *installer.InstallError
		if errors.As(err, &ie) && ie.Partial() {
			fmt.Fprintf(cmd.ErrOrStderr(), "unit file %s was written but the service did not start; check \"journalctl -u %s\"\n",
				ins.UnitPath(), ins.ServiceName())
		}
		return fmt.Errorf("plexinstall install: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "service %s installed and started\n", ins.ServiceName())
	if outcome == installer.OutcomeTerminateSession {
		exitFunc(0)
	}
	return nil
}
