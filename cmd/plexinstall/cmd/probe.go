package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plexsphere/plexinstall/internal/installer"
	"github.com/plexsphere/plexinstall/internal/remote"
)

var (
	probeSSHHost string
	probeSSHUser string
	probeSSHKey  string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check whether a host can run the worker as a systemd service",
	Long: "Probe checks the local host, or a remote host over SSH, for a systemd unit\n" +
		"directory and a responsive systemctl. It never modifies the host.",
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeSSHHost, "ssh-host", "", "probe this host over SSH (overrides config)")
	probeCmd.Flags().StringVar(&probeSSHUser, "ssh-user", "", "SSH login (overrides config)")
	probeCmd.Flags().StringVar(&probeSSHKey, "ssh-key", "", "SSH private key (overrides config)")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("plexinstall probe: %w", err)
	}
	if probeSSHHost != "" {
		cfg.SSH.Host = probeSSHHost
	}
	if probeSSHUser != "" {
		cfg.SSH.User = probeSSHUser
	}
	if probeSSHKey != "" {
		cfg.SSH.KeyPath = probeSSHKey
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	target := "local host"
	var channel remote.Channel
	if cfg.SSH.Host != "" {
		client, err := remote.DialSSH(cfg.SSH, logger)
		if err != nil {
			return fmt.Errorf("plexinstall probe: %w", err)
		}
		defer client.Close()
		channel = client
		target = cfg.SSH.Addr()
	} else {
		d := remote.NewDispatcher(logger)
		installer.RegisterTasks(d, logger)
		channel = remote.NewLocal(d)
	}

	factory := installer.NewFactory(cfg.Installer, channel, nil, nil, cmd.ErrOrStderr(), logger)
	ok, err := factory.Probe(ctx)
	if err != nil {
		return fmt.Errorf("plexinstall probe: %w", err)
	}

	if ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: systemd available\n", target)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: systemd not available\n", target)
	}
	return nil
}
