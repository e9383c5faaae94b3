package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/plexinstall/internal/identity"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Print the service identity derived from the controller key",
	Args:  cobra.NoArgs,
	RunE:  runIdentity,
}

func init() {
	rootCmd.AddCommand(identityCmd)
}

func runIdentity(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("plexinstall identity: %w", err)
	}

	key, err := identity.LoadOrGenerateKey(cfg.Identity.KeyPath, logger)
	if err != nil {
		return fmt.Errorf("plexinstall identity: %w", err)
	}
	id, err := identity.ForProvider(key)
	if err != nil {
		return fmt.Errorf("plexinstall identity: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Identity:     %s\n", id)
	fmt.Fprintf(out, "Service:      %s%s\n", cfg.Installer.ServicePrefix, id)
	fmt.Fprintf(out, "Key:          %s\n", cfg.Identity.KeyPath)
	fmt.Fprintf(out, "Fingerprint:  %s\n", key.Fingerprint())
	return nil
}
