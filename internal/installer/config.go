// Package installer installs the background worker as a systemd service:
// a Factory probes the target host and, when systemd is usable, hands out an
// Installer that performs the privileged copy, unit write and service start.
package installer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/plexsphere/plexinstall/internal/probe"
)

// Config holds installer settings. Zero values are replaced by ApplyDefaults.
type Config struct {
	// UnitDir is where unit files are written.
	// Default: /etc/systemd/system
	UnitDir string `yaml:"unit_dir"`

	// Systemctl is the service manager command.
	// Default: systemctl
	Systemctl string `yaml:"systemctl"`

	// ServicePrefix is prepended to the service identity to form the
	// service name.
	// Default: worker-
	ServicePrefix string `yaml:"service_prefix"`

	// ArtifactName is the file name of the deployed artifact inside the
	// storage directory.
	// Default: worker.bin
	ArtifactName string `yaml:"artifact_name"`

	// DefaultRuntime is the program ExecStart runs the artifact with when
	// the launch configuration names none.
	// Default: /usr/bin/env
	DefaultRuntime string `yaml:"default_runtime"`

	// DefaultSuperuser is the suggested answer to the login prompt.
	// Default: root
	DefaultSuperuser string `yaml:"default_superuser"`

	// KeepSession makes a successful Install return OutcomeContinue instead
	// of OutcomeTerminateSession.
	KeepSession bool `yaml:"keep_session"`
}

const (
	// DefaultServicePrefix is the default service name prefix.
	DefaultServicePrefix = "worker-"

	// DefaultArtifactName is the default deployed artifact name.
	DefaultArtifactName = "worker.bin"

	// DefaultRuntime is the default ExecStart program.
	DefaultRuntime = "/usr/bin/env"

	// DefaultSuperuser is the default elevation login.
	DefaultSuperuser = "root"
)

var servicePrefixPattern = regexp.MustCompile(`^[a-zA-Z0-9:_.@-]+$`)

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.UnitDir == "" {
		c.UnitDir = probe.DefaultUnitDir
	}
	if c.Systemctl == "" {
		c.Systemctl = probe.DefaultSystemctl
	}
	if c.ServicePrefix == "" {
		c.ServicePrefix = DefaultServicePrefix
	}
	if c.ArtifactName == "" {
		c.ArtifactName = DefaultArtifactName
	}
	if c.DefaultRuntime == "" {
		c.DefaultRuntime = DefaultRuntime
	}
	if c.DefaultSuperuser == "" {
		c.DefaultSuperuser = DefaultSuperuser
	}
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	if c.UnitDir == "" {
		return errors.New("installer: config: UnitDir is required")
	}
	if c.Systemctl == "" {
		return errors.New("installer: config: Systemctl is required")
	}
	if !servicePrefixPattern.MatchString(c.ServicePrefix) {
		return fmt.Errorf("installer: config: invalid ServicePrefix %q", c.ServicePrefix)
	}
	if c.ArtifactName == "" || strings.ContainsRune(c.ArtifactName, '/') || c.ArtifactName == "." || c.ArtifactName == ".." {
		return fmt.Errorf("installer: config: invalid ArtifactName %q", c.ArtifactName)
	}
	if c.DefaultRuntime == "" {
		return errors.New("installer: config: DefaultRuntime is required")
	}
	if c.DefaultSuperuser == "" {
		return errors.New("installer: config: DefaultSuperuser is required")
	}
	return nil
}
