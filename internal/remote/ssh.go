package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultSSHPort is the SSH port used when SSHConfig.Port is zero.
const DefaultSSHPort = 22

// DefaultDialTimeout bounds the TCP connect and SSH handshake.
const DefaultDialTimeout = 15 * time.Second

// DefaultRemoteCommand is the executable invoked on the remote host.
const DefaultRemoteCommand = "plexinstall"

// DefaultKnownHostsPath is the known_hosts file used to verify host keys.
const DefaultKnownHostsPath = "~/.ssh/known_hosts"

// SSHConfig holds the settings for reaching a target host over SSH.
type SSHConfig struct {
	// Host is the target host name or address.
	Host string `yaml:"host"`

	// Port is the SSH port. Default: 22
	Port int `yaml:"port"`

	// User is the unprivileged remote login.
	User string `yaml:"user"`

	// KeyPath is the private key used to authenticate.
	KeyPath string `yaml:"key_path"`

	// KnownHostsPath verifies the remote host key. Default: ~/.ssh/known_hosts
	KnownHostsPath string `yaml:"known_hosts_path"`

	// RemoteCommand is run as "<RemoteCommand> exec-task". Default: plexinstall
	RemoteCommand string `yaml:"remote_command"`

	// DialTimeout bounds connection setup. Default: 15s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *SSHConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultSSHPort
	}
	if c.KnownHostsPath == "" {
		c.KnownHostsPath = DefaultKnownHostsPath
	}
	if c.RemoteCommand == "" {
		c.RemoteCommand = DefaultRemoteCommand
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
}

// Validate checks that required fields are set.
func (c *SSHConfig) Validate() error {
	if c.Host == "" {
		return errors.New("remote: ssh config: Host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("remote: ssh config: Port %d out of range", c.Port)
	}
	if c.User == "" {
		return errors.New("remote: ssh config: User is required")
	}
	if c.KeyPath == "" {
		return errors.New("remote: ssh config: KeyPath is required")
	}
	if c.KnownHostsPath == "" {
		return errors.New("remote: ssh config: KnownHostsPath is required")
	}
	if c.RemoteCommand == "" {
		return errors.New("remote: ssh config: RemoteCommand is required")
	}
	if c.DialTimeout <= 0 {
		return errors.New("remote: ssh config: DialTimeout must be positive")
	}
	return nil
}

// Addr returns host:port.
func (c *SSHConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SSH is a Channel that runs tasks on a remote host through
// "<RemoteCommand> exec-task", writing the task to the session's stdin and
// reading the result from its stdout. The session's stderr is forwarded to
// the caller's output writer.
type SSH struct {
	client  *ssh.Client
	command string
	logger  *slog.Logger
}

// DialSSH connects to the host described by cfg. cfg.ApplyDefaults is
// called before validation.
func DialSSH(cfg SSHConfig, logger *slog.Logger) (*SSH, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	keyData, err := os.ReadFile(expandHome(cfg.KeyPath))
	if err != nil {
		return nil, fmt.Errorf("remote: ssh: read key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("remote: ssh: parse key: %w", err)
	}

	hostKeyCallback, err := knownhosts.New(expandHome(cfg.KnownHostsPath))
	if err != nil {
		return nil, fmt.Errorf("remote: ssh: known hosts: %w", err)
	}

	client, err := ssh.Dial("tcp", cfg.Addr(), &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("remote: ssh: dial %s: %w", cfg.Addr(), err)
	}

	logger = logger.With("component", "remote", "host", cfg.Addr())
	logger.Debug("ssh connected", "user", cfg.User)
	return NewSSH(client, cfg.RemoteCommand, logger), nil
}

// NewSSH wraps an established client.
func NewSSH(client *ssh.Client, remoteCommand string, logger *slog.Logger) *SSH {
	return &SSH{client: client, command: remoteCommand, logger: logger}
}

// Close closes the underlying connection.
func (s *SSH) Close() error {
	return s.client.Close()
}

// Call runs task on the remote host. Cancelling ctx closes the session.
func (s *SSH) Call(ctx context.Context, task Task, out io.Writer) (Result, error) {
	if out == nil {
		out = io.Discard
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return Result{}, fmt.Errorf("remote: ssh: encode task: %w", err)
	}

	session, err := s.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("remote: ssh: new session: %w", err)
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdin = bytes.NewReader(payload)
	session.Stdout = &stdout
	session.Stderr = out

	stop := context.AfterFunc(ctx, func() {
		session.Close()
	})
	defer stop()

	s.logger.Debug("running remote task", "task_id", task.ID, "kind", task.Kind)
	runErr := session.Run(s.command + " exec-task")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("remote: ssh: %s: %w", task.Kind, ctxErr)
	}

	return DecodeResult(task, stdout.Bytes(), runErr)
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}
