package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/pedro-r-marques/taskflow/pkg/engine"
)

const (
	DefaultSSHPort    = 22
	defaultSSHTimeout = 10 * time.Second
)

type SSHConfig struct {
	Name     string
	Address  string
	Port     int
	User     string
	Password string
	KeyFile  string
	// KnownHosts is the path of a known_hosts file. When empty the host key
	// is not verified.
	KnownHosts string
	Timeout    time.Duration
}

// SSHHost runs each command in its own session over a single connection
// that is opened on first use.
type SSHHost struct {
	config SSHConfig

	mutex  sync.Mutex
	client *ssh.Client
}

func NewSSHHost(config SSHConfig) (*SSHHost, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("%w: ssh host requires an address", engine.ErrConfiguration)
	}
	if config.User == "" {
		return nil, fmt.Errorf("%w: ssh host %s requires a user", engine.ErrConfiguration, config.Address)
	}
	if config.Password == "" && config.KeyFile == "" {
		return nil, fmt.Errorf("%w: ssh host %s requires a password or a key file", engine.ErrConfiguration, config.Address)
	}
	if config.Port == 0 {
		config.Port = DefaultSSHPort
	}
	if config.Name == "" {
		config.Name = config.Address
	}
	if config.Timeout == 0 {
		config.Timeout = defaultSSHTimeout
	}
	return &SSHHost{config: config}, nil
}

func (h *SSHHost) Name() string {
	return h.config.Name
}

func (h *SSHHost) endpoint() string {
	return net.JoinHostPort(h.config.Address, strconv.Itoa(h.config.Port))
}

func (h *SSHHost) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if h.config.KeyFile != "" {
		key, err := os.ReadFile(h.config.KeyFile)
		if err != nil {
			return nil, err
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", h.config.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if h.config.Password != "" {
		auth = append(auth, ssh.Password(h.config.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if h.config.KnownHosts != "" {
		cb, err := knownhosts.New(h.config.KnownHosts)
		if err != nil {
			return nil, err
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            h.config.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         h.config.Timeout,
	}, nil
}

func (h *SSHHost) connect() (*ssh.Client, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.client != nil {
		return h.client, nil
	}
	config, err := h.clientConfig()
	if err != nil {
		return nil, err
	}
	client, err := ssh.Dial("tcp", h.endpoint(), config)
	if err != nil {
		return nil, err
	}
	log.Info().Str("host", h.config.Name).Str("endpoint", h.endpoint()).Msg("ssh connected")
	h.client = client
	return client, nil
}

// drop discards a connection that failed so the next command redials.
func (h *SSHHost) drop(client *ssh.Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.client == client {
		h.client.Close()
		h.client = nil
	}
}

func (h *SSHHost) ExecuteCommand(ctx context.Context, command string) (engine.CommandResult, error) {
	var result engine.CommandResult
	client, err := h.connect()
	if err != nil {
		return result, fmt.Errorf("%s: %w", h.config.Name, err)
	}
	session, err := client.NewSession()
	if err != nil {
		h.drop(client)
		return result, fmt.Errorf("%s: session: %w", h.config.Name, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	log.Debug().Str("host", h.config.Name).Str("command", command).Msg("exec")

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		<-done
		return result, fmt.Errorf("%s: %w", h.config.Name, ctx.Err())
	case err = <-done:
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	if err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			return result, fmt.Errorf("%s: %w", h.config.Name, err)
		}
		result.ExitCode = exitErr.ExitStatus()
	}
	return result, nil
}

func (h *SSHHost) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close()
	h.client = nil
	return err
}
