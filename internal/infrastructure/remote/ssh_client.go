package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

var (
	ErrSSHConnection     = errors.New("ssh: connection failed")
	ErrSSHAuthentication = errors.New("ssh: authentication failed")
	ErrSSHTimeout        = errors.New("ssh: connection timeout")
)

type SSHConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	PrivateKey     string
	PrivateKeyPath string
	Timeout        time.Duration
	MaxRetries     int
	// RetryBackoff is multiplied by the attempt number between dials.
	RetryBackoff time.Duration
}

type SSHClient struct {
	config SSHConfig
}

func NewSSHClient(cfg SSHConfig) *SSHClient {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	return &SSHClient{config: cfg}
}

func (c *SSHClient) Addr() string {
	return net.JoinHostPort(c.config.Host, fmt.Sprint(c.config.Port))
}

func (c *SSHClient) getAuthMethods() ([]ssh.AuthMethod, error) {
	var authMethods []ssh.AuthMethod

	key := c.config.PrivateKey
	if key == "" && c.config.PrivateKeyPath != "" {
		raw, err := os.ReadFile(c.config.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot read private key: %v", ErrSSHAuthentication, err)
		}
		key = string(raw)
	}
	if key != "" {
		signer, err := ssh.ParsePrivateKey([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid private key", ErrSSHAuthentication)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if c.config.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.config.Password))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("%w: no credentials provided", ErrSSHAuthentication)
	}

	return authMethods, nil
}

// ConnectWithRetry dials the SSH server, backing off linearly between attempts.
// It gives up early when ctx is done.
func (c *SSHClient) ConnectWithRetry(ctx context.Context) (*ssh.Client, error) {
	authMethods, err := c.getAuthMethods()
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.Timeout,
		Config: ssh.Config{
			Ciphers: []string{
				"chacha20-poly1305@openssh.com",
				"aes128-gcm@openssh.com",
				"aes128-ctr",
			},
		},
	}

	addr := c.Addr()
	var connectErr error

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		dialer := net.Dialer{
			Timeout:   c.config.Timeout,
			KeepAlive: 60 * time.Second,
		}

		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			connectErr = err
		} else {
			_ = conn.SetDeadline(time.Now().Add(c.config.Timeout))
			sc, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
			if err != nil {
				conn.Close()
				connectErr = err
			} else {
				_ = conn.SetDeadline(time.Time{})
				return ssh.NewClient(sc, chans, reqs), nil
			}
		}

		if attempt < c.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.config.RetryBackoff):
			}
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if isTimeout(connectErr) {
		return nil, fmt.Errorf("%w: %v (after %d attempts)", ErrSSHTimeout, connectErr, c.config.MaxRetries)
	}
	return nil, fmt.Errorf("%w: %v (after %d attempts)", ErrSSHConnection, connectErr, c.config.MaxRetries)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline")
}
