package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"github.com/supplyhub/backend/internal/config"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"github.com/supplyhub/backend/internal/infrastructure/storage"
)

// dialFunc opens an SFTP session and the transport underneath it.
type dialFunc func(ctx context.Context) (*sftp.Client, io.Closer, error)

// SFTPClient uploads assets to a directory on an SSH host. One session is shared
// by all workers and reopened after a transport failure.
type SFTPClient struct {
	dial      dialFunc
	remoteDir string
	publicURL string
	log       *logger.Logger

	mu      sync.Mutex
	session *sftp.Client
	conn    io.Closer
}

func NewSFTPClient(cfg config.SFTPConfig, log *logger.Logger) *SFTPClient {
	sshClient := NewSSHClient(SSHConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       cfg.Password,
		PrivateKeyPath: cfg.PrivateKeyPath,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
	})
	dial := func(ctx context.Context) (*sftp.Client, io.Closer, error) {
		conn, err := sshClient.ConnectWithRetry(ctx)
		if err != nil {
			return nil, nil, err
		}
		session, err := sftp.NewClient(conn)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to create sftp client: %w", err)
		}
		return session, conn, nil
	}
	return newSFTPClient(dial, cfg.RemoteDir, cfg.PublicURL, log)
}

func newSFTPClient(dial dialFunc, remoteDir, publicURL string, log *logger.Logger) *SFTPClient {
	if remoteDir == "" {
		remoteDir = "."
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SFTPClient{
		dial:      dial,
		remoteDir: remoteDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log,
	}
}

func (c *SFTPClient) connect(ctx context.Context) (*sftp.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}
	session, conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.session, c.conn = session, conn
	c.log.Infow("sftp_session_opened", "remote_dir", c.remoteDir)
	return session, nil
}

// reset drops the shared session if it is still the one that failed.
func (c *SFTPClient) reset(failed *sftp.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session != failed {
		return
	}
	c.closeLocked()
	c.log.Warnw("sftp_session_reset", "remote_dir", c.remoteDir)
}

func (c *SFTPClient) closeLocked() {
	if c.session != nil {
		_ = c.session.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.session, c.conn = nil, nil
}

func (c *SFTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *SFTPClient) Upload(ctx context.Context, file domain.SourceFile, progress ports.ProgressReporter) (*domain.StoredObject, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, convertSFTPError(ctx, "connect", err)
	}

	if err := session.MkdirAll(c.remoteDir); err != nil {
		return nil, c.fail(ctx, session, "mkdir", err)
	}

	key := storage.ObjectKey("", file)
	target := path.Join(c.remoteDir, key)
	partial := path.Join(c.remoteDir, "."+key+"."+uuid.NewString()[:8]+".part")

	remoteFile, err := session.Create(partial)
	if err != nil {
		return nil, c.fail(ctx, session, "create", err)
	}
	written, err := storage.CopyChunks(ctx, "copy", remoteFile, file.Content, progress)
	if closeErr := remoteFile.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		_ = session.Remove(partial)
		return nil, c.fail(ctx, session, "copy", err)
	}

	// Replace any earlier upload under the same key.
	_ = session.Remove(target)
	if err := session.Rename(partial, target); err != nil {
		_ = session.Remove(partial)
		return nil, c.fail(ctx, session, "rename", err)
	}

	c.log.Debugw("sftp_file_written", "path", target, "size", written)
	return &domain.StoredObject{
		Key:         key,
		URL:         c.objectURL(key),
		Size:        written,
		ContentType: file.ContentType,
	}, nil
}

// Remove deletes an uploaded file. A file that is already gone is not an error.
func (c *SFTPClient) Remove(ctx context.Context, key string) error {
	session, err := c.connect(ctx)
	if err != nil {
		return convertSFTPError(ctx, "connect", err)
	}
	err = session.Remove(path.Join(c.remoteDir, path.Base(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return c.fail(ctx, session, "remove", err)
	}
	return nil
}

// fail classifies err and drops the session when the transport broke.
func (c *SFTPClient) fail(ctx context.Context, session *sftp.Client, op string, err error) error {
	converted := convertSFTPError(ctx, op, err)
	var te *domain.TransferError
	if errors.As(converted, &te) && (te.Kind == domain.ErrorKindNetwork || te.Kind == domain.ErrorKindTimeout) {
		c.reset(session)
	}
	return converted
}

func (c *SFTPClient) objectURL(key string) string {
	if c.publicURL != "" {
		return c.publicURL + "/" + key
	}
	return "sftp://" + path.Join(c.remoteDir, key)
}

func convertSFTPError(ctx context.Context, op string, err error) error {
	var te *domain.TransferError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return domain.NewTransferError(domain.ErrorKindCanceled, op, err)
	}
	var se *sftp.StatusError
	if errors.As(err, &se) || errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) {
		te := domain.NewServerError(op, err.Error())
		te.Err = fmt.Errorf("%w: %w", domain.ErrTransferServer, err)
		return te
	}
	if errors.Is(err, ErrSSHTimeout) || isTimeout(err) {
		return domain.NewTimeoutError(op, err)
	}
	return domain.NewNetworkError(op, err)
}
