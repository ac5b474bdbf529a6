package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/storage"
)

type pipeCloser struct{ conns []net.Conn }

func (p pipeCloser) Close() error {
	for _, c := range p.conns {
		c.Close()
	}
	return nil
}

// memDialer serves SFTP from an in-memory filesystem over a pipe.
func memDialer(t *testing.T, dials *int) dialFunc {
	t.Helper()
	handlers := sftp.InMemHandler()
	return func(context.Context) (*sftp.Client, io.Closer, error) {
		*dials++
		serverConn, clientConn := net.Pipe()
		server := sftp.NewRequestServer(serverConn, handlers)
		go server.Serve()
		t.Cleanup(func() { server.Close() })

		client, err := sftp.NewClientPipe(clientConn, clientConn)
		if err != nil {
			return nil, nil, err
		}
		return client, pipeCloser{conns: []net.Conn{serverConn, clientConn}}, nil
	}
}

type progressLog struct{ updates [][2]int64 }

func (p *progressLog) Update(transferred, total int64) {
	p.updates = append(p.updates, [2]int64{transferred, total})
}

func TestSFTPClient_UploadAndRemove(t *testing.T) {
	var dials int
	client := newSFTPClient(memDialer(t, &dials), "/uploads", "https://files.example.com/", nil)
	defer client.Close()

	content := bytes.Repeat([]byte("x"), storage.ChunkSize+100)
	progress := &progressLog{}
	obj, err := client.Upload(context.Background(), domain.SourceFile{Name: "a.png", Content: content, ContentType: "image/png"}, progress)
	require.NoError(t, err)

	assert.Equal(t, "a.png", obj.Key)
	assert.Equal(t, "https://files.example.com/a.png", obj.URL)
	assert.Equal(t, int64(len(content)), obj.Size)
	require.Len(t, progress.updates, 2)
	assert.Equal(t, [2]int64{int64(len(content)), int64(len(content))}, progress.updates[1])

	session, err := client.connect(context.Background())
	require.NoError(t, err)
	f, err := session.Open("/uploads/a.png")
	require.NoError(t, err)
	stored, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	entries, err := session.ReadDir("/uploads")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no partial files left behind")

	// Same name again replaces the file.
	_, err = client.Upload(context.Background(), domain.SourceFile{Name: "a.png", Content: []byte("new")}, nil)
	require.NoError(t, err)

	require.NoError(t, client.Remove(context.Background(), "a.png"))
	_, err = session.Stat("/uploads/a.png")
	assert.Error(t, err)
	assert.NoError(t, client.Remove(context.Background(), "a.png"))

	assert.Equal(t, 1, dials, "the session is shared")
}

func TestSFTPClient_UploadCanceled(t *testing.T) {
	var dials int
	client := newSFTPClient(memDialer(t, &dials), "/uploads", "", nil)
	defer client.Close()

	session, err := client.connect(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Upload(ctx, domain.SourceFile{Name: "a.png", Content: []byte("data")}, nil)

	var te *domain.TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.ErrorKindCanceled, te.Kind)

	entries, err := session.ReadDir("/uploads")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSFTPClient_DialFailure(t *testing.T) {
	dial := func(context.Context) (*sftp.Client, io.Closer, error) {
		return nil, nil, errors.Join(ErrSSHConnection, errors.New("connection refused"))
	}
	client := newSFTPClient(dial, "/uploads", "", nil)

	_, err := client.Upload(context.Background(), domain.SourceFile{Name: "a.png", Content: []byte("x")}, nil)
	var te *domain.TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.ErrorKindNetwork, te.Kind)
	assert.ErrorIs(t, err, ErrSSHConnection)
}

func TestSFTPClient_DialTimeout(t *testing.T) {
	dial := func(context.Context) (*sftp.Client, io.Closer, error) {
		return nil, nil, ErrSSHTimeout
	}
	client := newSFTPClient(dial, "/uploads", "", nil)

	_, err := client.Upload(context.Background(), domain.SourceFile{Name: "a.png", Content: []byte("x")}, nil)
	var te *domain.TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.ErrorKindTimeout, te.Kind)
}

func TestSSHClient_ConnectWithRetry(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		c := NewSSHClient(SSHConfig{Host: "127.0.0.1", User: "deploy"})
		_, err := c.ConnectWithRetry(context.Background())
		assert.ErrorIs(t, err, ErrSSHAuthentication)
	})

	t.Run("unreachable host", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().(*net.TCPAddr)
		ln.Close()

		c := NewSSHClient(SSHConfig{
			Host:         "127.0.0.1",
			Port:         addr.Port,
			User:         "deploy",
			Password:     "secret",
			MaxRetries:   2,
			RetryBackoff: time.Millisecond,
			Timeout:      time.Second,
		})
		_, err = c.ConnectWithRetry(context.Background())
		assert.ErrorIs(t, err, ErrSSHConnection)
	})

	t.Run("context canceled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := NewSSHClient(SSHConfig{Host: "127.0.0.1", Port: 1, User: "deploy", Password: "secret", MaxRetries: 3})
		_, err := c.ConnectWithRetry(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
