package sshkeygen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "id_ed25519")

	kp, err := Generate(path, "uploader@test", false)
	require.NoError(t, err)
	assert.True(t, kp.Created)
	assert.True(t, strings.HasPrefix(kp.AuthorizedKey, "ssh-ed25519 "))
	assert.True(t, strings.HasSuffix(kp.AuthorizedKey, " uploader@test"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	signer, err := ssh.ParsePrivateKey(data)
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())

	pub, err := os.ReadFile(kp.PublicKeyPath)
	require.NoError(t, err)
	assert.Equal(t, kp.AuthorizedKey+"\n", string(pub))
}

func TestGenerate_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id_ed25519")
	first, err := Generate(path, "", false)
	require.NoError(t, err)

	again, err := Generate(path, "", false)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.AuthorizedKey, again.AuthorizedKey)

	replaced, err := Generate(path, "", true)
	require.NoError(t, err)
	assert.True(t, replaced.Created)
	assert.NotEqual(t, first.AuthorizedKey, replaced.AuthorizedKey)
}
