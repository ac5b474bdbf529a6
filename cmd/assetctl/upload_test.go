package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	files, err := readFiles([]string{path})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.png", files[0].Name)
	assert.Equal(t, int64(4), files[0].Size)

	_, err = readFiles([]string{filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
}

func TestUploadCommand_LocalBackend(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()
	t.Setenv("SUPPLYHUB_STORAGE_BACKEND", "local")
	t.Setenv("SUPPLYHUB_STORAGE_LOCAL_ROOT", root)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	var args []string
	for _, name := range []string{"a.png", "b.png"} {
		p := filepath.Join(src, name)
		require.NoError(t, os.WriteFile(p, png, 0o644))
		args = append(args, p)
	}
	text := filepath.Join(src, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("plain text"), 0o644))
	args = append(args, text)

	rootCmd.SetArgs(append([]string{"upload", "-n", "2"}, args...))
	require.NoError(t, rootCmd.Execute())

	for _, name := range []string{"a.png", "b.png"} {
		matches, err := filepath.Glob(filepath.Join(root, "*-"+name))
		require.NoError(t, err)
		assert.Len(t, matches, 1, name)
	}
	matches, err := filepath.Glob(filepath.Join(root, "*notes.txt"))
	require.NoError(t, err)
	assert.Empty(t, matches, "rejected files are not uploaded")
}
