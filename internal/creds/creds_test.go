package creds

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePAT(t *testing.T, dir string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("admin = \"adm-token\"\nread-only = \"ro-token\"\n"), 0o600))
	require.NoError(t, os.Chmod(path, mode))
}

func noEnv(string) string { return "" }

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	writePAT(t, dir, 0o600)

	pat, err := FromFile("", dir)
	require.NoError(t, err)
	assert.Equal(t, "adm-token", pat)

	pat, err = FromFile("read-only", dir)
	require.NoError(t, err)
	assert.Equal(t, "ro-token", pat)

	_, err = FromFile("missing", dir)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFromFileRejectsLoosePermissions(t *testing.T) {
	dir := t.TempDir()
	writePAT(t, dir, 0o644)

	_, err := FromFile("admin", dir)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFromFileSearchOrder(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writePAT(t, second, 0o600)

	pat, err := FromFile("admin", first, second)
	require.NoError(t, err)
	assert.Equal(t, "adm-token", pat)

	_, err = FromFile("admin", t.TempDir())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestResolveOrder(t *testing.T) {
	dir := t.TempDir()
	writePAT(t, dir, 0o600)
	env := func(name string) string {
		if name == "GITHUB_TOKEN" {
			return "env-token"
		}
		return ""
	}
	prompted := false
	prompt := func() (string, error) {
		prompted = true
		return " typed-token\n", nil
	}

	pat, err := Resolver{Token: "flag-token", Dirs: []string{dir}, Getenv: env, Prompt: prompt}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "flag-token", pat)

	pat, err = Resolver{Dirs: []string{dir}, Getenv: env, Prompt: prompt}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "adm-token", pat)

	empty := []string{t.TempDir()}
	pat, err = Resolver{Dirs: empty, Getenv: env, Prompt: prompt}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "env-token", pat)
	assert.False(t, prompted)

	pat, err = Resolver{Dirs: empty, Getenv: noEnv, Prompt: prompt}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "typed-token", pat)
	assert.True(t, prompted)

	_, err = Resolver{Dirs: empty, Getenv: noEnv}.Resolve()
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = Resolver{Dirs: empty, Getenv: noEnv, Prompt: func() (string, error) { return "", errors.New("closed") }}.Resolve()
	assert.Error(t, err)
}

func TestTerminalPromptReadsPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString("piped-token\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	defer r.Close()

	pat, err := Resolver{Dirs: []string{t.TempDir()}, Getenv: noEnv, Prompt: TerminalPrompt(r, io.Discard)}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "piped-token", pat)
}
