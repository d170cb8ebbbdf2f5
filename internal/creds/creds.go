// Package creds resolves the personal access token a command runs with.
//
// Lookup order: an explicit --token, the named key of a .gh_pat.toml file
// (current directory first, then home), the environment, and finally an
// interactive prompt.
package creds

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pterm/pterm"
	"golang.org/x/term"
)

const (
	// FileName is the credential file looked up in each directory.
	FileName = ".gh_pat.toml"
	// DefaultKey names the token used when no --pat-key is given.
	DefaultKey = "admin"
)

// EnvVars are checked in order after the credential file.
var EnvVars = []string{"GH_ORGTOOLS_TOKEN", "GITHUB_TOKEN"}

// ErrNoToken means no source produced a token.
var ErrNoToken = errors.New("no token found")

// DefaultDirs returns the current directory and, when known, the home
// directory.
func DefaultDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	return dirs
}

// FromFile reads key from the first FileName found in dirs. The file must
// be mode 0600; a looser file is reported and ignored.
func FromFile(key string, dirs ...string) (string, error) {
	if key == "" {
		key = DefaultKey
	}
	path, info, ok := locate(dirs)
	if !ok {
		return "", ErrNoToken
	}
	if info.Mode().Perm() != 0o600 {
		pterm.Error.Printf("Err: %s exists, but is NOT 600 perms\n", path)
		return "", ErrNoToken
	}

	var blob map[string]any
	if _, err := toml.DecodeFile(path, &blob); err != nil {
		pterm.Debug.Printf("cannot parse %s: %v\n", path, err)
		return "", ErrNoToken
	}
	pat, ok := blob[key].(string)
	if !ok || pat == "" {
		return "", ErrNoToken
	}
	return pat, nil
}

func locate(dirs []string) (string, os.FileInfo, bool) {
	for _, dir := range dirs {
		path := filepath.Join(dir, FileName)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, info, true
		}
	}
	return "", nil, false
}

// Resolver walks the token sources.
type Resolver struct {
	// Token is the --token flag value.
	Token string
	// Key is the --pat-key flag value.
	Key  string
	Dirs []string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Prompt is the last resort. Nil disables prompting.
	Prompt func() (string, error)
}

// Resolve returns the first token found.
func (r Resolver) Resolve() (string, error) {
	if r.Token != "" {
		return r.Token, nil
	}

	dirs := r.Dirs
	if dirs == nil {
		dirs = DefaultDirs()
	}
	if pat, err := FromFile(r.Key, dirs...); err == nil {
		return pat, nil
	}

	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, name := range EnvVars {
		if v := getenv(name); v != "" {
			return v, nil
		}
	}

	if r.Prompt == nil {
		return "", ErrNoToken
	}
	pat, err := r.Prompt()
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	if pat = strings.TrimSpace(pat); pat == "" {
		return "", ErrNoToken
	}
	return pat, nil
}

// TerminalPrompt asks for the token on out and reads it from in without
// echo when in is a terminal.
func TerminalPrompt(in *os.File, out io.Writer) func() (string, error) {
	return func() (string, error) {
		fmt.Fprint(out, "Please enter your GitHub token: ")
		fd := int(in.Fd())
		if term.IsTerminal(fd) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return string(b), err
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		return line, err
	}
}
