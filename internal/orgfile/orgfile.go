// Package orgfile loads the organization and repository lists commands
// operate on.
package orgfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// DefaultINI is the org list file used when --orgini has no value.
const DefaultINI = "orglist.ini"

// ErrNoOrgs means neither positional orgs nor an org list file were given.
var ErrNoOrgs = errors.New("you must specify either an org or an orgini")

// FromINI reads the comma separated "orgs" entry of the [GITHUB] section.
func FromINI(path string) ([]string, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading org list %s: %w", path, err)
	}
	sec, err := cfg.GetSection("GITHUB")
	if err != nil {
		return nil, fmt.Errorf("org list %s: %w", path, err)
	}
	if !sec.HasKey("orgs") {
		return nil, fmt.Errorf("org list %s: no orgs entry in [GITHUB]", path)
	}
	orgs, err := normalize(splitList(sec.Key("orgs").String()))
	if err != nil {
		return nil, fmt.Errorf("org list %s: %w", path, err)
	}
	return orgs, nil
}

// Orgs returns the orgs of iniPath when set, otherwise args.
func Orgs(args []string, iniPath string) ([]string, error) {
	if iniPath != "" {
		return FromINI(iniPath)
	}
	if len(args) == 0 {
		return nil, ErrNoOrgs
	}
	return normalize(args)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RepoRef names a repository as owner/name.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string { return r.Owner + "/" + r.Name }

// ParseRepo parses "owner/repo".
func ParseRepo(s string) (RepoRef, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	owner, name = strings.TrimSpace(owner), strings.TrimSpace(name)
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return RepoRef{}, fmt.Errorf("%s needs to be in the form ORG/REPO", s)
	}
	if err := ValidateName(owner); err != nil {
		return RepoRef{}, err
	}
	return RepoRef{Owner: owner, Name: name}, nil
}

// ReadRepos parses one owner/repo per line. Blank lines and lines starting
// with '#' are skipped.
func ReadRepos(r io.Reader) ([]RepoRef, error) {
	var out []RepoRef
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, err := ParseRepo(line)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, sc.Err()
}

// Repos parses args when given, otherwise the lines of file.
func Repos(args []string, file string) ([]RepoRef, error) {
	if len(args) > 0 {
		out := make([]RepoRef, 0, len(args))
		for _, a := range args {
			ref, err := ParseRepo(a)
			if err != nil {
				return nil, err
			}
			out = append(out, ref)
		}
		return out, nil
	}
	if file == "" {
		return nil, errors.New("please specify an org/repo or a file")
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("problem loading file: %w", err)
	}
	defer f.Close()
	return ReadRepos(f)
}
