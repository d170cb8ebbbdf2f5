package orgfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFromINI(t *testing.T) {
	path := writeFile(t, DefaultINI, "[GITHUB]\norgs = acme, widgets ,,tools\n")
	orgs, err := FromINI(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "widgets", "tools"}, orgs)

	_, err = FromINI(writeFile(t, "bad.ini", "[OTHER]\norgs = a\n"))
	assert.Error(t, err)

	_, err = FromINI(writeFile(t, "empty.ini", "[GITHUB]\nname = a\n"))
	assert.Error(t, err)
}

func TestOrgs(t *testing.T) {
	path := writeFile(t, DefaultINI, "[GITHUB]\norgs=fromfile\n")

	orgs, err := Orgs([]string{"acme"}, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"fromfile"}, orgs)

	orgs, err = Orgs([]string{"acme"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, orgs)

	_, err = Orgs(nil, "")
	assert.ErrorIs(t, err, ErrNoOrgs)
}

func TestParseRepo(t *testing.T) {
	ref, err := ParseRepo(" acme/app \n")
	require.NoError(t, err)
	assert.Equal(t, RepoRef{Owner: "acme", Name: "app"}, ref)
	assert.Equal(t, "acme/app", ref.String())

	for _, bad := range []string{"acme", "acme/", "/app", "a/b/c"} {
		_, err := ParseRepo(bad)
		assert.Error(t, err, bad)
	}
}

func TestReadRepos(t *testing.T) {
	refs, err := ReadRepos(strings.NewReader("acme/app\n\n# comment\nwidgets/site\n"))
	require.NoError(t, err)
	assert.Equal(t, []RepoRef{{"acme", "app"}, {"widgets", "site"}}, refs)

	_, err = ReadRepos(strings.NewReader("broken\n"))
	assert.Error(t, err)
}

func TestRepos(t *testing.T) {
	path := writeFile(t, "repos.txt", "acme/one\nacme/two\n")

	refs, err := Repos([]string{"x/y"}, path)
	require.NoError(t, err)
	assert.Equal(t, []RepoRef{{"x", "y"}}, refs)

	refs, err = Repos(nil, path)
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	_, err = Repos(nil, "")
	assert.Error(t, err)
	_, err = Repos(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"acme", "a", "acme-corp", "A1"} {
		assert.NoError(t, ValidateName(ok), ok)
	}
	for _, bad := range []string{"", "-acme", "acme-", "ac_me", strings.Repeat("a", 40)} {
		assert.Error(t, ValidateName(bad), bad)
	}

	orgs, err := Orgs([]string{"acme", "tools", "acme"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "tools"}, orgs)

	_, err = Orgs([]string{"bad org"}, "")
	assert.Error(t, err)
}
