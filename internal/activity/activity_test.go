package activity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-github/v75/github"
	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ slept []time.Duration }

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return nil
}

type fakeAPI struct {
	repo    ghapi.Repo
	pending int
	weeks   []*github.WeeklyCommitActivity
	err     error
	calls   int
}

func (f *fakeAPI) GetRepo(context.Context, string, string) (ghapi.Repo, error) {
	return f.repo, nil
}

func (f *fakeAPI) CommitActivity(context.Context, string, string) ([]*github.WeeklyCommitActivity, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	if f.calls <= f.pending {
		return nil, false, nil
	}
	return f.weeks, true, nil
}

func week(t time.Time, total int) *github.WeeklyCommitActivity {
	return &github.WeeklyCommitActivity{Week: &github.Timestamp{Time: t}, Total: github.Ptr(total)}
}

func TestLastActiveWeekOutOfOrder(t *testing.T) {
	jan := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	may := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)

	got, state := LastActiveWeek([]*github.WeeklyCommitActivity{week(mar, 4), week(may, 0), week(jan, 1)})
	assert.Equal(t, Found, state)
	assert.True(t, mar.Equal(got))

	_, state = LastActiveWeek([]*github.WeeklyCommitActivity{week(may, 0)})
	assert.Equal(t, NoCommits, state)
}

func TestScanRetriesWhileComputing(t *testing.T) {
	mar := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		repo:    ghapi.Repo{Owner: "acme", Name: "app", FullName: "acme/app"},
		pending: 2,
		weeks:   []*github.WeeklyCommitActivity{week(mar, 3)},
	}
	clock := &fakeClock{}
	s := &Scanner{API: api, ParseCommits: true, Clock: clock}

	a, err := s.Scan(context.Background(), "acme", "app")
	require.NoError(t, err)
	assert.Equal(t, Found, a.State)
	assert.Equal(t, "2024-03-03 00:00:00", a.LastCommitString())
	assert.Equal(t, 3, api.calls)
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay}, clock.slept)
}

func TestScanGivesUpAfterRetries(t *testing.T) {
	api := &fakeAPI{repo: ghapi.Repo{Owner: "acme", Name: "busy"}, pending: 100}
	clock := &fakeClock{}
	s := &Scanner{API: api, ParseCommits: true, Clock: clock, MaxRetries: 3}

	a, err := s.Scan(context.Background(), "acme", "busy")
	require.NoError(t, err)
	assert.Equal(t, Pending, a.State)
	assert.Equal(t, 3, api.calls)
	assert.Len(t, clock.slept, 2)
	assert.Equal(t, "GH Gave 202 Error - failed out after 3 attempts", a.LastCommitString())
}

func TestScanWithoutCommits(t *testing.T) {
	s := &Scanner{API: &fakeAPI{repo: ghapi.Repo{Name: "app"}}}
	a, err := s.Scan(context.Background(), "acme", "app")
	require.NoError(t, err)
	assert.Equal(t, "unexamined", a.LastCommitString())

	s.ParseCommits = true
	a, err = s.Scan(context.Background(), "acme", "app")
	require.NoError(t, err)
	assert.Equal(t, "None", a.LastCommitString())
}

func TestWikiURL(t *testing.T) {
	assert.Equal(t, "https://github.com/acme/app.wiki.git", WikiURL("https://github.com/acme/app.git"))
	assert.Equal(t, "https://ghe.example.com/acme/app.wiki.git", WikiURL("https://ghe.example.com/acme/app"))
}

func TestNewest(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	_, ok, err := Newest(repo)
	require.NoError(t, err)
	assert.False(t, ok)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	first := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	second := time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC)
	for i, when := range []time.Time{first, second} {
		name := filepath.Join(dir, "README.md")
		require.NoError(t, os.WriteFile(name, []byte{byte('a' + i)}, 0o644))
		_, err = wt.Add("README.md")
		require.NoError(t, err)
		sig := &object.Signature{Name: "dev", Email: "dev@example.com", When: when}
		_, err = wt.Commit("change", &git.CommitOptions{Author: sig, Committer: sig})
		require.NoError(t, err)
	}

	got, ok, err := Newest(repo)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, second.Equal(got), "got %v", got)
}
