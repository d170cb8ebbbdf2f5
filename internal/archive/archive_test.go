package archive

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"testing"

	"github.com/google/go-github/v75/github"
	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func statusErr(code int) error {
	req := &http.Request{Method: http.MethodPatch, URL: &url.URL{Path: "/repos/acme/app/issues/1"}}
	return &github.ErrorResponse{Response: &http.Response{StatusCode: code, Request: req}}
}

type fakeIssue struct {
	ghapi.Issue
	open   bool
	labels []string
}

// fakeRepo is an in-memory repository.
type fakeRepo struct {
	repo   ghapi.Repo
	labels []string
	issues []*fakeIssue

	closeErr   map[int]error
	reopenErr  map[int]error
	deleteErr  error
	comments   map[int]string
	archiveSet bool
}

func newFakeRepo(desc *string, topics []string, issues ...*fakeIssue) *fakeRepo {
	return &fakeRepo{
		repo:     ghapi.Repo{Owner: "acme", Name: "app", FullName: "acme/app", Description: desc, Topics: topics},
		issues:   issues,
		comments: map[int]string{},
	}
}

func (f *fakeRepo) find(n int) *fakeIssue {
	for _, is := range f.issues {
		if is.Number == n {
			return is
		}
	}
	return nil
}

func (f *fakeRepo) GetRepo(context.Context, string, string) (ghapi.Repo, error) {
	r := f.repo
	r.Topics = slices.Clone(f.repo.Topics)
	return r, nil
}

func (f *fakeRepo) Labels(context.Context, string, string) ([]string, error) {
	return slices.Clone(f.labels), nil
}

func (f *fakeRepo) CreateLabel(_ context.Context, _, _, name, _, _ string) error {
	f.labels = append(f.labels, name)
	return nil
}

func (f *fakeRepo) DeleteLabel(_ context.Context, _, _, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.labels = slices.DeleteFunc(f.labels, func(l string) bool { return l == name })
	return nil
}

func (f *fakeRepo) Issues(_ context.Context, _, _, state string, labels []string) ([]ghapi.Issue, error) {
	var out []ghapi.Issue
	for _, is := range f.issues {
		if is.open != (state == ghapi.IssueOpen) {
			continue
		}
		if len(labels) > 0 && !slices.Contains(is.labels, labels[0]) {
			continue
		}
		out = append(out, is.Issue)
	}
	return out, nil
}

func (f *fakeRepo) AddLabel(_ context.Context, _, _ string, n int, label string) error {
	is := f.find(n)
	is.labels = append(is.labels, label)
	return nil
}

func (f *fakeRepo) RemoveLabel(_ context.Context, _, _ string, n int, label string) error {
	is := f.find(n)
	is.labels = slices.DeleteFunc(is.labels, func(l string) bool { return l == label })
	return nil
}

func (f *fakeRepo) SetIssueState(_ context.Context, _, _ string, n int, state string) error {
	if state == ghapi.IssueClosed && f.closeErr[n] != nil {
		return f.closeErr[n]
	}
	if state == ghapi.IssueOpen && f.reopenErr[n] != nil {
		return f.reopenErr[n]
	}
	f.find(n).open = state == ghapi.IssueOpen
	return nil
}

func (f *fakeRepo) Comment(_ context.Context, _, _ string, n int, body string) error {
	f.comments[n] = body
	return nil
}

func (f *fakeRepo) ReplaceTopics(_ context.Context, _, _ string, topics []string) error {
	f.repo.Topics = slices.Clone(topics)
	return nil
}

func (f *fakeRepo) EditRepo(_ context.Context, _, _ string, description *string, archive bool) error {
	f.repo.Description = description
	f.archiveSet = archive
	return nil
}

func TestMetadataRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		desc   *string
		topics []string
		suffix string
		want   string
	}{
		{name: "plain", desc: ptr("Foo bar"), topics: []string{}, want: "DEPRECATED - Foo bar"},
		{name: "existing topics", desc: ptr("Foo bar"), topics: []string{"go", "cli"}, want: "DEPRECATED - Foo bar"},
		{name: "custom suffix", desc: ptr("Foo bar"), suffix: "LEGACY", want: "LEGACY - Foo bar"},
		{name: "marker word inside text", desc: ptr("Replaces the DEPRECATED v1 client"), want: "DEPRECATED - Replaces the DEPRECATED v1 client"},
		{name: "leading legacy marker word", desc: ptr("INACTIVE mirror of upstream"), want: "DEPRECATED - INACTIVE mirror of upstream"},
		{name: "suffix word repeated", desc: ptr("legacy tools for legacy apps"), suffix: "legacy", want: "legacy - legacy tools for legacy apps"},
		{name: "description starts with prefix", desc: ptr("DEPRECATED - old notes"), want: "DEPRECATED - DEPRECATED - old notes"},
		{name: "suffix with marker text", desc: ptr("DEPRECATED api"), suffix: "LEGACY", want: "LEGACY - DEPRECATED api"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archived := ArchiveMetadata(Metadata{Topics: tt.topics, Description: tt.desc}, tt.suffix)
			require.NotNil(t, archived.Description)
			assert.Equal(t, tt.want, *archived.Description)
			assert.Subset(t, archived.Topics, []string{"abandoned", "unmaintained"})

			restored := RestoreMetadata(archived)
			require.NotNil(t, restored.Description)
			assert.Equal(t, *tt.desc, *restored.Description)
			assert.ElementsMatch(t, tt.topics, restored.Topics)
		})
	}
}

func TestArchiveMetadataEmptyDescription(t *testing.T) {
	m := ArchiveMetadata(Metadata{}, "")
	assert.Equal(t, "DEPRECATED", *m.Description)
	assert.Equal(t, LabelName, m.Label)
	assert.Equal(t, []string{"abandoned", "unmaintained"}, m.Topics)

	m = ArchiveMetadata(Metadata{Topics: []string{"abandoned"}}, "")
	assert.Equal(t, []string{"abandoned", "unmaintained"}, m.Topics)
}

func TestRestoreMetadataAnchorsPrefix(t *testing.T) {
	tests := []struct {
		name  string
		desc  string
		label string
		want  string
	}{
		{name: "bare marker", desc: "DEPRECATED", label: LabelName, want: ""},
		{name: "bare custom marker", desc: "LEGACY", label: Label("LEGACY"), want: ""},
		{name: "marker not at start", desc: "Tool - DEPRECATED - soon", label: LabelName, want: "Tool - DEPRECATED - soon"},
		{name: "custom label ignores default marker", desc: "DEPRECATED - x", label: Label("LEGACY"), want: "DEPRECATED - x"},
		{name: "legacy marker only once", desc: "INACTIVE - INACTIVE notes", label: LabelName, want: "INACTIVE notes"},
		{name: "marker without separator", desc: "DEPRECATEDish", label: LabelName, want: "DEPRECATEDish"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := RestoreMetadata(Metadata{Description: ptr(tt.desc), Label: tt.label})
			require.NotNil(t, m.Description)
			assert.Equal(t, tt.want, *m.Description)
		})
	}
}

// Sentinel topics are removed on unarchive even when the repository carried
// them before archiving; nothing records which ones archive added.
func TestRestoreMetadataDropsPreexistingSentinelTopics(t *testing.T) {
	before := []string{"go", "abandoned", "inactive"}
	archived := ArchiveMetadata(Metadata{Topics: before, Description: ptr("Foo")}, "")
	assert.Equal(t, []string{"go", "abandoned", "inactive", "unmaintained"}, archived.Topics)

	restored := RestoreMetadata(archived)
	assert.Equal(t, []string{"go"}, restored.Topics)
	assert.Equal(t, "Foo", *restored.Description)
}

func TestRestoreMetadataStripsInactive(t *testing.T) {
	m := RestoreMetadata(Metadata{
		Description: ptr("INACTIVE - Old tool"),
		Topics:      []string{"inactive", "go"},
		Label:       LabelName,
	})
	assert.Equal(t, "Old tool", *m.Description)
	assert.Equal(t, []string{"go"}, m.Topics)

	assert.Nil(t, RestoreMetadata(Metadata{}).Description)
}

func TestArchiveUnarchiveRoundTrip(t *testing.T) {
	f := newFakeRepo(ptr("Foo bar"), []string{},
		&fakeIssue{Issue: ghapi.Issue{Number: 1, Title: "bug"}, open: true},
		&fakeIssue{Issue: ghapi.Issue{Number: 2, Title: "feature", PullRequest: true}, open: true},
	)

	o := (&Archiver{API: f, Quiet: true}).Archive(context.Background(), "acme", "app")
	require.False(t, o.Failed(), o.Error())
	assert.Equal(t, KindDone, o.Kind)
	assert.True(t, f.archiveSet)
	assert.Equal(t, "DEPRECATED - Foo bar", *f.repo.Description)
	assert.Equal(t, []string{"abandoned", "unmaintained"}, f.repo.Topics)
	for _, is := range f.issues {
		assert.False(t, is.open)
		assert.Equal(t, []string{LabelName}, is.labels)
	}

	// The owner unarchives in the UI before running the reverse.
	f.repo.Archived = false
	o = (&Unarchiver{API: f, Quiet: true}).Unarchive(context.Background(), "acme", "app")
	require.False(t, o.Failed(), o.Error())
	assert.Equal(t, "Foo bar", *f.repo.Description)
	assert.Empty(t, f.repo.Topics)
	assert.Empty(t, f.labels)
	for _, is := range f.issues {
		assert.True(t, is.open)
		assert.Empty(t, is.labels)
	}
}

func TestArchiveSkipsArchived(t *testing.T) {
	f := newFakeRepo(nil, nil)
	f.repo.Archived = true
	o := (&Archiver{API: f, Quiet: true}).Archive(context.Background(), "acme", "app")
	assert.Equal(t, Done("already archived"), o)
	assert.Empty(t, f.labels)
}

func TestArchiveExistingLabel(t *testing.T) {
	f := newFakeRepo(ptr("x"), nil)
	f.labels = []string{LabelName}

	o := (&Archiver{API: f, Quiet: true}).Archive(context.Background(), "acme", "app")
	assert.True(t, o.Failed())
	assert.Contains(t, o.Error(), "already exists")
	assert.Equal(t, "x", *f.repo.Description)

	o = (&Archiver{API: f, Quiet: true, Force: true}).Archive(context.Background(), "acme", "app")
	assert.False(t, o.Failed())
	assert.Equal(t, []string{LabelName}, f.labels)
}

func TestArchiveUnprocessableClose(t *testing.T) {
	f := newFakeRepo(ptr("Foo"), nil,
		&fakeIssue{Issue: ghapi.Issue{Number: 1, Title: "stuck"}, open: true},
		&fakeIssue{Issue: ghapi.Issue{Number: 2, Title: "fine"}, open: true},
	)
	f.closeErr = map[int]error{1: statusErr(http.StatusUnprocessableEntity)}

	o := (&Archiver{API: f, Quiet: true}).Archive(context.Background(), "acme", "app")
	assert.Equal(t, KindDone, o.Kind)
	assert.Contains(t, o.Reason, "manually")
	assert.False(t, f.archiveSet)
	assert.Equal(t, "DEPRECATED - Foo", *f.repo.Description)
	assert.True(t, f.find(1).open)
	assert.False(t, f.find(2).open)
}

func TestUnarchiveStillArchived(t *testing.T) {
	f := newFakeRepo(ptr("DEPRECATED - Foo"), nil)
	f.repo.Archived = true
	o := (&Unarchiver{API: f, Quiet: true}).Unarchive(context.Background(), "acme", "app")
	assert.True(t, o.Failed())
	assert.Contains(t, o.Error(), "still archived")
}

func TestUnarchiveMissingLabel(t *testing.T) {
	f := newFakeRepo(ptr("DEPRECATED - Foo"), nil)
	f.deleteErr = statusErr(http.StatusNotFound)
	o := (&Unarchiver{API: f, Quiet: true}).Unarchive(context.Background(), "acme", "app")
	assert.True(t, o.Failed())
	assert.Contains(t, o.Error(), "no ARCHIVED label found")
}

func TestUnarchiveKeepsLabelWhenReopenFails(t *testing.T) {
	f := newFakeRepo(ptr("LEGACY - Foo"), []string{"abandoned"},
		&fakeIssue{Issue: ghapi.Issue{Number: 1, Title: "locked"}, labels: []string{"ARCHIVED - LEGACY"}},
	)
	f.labels = []string{"bug", "ARCHIVED - LEGACY"}
	f.reopenErr = map[int]error{1: statusErr(http.StatusUnprocessableEntity)}

	o := (&Unarchiver{API: f, Quiet: true}).Unarchive(context.Background(), "acme", "app")
	require.False(t, o.Failed(), o.Error())
	assert.Equal(t, []string{"bug", "ARCHIVED - LEGACY"}, f.labels)
	assert.Equal(t, []string{"ARCHIVED - LEGACY"}, f.find(1).labels)
	assert.Equal(t, "Foo", *f.repo.Description)
	assert.Empty(t, f.repo.Topics)
}

func TestCloseIssues(t *testing.T) {
	f := newFakeRepo(nil, nil,
		&fakeIssue{Issue: ghapi.Issue{Number: 1, Title: "bug"}, open: true},
		&fakeIssue{Issue: ghapi.Issue{Number: 2, Title: "pr", PullRequest: true}, open: true},
		&fakeIssue{Issue: ghapi.Issue{Number: 3, Title: "locked"}, open: true},
	)
	f.closeErr = map[int]error{3: statusErr(http.StatusUnprocessableEntity)}

	res, err := CloseIssues(context.Background(), f, "acme", "app", CloseOptions{})
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.True(t, f.find(1).open)
	assert.True(t, res[1].Skipped)

	res, err = CloseIssues(context.Background(), f, "acme", "app", CloseOptions{Apply: true, Comment: "closing"})
	require.NoError(t, err)
	assert.True(t, res[0].Closed)
	assert.True(t, res[1].Skipped)
	assert.False(t, res[2].Closed)
	assert.False(t, f.find(1).open)
	assert.True(t, f.find(2).open)
	assert.Equal(t, "closing", f.comments[1])

	res, err = CloseIssues(context.Background(), f, "acme", "app", CloseOptions{Apply: true, IncludePRs: true})
	require.NoError(t, err)
	assert.False(t, f.find(2).open)
	assert.Len(t, res, 2)
}
