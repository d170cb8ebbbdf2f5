package perms

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/go-github/v75/github"
	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	collabs map[string][]ghapi.Collaborator
	errs    map[string]error
	calls   []string
}

func (f *fakeSource) Collaborators(_ context.Context, repo ghapi.Repo) ([]ghapi.Collaborator, error) {
	f.calls = append(f.calls, repo.Name)
	if err := f.errs[repo.Name]; err != nil {
		return nil, err
	}
	return f.collabs[repo.Name], nil
}

type countingBudget struct{ calls int }

func (b *countingBudget) EnsureBudget(_ context.Context, required int, res ratelimit.Resource) error {
	b.calls++
	return nil
}

func statusErr(code int) error {
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/repos/acme/x/collaborators"}}
	return &github.ErrorResponse{Response: &http.Response{StatusCode: code, Request: req}, Message: http.StatusText(code)}
}

func TestTopPermissionAdminWinsOverPush(t *testing.T) {
	src := &fakeSource{collabs: map[string][]ghapi.Collaborator{
		"app": {{Login: "dev", Pull: true, Push: true, Admin: true}},
	}}
	repos := []ghapi.Repo{{Name: "app", FullName: "acme/app", Private: true}}

	for _, policy := range []Policy{PolicyHighestOnly, PolicyCumulative} {
		users, err := Aggregate(context.Background(), nil, repos, src, Options{Policy: policy})
		require.NoError(t, err)

		top, ok := TopPermission(users["dev"], "app")
		require.True(t, ok)
		assert.Equal(t, "privadmin", top)
		assert.Equal(t, []string{"app:privadmin"}, TopPermissions(users["dev"]))
	}
}

func TestPolicies(t *testing.T) {
	src := &fakeSource{collabs: map[string][]ghapi.Collaborator{
		"app": {{Login: "dev", Pull: true, Push: true}},
	}}
	repos := []ghapi.Repo{{Name: "app", FullName: "acme/app"}}

	users, err := Aggregate(context.Background(), nil, repos, src, Options{Policy: PolicyHighestOnly})
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, users["dev"].Repos(Public, Push))
	assert.Empty(t, users["dev"].Repos(Public, Pull))
	assert.Equal(t, 1, users["dev"].Counts().Public)

	users, err = Aggregate(context.Background(), nil, repos, src, Options{Policy: PolicyCumulative})
	require.NoError(t, err)
	assert.Equal(t, "pubpull,pubpush", AccessString(users["dev"], "app"))
	assert.Equal(t, 2, users["dev"].Counts().Public)
}

func TestPullOnPublicAndPrivate(t *testing.T) {
	src := &fakeSource{collabs: map[string][]ghapi.Collaborator{
		"open":   {{Login: "reader", Pull: true}},
		"closed": {{Login: "reader", Pull: true}},
	}}
	repos := []ghapi.Repo{
		{Name: "open", FullName: "acme/open"},
		{Name: "closed", FullName: "acme/closed", Private: true},
	}
	users := Seed([]string{"reader"}, nil)

	users, err := Aggregate(context.Background(), users, repos, src, Options{})
	require.NoError(t, err)

	c := users["reader"].Counts()
	assert.Equal(t, 1, c.Bucket["pubpull"])
	assert.Equal(t, 1, c.Bucket["privpull"])
	assert.Equal(t, 1, c.Public)
	assert.Equal(t, 1, c.Private)
	assert.Equal(t, RoleMember, users["reader"].Role)
}

func TestOutsideCollaboratorAndFilter(t *testing.T) {
	src := &fakeSource{collabs: map[string][]ghapi.Collaborator{
		"app": {{Login: "member1", Pull: true}, {Login: "stranger", Push: true, Pull: true}},
	}}
	repos := []ghapi.Repo{{Name: "app", FullName: "acme/app", Archived: true}}

	users, err := Aggregate(context.Background(), Seed([]string{"member1"}, []string{"boss"}), repos, src,
		Options{MarkArchived: true})
	require.NoError(t, err)
	require.Contains(t, users, "stranger")
	assert.Equal(t, RoleOutside, users["stranger"].Role)
	assert.Equal(t, []string{"*app"}, users["stranger"].Repos(Public, Push))
	assert.True(t, users["stranger"].Has(Public, Push, "app"))
	assert.Equal(t, RoleAdmin, users["boss"].Role)

	users, err = Aggregate(context.Background(), nil, repos, src, Options{User: "member1"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Contains(t, users, "member1")
}

func TestAggregateErrors(t *testing.T) {
	repos := []ghapi.Repo{
		{Name: "app-ghsa-abcd-efgh-ijkl", FullName: "acme/app-ghsa-abcd-efgh-ijkl"},
		{Name: "flaky", FullName: "acme/flaky"},
		{Name: "ok", FullName: "acme/ok"},
	}
	src := &fakeSource{
		collabs: map[string][]ghapi.Collaborator{"ok": {{Login: "dev", Pull: true}}},
		errs: map[string]error{
			"app-ghsa-abcd-efgh-ijkl": statusErr(404),
			"flaky":                   statusErr(502),
		},
	}
	budget := &countingBudget{}

	users, err := Aggregate(context.Background(), nil, repos, src, Options{Budget: budget})
	require.NoError(t, err)
	assert.Equal(t, []string{"app-ghsa-abcd-efgh-ijkl", "flaky", "ok"}, src.calls)
	assert.Equal(t, []string{"ok"}, users["dev"].Repos(Public, Pull))
	assert.Equal(t, 3, budget.calls)

	src.errs["ok"] = statusErr(404)
	_, err = Aggregate(context.Background(), nil, repos, src, Options{})
	require.Error(t, err)
	assert.True(t, ghapi.IsNotFound(err))

	src.errs["ok"] = errors.New("connection refused")
	_, err = Aggregate(context.Background(), nil, repos, src, Options{})
	assert.Error(t, err)
}

func TestSingletonGrants(t *testing.T) {
	grants := []ghapi.CollaboratorGrant{
		{Login: "owner", Permission: "ADMIN", Sources: []ghapi.PermissionSource{
			{Kind: "Organization", Permission: "ADMIN"},
			{Kind: "Repository", Permission: "ADMIN"},
		}},
		{Login: "teamonly", Permission: "WRITE", Sources: []ghapi.PermissionSource{
			{Kind: "Team", Permission: "WRITE"},
			{Kind: "Organization", Permission: "READ"},
		}},
		{Login: "direct", Permission: "WRITE", Sources: []ghapi.PermissionSource{
			{Kind: "Organization", Permission: "READ"},
			{Kind: "Repository", Permission: "WRITE"},
		}},
		{Login: "admin2", Permission: "ADMIN", Sources: []ghapi.PermissionSource{
			{Kind: "Repository", Permission: "ADMIN"},
		}},
	}

	s := SingletonGrants(grants)
	assert.False(t, s.Empty())
	assert.Equal(t, []string{"WRITE", "ADMIN"}, s.Permissions)
	assert.Equal(t, []string{"direct"}, s.Logins["WRITE"])
	assert.Equal(t, []string{"admin2"}, s.Logins["ADMIN"])
	assert.Equal(t, "WRITE:direct,ADMIN:admin2,", s.String())

	assert.True(t, SingletonGrants(grants[:2]).Empty())
}

func TestAdminsByRepo(t *testing.T) {
	repos := []ghapi.Repo{
		{Name: "app", FullName: "acme/app"},
		{Name: "old", FullName: "acme/old", Archived: true},
		{Name: "app-ghsa-1111-2222-3333", FullName: "acme/app-ghsa-1111-2222-3333"},
	}
	src := &fakeSource{
		collabs: map[string][]ghapi.Collaborator{
			"app": {{Login: "root", Admin: true}, {Login: "lead", Admin: true, Push: true}, {Login: "dev", Push: true}},
		},
		errs: map[string]error{"app-ghsa-1111-2222-3333": statusErr(404)},
	}

	got, err := AdminsByRepo(context.Background(), repos, src, []string{"root"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []RepoAdmins{{FullName: "acme/app", Admins: []string{"lead"}}}, got)
	assert.NotContains(t, src.calls, "old")
}

func TestUserRepoAccess(t *testing.T) {
	rec := NewRecord("dev", RoleMember)
	rec.Add(Private, Pull, "*legacy")
	rec.Add(Private, Push, "*legacy")
	rec.Add(Public, Pull, "site")

	lines := UserRepoAccess([]*Record{rec}, []ghapi.Repo{{Name: "legacy"}, {Name: "site"}, {Name: "other"}})
	assert.Equal(t, []RepoAccess{
		{Login: "dev", Repo: "legacy", Role: RoleMember, Access: "privpull,privpush"},
		{Login: "dev", Repo: "site", Role: RoleMember, Access: "pubpull"},
	}, lines)
}

func TestSorted(t *testing.T) {
	users := Seed([]string{"zed", "amy"}, []string{"kim"})
	var logins []string
	for _, r := range Sorted(users) {
		logins = append(logins, r.Login)
	}
	assert.Equal(t, []string{"amy", "kim", "zed"}, logins)
}
