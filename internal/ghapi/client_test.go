package ghapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/mona-actions/gh-orgtools/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{
	MaxAttempts:      3,
	BaseBackoff:      time.Millisecond,
	MaxBackoff:       time.Millisecond,
	MinSecondaryWait: time.Millisecond,
	MaxSecondaryWait: time.Millisecond,
}

func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *state.Status) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	st := state.New()
	retry := fastRetry
	c, err := NewClient(context.Background(), Config{
		Token:      "test-token",
		BaseURL:    srv.URL + "/",
		GraphQLURL: srv.URL + "/graphql",
		Retry:      &retry,
		Status:     st,
	})
	require.NoError(t, err)
	return c, st
}

func TestNewClientEnterpriseURLs(t *testing.T) {
	c, err := NewClient(context.Background(), Config{Token: "x", Hostname: "github.example.com", Status: state.New()})
	require.NoError(t, err)
	assert.Equal(t, "https://github.example.com/api/v3/", c.REST.BaseURL.String())
	assert.Equal(t, "https://github.example.com/api/graphql", c.GraphQLURL())

	c, err = NewClient(context.Background(), Config{Token: "x", Status: state.New()})
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/", c.REST.BaseURL.String())
	assert.Equal(t, defaultGraphQLURL, c.GraphQLURL())

	c, err = NewClient(context.Background(), Config{Token: "x", Hostname: "github.example.com", GraphQLURL: "https://gql.example.com/graphql", Status: state.New()})
	require.NoError(t, err)
	assert.Equal(t, "https://gql.example.com/graphql", c.GraphQLURL())
}

func TestQuotaAndHeaderTracking(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute).Unix()
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("X-RateLimit-Resource", "core")
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(reset))
		fmt.Fprintf(w, `{"resources":{
			"core":{"limit":5000,"remaining":4999,"reset":%d},
			"search":{"limit":30,"remaining":30,"reset":%d},
			"graphql":{"limit":5000,"remaining":12,"reset":%d}}}`, reset, reset, reset)
	})
	c, st := newTestClient(t, mux)

	gql, err := c.Quota(context.Background(), ratelimit.GraphQL)
	require.NoError(t, err)
	assert.Equal(t, 12, gql.Remaining)
	assert.Equal(t, reset, gql.ResetAt.Unix())

	core, ok := st.GetRateLimit(ratelimit.Core)
	require.True(t, ok)
	assert.Equal(t, 4999, core.Remaining)
	assert.Equal(t, int64(1), st.GetAPICalls())

	require.NoError(t, c.Tracker().EnsureBudget(context.Background(), 20, ratelimit.Core))
}

func TestPaginateFollowsNextPage(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "private", r.URL.Query().Get("type"))
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/orgs/acme/repos?page=2>; rel="next"`, srvURL))
			fmt.Fprint(w, `[{"name":"one","full_name":"acme/one","private":true,"owner":{"login":"acme"}}]`)
		case "2":
			fmt.Fprint(w, `[{"name":"two","full_name":"acme/two","private":true,"archived":true,"owner":{"login":"acme"}}]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	retry := fastRetry
	c, err := NewClient(context.Background(), Config{Token: "t", BaseURL: srv.URL, Retry: &retry, Status: state.New()})
	require.NoError(t, err)

	repos, err := c.OrgRepos(context.Background(), "acme", RepoTypePrivate)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "acme", repos[0].Owner)
	assert.Equal(t, "acme/two", repos[1].FullName)
	assert.True(t, repos[1].Archived)

	_, err = c.OrgRepos(context.Background(), "acme", "internalish")
	assert.Error(t, err)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"name":"app","full_name":"acme/app","owner":{"login":"acme"}}`)
	})
	c, _ := newTestClient(t, mux)

	repo, err := c.GetRepo(context.Background(), "acme", "app")
	require.NoError(t, err)
	assert.Equal(t, "app", repo.Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/gone", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.GetRepo(context.Background(), "acme", "gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCollaborators(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app/collaborators", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("affiliation"))
		fmt.Fprint(w, `[
			{"login":"alice","permissions":{"pull":true,"push":true,"admin":true}},
			{"login":"bob","permissions":{"pull":true,"push":false,"admin":false}}]`)
	})
	c, _ := newTestClient(t, mux)

	got, err := c.Collaborators(context.Background(), Repo{Owner: "acme", Name: "app", FullName: "acme/app"})
	require.NoError(t, err)
	assert.Equal(t, []Collaborator{
		{Login: "alice", Pull: true, Push: true, Admin: true},
		{Login: "bob", Pull: true},
	}, got)
}

func TestAddCollaboratorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/new/collaborators/carol", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1}`)
	})
	mux.HandleFunc("/repos/acme/old/collaborators/carol", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, mux)

	code, err := c.AddCollaborator(context.Background(), "acme", "new", "carol", "write")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, code)

	code, err = c.AddCollaborator(context.Background(), "acme", "old", "carol", "read")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, code)

	_, err = c.AddCollaborator(context.Background(), "acme", "old", "carol", "owner")
	assert.Error(t, err)
}

func TestSetBlocked(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/blocks/mallory", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"message":"Blocked user has already been blocked"}`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	c, _ := newTestClient(t, mux)

	code, err := c.SetBlocked(context.Background(), "acme", "mallory", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, err = c.SetBlocked(context.Background(), "acme", "mallory", false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestSetBlockedRetriesTransientErrors(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/blocks/mallory", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, mux)

	code, err := c.SetBlocked(context.Background(), "acme", "mallory", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetUserRetriesTransientErrors(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"login":"octocat","id":1}`)
	})
	c, _ := newTestClient(t, mux)

	u, _, err := c.GetUser(context.Background(), "octocat")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.GetID())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSearchCodeChecksSearchQuota(t *testing.T) {
	var srvURL string
	var quotaChecks int32
	reset := time.Now().Add(time.Minute).Unix()
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&quotaChecks, 1)
		fmt.Fprintf(w, `{"resources":{
			"core":{"limit":5000,"remaining":0,"reset":%d},
			"search":{"limit":30,"remaining":29,"reset":%d},
			"graphql":{"limit":5000,"remaining":5000,"reset":%d}}}`, reset, reset, reset)
	})
	mux.HandleFunc("/search/code", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org:acme filename:Pipfile flask", r.URL.Query().Get("q"))
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/search/code?q=x&page=2>; rel="next"`, srvURL))
			fmt.Fprint(w, `{"total_count":2,"items":[{"path":"Pipfile","repository":{"name":"api","full_name":"acme/api"}}]}`)
		case "2":
			fmt.Fprint(w, `{"total_count":2,"items":[{"path":"svc/Pipfile","repository":{"name":"web","full_name":"acme/web"}}]}`)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	retry := fastRetry
	c, err := NewClient(context.Background(), Config{Token: "t", BaseURL: srv.URL, Retry: &retry, Status: state.New()})
	require.NoError(t, err)

	hits, err := c.SearchCode(context.Background(), "org:acme filename:Pipfile flask")
	require.NoError(t, err)
	assert.Equal(t, []CodeHit{
		{Repo: "api", FullName: "acme/api", Path: "Pipfile"},
		{Repo: "web", FullName: "acme/web", Path: "svc/Pipfile"},
	}, hits)
	assert.Equal(t, int32(2), atomic.LoadInt32(&quotaChecks))
}

func TestOutsideCollaborators(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/outside_collaborators", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"login":"OctoCat"},{"login":"hubot"}]`)
	})
	c, _ := newTestClient(t, mux)

	got, err := c.OutsideCollaborators(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"octocat", "hubot"}, got)
}

func TestAddTeamRepo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/teams/platform/repos/acme/api", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"permission":"maintain"}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, mux)

	code, err := c.AddTeamRepo(context.Background(), "acme", "platform", "api", "maintain")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, code)

	code, err = c.AddTeamRepo(context.Background(), "acme", "ghost", "api", "read")
	assert.Error(t, err)
	assert.Equal(t, http.StatusNotFound, code)

	_, err = c.AddTeamRepo(context.Background(), "acme", "platform", "api", "owner")
	assert.Error(t, err)
}

func TestCommitActivityAccepted(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/app/stats/commit_activity", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `[{"total":0,"week":1700000000},{"total":3,"week":1700604800}]`)
	})
	c, _ := newTestClient(t, mux)

	_, ready, err := c.CommitActivity(context.Background(), "acme", "app")
	require.NoError(t, err)
	assert.False(t, ready)

	weeks, ready, err := c.CommitActivity(context.Background(), "acme", "app")
	require.NoError(t, err)
	assert.True(t, ready)
	require.Len(t, weeks, 2)
	assert.Equal(t, 3, weeks[1].GetTotal())
}

func TestWhoami(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-OAuth-Scopes", "repo, admin:org")
		fmt.Fprint(w, `{"login":"octocat","node_id":"MDQ6VXNlcjE="}`)
	})
	c, _ := newTestClient(t, mux)

	owner, err := c.Whoami(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", owner.Login)
	assert.Equal(t, "MDQ6VXNlcjE=", owner.NodeID)
	assert.Equal(t, "repo, admin:org", owner.Scopes)
}

func TestThrottle(t *testing.T) {
	now := time.Unix(100, 0)
	th := NewThrottle(50 * time.Millisecond)
	th.now = func() time.Time { return now }

	require.NoError(t, th.Wait(context.Background()))
	// the clock does not move, so the second wait sleeps the full delay
	start := time.Now()
	require.NoError(t, th.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, th.Wait(ctx), context.Canceled)
}
