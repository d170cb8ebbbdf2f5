// Package ghapi provides GitHub API client functionality.
//
// This file (client.go) builds the authenticated clients every command uses:
// a go-github REST client, a githubv4 GraphQL client and a raw GraphQL
// executor, all sharing one oauth2 transport. The transport records the quota
// headers of every response into the run status.
package ghapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/mona-actions/gh-orgtools/internal/state"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

const (
	defaultGraphQLURL = "https://api.github.com/graphql"
	publicHost        = "github.com"
)

// Config describes how to reach GitHub.
type Config struct {
	Token string
	// Hostname selects a GitHub Enterprise Server instance. Empty or
	// "github.com" means the public API.
	Hostname string
	// BaseURL overrides the REST endpoint completely (must end with "/").
	BaseURL string
	// GraphQLURL overrides the GraphQL endpoint.
	GraphQLURL string
	// Transport is the base round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Retry     *RetryPolicy
	// Status receives quota snapshots and call counts. Defaults to state.Get().
	Status *state.Status
}

// Client bundles the REST, GraphQL and raw GraphQL clients.
type Client struct {
	REST *github.Client
	V4   *githubv4.Client

	http       *http.Client
	graphqlURL string
	retry      RetryPolicy
	status     *state.Status
	tracker    *ratelimit.Tracker
}

// NewClient creates a Client authenticated with cfg.Token.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	status := cfg.Status
	if status == nil {
		status = state.Get()
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	tracked := &http.Client{Transport: &trackingTransport{base: base, status: status}}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, tracked)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))

	rest := github.NewClient(httpClient)
	graphqlURL := defaultGraphQLURL

	host := strings.TrimSuffix(strings.TrimPrefix(cfg.Hostname, "https://"), "/")
	if host != "" && host != publicHost && host != "api."+publicHost {
		root := "https://" + host + "/"
		var err error
		rest, err = rest.WithEnterpriseURLs(root, root)
		if err != nil {
			return nil, fmt.Errorf("invalid hostname %q: %w", cfg.Hostname, err)
		}
		graphqlURL = "https://" + host + "/api/graphql"
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		rest.BaseURL = u
		rest.UploadURL = u
	}
	if cfg.GraphQLURL != "" {
		graphqlURL = cfg.GraphQLURL
	}

	retry := DefaultRetryPolicy
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	c := &Client{
		REST:       rest,
		V4:         githubv4.NewEnterpriseClient(graphqlURL, httpClient),
		http:       httpClient,
		graphqlURL: graphqlURL,
		retry:      retry,
		status:     status,
	}
	c.tracker = ratelimit.NewTracker(c)
	return c, nil
}

// Tracker returns the rate budget tracker backed by this client's quota.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// GraphQLURL returns the endpoint the raw executor posts to.
func (c *Client) GraphQLURL() string {
	return c.graphqlURL
}

// trackingTransport counts calls and records X-RateLimit-* headers.
type trackingTransport struct {
	base   http.RoundTripper
	status *state.Status
}

func (t *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	t.status.IncrementAPICalls()
	if err != nil || resp == nil {
		return resp, err
	}
	if st, ok := rateFromHeaders(resp.Header); ok {
		t.status.UpdateRateLimit(st)
	}
	return resp, nil
}

func rateFromHeaders(h http.Header) (ratelimit.Status, bool) {
	res, err := ratelimit.ParseResource(h.Get("X-RateLimit-Resource"))
	if err != nil {
		return ratelimit.Status{}, false
	}
	remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return ratelimit.Status{}, false
	}
	limit, _ := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	st := ratelimit.Status{Resource: res, Limit: limit, Remaining: remaining}
	if reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		st.ResetAt = time.Unix(reset, 0)
	}
	return st, true
}
