// Package ghapi provides GitHub API client functionality.
//
// This file (graphql_execution.go) contains the raw GraphQL executor and the
// cursor paginator built on it.
//
// Key features:
//   - Untyped execution of hand written queries with explicit status checks
//   - Cursor pagination over any connection that exposes pageInfo
//   - Budget checks between pages through the rate budget tracker
package ghapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/progress"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/pterm/pterm"
)

// GraphQLExecutor runs one GraphQL request and returns the decoded body.
type GraphQLExecutor interface {
	Execute(ctx context.Context, query string, vars map[string]any) (map[string]any, error)
}

// Cursor is an opaque pagination position. It is only ever passed back.
type Cursor string

// Page is one page of connection items together with the cursor that
// requested it (empty for the first page) and the cursor it returned.
type Page struct {
	Cursor    Cursor
	EndCursor Cursor
	Items     []map[string]any
}

// QueryBuilder renders the query for the page after cursor. cursor is nil for
// the first page.
type QueryBuilder func(cursor *Cursor) (query string, vars map[string]any)

// ConnectionPath is the key path from data to the paginated connection, e.g.
// organization, samlIdentityProvider, externalIdentities.
type ConnectionPath []string

// Execute posts query to the GraphQL endpoint.
//
// A status other than 200 yields *QueryError. A body with an errors array
// yields *PayloadError.
func (c *Client) Execute(ctx context.Context, query string, vars map[string]any) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return nil, fmt.Errorf("failed to encode GraphQL request: %w", err)
	}

	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; ; attempt++ {
		payload, wait, err := c.executeOnce(ctx, query, body)
		if err == nil || wait == 0 || attempt >= attempts-1 {
			return payload, err
		}
		pterm.Warning.Printf("⚠ GraphQL request failed (%v), retrying in %v (attempt %d/%d)\n",
			err, wait, attempt+1, attempts)
		if serr := sleepCtx(ctx, wait); serr != nil {
			return nil, serr
		}
	}
}

// executeOnce returns a non-zero wait when the failure is worth retrying.
func (c *Client) executeOnce(ctx context.Context, query string, body []byte) (map[string]any, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GraphQL request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read GraphQL response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		qerr := &QueryError{StatusCode: resp.StatusCode, Query: query}
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusForbidden:
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				return nil, parseRetryAfter(ra, c.retry.MinSecondaryWait), qerr
			}
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return nil, c.retry.BaseBackoff, qerr
		}
		return nil, 0, qerr
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, 0, fmt.Errorf("failed to decode GraphQL response: %w", err)
	}
	if errs, ok := payload["errors"]; ok && errs != nil {
		return nil, 0, &PayloadError{Path: []string{"errors"}, Reason: "query returned errors", Payload: payload}
	}
	return payload, 0, nil
}

// FetchOption tunes FetchAll.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	tracker  *ratelimit.Tracker
	required int
	progress progress.Progress
}

// WithBudget checks the graphql budget before every page after the first.
func WithBudget(t *ratelimit.Tracker, required int) FetchOption {
	return func(fc *fetchConfig) {
		fc.tracker = t
		fc.required = required
	}
}

// WithPageProgress increments p once per fetched page.
func WithPageProgress(p progress.Progress) FetchOption {
	return func(fc *fetchConfig) { fc.progress = p }
}

// FetchAll requests pages until the connection at conn reports
// hasNextPage=false, and returns them in request order.
func FetchAll(ctx context.Context, exec GraphQLExecutor, build QueryBuilder, conn ConnectionPath, opts ...FetchOption) ([]Page, error) {
	fc := fetchConfig{progress: progress.Nop{}}
	for _, opt := range opts {
		opt(&fc)
	}

	var (
		pages  []Page
		cursor *Cursor
	)
	for {
		if fc.tracker != nil && cursor != nil {
			if err := fc.tracker.EnsureBudget(ctx, fc.required, ratelimit.GraphQL); err != nil {
				return nil, err
			}
		}

		query, vars := build(cursor)
		payload, err := exec.Execute(ctx, query, vars)
		if err != nil {
			return nil, err
		}

		page, hasNext, err := extractPage(payload, conn)
		if err != nil {
			return nil, err
		}
		if cursor != nil {
			page.Cursor = *cursor
		}
		pages = append(pages, page)
		fc.progress.Increment()

		if !hasNext {
			return pages, nil
		}
		next := page.EndCursor
		cursor = &next
	}
}

// Items flattens pages into one slice.
func Items(pages []Page) []map[string]any {
	var out []map[string]any
	for _, p := range pages {
		out = append(out, p.Items...)
	}
	return out
}

func extractPage(payload map[string]any, conn ConnectionPath) (Page, bool, error) {
	path := append([]string{"data"}, conn...)
	fail := func(reason string) (Page, bool, error) {
		return Page{}, false, &PayloadError{Path: path, Reason: reason, Payload: payload}
	}

	node, ok := lookup(payload, path...)
	if !ok {
		return fail("connection not found")
	}
	connection, ok := node.(map[string]any)
	if !ok {
		return fail("connection is not an object")
	}

	pageInfo, ok := connection["pageInfo"].(map[string]any)
	if !ok {
		return fail("missing pageInfo")
	}
	hasNext, ok := pageInfo["hasNextPage"].(bool)
	if !ok {
		return fail("missing pageInfo.hasNextPage")
	}

	var page Page
	if end, ok := pageInfo["endCursor"].(string); ok {
		page.EndCursor = Cursor(end)
	} else if hasNext {
		return fail("missing pageInfo.endCursor")
	}

	list, ok := connection["edges"].([]any)
	if !ok {
		list, ok = connection["nodes"].([]any)
	}
	if !ok {
		return fail("missing edges or nodes")
	}
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			page.Items = append(page.Items, m)
		}
	}
	return page, hasNext, nil
}
