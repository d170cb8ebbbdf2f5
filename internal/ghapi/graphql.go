// Package ghapi provides GitHub API client functionality.
//
// This file (graphql.go) contains typed githubv4 queries.
package ghapi

import (
	"context"
	"fmt"

	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/shurcooL/githubv4"
)

// ViewerOrganizations lists the logins of the organizations the token's user
// belongs to.
func (c *Client) ViewerOrganizations(ctx context.Context) ([]string, error) {
	var q struct {
		Viewer struct {
			Organizations struct {
				Nodes []struct {
					Login string
				}
				PageInfo struct {
					EndCursor   githubv4.String
					HasNextPage bool
				}
			} `graphql:"organizations(first: 100, after: $cursor)"`
		}
	}
	vars := map[string]any{"cursor": (*githubv4.String)(nil)}

	var orgs []string
	for page := 1; ; page++ {
		if err := c.V4.Query(ctx, &q, vars); err != nil {
			return nil, fmt.Errorf("failed to list viewer organizations (page %d): %w", page, err)
		}
		for _, n := range q.Viewer.Organizations.Nodes {
			orgs = append(orgs, n.Login)
		}
		if !q.Viewer.Organizations.PageInfo.HasNextPage {
			return orgs, nil
		}
		vars["cursor"] = githubv4.NewString(q.Viewer.Organizations.PageInfo.EndCursor)
		if err := c.tracker.EnsureBudget(ctx, 1, ratelimit.GraphQL); err != nil {
			return nil, err
		}
	}
}
