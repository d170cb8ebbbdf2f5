// Package ghapi provides GitHub API client functionality.
//
// This file (search.go) runs code searches against the search quota.
package ghapi

import (
	"context"
	"fmt"

	"github.com/google/go-github/v75/github"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
)

// CodeHit is one file matched by a code search.
type CodeHit struct {
	Repo     string
	FullName string
	Path     string
}

// SearchCode returns every file matching query. The search quota is checked
// before each page since it is far smaller than the core quota.
func (c *Client) SearchCode(ctx context.Context, query string) ([]CodeHit, error) {
	opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	var hits []CodeHit

	for page := 1; ; page++ {
		if c.tracker != nil {
			if err := c.tracker.EnsureBudget(ctx, 1, ratelimit.Search); err != nil {
				return nil, fmt.Errorf("rate limit check failed on code search page %d: %w", page, err)
			}
		}

		var result *github.CodeSearchResult
		resp, err := c.Do(ctx, "search code", func() (*github.Response, error) {
			var (
				r   *github.Response
				err error
			)
			result, r, err = c.REST.Search.Code(ctx, query, opts)
			return r, err
		})
		if err != nil {
			return nil, fmt.Errorf("code search %q (page %d): %w", query, page, err)
		}
		for _, cr := range result.CodeResults {
			hits = append(hits, CodeHit{
				Repo:     cr.GetRepository().GetName(),
				FullName: cr.GetRepository().GetFullName(),
				Path:     cr.GetPath(),
			})
		}

		if resp == nil || resp.NextPage == 0 {
			return hits, nil
		}
		opts.Page = resp.NextPage
	}
}
