// Package ghapi provides GitHub API client functionality.
//
// This file (core_pagination.go) walks go-github list endpoints page by page,
// following Response.NextPage and checking the core budget between pages.
package ghapi

import (
	"context"
	"fmt"

	"github.com/google/go-github/v75/github"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
)

const (
	perPage = 100
	// budgetEvery is how many REST pages run between tracker checks.
	budgetEvery = 10
)

// ListFunc fetches one page of a go-github list endpoint.
type ListFunc[T any] func(ctx context.Context, opts github.ListOptions) ([]T, *github.Response, error)

// Paginate collects every page of list. op names the call in errors and logs.
func Paginate[T any](ctx context.Context, c *Client, op string, list ListFunc[T]) ([]T, error) {
	opts := github.ListOptions{PerPage: perPage}
	var all []T

	for page := 1; ; page++ {
		var items []T
		resp, err := c.Do(ctx, op, func() (*github.Response, error) {
			var (
				r   *github.Response
				err error
			)
			items, r, err = list(ctx, opts)
			return r, err
		})
		if err != nil {
			return nil, fmt.Errorf("%s (page %d): %w", op, page, err)
		}
		all = append(all, items...)

		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage

		if c.tracker != nil && page%budgetEvery == 0 {
			if err := c.tracker.EnsureBudget(ctx, 1, ratelimit.Core); err != nil {
				return nil, fmt.Errorf("rate limit check failed on %s page %d: %w", op, page, err)
			}
		}
	}
}
