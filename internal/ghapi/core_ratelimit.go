// Package ghapi provides GitHub API client functionality.
//
// This file (core_ratelimit.go) implements ratelimit.QuotaSource on top of
// GET /rate_limit and the GraphQL rateLimit object.
package ghapi

import (
	"context"
	"fmt"

	"github.com/google/go-github/v75/github"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/shurcooL/githubv4"
)

// Quota returns the current quota of resource. The /rate_limit endpoint does
// not count against the core quota.
func (c *Client) Quota(ctx context.Context, resource ratelimit.Resource) (ratelimit.Status, error) {
	all, err := c.RateLimits(ctx)
	if err != nil {
		return ratelimit.Status{}, err
	}
	st, ok := all[resource]
	if !ok {
		return ratelimit.Status{}, fmt.Errorf("rate limit response has no %q resource", resource)
	}
	return st, nil
}

// RateLimits returns the quota of every known resource and records them.
func (c *Client) RateLimits(ctx context.Context) (map[ratelimit.Resource]ratelimit.Status, error) {
	limits, _, err := c.REST.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit: %w", err)
	}

	out := make(map[ratelimit.Resource]ratelimit.Status, len(ratelimit.Resources))
	add := func(res ratelimit.Resource, r *github.Rate) {
		if r == nil {
			return
		}
		st := ratelimit.Status{
			Resource:  res,
			Limit:     r.Limit,
			Remaining: r.Remaining,
			ResetAt:   r.Reset.Time,
		}
		out[res] = st
		c.status.UpdateRateLimit(st)
	}
	add(ratelimit.Core, limits.Core)
	add(ratelimit.Search, limits.Search)
	add(ratelimit.GraphQL, limits.GraphQL)
	return out, nil
}

// GraphQLQuota reads the graphql quota through the GraphQL API itself.
// It costs one point of that quota.
func (c *Client) GraphQLQuota(ctx context.Context) (ratelimit.Status, error) {
	var q struct {
		RateLimit struct {
			Limit     int
			Remaining int
			ResetAt   githubv4.DateTime
		}
	}
	if err := c.V4.Query(ctx, &q, nil); err != nil {
		return ratelimit.Status{}, fmt.Errorf("failed to query graphql rate limit: %w", err)
	}
	st := ratelimit.Status{
		Resource:  ratelimit.GraphQL,
		Limit:     q.RateLimit.Limit,
		Remaining: q.RateLimit.Remaining,
		ResetAt:   q.RateLimit.ResetAt.Time,
	}
	c.status.UpdateRateLimit(st)
	return st, nil
}

// GraphQLQuotaSource returns a QuotaSource that answers graphql checks with
// GraphQLQuota and everything else with Quota.
func (c *Client) GraphQLQuotaSource() ratelimit.QuotaSource {
	return ratelimit.QuotaFunc(func(ctx context.Context, res ratelimit.Resource) (ratelimit.Status, error) {
		if res == ratelimit.GraphQL {
			return c.GraphQLQuota(ctx)
		}
		return c.Quota(ctx, res)
	})
}
