// Package ghapi provides GitHub API client functionality.
//
// This file (orgs_teams.go) contains organization team functions: team
// listing, membership and per-team repository permissions.
package ghapi

import (
	"context"
	"fmt"

	"github.com/google/go-github/v75/github"
	"github.com/mona-actions/gh-orgtools/internal/progress"
)

const teamRepositoriesQuery = `query($org: String!, $team: String!, $cursor: String) {
  organization(login: $org) {
    team(slug: $team) {
      repositories(first: 100, after: $cursor) {
        edges {
          permission
          node { name }
        }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

// Teams lists every team of org.
func (c *Client) Teams(ctx context.Context, org string) ([]Team, error) {
	raw, err := Paginate(ctx, c, "list teams of "+org,
		func(ctx context.Context, lo github.ListOptions) ([]*github.Team, *github.Response, error) {
			return c.REST.Teams.ListTeams(ctx, org, &lo)
		})
	if err != nil {
		return nil, err
	}
	teams := make([]Team, 0, len(raw))
	for _, t := range raw {
		teams = append(teams, teamFromGitHub(t))
	}
	return teams, nil
}

// TeamBySlug fetches a single team.
func (c *Client) TeamBySlug(ctx context.Context, org, slug string) (Team, error) {
	var t *github.Team
	_, err := c.Do(ctx, "get team "+slug, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		t, resp, err = c.REST.Teams.GetTeamBySlug(ctx, org, slug)
		return resp, err
	})
	if err != nil {
		return Team{}, fmt.Errorf("failed to resolve team %s in %s: %w", slug, org, err)
	}
	return teamFromGitHub(t), nil
}

// AddTeamRepo grants team slug perm (see APIPermission) on org/repo and
// returns the HTTP status, 204 on success.
func (c *Client) AddTeamRepo(ctx context.Context, org, slug, repo, perm string) (int, error) {
	apiPerm, err := APIPermission(perm)
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(ctx, "add team repository", func() (*github.Response, error) {
		return c.REST.Teams.AddTeamRepoBySlug(ctx, org, slug, org, repo,
			&github.TeamAddTeamRepoOptions{Permission: apiPerm})
	})
	if err != nil {
		return StatusCode(err), err
	}
	return resp.StatusCode, nil
}

// TeamMembers lists the logins of a team with role "maintainer" or "member".
func (c *Client) TeamMembers(ctx context.Context, org, slug, role string) ([]string, error) {
	users, err := Paginate(ctx, c, "list "+role+"s of team "+slug,
		func(ctx context.Context, lo github.ListOptions) ([]*github.User, *github.Response, error) {
			return c.REST.Teams.ListTeamMembersBySlug(ctx, org, slug,
				&github.TeamListTeamMembersOptions{Role: role, ListOptions: lo})
		})
	if err != nil {
		return nil, err
	}
	logins := make([]string, 0, len(users))
	for _, u := range users {
		logins = append(logins, u.GetLogin())
	}
	return logins, nil
}

// TeamRepoPermissions groups the repositories a team can reach by the
// permission it grants (ADMIN, MAINTAIN, WRITE, TRIAGE, READ). Keys keep
// first-seen order in the returned slice.
func (c *Client) TeamRepoPermissions(ctx context.Context, org, slug string, p progress.Progress) ([]string, map[string][]string, error) {
	build := func(cursor *Cursor) (string, map[string]any) {
		return teamRepositoriesQuery, withCursor(map[string]any{"org": org, "team": slug}, cursor)
	}
	pages, err := FetchAll(ctx, c, build,
		ConnectionPath{"organization", "team", "repositories"},
		WithBudget(c.tracker, graphQLPageBudget),
		WithPageProgress(progress.OrNop(p)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch repositories of team %s: %w", slug, err)
	}

	var order []string
	byPerm := make(map[string][]string)
	for _, edge := range Items(pages) {
		perm := getString(edge, "permission")
		if _, seen := byPerm[perm]; !seen {
			order = append(order, perm)
		}
		byPerm[perm] = append(byPerm[perm], getString(edge, "node", "name"))
	}
	return order, byPerm, nil
}
