// Package ghapi provides GitHub API client functionality.
//
// This file (repos_metadata.go) contains repository-level REST calls:
// listing, collaborators and commit activity.
package ghapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v75/github"
)

// Repository visibility filters accepted by OrgRepos.
const (
	RepoTypeAll     = "all"
	RepoTypePublic  = "public"
	RepoTypePrivate = "private"
)

// OrgRepos lists the repositories of org filtered by visibility type.
func (c *Client) OrgRepos(ctx context.Context, org, typ string) ([]Repo, error) {
	switch typ {
	case "":
		typ = RepoTypeAll
	case RepoTypeAll, RepoTypePublic, RepoTypePrivate:
	default:
		return nil, fmt.Errorf("%s not a known repository visibility type", typ)
	}

	raw, err := Paginate(ctx, c, "list repositories of "+org,
		func(ctx context.Context, lo github.ListOptions) ([]*github.Repository, *github.Response, error) {
			return c.REST.Repositories.ListByOrg(ctx, org, &github.RepositoryListByOrgOptions{Type: typ, ListOptions: lo})
		})
	if err != nil {
		return nil, err
	}
	repos := make([]Repo, 0, len(raw))
	for _, r := range raw {
		repos = append(repos, repoFromGitHub(r))
	}
	return repos, nil
}

// GetRepo fetches owner/name.
func (c *Client) GetRepo(ctx context.Context, owner, name string) (Repo, error) {
	var r *github.Repository
	_, err := c.Do(ctx, "get repository "+owner+"/"+name, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		r, resp, err = c.REST.Repositories.Get(ctx, owner, name)
		return resp, err
	})
	if err != nil {
		return Repo{}, fmt.Errorf("failed to get repository %s/%s: %w", owner, name, err)
	}
	return repoFromGitHub(r), nil
}

// Collaborators lists every collaborator of repo with their permission bits.
// Errors keep their status so callers can classify them.
func (c *Client) Collaborators(ctx context.Context, repo Repo) ([]Collaborator, error) {
	raw, err := Paginate(ctx, c, "list collaborators of "+repo.FullName,
		func(ctx context.Context, lo github.ListOptions) ([]*github.User, *github.Response, error) {
			return c.REST.Repositories.ListCollaborators(ctx, repo.Owner, repo.Name,
				&github.ListCollaboratorsOptions{Affiliation: "all", ListOptions: lo})
		})
	if err != nil {
		return nil, err
	}
	out := make([]Collaborator, 0, len(raw))
	for _, u := range raw {
		out = append(out, collaboratorFromGitHub(u))
	}
	return out, nil
}

// IsCollaborator reports whether user is a collaborator of owner/repo.
func (c *Client) IsCollaborator(ctx context.Context, owner, repo, user string) (bool, error) {
	var ok bool
	_, err := c.Do(ctx, "check collaborator", func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		ok, resp, err = c.REST.Repositories.IsCollaborator(ctx, owner, repo, user)
		return resp, err
	})
	return ok, err
}

// RemoveCollaborator removes user from owner/repo.
func (c *Client) RemoveCollaborator(ctx context.Context, owner, repo, user string) error {
	_, err := c.Do(ctx, "remove collaborator", func() (*github.Response, error) {
		return c.REST.Repositories.RemoveCollaborator(ctx, owner, repo, user)
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s from %s/%s: %w", user, owner, repo, err)
	}
	return nil
}

// collaboratorPermissions maps the user facing levels to API permissions.
var collaboratorPermissions = map[string]string{
	"read":     "pull",
	"triage":   "triage",
	"write":    "push",
	"maintain": "maintain",
	"admin":    "admin",
}

// APIPermission maps read, triage, write, maintain or admin to the name the
// repository permission endpoints expect.
func APIPermission(perm string) (string, error) {
	apiPerm, ok := collaboratorPermissions[perm]
	if !ok {
		return "", fmt.Errorf("unknown permission %q (want read, triage, write, maintain or admin)", perm)
	}
	return apiPerm, nil
}

// AddCollaborator grants user perm (see APIPermission) on owner/repo and
// returns the HTTP status: 201 invited or added, 204 already has access.
func (c *Client) AddCollaborator(ctx context.Context, owner, repo, user, perm string) (int, error) {
	apiPerm, err := APIPermission(perm)
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(ctx, "add collaborator", func() (*github.Response, error) {
		_, resp, err := c.REST.Repositories.AddCollaborator(ctx, owner, repo, user,
			&github.RepositoryAddCollaboratorOptions{Permission: apiPerm})
		return resp, err
	})
	if err != nil {
		return StatusCode(err), err
	}
	return resp.StatusCode, nil
}

// CommitActivity returns the weekly commit totals of the last year. ready is
// false while GitHub is still computing the statistics (HTTP 202).
func (c *Client) CommitActivity(ctx context.Context, owner, repo string) (weeks []*github.WeeklyCommitActivity, ready bool, err error) {
	var resp *github.Response
	weeks, resp, err = c.REST.Repositories.ListCommitActivity(ctx, owner, repo)
	var accepted *github.AcceptedError
	if errors.As(err, &accepted) || (resp != nil && resp.StatusCode == http.StatusAccepted) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return weeks, true, nil
}
