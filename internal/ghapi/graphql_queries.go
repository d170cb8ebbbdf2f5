// Package ghapi provides GitHub API client functionality.
//
// This file (graphql_queries.go) holds the hand written GraphQL queries that
// run through the cursor paginator, and the typed results they produce.
package ghapi

import (
	"context"
	"fmt"

	"github.com/mona-actions/gh-orgtools/internal/progress"
)

const samlIdentitiesQuery = `query($org: String!, $cursor: String) {
  organization(login: $org) {
    samlIdentityProvider {
      ssoUrl
      externalIdentities(first: 100, after: $cursor) {
        edges {
          node {
            guid
            samlIdentity { nameId }
            user { login }
          }
        }
        pageInfo { hasNextPage endCursor }
      }
    }
  }
}`

const collaboratorSourcesQuery = `query($owner: String!, $repo: String!, $cursor: String) {
  repository(owner: $owner, name: $repo) {
    name
    collaborators(first: 100, after: $cursor) {
      edges {
        node { login }
        permission
        permissionSources {
          sourcePermission: permission
          source {
            ... on Team { permissionSource: __typename teamName: name }
            ... on Organization { permissionSource: __typename orgName: name }
            ... on Repository { permissionSource: __typename repoName: name }
          }
        }
      }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

// graphQLPageBudget is the graphql quota reserved before each extra page.
const graphQLPageBudget = 10

// SAMLIdentity links a SAML NameID to a GitHub login.
type SAMLIdentity struct {
	NameID string
	Login  string
}

// PermissionSource is one reason a collaborator has access to a repository.
type PermissionSource struct {
	// Kind is the GraphQL type name: Organization, Team or Repository.
	Kind       string
	Name       string
	Permission string
}

// CollaboratorGrant is a collaborator's effective permission and its sources.
type CollaboratorGrant struct {
	Login      string
	Permission string
	Sources    []PermissionSource
}

func withCursor(vars map[string]any, cursor *Cursor) map[string]any {
	if cursor != nil {
		vars["cursor"] = string(*cursor)
	} else {
		vars["cursor"] = nil
	}
	return vars
}

// SAMLIdentities lists the linked SAML identities of org. Identities without a
// linked GitHub user are dropped.
func (c *Client) SAMLIdentities(ctx context.Context, org string, p progress.Progress) ([]SAMLIdentity, error) {
	build := func(cursor *Cursor) (string, map[string]any) {
		return samlIdentitiesQuery, withCursor(map[string]any{"org": org}, cursor)
	}
	pages, err := FetchAll(ctx, c, build,
		ConnectionPath{"organization", "samlIdentityProvider", "externalIdentities"},
		WithBudget(c.tracker, graphQLPageBudget),
		WithPageProgress(progress.OrNop(p)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SAML identities for %s (missing scopes or PAT not SSO authorized?): %w", org, err)
	}

	var out []SAMLIdentity
	for _, edge := range Items(pages) {
		login := getString(edge, "node", "user", "login")
		if login == "" {
			continue
		}
		out = append(out, SAMLIdentity{
			NameID: getString(edge, "node", "samlIdentity", "nameId"),
			Login:  login,
		})
	}
	return out, nil
}

// CollaboratorGrants lists every collaborator of owner/repo with the sources
// of their permission.
func (c *Client) CollaboratorGrants(ctx context.Context, owner, repo string) ([]CollaboratorGrant, error) {
	build := func(cursor *Cursor) (string, map[string]any) {
		return collaboratorSourcesQuery, withCursor(map[string]any{"owner": owner, "repo": repo}, cursor)
	}
	pages, err := FetchAll(ctx, c, build,
		ConnectionPath{"repository", "collaborators"},
		WithBudget(c.tracker, graphQLPageBudget))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collaborator sources for %s/%s: %w", owner, repo, err)
	}
	return parseGrants(Items(pages)), nil
}

func parseGrants(edges []map[string]any) []CollaboratorGrant {
	grants := make([]CollaboratorGrant, 0, len(edges))
	for _, edge := range edges {
		g := CollaboratorGrant{
			Login:      getString(edge, "node", "login"),
			Permission: getString(edge, "permission"),
		}
		for _, src := range getList(edge, "permissionSources") {
			ps := PermissionSource{
				Kind:       getString(src, "source", "permissionSource"),
				Permission: getString(src, "sourcePermission"),
			}
			switch ps.Kind {
			case "Team":
				ps.Name = getString(src, "source", "teamName")
			case "Organization":
				ps.Name = getString(src, "source", "orgName")
			case "Repository":
				ps.Name = getString(src, "source", "repoName")
			}
			g.Sources = append(g.Sources, ps)
		}
		grants = append(grants, g)
	}
	return grants
}
