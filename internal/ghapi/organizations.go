// Package ghapi provides GitHub API client functionality.
//
// This file (organizations.go) contains organization and user level REST
// calls: membership, blocking, invitations and token introspection.
package ghapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v75/github"
)

// Organization member roles accepted by OrgMembers.
const (
	RoleAll    = "all"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// GetOrg fetches an organization.
func (c *Client) GetOrg(ctx context.Context, org string) (*github.Organization, error) {
	var o *github.Organization
	_, err := c.Do(ctx, "get organization "+org, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		o, resp, err = c.REST.Organizations.Get(ctx, org)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %s: %w", org, err)
	}
	return o, nil
}

// OrgMembers lists member logins of org with the given role.
func (c *Client) OrgMembers(ctx context.Context, org, role string) ([]string, error) {
	users, err := Paginate(ctx, c, "list "+role+" members of "+org,
		func(ctx context.Context, lo github.ListOptions) ([]*github.User, *github.Response, error) {
			return c.REST.Organizations.ListMembers(ctx, org, &github.ListMembersOptions{Role: role, ListOptions: lo})
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

// IsOrgMember reports whether user is a member of org.
func (c *Client) IsOrgMember(ctx context.Context, org, user string) (bool, error) {
	var ok bool
	_, err := c.Do(ctx, "check membership", func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		ok, resp, err = c.REST.Organizations.IsMember(ctx, org, user)
		return resp, err
	})
	return ok, err
}

// OutsideCollaborators lists the logins, lowercased, of every outside
// collaborator of org.
func (c *Client) OutsideCollaborators(ctx context.Context, org string) ([]string, error) {
	users, err := Paginate(ctx, c, "list outside collaborators of "+org,
		func(ctx context.Context, lo github.ListOptions) ([]*github.User, *github.Response, error) {
			return c.REST.Organizations.ListOutsideCollaborators(ctx, org,
				&github.ListOutsideCollaboratorsOptions{ListOptions: lo})
		})
	if err != nil {
		return nil, err
	}
	logins := make([]string, 0, len(users))
	for _, u := range users {
		logins = append(logins, strings.ToLower(u.GetLogin()))
	}
	return logins, nil
}

// RemoveOrgMember removes user from org.
func (c *Client) RemoveOrgMember(ctx context.Context, org, user string) error {
	_, err := c.Do(ctx, "remove member", func() (*github.Response, error) {
		return c.REST.Organizations.RemoveMember(ctx, org, user)
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s from org %s: %w", user, org, err)
	}
	return nil
}

// SetBlocked blocks or unblocks user in org and returns the HTTP status.
// 204 means done and 422 means the user was already blocked.
func (c *Client) SetBlocked(ctx context.Context, org, user string, block bool) (int, error) {
	op := "unblock user"
	call := c.REST.Organizations.UnblockUser
	if block {
		op = "block user"
		call = c.REST.Organizations.BlockUser
	}
	resp, err := c.Do(ctx, op, func() (*github.Response, error) {
		return call(ctx, org, user)
	})
	if err != nil {
		if code := StatusCode(err); code != 0 {
			return code, nil
		}
		return 0, err
	}
	return resp.StatusCode, nil
}

// GetUser fetches a user by login. An empty login means the token owner.
func (c *Client) GetUser(ctx context.Context, login string) (*github.User, *github.Response, error) {
	var u *github.User
	resp, err := c.Do(ctx, "get user "+login, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		u, resp, err = c.REST.Users.Get(ctx, login)
		return resp, err
	})
	if err != nil {
		return nil, resp, fmt.Errorf("failed to get user %q: %w", login, err)
	}
	return u, resp, nil
}

// TokenOwner describes the user behind a token.
type TokenOwner struct {
	Login  string
	NodeID string
	Scopes string
	Header http.Header
	User   *github.User
}

// Whoami returns the owner and OAuth scopes of the client's token.
func (c *Client) Whoami(ctx context.Context) (TokenOwner, error) {
	u, resp, err := c.GetUser(ctx, "")
	if err != nil {
		return TokenOwner{}, err
	}
	return TokenOwner{
		Login:  u.GetLogin(),
		NodeID: u.GetNodeID(),
		Scopes: resp.Header.Get("X-OAuth-Scopes"),
		Header: resp.Header,
		User:   u,
	}, nil
}

// SetMembership adds user to org (or updates the role). role is admin or member.
func (c *Client) SetMembership(ctx context.Context, org, user, role string) error {
	_, err := c.Do(ctx, "edit membership", func() (*github.Response, error) {
		_, resp, err := c.REST.Organizations.EditOrgMembership(ctx, user, org, &github.Membership{Role: github.Ptr(role)})
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to org %s: %w", user, org, err)
	}
	return nil
}

// Invite invites the user with inviteeID to org with role, joining teamIDs.
func (c *Client) Invite(ctx context.Context, org string, inviteeID int64, role string, teamIDs []int64) error {
	_, err := c.Do(ctx, "create invitation", func() (*github.Response, error) {
		_, resp, err := c.REST.Organizations.CreateOrgInvitation(ctx, org, &github.CreateOrgInvitationOptions{
			InviteeID: github.Ptr(inviteeID),
			Role:      github.Ptr(role),
			TeamID:    teamIDs,
		})
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to invite user %d to org %s: %w", inviteeID, org, err)
	}
	return nil
}
