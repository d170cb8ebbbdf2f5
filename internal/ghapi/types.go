// Package ghapi provides GitHub API client functionality.
//
// This file (types.go) defines the repository, collaborator and team types
// returned by the fetchers, trimmed down from the go-github models.
package ghapi

import (
	"time"

	"github.com/google/go-github/v75/github"
)

// Repo is the subset of repository data the commands need.
type Repo struct {
	Owner    string
	Name     string
	FullName string
	Private  bool
	Archived bool
	HasWiki  bool

	// Description is nil when the repository has none.
	Description *string
	Topics      []string

	CreatedAt time.Time
	// PushedAt is the last push, UpdatedAt the last settings change.
	PushedAt  time.Time
	UpdatedAt time.Time
	CloneURL  string
}

// Collaborator is a repository collaborator and their permission bits.
type Collaborator struct {
	Login string
	Pull  bool
	Push  bool
	Admin bool
}

// Team identifies an organization team.
type Team struct {
	ID   int64
	Slug string
	Name string
}

// Issue is an issue or pull request.
type Issue struct {
	Number      int
	Title       string
	PullRequest bool
}

func issueFromGitHub(i *github.Issue) Issue {
	return Issue{Number: i.GetNumber(), Title: i.GetTitle(), PullRequest: i.IsPullRequest()}
}

func repoFromGitHub(r *github.Repository) Repo {
	return Repo{
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Private:     r.GetPrivate(),
		Archived:    r.GetArchived(),
		HasWiki:     r.GetHasWiki(),
		Description: r.Description,
		Topics:      r.Topics,
		CreatedAt:   r.GetCreatedAt().Time,
		PushedAt:    r.GetPushedAt().Time,
		UpdatedAt:   r.GetUpdatedAt().Time,
		CloneURL:    r.GetCloneURL(),
	}
}

func collaboratorFromGitHub(u *github.User) Collaborator {
	p := u.GetPermissions()
	return Collaborator{
		Login: u.GetLogin(),
		Pull:  p["pull"],
		Push:  p["push"],
		Admin: p["admin"],
	}
}

func teamFromGitHub(t *github.Team) Team {
	return Team{ID: t.GetID(), Slug: t.GetSlug(), Name: t.GetName()}
}
