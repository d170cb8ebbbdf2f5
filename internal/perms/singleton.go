package perms

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/progress"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
)

// GrantSource lists collaborators together with the sources of their access.
type GrantSource interface {
	CollaboratorGrants(ctx context.Context, owner, repo string) ([]ghapi.CollaboratorGrant, error)
}

// Singletons are the logins with a direct repository grant, by permission.
type Singletons struct {
	Permissions []string
	Logins      map[string][]string
}

// Empty reports whether no direct grant was found.
func (s Singletons) Empty() bool {
	return len(s.Permissions) == 0
}

// String renders "PERM:login1:login2," for every permission, the report
// column format.
func (s Singletons) String() string {
	var b strings.Builder
	for _, perm := range s.Permissions {
		fmt.Fprintf(&b, "%s:%s,", perm, strings.Join(s.Logins[perm], ":"))
	}
	return b.String()
}

// SingletonGrants finds collaborators whose access comes from a direct
// repository grant rather than a team.
//
// Sources are read in order. An ADMIN collaborator whose admin is explained
// by an Organization source (an org owner) stops the scan of that
// collaborator. Every Repository source records the login under the
// collaborator's effective permission.
func SingletonGrants(grants []ghapi.CollaboratorGrant) Singletons {
	s := Singletons{Logins: make(map[string][]string)}
	for _, g := range grants {
		for _, src := range g.Sources {
			if src.Kind == "Organization" && src.Permission == g.Permission && g.Permission == "ADMIN" {
				break
			}
			if src.Kind != "Repository" {
				continue
			}
			if _, ok := s.Logins[g.Permission]; !ok {
				s.Permissions = append(s.Permissions, g.Permission)
			}
			if !slices.Contains(s.Logins[g.Permission], g.Login) {
				s.Logins[g.Permission] = append(s.Logins[g.Permission], g.Login)
			}
		}
	}
	return s
}

// RepoSingletons is the singleton view of one repository.
type RepoSingletons struct {
	Repo       string
	Singletons Singletons
}

// ScanSingletons runs SingletonGrants over every repository of owner.
func ScanSingletons(ctx context.Context, owner string, repos []string, src GrantSource, budget Budget, p progress.Progress) ([]RepoSingletons, error) {
	p = progress.OrNop(p)
	out := make([]RepoSingletons, 0, len(repos))
	for _, repo := range repos {
		p.SetText(fmt.Sprintf("  - checking %s", repo))
		grants, err := src.CollaboratorGrants(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		out = append(out, RepoSingletons{Repo: repo, Singletons: SingletonGrants(grants)})
		p.Increment()
		if budget != nil {
			if err := budget.EnsureBudget(ctx, ratelimit.PerLoop, ratelimit.GraphQL); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
