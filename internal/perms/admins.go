package perms

import (
	"context"
	"fmt"
	"slices"

	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/progress"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
)

// RepoAdmins lists the admins of one repository.
type RepoAdmins struct {
	FullName string
	Admins   []string
}

// AdminsByRepo lists, for every non-archived repository, the collaborators
// with admin access who are not in owners. Expected 404s are skipped.
func AdminsByRepo(ctx context.Context, repos []ghapi.Repo, src CollaboratorSource, owners []string, budget Budget, p progress.Progress) ([]RepoAdmins, error) {
	p = progress.OrNop(p)
	var out []RepoAdmins

	for _, repo := range repos {
		if budget != nil {
			if err := budget.EnsureBudget(ctx, ratelimit.PerLoop, ratelimit.Core); err != nil {
				return nil, err
			}
		}
		if repo.Archived {
			p.Increment()
			continue
		}
		p.SetText(fmt.Sprintf(" - checking %s...", repo.FullName))

		collabs, err := src.Collaborators(ctx, repo)
		if err != nil {
			if ghapi.IsNotFound(err) && ghapi.IsExpected404(repo.Name) {
				p.Increment()
				continue
			}
			return nil, fmt.Errorf("repository %s: %w", repo.FullName, err)
		}

		entry := RepoAdmins{FullName: repo.FullName}
		for _, c := range collabs {
			if c.Admin && !slices.Contains(owners, c.Login) {
				entry.Admins = append(entry.Admins, c.Login)
			}
		}
		out = append(out, entry)
		p.Increment()
	}
	return out, nil
}

// RepoAccess is one user-repo line of the per-user report.
type RepoAccess struct {
	Login  string
	Repo   string
	Role   Role
	Access string
}

// UserRepoAccess expands records into one line per user and repository the
// user can reach, in users then repos order.
func UserRepoAccess(records []*Record, repos []ghapi.Repo) []RepoAccess {
	var out []RepoAccess
	for _, rec := range records {
		for _, repo := range repos {
			access := AccessString(rec, repo.Name)
			if access == "" {
				continue
			}
			out = append(out, RepoAccess{Login: rec.Login, Repo: repo.Name, Role: rec.Role, Access: access})
		}
	}
	return out
}
