package perms

import (
	"context"
	"fmt"

	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/progress"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/pterm/pterm"
)

// Policy selects how collaborator permission bits become bucket entries.
type Policy int

const (
	// PolicyHighestOnly records only the highest level GitHub reports.
	PolicyHighestOnly Policy = iota
	// PolicyCumulative records every level whose bit is set.
	PolicyCumulative
)

// CollaboratorSource lists a repository's collaborators.
type CollaboratorSource interface {
	Collaborators(ctx context.Context, repo ghapi.Repo) ([]ghapi.Collaborator, error)
}

// Budget is the part of the rate budget tracker the scan needs.
type Budget interface {
	EnsureBudget(ctx context.Context, required int, resource ratelimit.Resource) error
}

// Options configure Aggregate.
type Options struct {
	Policy Policy
	// User restricts the scan to one login.
	User string
	// MarkArchived records archived repositories as "*name".
	MarkArchived bool
	Budget       Budget
	Progress     progress.Progress
}

// Aggregate scans the collaborators of every repo and adds their access to
// users, creating outside collaborator records for unknown logins. The same
// map is returned.
//
// A 404 on a security advisory fork is skipped, any other 404 is fatal. A 5xx
// is reported and that repository's contribution is skipped.
func Aggregate(ctx context.Context, users map[string]*Record, repos []ghapi.Repo, src CollaboratorSource, opts Options) (map[string]*Record, error) {
	if users == nil {
		users = make(map[string]*Record)
	}
	p := progress.OrNop(opts.Progress)

	for _, repo := range repos {
		p.SetText(fmt.Sprintf("  - checking %s...", repo.Name))

		collabs, err := src.Collaborators(ctx, repo)
		switch {
		case err == nil:
			apply(users, repo, collabs, opts)
		case ghapi.IsNotFound(err) && ghapi.IsExpected404(repo.Name):
			pterm.Debug.Printf("skipping %s: %v\n", repo.Name, err)
		case ghapi.IsNotFound(err):
			return nil, fmt.Errorf("repository %s: %w", repo.FullName, err)
		case ghapi.IsServerError(err):
			pterm.Warning.Printf("⚠ 50X error when processing repo: %s: %v\n", repo.Name, err)
		default:
			return nil, fmt.Errorf("repository %s: %w", repo.FullName, err)
		}

		if opts.Budget != nil {
			if err := opts.Budget.EnsureBudget(ctx, ratelimit.PerLoop, ratelimit.Core); err != nil {
				return nil, err
			}
		}
		p.Increment()
	}
	return users, nil
}

func apply(users map[string]*Record, repo ghapi.Repo, collabs []ghapi.Collaborator, opts Options) {
	name := repo.Name
	if opts.MarkArchived && repo.Archived {
		name = ArchivedMarker + repo.Name
	}
	vis := Public
	if repo.Private {
		vis = Private
	}

	for _, c := range collabs {
		if opts.User != "" && opts.User != c.Login {
			continue
		}
		rec, ok := users[c.Login]
		if !ok {
			rec = NewRecord(c.Login, RoleOutside)
			users[c.Login] = rec
		}
		for _, l := range levels(c, opts.Policy) {
			rec.Add(vis, l, name)
		}
	}
}

func levels(c ghapi.Collaborator, policy Policy) []Level {
	if policy == PolicyCumulative {
		var out []Level
		if c.Admin {
			out = append(out, Admin)
		}
		if c.Push {
			out = append(out, Push)
		}
		if c.Pull {
			out = append(out, Pull)
		}
		return out
	}
	switch {
	case c.Admin:
		return []Level{Admin}
	case c.Push:
		return []Level{Push}
	case c.Pull:
		return []Level{Pull}
	}
	return nil
}
