package archive

import (
	"context"
	"fmt"

	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/pterm/pterm"
)

// IssueAPI is what CloseIssues needs. *ghapi.Client implements it.
type IssueAPI interface {
	Issues(ctx context.Context, owner, repo, state string, labels []string) ([]ghapi.Issue, error)
	SetIssueState(ctx context.Context, owner, repo string, number int, state string) error
	Comment(ctx context.Context, owner, repo string, number int, body string) error
}

// Budget is satisfied by *ratelimit.Tracker.
type Budget interface {
	EnsureBudget(ctx context.Context, required int, resource ratelimit.Resource) error
}

// CloseOptions configure CloseIssues.
type CloseOptions struct {
	// IncludePRs closes pull requests too.
	IncludePRs bool
	// Comment is posted before closing when not empty.
	Comment string
	// Apply performs the changes. Without it the run only reports.
	Apply    bool
	Throttle Waiter
	Budget   Budget
}

// CloseResult is one item CloseIssues looked at.
type CloseResult struct {
	Issue  ghapi.Issue
	Closed bool
	// Skipped is set for pull requests when IncludePRs is off.
	Skipped bool
}

// CloseIssues closes the open issues of owner/repo. A 422 on one item is
// logged and the run continues.
func CloseIssues(ctx context.Context, api IssueAPI, owner, repo string, opts CloseOptions) ([]CloseResult, error) {
	w := opts.Throttle
	if w == nil {
		w = noWait{}
	}
	issues, err := api.Issues(ctx, owner, repo, ghapi.IssueOpen, nil)
	if err != nil {
		return nil, err
	}

	out := make([]CloseResult, 0, len(issues))
	for _, is := range issues {
		if opts.Budget != nil {
			if err := opts.Budget.EnsureBudget(ctx, ratelimit.PerLoop, ratelimit.Core); err != nil {
				return out, err
			}
		}
		kind := "Issue"
		if is.PullRequest {
			kind = "PR"
		}
		res := CloseResult{Issue: is}
		if is.PullRequest && !opts.IncludePRs {
			res.Skipped = true
			out = append(out, res)
			continue
		}
		if !opts.Apply {
			pterm.Info.Printf("%s found %q, not closing due to dry run\n", kind, is.Title)
			out = append(out, res)
			continue
		}

		if err := w.Wait(ctx); err != nil {
			return out, err
		}
		err := closeOne(ctx, api, owner, repo, is.Number, opts.Comment)
		switch {
		case err == nil:
			res.Closed = true
			pterm.Success.Printf("✓ %s found: %q, closed\n", kind, is.Title)
		case ghapi.IsUnprocessable(err):
			pterm.Warning.Printf("⚠ Got 422 Unprocessable on issue %s, continuing. May need to run again, or manually finish closing.\n", is.Title)
		default:
			return out, fmt.Errorf("closing %s/%s#%d: %w", owner, repo, is.Number, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func closeOne(ctx context.Context, api IssueAPI, owner, repo string, number int, comment string) error {
	if comment != "" {
		if err := api.Comment(ctx, owner, repo, number, comment); err != nil {
			return err
		}
	}
	return api.SetIssueState(ctx, owner, repo, number, ghapi.IssueClosed)
}
