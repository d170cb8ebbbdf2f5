// Package activity reports how recently repositories were used: creation,
// push and settings timestamps, the newest week with commits over the last
// year, and optionally the newest commit of a cloned repository or wiki.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/pterm/pterm"
)

const (
	// DefaultMaxRetries bounds polling of commit statistics. Very busy
	// repositories never finish computing them.
	DefaultMaxRetries = 5
	// DefaultRetryDelay is the pause between polls while GitHub answers 202.
	DefaultRetryDelay = 10 * time.Second
)

// CommitState says how LastCommit was determined.
type CommitState int

const (
	Unexamined CommitState = iota
	// NoCommits means no week of the last year had commits.
	NoCommits
	Found
	// Pending means statistics were still being computed after all retries.
	Pending
	// Missing is a 404 on the statistics, typical of temporary repositories.
	Missing
	// Unexpected is any other statistics failure, e.g. an empty repository.
	Unexpected
)

// Activity is one row of the report.
type Activity struct {
	Repo       ghapi.Repo
	State      CommitState
	LastCommit time.Time
	// Attempts is how often the statistics were polled.
	Attempts int

	// WikiState and WikiCommit are set when the wiki was cloned.
	WikiState  CommitState
	WikiCommit time.Time
}

// LastCommitString renders the last commit column.
func (a Activity) LastCommitString() string {
	return describe(a.State, a.LastCommit, a.Attempts)
}

// WikiCommitString renders the wiki column.
func (a Activity) WikiCommitString() string {
	return describe(a.WikiState, a.WikiCommit, 0)
}

func describe(s CommitState, t time.Time, attempts int) string {
	switch s {
	case Found:
		return t.UTC().Format(time.DateTime)
	case NoCommits:
		return "None"
	case Pending:
		return fmt.Sprintf("GH Gave 202 Error - failed out after %d attempts", attempts)
	case Missing:
		return "Unexpected, possibly temp repo"
	case Unexpected:
		return "Unexpected, possibly empty repo"
	}
	return "unexamined"
}

// API is the GitHub access Scanner needs. *ghapi.Client implements it.
type API interface {
	GetRepo(ctx context.Context, owner, name string) (ghapi.Repo, error)
	CommitActivity(ctx context.Context, owner, repo string) ([]*github.WeeklyCommitActivity, bool, error)
}

// Budget is satisfied by *ratelimit.Tracker.
type Budget interface {
	EnsureBudget(ctx context.Context, required int, resource ratelimit.Resource) error
}

// Scanner collects Activity rows.
type Scanner struct {
	API API
	// ParseCommits reads the weekly commit statistics.
	ParseCommits bool
	// Clone, when set, reads the newest commit from a git clone instead of
	// the statistics.
	Clone *Cloner
	// Wiki also clones the wiki of repositories that have one. Needs Clone.
	Wiki bool

	MaxRetries int
	RetryDelay time.Duration
	Clock      ratelimit.Clock
	Budget     Budget
}

// Scan builds the Activity of owner/name.
func (s *Scanner) Scan(ctx context.Context, owner, name string) (Activity, error) {
	repo, err := s.API.GetRepo(ctx, owner, name)
	if err != nil {
		return Activity{}, err
	}
	a := Activity{Repo: repo}

	switch {
	case s.Clone != nil:
		a.State, a.LastCommit = s.cloneState(ctx, repo.CloneURL)
	case s.ParseCommits:
		if err := s.pollCommits(ctx, &a); err != nil {
			return Activity{}, err
		}
	}

	if s.Wiki && s.Clone != nil && repo.HasWiki {
		a.WikiState, a.WikiCommit = s.cloneState(ctx, WikiURL(repo.CloneURL))
	}
	return a, nil
}

func (s *Scanner) cloneState(ctx context.Context, url string) (CommitState, time.Time) {
	t, ok, err := s.Clone.LastCommit(ctx, url)
	switch {
	case err != nil:
		pterm.Debug.Printf("clone of %s failed: %v\n", url, err)
		return Unexpected, time.Time{}
	case !ok:
		return NoCommits, time.Time{}
	}
	return Found, t
}

// pollCommits reads the commit statistics, retrying while GitHub is still
// computing them.
func (s *Scanner) pollCommits(ctx context.Context, a *Activity) error {
	retries := s.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	delay := s.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	clock := s.Clock
	if clock == nil {
		clock = ratelimit.SystemClock
	}

	for attempt := 1; ; attempt++ {
		a.Attempts = attempt
		weeks, ready, err := s.API.CommitActivity(ctx, a.Repo.Owner, a.Repo.Name)
		if s.Budget != nil {
			if berr := s.Budget.EnsureBudget(ctx, ratelimit.PerLoop, ratelimit.Core); berr != nil {
				return berr
			}
		}
		switch {
		case ghapi.IsNotFound(err):
			a.State = Missing
			return nil
		case err != nil:
			pterm.Debug.Printf("commit activity of %s: %v\n", a.Repo.FullName, err)
			a.State = Unexpected
			return nil
		case ready:
			a.LastCommit, a.State = LastActiveWeek(weeks)
			return nil
		}

		if attempt >= retries {
			pterm.Warning.Printf("⚠ %s: GH Gave 202 Error - failed out after %d attempts\n", a.Repo.FullName, attempt)
			a.State = Pending
			return nil
		}
		if err := clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// LastActiveWeek returns the start of the newest week with commits. Weeks
// may arrive out of order.
func LastActiveWeek(weeks []*github.WeeklyCommitActivity) (time.Time, CommitState) {
	var top time.Time
	for _, w := range weeks {
		if w.GetTotal() == 0 {
			continue
		}
		if ts := w.GetWeek().Time; ts.After(top) {
			top = ts
		}
	}
	if top.IsZero() {
		return time.Time{}, NoCommits
	}
	return top, Found
}
