// Package ratelimit implements the rate budget tracker.
//
// Before a unit of work the caller states how many API calls it needs from a
// quota resource. EnsureBudget returns immediately when the quota covers the
// need, and otherwise blocks until the quota window resets plus a safety
// margin, re-checking after every wake up.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/progress"
	"github.com/pterm/pterm"
)

// Resource names one of the independently metered GitHub quotas.
type Resource string

const (
	Core    Resource = "core"
	Search  Resource = "search"
	GraphQL Resource = "graphql"
)

// Resources lists every resource in reporting order.
var Resources = []Resource{Core, Search, GraphQL}

// ParseResource validates a resource name.
func ParseResource(s string) (Resource, error) {
	switch r := Resource(s); r {
	case Core, Search, GraphQL:
		return r, nil
	}
	return "", fmt.Errorf("unknown rate limit resource %q (want core, search or graphql)", s)
}

// Status is a snapshot of one resource's quota.
type Status struct {
	Resource  Resource
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// QuotaSource reports the current quota for a resource.
type QuotaSource interface {
	Quota(ctx context.Context, resource Resource) (Status, error)
}

// QuotaFunc adapts a function to QuotaSource.
type QuotaFunc func(ctx context.Context, resource Resource) (Status, error)

func (f QuotaFunc) Quota(ctx context.Context, resource Resource) (Status, error) {
	return f(ctx, resource)
}

// Clock abstracts time so waits can be observed in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const (
	// DefaultSafetyMargin is added to every computed wait.
	DefaultSafetyMargin = 2 * time.Minute
	// PerLoop is the budget the collaborator scans reserve per repository.
	PerLoop = 20

	tick = time.Second
)

// Tracker blocks callers until enough quota is available.
type Tracker struct {
	source   QuotaSource
	clock    Clock
	margin   time.Duration
	progress progress.Progress
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithSafetyMargin overrides DefaultSafetyMargin.
func WithSafetyMargin(d time.Duration) Option {
	return func(t *Tracker) { t.margin = d }
}

// WithProgress attaches a progress capability used while waiting.
func WithProgress(p progress.Progress) Option {
	return func(t *Tracker) { t.progress = p }
}

// NewTracker returns a Tracker reading quota from source.
func NewTracker(source QuotaSource, opts ...Option) *Tracker {
	t := &Tracker{
		source: source,
		clock:  realClock{},
		margin: DefaultSafetyMargin,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetProgress swaps the progress capability, for loops that own their own bar.
// A nil p detaches it.
func (t *Tracker) SetProgress(p progress.Progress) {
	t.progress = p
}

// EnsureBudget returns once resource has at least required calls remaining.
// Quota source errors are returned unchanged. Cancelling ctx aborts a wait.
func (t *Tracker) EnsureBudget(ctx context.Context, required int, resource Resource) error {
	for {
		st, err := t.source.Quota(ctx, resource)
		if err != nil {
			return err
		}
		if st.Remaining >= required {
			return nil
		}

		wait := st.ResetAt.Sub(t.clock.Now()) + t.margin
		if wait < t.margin {
			wait = t.margin
		}
		if err := t.wait(ctx, st, wait); err != nil {
			return err
		}
	}
}

func (t *Tracker) wait(ctx context.Context, st Status, wait time.Duration) error {
	p := t.progress
	seconds := int(wait.Round(time.Second) / time.Second)
	until := t.clock.Now().Add(wait).Format("15:04:05")

	var previous string
	if p != nil {
		previous = p.Text()
		p.SetText(fmt.Sprintf("API limits exhausted - sleeping until %s", until))
	} else {
		pterm.Warning.Printf("⚠ API limits exhausted - sleeping for %d seconds (%s remaining %d, resets %s)\n",
			seconds, st.Resource, st.Remaining, st.ResetAt.Format("15:04:05"))
	}

	for left := wait; left > 0; left -= tick {
		d := tick
		if left < tick {
			d = left
		}
		if err := t.clock.Sleep(ctx, d); err != nil {
			return err
		}
		if p != nil {
			p.Tick()
		}
	}

	if p != nil {
		p.SetText(previous)
	} else {
		pterm.Info.Println("API timeout reset, continuing")
	}
	return nil
}
