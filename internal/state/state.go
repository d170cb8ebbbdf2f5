// Package state provides global run status for the orgtools commands.
//
// It records the last quota snapshot observed for every rate limit resource,
// counts API calls and processed items, and prints the end-of-run summary.
// All operations are thread-safe.
package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/pterm/pterm"
)

// Status tracks progress and API usage for the current run.
//
// Counters use atomic operations. Rate limit snapshots are guarded by an
// RWMutex because they are read as a whole.
type Status struct {
	itemTotal int64
	itemDone  int64
	itemSkip  int64
	apiCalls  int64

	rateLimitMu sync.RWMutex
	rateLimits  map[ratelimit.Resource]ratelimit.Status
	starting    map[ratelimit.Resource]int
}

var global = New()

// New returns an empty Status. Commands use Get; tests build their own.
func New() *Status {
	return &Status{
		rateLimits: make(map[ratelimit.Resource]ratelimit.Status),
		starting:   make(map[ratelimit.Resource]int),
	}
}

// Get returns the global Status instance.
func Get() *Status {
	return global
}

// AddItems increments the total item count.
func (s *Status) AddItems(n int) {
	atomic.AddInt64(&s.itemTotal, int64(n))
}

// PrintItem reports a processed item (repository, user, org) and counts it.
func (s *Status) PrintItem(name string, success bool, errMsg string) {
	if success {
		pterm.Success.Printf("✓ %s\n", name)
		atomic.AddInt64(&s.itemDone, 1)
		return
	}
	if errMsg != "" {
		pterm.Warning.Printf("⚠ %s: %s\n", name, errMsg)
	} else {
		pterm.Warning.Printf("⚠ %s\n", name)
	}
	atomic.AddInt64(&s.itemSkip, 1)
}

// MarkSkipped counts an item skipped without printing it.
func (s *Status) MarkSkipped() {
	atomic.AddInt64(&s.itemSkip, 1)
}

// MarkProcessed counts an item processed without printing it.
func (s *Status) MarkProcessed() {
	atomic.AddInt64(&s.itemDone, 1)
}

// Skipped returns the number of skipped items.
func (s *Status) Skipped() int64 {
	return atomic.LoadInt64(&s.itemSkip)
}

// IncrementAPICalls increments the API call count.
func (s *Status) IncrementAPICalls() {
	atomic.AddInt64(&s.apiCalls, 1)
}

// GetAPICalls returns the API call count.
func (s *Status) GetAPICalls() int64 {
	return atomic.LoadInt64(&s.apiCalls)
}

// UpdateRateLimit stores the latest snapshot for st.Resource. The first
// snapshot per resource is remembered to compute usage in MarkDone.
func (s *Status) UpdateRateLimit(st ratelimit.Status) {
	if st.Resource == "" {
		return
	}
	s.rateLimitMu.Lock()
	defer s.rateLimitMu.Unlock()
	if _, ok := s.starting[st.Resource]; !ok {
		s.starting[st.Resource] = st.Remaining
	}
	s.rateLimits[st.Resource] = st
}

// GetRateLimit returns the last snapshot for resource.
func (s *Status) GetRateLimit(resource ratelimit.Resource) (ratelimit.Status, bool) {
	s.rateLimitMu.RLock()
	defer s.rateLimitMu.RUnlock()
	st, ok := s.rateLimits[resource]
	return st, ok
}

// Used returns how many calls of resource were consumed since the first
// snapshot of this run. A reset during the run makes the value meaningless,
// so negative results clamp to zero.
func (s *Status) Used(resource ratelimit.Resource) int {
	s.rateLimitMu.RLock()
	defer s.rateLimitMu.RUnlock()
	st, ok := s.rateLimits[resource]
	if !ok {
		return 0
	}
	used := s.starting[resource] - st.Remaining
	if used < 0 {
		return 0
	}
	return used
}

// PrintRateLimit prints every known snapshot.
func (s *Status) PrintRateLimit() {
	for _, res := range ratelimit.Resources {
		st, ok := s.GetRateLimit(res)
		if !ok {
			continue
		}
		reset := "unknown"
		if !st.ResetAt.IsZero() {
			reset = st.ResetAt.Local().Format(time.DateTime)
		}
		pterm.Info.Printf("%-8s %d/%d remaining | resets at: %s\n", res, st.Remaining, st.Limit, reset)
	}
}

// MarkDone prints the final summary of the run.
func (s *Status) MarkDone(what string) {
	done := atomic.LoadInt64(&s.itemDone)
	total := atomic.LoadInt64(&s.itemTotal)
	skipped := atomic.LoadInt64(&s.itemSkip)

	pterm.Success.Printf("✓ Complete! Processed %d/%d %s (%d skipped) | API: %d calls (core %d, graphql %d)\n",
		done, total, what, skipped, s.GetAPICalls(), s.Used(ratelimit.Core), s.Used(ratelimit.GraphQL))
}
