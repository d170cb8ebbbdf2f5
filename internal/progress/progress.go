// Package progress provides the progress reporting capability shared by the
// long running loops (collaborator scans, GraphQL pagination, rate limit waits).
//
// Callers that do not want any output use Nop. Interactive runs (-i) use a
// pterm backed Bar when the total is known, or a Spinner when it is not.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/pterm/pterm"
)

// Progress is the capability handed to loops that may run for a long time.
//
// Tick is a heartbeat and never changes item accounting. Increment marks one
// item of work as done.
type Progress interface {
	Tick()
	Increment()
	SetText(text string)
	Text() string
}

// Nop discards all progress updates.
type Nop struct{}

func (Nop) Tick()          {}
func (Nop) Increment()     {}
func (Nop) SetText(string) {}
func (Nop) Text() string   { return "" }

// OrNop returns p, or Nop when p is nil.
func OrNop(p Progress) Progress {
	if p == nil {
		return Nop{}
	}
	return p
}

var heartbeat = []string{"|", "/", "-", "\\"}

// Bar wraps a pterm progress bar with a known total.
type Bar struct {
	mu    sync.Mutex
	pb    *pterm.ProgressbarPrinter
	title string
	beat  int
}

// NewBar starts a progress bar for total items.
func NewBar(total int, title string) (*Bar, error) {
	pb, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(title).
		WithRemoveWhenDone(false).
		Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start progress bar: %w", err)
	}
	return &Bar{pb: pb, title: title}, nil
}

// Tick rotates a heartbeat glyph next to the title.
func (b *Bar) Tick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beat++
	b.pb.UpdateTitle(b.title + " " + heartbeat[b.beat%len(heartbeat)])
}

func (b *Bar) Increment() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pb.Increment()
}

func (b *Bar) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.title = text
	b.pb.UpdateTitle(text)
}

func (b *Bar) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.title
}

// Stop finishes the bar.
func (b *Bar) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = b.pb.Stop()
}

// Spinner is a character spinner written to w. The call site owns it and
// decides when it advances. It is used for loops whose total is unknown, such
// as GraphQL pagination.
type Spinner struct {
	w     io.Writer
	label string
	pos   int
	count int
}

// NewSpinner returns a Spinner writing to w.
func NewSpinner(w io.Writer, label string) *Spinner {
	return &Spinner{w: w, label: label}
}

// Tick advances the spinner glyph.
func (s *Spinner) Tick() {
	s.pos = (s.pos + 1) % len(heartbeat)
	s.render()
}

// Increment counts one item and advances the glyph.
func (s *Spinner) Increment() {
	s.count++
	s.Tick()
}

func (s *Spinner) SetText(text string) {
	s.label = text
	s.render()
}

func (s *Spinner) Text() string { return s.label }

// Count reports the number of Increment calls so far.
func (s *Spinner) Count() int { return s.count }

// Done terminates the spinner line.
func (s *Spinner) Done() {
	fmt.Fprintln(s.w)
}

func (s *Spinner) render() {
	if s.count > 0 {
		fmt.Fprintf(s.w, "\r%s %s (%d)", s.label, heartbeat[s.pos], s.count)
		return
	}
	fmt.Fprintf(s.w, "\r%s %s", s.label, heartbeat[s.pos])
}
