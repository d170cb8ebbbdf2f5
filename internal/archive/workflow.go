package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/pterm/pterm"
)

// Kind classifies how a workflow step ended.
type Kind int

const (
	// KindContinue lets the workflow move to its next step.
	KindContinue Kind = iota
	// KindDone ends the workflow for this repository without error.
	KindDone
	// KindFatal stops the workflow; Reason says why.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindDone:
		return "done"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Outcome is the result of a workflow step or of a whole run.
type Outcome struct {
	Kind   Kind
	Reason string
	Err    error
}

// Continue moves on to the next step.
func Continue() Outcome { return Outcome{Kind: KindContinue} }

// Done ends the run for a repository.
func Done(reason string) Outcome { return Outcome{Kind: KindDone, Reason: reason} }

// Fatal aborts with reason and an optional cause.
func Fatal(reason string, err error) Outcome {
	return Outcome{Kind: KindFatal, Reason: reason, Err: err}
}

// Error renders a fatal outcome; it is empty otherwise.
func (o Outcome) Error() string {
	if o.Kind != KindFatal {
		return ""
	}
	if o.Err != nil {
		return o.Reason + ": " + o.Err.Error()
	}
	return o.Reason
}

// Unwrap returns the cause of a fatal outcome.
func (o Outcome) Unwrap() error { return o.Err }

// Failed reports a fatal outcome.
func (o Outcome) Failed() bool { return o.Kind == KindFatal }

// RepoAPI is the slice of the GitHub API the workflows drive. *ghapi.Client
// implements it.
type RepoAPI interface {
	GetRepo(ctx context.Context, owner, name string) (ghapi.Repo, error)
	Labels(ctx context.Context, owner, repo string) ([]string, error)
	CreateLabel(ctx context.Context, owner, repo, name, color, description string) error
	DeleteLabel(ctx context.Context, owner, repo, name string) error
	Issues(ctx context.Context, owner, repo, state string, labels []string) ([]ghapi.Issue, error)
	AddLabel(ctx context.Context, owner, repo string, number int, label string) error
	RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error
	SetIssueState(ctx context.Context, owner, repo string, number int, state string) error
	ReplaceTopics(ctx context.Context, owner, repo string, topics []string) error
	EditRepo(ctx context.Context, owner, repo string, description *string, archive bool) error
}

// Waiter spaces mutating calls. *ghapi.Throttle implements it.
type Waiter interface {
	Wait(ctx context.Context) error
}

type noWait struct{}

func (noWait) Wait(context.Context) error { return nil }

type runner struct {
	api      RepoAPI
	throttle Waiter
	quiet    bool
}

func newRunner(api RepoAPI, w Waiter, quiet bool) runner {
	if w == nil {
		w = noWait{}
	}
	return runner{api: api, throttle: w, quiet: quiet}
}

func (r runner) say(format string, args ...any) {
	if !r.quiet {
		pterm.Info.Printf(format+"\n", args...)
	}
}

// mutate waits for the throttle and runs fn.
func (r runner) mutate(ctx context.Context, fn func() error) error {
	if err := r.throttle.Wait(ctx); err != nil {
		return err
	}
	return fn()
}

// Archiver archives repositories.
type Archiver struct {
	API RepoAPI
	// Force continues when the sentinel label already exists.
	Force bool
	// Suffix customizes the label ("ARCHIVED - <Suffix>") and the
	// description prefix.
	Suffix   string
	Quiet    bool
	Throttle Waiter
}

// Archive runs the archive workflow on owner/name. A repository that is
// already archived is Done without changes. When some items could not be
// closed the description is still updated but the repository is left
// unarchived for manual follow-up.
func (a *Archiver) Archive(ctx context.Context, owner, name string) Outcome {
	r := newRunner(a.API, a.Throttle, a.Quiet)

	repo, err := r.api.GetRepo(ctx, owner, name)
	if err != nil {
		return Fatal(fmt.Sprintf("trying to open %s/%s failed", owner, name), err)
	}
	if repo.Archived {
		r.say("repo %s is already archived, skipping", repo.Name)
		return Done("already archived")
	}
	r.say("working with repo: %s", repo.Name)

	meta := ArchiveMetadata(Metadata{Topics: repo.Topics, Description: repo.Description}, a.Suffix)

	if o := a.ensureLabel(ctx, r, owner, name, meta.Label); o.Kind != KindContinue {
		return o
	}
	handled, o := a.closeIssues(ctx, r, owner, name, meta.Label)
	if o.Kind != KindContinue {
		return o
	}

	if err := r.mutate(ctx, func() error { return r.api.ReplaceTopics(ctx, owner, name, meta.Topics) }); err != nil {
		return Fatal("updating topics", err)
	}
	r.say("updated topics")

	if err := r.mutate(ctx, func() error { return r.api.EditRepo(ctx, owner, name, meta.Description, handled) }); err != nil {
		return Fatal("updating description", err)
	}
	if !handled {
		pterm.Warning.Printf("⚠ Updated description, but there was a problem with issues in repo %s, archive it manually once fixed\n", name)
		return Done("description updated, archive manually")
	}
	r.say("updated description and archived the repo %s", name)
	return Done("archived")
}

func (a *Archiver) ensureLabel(ctx context.Context, r runner, owner, name, label string) Outcome {
	r.say("creating archive label")
	labels, err := r.api.Labels(ctx, owner, name)
	if err != nil {
		return Fatal("listing labels", err)
	}
	for _, l := range labels {
		if l == label {
			if !a.Force {
				return Fatal(fmt.Sprintf("%s label already exists on %s/%s, stopping so another archiver is not disturbed", label, owner, name), nil)
			}
			return Continue()
		}
	}
	if err := r.mutate(ctx, func() error {
		return r.api.CreateLabel(ctx, owner, name, label, LabelColor, LabelDescription)
	}); err != nil {
		return Fatal("creating label", err)
	}
	return Continue()
}

// closeIssues labels every open item, then closes them in a second pass
// because closing first would drop the label. A 422 on close is logged and
// reported through handled.
func (a *Archiver) closeIssues(ctx context.Context, r runner, owner, name, label string) (handled bool, o Outcome) {
	r.say("starting work on issues")
	issues, err := r.api.Issues(ctx, owner, name, ghapi.IssueOpen, nil)
	if err != nil {
		return false, Fatal("listing open issues", err)
	}
	for _, is := range issues {
		if err := r.mutate(ctx, func() error { return r.api.AddLabel(ctx, owner, name, is.Number, label) }); err != nil {
			return false, Fatal(fmt.Sprintf("labelling #%d", is.Number), err)
		}
	}

	handled = true
	for _, is := range issues {
		err := r.mutate(ctx, func() error { return r.api.SetIssueState(ctx, owner, name, is.Number, ghapi.IssueClosed) })
		switch {
		case err == nil:
			r.say("labeled and closed issue: %s", is.Title)
		case ghapi.IsUnprocessable(err):
			handled = false
			pterm.Warning.Printf("⚠ Got 422 Unprocessable on issue %s, continuing. May need to run --force or manually finish closing.\n", is.Title)
		default:
			return false, Fatal(fmt.Sprintf("closing #%d", is.Number), err)
		}
	}
	return handled, Continue()
}

// Unarchiver reverses Archiver on a repository that was unarchived by hand.
type Unarchiver struct {
	API      RepoAPI
	Quiet    bool
	Throttle Waiter
}

// Unarchive restores issues, topics and description of owner/name. The
// repository must already be unarchived since the API cannot do it.
func (u *Unarchiver) Unarchive(ctx context.Context, owner, name string) Outcome {
	r := newRunner(u.API, u.Throttle, u.Quiet)

	repo, err := r.api.GetRepo(ctx, owner, name)
	if err != nil {
		return Fatal(fmt.Sprintf("trying to open %s/%s failed", owner, name), err)
	}
	if repo.Archived {
		return Fatal("this repo is still archived, unarchive it manually in the UI then run again", nil)
	}
	r.say("working with repo: %s", repo.Name)

	label, o := u.reopenIssues(ctx, r, owner, name)
	if o.Kind != KindContinue {
		return o
	}

	meta := RestoreMetadata(Metadata{Topics: repo.Topics, Description: repo.Description, Label: label})
	r.say("fixing topics")
	if err := r.mutate(ctx, func() error { return r.api.ReplaceTopics(ctx, owner, name, meta.Topics) }); err != nil {
		return Fatal("updating topics", err)
	}
	if meta.Description != nil {
		if err := r.mutate(ctx, func() error { return r.api.EditRepo(ctx, owner, name, meta.Description, false) }); err != nil {
			return Fatal("updating description", err)
		}
		r.say("fixed description, completed revert of repo %s", name)
	}
	return Done("restored")
}

// reopenIssues finds the sentinel label, reopens its items and, when every
// item reopened, unlabels them and deletes the label.
func (u *Unarchiver) reopenIssues(ctx context.Context, r runner, owner, name string) (string, Outcome) {
	r.say("finding if there's a custom label")
	labels, err := r.api.Labels(ctx, owner, name)
	if err != nil {
		return "", Fatal("listing labels", err)
	}
	label := LabelName
	for _, l := range labels {
		if strings.Contains(l, LabelName) {
			label = l
		}
	}
	r.say("found label name: %s", label)

	issues, err := r.api.Issues(ctx, owner, name, ghapi.IssueClosed, []string{label})
	if err != nil {
		return "", Fatal("listing closed issues", err)
	}

	removable := true
	for _, is := range issues {
		err := r.mutate(ctx, func() error { return r.api.SetIssueState(ctx, owner, name, is.Number, ghapi.IssueOpen) })
		switch {
		case err == nil:
			r.say("reopening issue/PR %s", is.Title)
		case ghapi.IsUnprocessable(err):
			removable = false
			r.say("unable to reopen issue %s", is.Title)
		default:
			return "", Fatal(fmt.Sprintf("reopening #%d", is.Number), err)
		}
	}
	if !removable {
		return label, Continue()
	}

	for _, is := range issues {
		if err := r.mutate(ctx, func() error { return r.api.RemoveLabel(ctx, owner, name, is.Number, label) }); err != nil {
			return "", Fatal(fmt.Sprintf("unlabelling #%d", is.Number), err)
		}
	}
	err = r.mutate(ctx, func() error { return r.api.DeleteLabel(ctx, owner, name, label) })
	if ghapi.IsNotFound(err) {
		return "", Fatal("no ARCHIVED label found, was this archived? Manually remove topics and update description", err)
	}
	if err != nil {
		return "", Fatal("deleting label", err)
	}
	return label, Continue()
}
