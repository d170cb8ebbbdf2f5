package cmd

import (
	"context"
	"fmt"

	"github.com/mona-actions/gh-orgtools/internal/archive"
	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/orgfile"
	"github.com/mona-actions/gh-orgtools/internal/output"
	"github.com/mona-actions/gh-orgtools/internal/state"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	archiveFile   string
	archiveForce  bool
	archiveSuffix string
	archiveQuiet  bool

	unarchiveQuiet bool

	closePRs     bool
	closeComment string
	closeDoIt    bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive [OWNER/REPO...]",
	Short: "Label and close open issues, mark the repository deprecated and archive it",
	Long: `Archive each repository: every open issue and pull request gets the
ARCHIVED label and is closed, the topics abandoned and unmaintained are
added, the description is prefixed with DEPRECATED (or the label suffix),
and the repository is archived.

When an item cannot be closed the repository is left unarchived so it can
be finished by hand.

Examples:
  gh orgtools archive acme/old-service
  gh orgtools archive --file repos.txt --label-suffix LEGACY`,
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		refs, err := orgfile.Repos(args, archiveFile)
		if err != nil {
			return err
		}
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		a := &archive.Archiver{
			API:      c,
			Force:    archiveForce,
			Suffix:   archiveSuffix,
			Quiet:    archiveQuiet,
			Throttle: ghapi.NewThrottle(ghapi.DefaultThrottleDelay),
		}
		return runWorkflow(refs, "repositories", func(ref orgfile.RepoRef) archive.Outcome {
			return a.Archive(ctx, ref.Owner, ref.Name)
		})
	}),
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive OWNER/REPO...",
	Short: "Reverse archive on repositories that were unarchived by hand",
	Long: `Reopen the issues closed by archive, remove the ARCHIVED label, and
strip the archive topics and description prefixes. The repository must be
unarchived in the web UI first since the API cannot unarchive.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		refs, err := orgfile.Repos(args, "")
		if err != nil {
			return err
		}
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		u := &archive.Unarchiver{
			API:      c,
			Quiet:    unarchiveQuiet,
			Throttle: ghapi.NewThrottle(ghapi.DefaultThrottleDelay),
		}
		return runWorkflow(refs, "repositories", func(ref orgfile.RepoRef) archive.Outcome {
			return u.Unarchive(ctx, ref.Owner, ref.Name)
		})
	}),
}

// runWorkflow applies step to every repository and stops at the first fatal
// outcome.
func runWorkflow(refs []orgfile.RepoRef, what string, step func(orgfile.RepoRef) archive.Outcome) error {
	st := state.Get()
	st.AddItems(len(refs))
	for _, ref := range refs {
		output.PrintSectionHeader(ref.String())
		o := step(ref)
		if o.Failed() {
			st.PrintItem(ref.String(), false, o.Error())
			return fmt.Errorf("%s: %w", ref, o)
		}
		st.PrintItem(fmt.Sprintf("%s: %s", ref, o.Reason), true, "")
	}
	st.MarkDone(what)
	return nil
}

var closeIssuesCmd = &cobra.Command{
	Use:   "close-issues ORG REPO",
	Short: "Close every open issue of a repository",
	Long: `Close every open issue (and pull request with --close-pr) of
ORG/REPO, optionally posting a comment first. Nothing is changed without
--doit.`,
	Args: cobra.ExactArgs(2),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, repo := args[0], args[1]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}
		if !closeDoIt {
			pterm.Info.Println("Dry run - pass --doit to close issues")
		}

		results, err := archive.CloseIssues(ctx, c, owner, repo, archive.CloseOptions{
			IncludePRs: closePRs,
			Comment:    closeComment,
			Apply:      closeDoIt,
			Throttle:   ghapi.NewThrottle(ghapi.DefaultThrottleDelay),
			Budget:     c.Tracker(),
		})
		closed := 0
		for _, r := range results {
			if r.Closed {
				closed++
			}
		}
		pterm.Info.Printf("Closed %d of %d open items in %s/%s\n", closed, len(results), owner, repo)
		return err
	}),
}

func init() {
	rootCmd.AddCommand(archiveCmd, unarchiveCmd, closeIssuesCmd)

	archiveCmd.Flags().StringVar(&archiveFile, "file", "", "File with one OWNER/REPO per line")
	archiveCmd.Flags().BoolVar(&archiveForce, "force", false, "Continue when the ARCHIVED label already exists")
	archiveCmd.Flags().StringVar(&archiveSuffix, "label-suffix", "", "Use the label 'ARCHIVED - <suffix>' and <suffix> as description prefix")
	archiveCmd.Flags().BoolVarP(&archiveQuiet, "quiet", "q", false, "Only print the per-repository result")

	unarchiveCmd.Flags().BoolVarP(&unarchiveQuiet, "quiet", "q", false, "Only print the per-repository result")

	closeIssuesCmd.Flags().BoolVar(&closePRs, "close-pr", false, "Close pull requests too")
	closeIssuesCmd.Flags().StringVar(&closeComment, "comment", "", "Comment to post before closing")
	closeIssuesCmd.Flags().BoolVar(&closeDoIt, "doit", false, "Actually close the issues (default is a dry run)")
}
