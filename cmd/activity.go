package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/activity"
	"github.com/mona-actions/gh-orgtools/internal/orgfile"
	"github.com/mona-actions/gh-orgtools/internal/output"
	"github.com/mona-actions/gh-orgtools/internal/state"
	"github.com/spf13/cobra"
)

var (
	activityFile       string
	activityParse      bool
	activityClone      bool
	activityCloneDepth int
	activityWiki       bool
	activityRetries    int
	activityOut        reportFlags
)

var repoActivityCmd = &cobra.Command{
	Use:   "repo-activity [OWNER/REPO...]",
	Short: "Report when repositories were created, pushed, changed and last committed to",
	Long: `Report creation, last push and last settings change of each repository.

With --parse-commit the newest week with commits over the last year is read
from the commit statistics (GitHub may need a few polls to compute them).
With --clone the repository is cloned into memory and its newest commit is
reported instead; --wiki does the same for the wiki.

Examples:
  gh orgtools repo-activity acme/website acme/api
  gh orgtools repo-activity --file repos.txt --parse-commit -i
  gh orgtools repo-activity acme/docs --clone --wiki --format table`,
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		refs, err := orgfile.Repos(args, activityFile)
		if err != nil {
			return err
		}
		token, err := resolveToken()
		if err != nil {
			return err
		}
		c, err := clientFor(ctx, token)
		if err != nil {
			return err
		}

		scanner := &activity.Scanner{
			API:          c,
			ParseCommits: activityParse,
			Wiki:         activityWiki,
			MaxRetries:   activityRetries,
			Budget:       c.Tracker(),
		}
		if activityClone || activityWiki {
			scanner.Clone = &activity.Cloner{Token: token, Depth: activityCloneDepth}
		}

		report := output.Report{Header: []string{
			"Repo", "Created", "Updated", "Admin_update", "Last_commit", "Private", "Archive_status",
		}}
		if activityWiki {
			report.Header = append(report.Header, "Wiki_commit")
		}

		p, stop := startProgress(c, len(refs), "Checking activity")
		defer stop()

		st := state.Get()
		st.AddItems(len(refs))
		for _, ref := range refs {
			p.SetText("  - checking " + ref.String())
			a, err := scanner.Scan(ctx, ref.Owner, ref.Name)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				st.PrintItem(ref.String(), false, err.Error())
				p.Increment()
				continue
			}
			st.MarkProcessed()

			row := []string{
				a.Repo.Name,
				a.Repo.CreatedAt.UTC().Format(time.DateTime),
				a.Repo.PushedAt.UTC().Format(time.DateTime),
				a.Repo.UpdatedAt.UTC().Format(time.DateTime),
				a.LastCommitString(),
				strconv.FormatBool(a.Repo.Private),
				strconv.FormatBool(a.Repo.Archived),
			}
			if activityWiki {
				row = append(row, a.WikiCommitString())
			}
			report.Append(row...)
			p.Increment()
		}

		if err := activityOut.emit(report); err != nil {
			return err
		}
		finish("repo-activity", len(report.Rows), activityOut.path, started)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(repoActivityCmd)

	repoActivityCmd.Flags().StringVar(&activityFile, "file", "", "File with one OWNER/REPO per line")
	repoActivityCmd.Flags().BoolVar(&activityParse, "parse-commit", false, "Read the newest week with commits from the commit statistics")
	repoActivityCmd.Flags().BoolVar(&activityClone, "clone", false, "Clone the repository to find its newest commit")
	repoActivityCmd.Flags().IntVar(&activityCloneDepth, "clone-depth", 0, "Limit cloned history (0 clones everything)")
	repoActivityCmd.Flags().BoolVar(&activityWiki, "wiki", false, "Also clone the wiki to find its newest commit (implies --clone)")
	repoActivityCmd.Flags().IntVar(&activityRetries, "max-retries", activity.DefaultMaxRetries, "Polls of the commit statistics before giving up")
	activityOut.register(repoActivityCmd)
}
