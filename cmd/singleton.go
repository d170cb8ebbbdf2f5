package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/output"
	"github.com/mona-actions/gh-orgtools/internal/perms"
	"github.com/mona-actions/gh-orgtools/internal/progress"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/spf13/cobra"
)

var (
	singletonRepo string
	singletonOut  reportFlags

	auditRepos []string
	auditOut   reportFlags

	adminsRepo       string
	adminsOwners     []string
	adminsSkipOwners bool
	adminsOut        reportFlags
)

var repoSingletonPermsCmd = &cobra.Command{
	Use:   "repo-singleton-perms ORG",
	Short: "Report direct (non-team) repository grants per permission",
	Long: `Report, for every repository of ORG, the collaborators whose access
comes from a direct repository grant instead of a team. Org owners whose
admin access is explained by their org role are ignored.

Examples:
  gh orgtools repo-singleton-perms acme
  gh orgtools repo-singleton-perms acme --repo website`,
	Args: cobra.ExactArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		org := args[0]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		names := []string{singletonRepo}
		if singletonRepo == "" {
			if names, err = repoNames(ctx, c, org); err != nil {
				return err
			}
		}

		results, err := scanSingletons(ctx, c, org, names)
		if err != nil {
			return err
		}

		report := output.Report{Header: []string{"RepoName", "PermissionsColumns"}}
		for _, r := range results {
			report.Append(r.Repo, r.Singletons.String())
		}
		if err := singletonOut.emit(report); err != nil {
			return err
		}
		finish("repo-singleton-perms", len(results), singletonOut.path, started)
		return nil
	}),
}

var repoSingletonAuditCmd = &cobra.Command{
	Use:   "repo-singleton-audit ORG --repos REPO...",
	Short: "Check whether repositories grant access only through teams",
	Args:  cobra.ExactArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		org := args[0]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		results, err := scanSingletons(ctx, c, org, auditRepos)
		if err != nil {
			return err
		}

		report := output.Report{Header: []string{"Repo", "Result"}}
		for _, r := range results {
			verdict := "appears to be using only teams"
			if !r.Singletons.Empty() {
				verdict = "has likely singleton access"
			}
			report.Append(r.Repo, verdict)
		}
		if err := auditOut.emit(report); err != nil {
			return err
		}
		finish("repo-singleton-audit", len(results), auditOut.path, started)
		return nil
	}),
}

var repoAdminsCmd = &cobra.Command{
	Use:   "repo-admins ORG",
	Short: "List the admins of every non-archived repository",
	Long: `List, for every non-archived repository of ORG, the collaborators with
admin access. Logins given with --owner (or every org owner with
--skip-org-owners) are left out.

Examples:
  gh orgtools repo-admins acme --owner octocat --owner hubot
  gh orgtools repo-admins acme --skip-org-owners -f admins.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		org := args[0]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		owners := adminsOwners
		if adminsSkipOwners {
			orgOwners, err := c.OrgMembers(ctx, org, ghapi.RoleAdmin)
			if err != nil {
				return err
			}
			owners = append(owners, orgOwners...)
		}

		repos, err := orgOrSingleRepo(ctx, c, org, adminsRepo)
		if err != nil {
			return err
		}

		p, stop := startProgress(c, len(repos), "Getting Perms")
		admins, err := perms.AdminsByRepo(ctx, repos, c, owners, c.Tracker(), p)
		stop()
		if err != nil {
			return fmt.Errorf("admin scan failed: %w", err)
		}

		report := output.Report{Header: []string{"full_name", "admins"}}
		for _, a := range admins {
			report.Append(a.FullName, strings.Join(a.Admins, ":"))
		}
		if err := adminsOut.emit(report); err != nil {
			return err
		}
		finish("repo-admins", len(admins), adminsOut.path, started)
		return nil
	}),
}

func repoNames(ctx context.Context, c *ghapi.Client, org string) ([]string, error) {
	repos, err := c.OrgRepos(ctx, org, ghapi.RepoTypeAll)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.Name)
	}
	return names, nil
}

func scanSingletons(ctx context.Context, c *ghapi.Client, org string, names []string) ([]perms.RepoSingletons, error) {
	p, stop := startProgress(c, len(names), "Getting Perms")
	defer stop()
	// The GraphQL budget is read with the rateLimit query the scan is billed against.
	var opts []ratelimit.Option
	if _, nop := p.(progress.Nop); !nop {
		opts = append(opts, ratelimit.WithProgress(p))
	}
	budget := ratelimit.NewTracker(c.GraphQLQuotaSource(), opts...)
	results, err := perms.ScanSingletons(ctx, org, names, c, budget, p)
	if err != nil {
		return nil, fmt.Errorf("permission source scan failed: %w", err)
	}
	return results, nil
}

func init() {
	rootCmd.AddCommand(repoSingletonPermsCmd, repoSingletonAuditCmd, repoAdminsCmd)

	repoSingletonPermsCmd.Flags().StringVar(&singletonRepo, "repo", "", "Only examine this repository")
	singletonOut.register(repoSingletonPermsCmd)

	repoSingletonAuditCmd.Flags().StringSliceVar(&auditRepos, "repos", nil, "Repositories to audit")
	_ = repoSingletonAuditCmd.MarkFlagRequired("repos")
	auditOut.register(repoSingletonAuditCmd)

	repoAdminsCmd.Flags().StringVar(&adminsRepo, "repo", "", "Only examine this repository")
	repoAdminsCmd.Flags().StringArrayVar(&adminsOwners, "owner", nil, "Login to leave out of the admin lists (repeatable)")
	repoAdminsCmd.Flags().BoolVar(&adminsSkipOwners, "skip-org-owners", false, "Leave every org owner out of the admin lists")
	adminsOut.register(repoAdminsCmd)
}
