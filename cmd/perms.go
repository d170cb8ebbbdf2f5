package cmd

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/output"
	"github.com/mona-actions/gh-orgtools/internal/perms"
	"github.com/mona-actions/gh-orgtools/internal/state"
	"github.com/spf13/cobra"
)

var (
	permsUser         string
	permsRepo         string
	permsTop          bool
	permsAllBits      bool
	permsMarkArchived bool
	permsOut          reportFlags

	userPermsRepo string
	userPermsOut  reportFlags
)

var orgRepoPermsCmd = &cobra.Command{
	Use:   "org-repo-perms ORG",
	Short: "Report the repository access of every member and outside collaborator",
	Long: `Report, for every org member, owner and outside collaborator, the
repositories they can reach bucketed by visibility and permission level.

Examples:
  gh orgtools org-repo-perms acme
  gh orgtools org-repo-perms acme --user octocat --top
  gh orgtools org-repo-perms acme --repo website --format table`,
	Args: cobra.ExactArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		org := args[0]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		users, err := seedUsers(ctx, c, org, permsUser)
		if err != nil {
			return err
		}
		repos, err := orgOrSingleRepo(ctx, c, org, permsRepo)
		if err != nil {
			return err
		}

		users, err = aggregate(ctx, c, users, repos, perms.Options{
			User:         permsUser,
			MarkArchived: permsMarkArchived,
			Policy:       policy(),
		})
		if err != nil {
			return err
		}

		report := output.Report{Header: []string{
			"Username", "ORG Role", "pub-count", "priv-count",
			"pub-pull", "pub-push", "pub-admin", "priv-pull", "priv-push", "priv-admin",
		}}
		if permsTop {
			report.Header = append(report.Header, "top-perms")
		}
		for _, rec := range perms.Sorted(users) {
			counts := rec.Counts()
			row := []string{
				rec.Login, string(rec.Role), strconv.Itoa(counts.Public), strconv.Itoa(counts.Private),
				strings.Join(rec.Repos(perms.Public, perms.Pull), ","),
				strings.Join(rec.Repos(perms.Public, perms.Push), ","),
				strings.Join(rec.Repos(perms.Public, perms.Admin), ","),
				strings.Join(rec.Repos(perms.Private, perms.Pull), ","),
				strings.Join(rec.Repos(perms.Private, perms.Push), ","),
				strings.Join(rec.Repos(perms.Private, perms.Admin), ","),
			}
			if permsTop {
				row = append(row, strings.Join(perms.TopPermissions(rec), ","))
			}
			report.Append(row...)
		}

		if err := permsOut.emit(report); err != nil {
			return err
		}
		finish("org-repo-perms", len(report.Rows), permsOut.path, started)
		return nil
	}),
}

var userPermsCmd = &cobra.Command{
	Use:   "user-perms USER ORG",
	Short: "Report one user's access to each repository of an org",
	Long: `Report one line per repository USER can reach in ORG, with the user's
org role and every access bucket that holds the repository.

Examples:
  gh orgtools user-perms octocat acme
  gh orgtools user-perms octocat acme --repo website`,
	Args: cobra.ExactArgs(2),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		user, org := args[0], args[1]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		users, err := seedUsers(ctx, c, org, user)
		if err != nil {
			return err
		}
		repos, err := orgOrSingleRepo(ctx, c, org, userPermsRepo)
		if err != nil {
			return err
		}
		users, err = aggregate(ctx, c, users, repos, perms.Options{User: user})
		if err != nil {
			return err
		}

		report := output.Report{Header: []string{"user", "org", "repo", "role", "access"}}
		for _, line := range perms.UserRepoAccess(perms.Sorted(users), repos) {
			report.Append(line.Login, org, line.Repo, string(line.Role), line.Access)
		}
		if err := userPermsOut.emit(report); err != nil {
			return err
		}
		finish("user-perms", len(report.Rows), userPermsOut.path, started)
		return nil
	}),
}

// seedUsers builds the initial records: every member and owner of org, or
// only user with its actual org role.
func seedUsers(ctx context.Context, c *ghapi.Client, org, user string) (map[string]*perms.Record, error) {
	admins, err := c.OrgMembers(ctx, org, ghapi.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if user == "" {
		members, err := c.OrgMembers(ctx, org, ghapi.RoleMember)
		if err != nil {
			return nil, err
		}
		return perms.Seed(members, admins), nil
	}

	if slices.Contains(admins, user) {
		return perms.Seed(nil, []string{user}), nil
	}
	member, err := c.IsOrgMember(ctx, org, user)
	if err != nil {
		return nil, err
	}
	if !member {
		// Aggregate creates the outside collaborator record if user shows up.
		return map[string]*perms.Record{}, nil
	}
	return perms.Seed([]string{user}, nil), nil
}

// orgOrSingleRepo returns repo of org when set, otherwise all repositories.
func orgOrSingleRepo(ctx context.Context, c *ghapi.Client, org, repo string) ([]ghapi.Repo, error) {
	if repo != "" {
		r, err := c.GetRepo(ctx, org, repo)
		if err != nil {
			return nil, err
		}
		return []ghapi.Repo{r}, nil
	}
	return c.OrgRepos(ctx, org, ghapi.RepoTypeAll)
}

func aggregate(ctx context.Context, c *ghapi.Client, users map[string]*perms.Record, repos []ghapi.Repo, opts perms.Options) (map[string]*perms.Record, error) {
	p, stop := startProgress(c, len(repos), "Getting Perms")
	defer stop()

	state.Get().AddItems(len(repos))
	opts.Budget = c.Tracker()
	opts.Progress = p
	users, err := perms.Aggregate(ctx, users, repos, c, opts)
	if err != nil {
		return nil, fmt.Errorf("permission scan failed: %w", err)
	}
	return users, nil
}

func policy() perms.Policy {
	if permsAllBits {
		return perms.PolicyCumulative
	}
	return perms.PolicyHighestOnly
}

func init() {
	rootCmd.AddCommand(orgRepoPermsCmd, userPermsCmd)

	orgRepoPermsCmd.Flags().StringVar(&permsUser, "user", "", "Only report this user")
	orgRepoPermsCmd.Flags().StringVar(&permsRepo, "repo", "", "Only examine this repository")
	orgRepoPermsCmd.Flags().BoolVar(&permsTop, "top", false, "Add a column with the single highest permission per repository")
	orgRepoPermsCmd.Flags().BoolVar(&permsAllBits, "all-bits", false, "Record every permission bit instead of only the highest one")
	orgRepoPermsCmd.Flags().BoolVar(&permsMarkArchived, "mark-archived", false, "Prefix archived repositories with '*'")
	permsOut.register(orgRepoPermsCmd)

	userPermsCmd.Flags().StringVar(&userPermsRepo, "repo", "", "Only examine this repository")
	userPermsOut.register(userPermsCmd)
}
