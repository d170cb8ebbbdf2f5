package cmd

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/orgfile"
	"github.com/mona-actions/gh-orgtools/internal/output"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/mona-actions/gh-orgtools/internal/state"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	blockINI   string
	blockBlock bool

	collabRepos []string
	collabPerms string

	addUserTeams []string
	addUserOwner bool

	removeINI  string
	removeDoIt bool

	queryINI string
	queryOut reportFlags

	grantOrg   string
	grantRepos []string
	grantPerm  string
)

var blockUserCmd = &cobra.Command{
	Use:   "block-user USER [ORG...]",
	Short: "Block or unblock a user in one or more orgs",
	Long: `Unblock USER in every listed org, or block it with --block.

Examples:
  gh orgtools block-user spammer acme tools --block
  gh orgtools block-user spammer --orgini`,
	Args: cobra.MinimumNArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		user := args[0]
		orgs, err := orgfile.Orgs(args[1:], blockINI)
		if err != nil {
			return err
		}
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		action := "unblocked"
		if blockBlock {
			action = "blocked"
		}
		st := state.Get()
		st.AddItems(len(orgs))
		throttle := ghapi.NewThrottle(ghapi.DefaultThrottleDelay)
		for _, org := range orgs {
			if err := throttle.Wait(ctx); err != nil {
				return err
			}
			code, err := c.SetBlocked(ctx, org, user, blockBlock)
			if err != nil {
				return err
			}
			switch code {
			case http.StatusNoContent:
				st.PrintItem(fmt.Sprintf("User %s was %s from org %s", user, action, org), true, "")
			case http.StatusUnprocessableEntity:
				st.PrintItem(fmt.Sprintf("Problem with %s action", action), false,
					fmt.Sprintf("%s is already blocked in %s", user, org))
			default:
				st.PrintItem(fmt.Sprintf("Problem with blocking/unblocking %s from org %s", user, org), false,
					fmt.Sprintf("status code for support: %d", code))
			}
		}
		st.MarkDone("orgs")
		return nil
	}),
}

var addCollaboratorCmd = &cobra.Command{
	Use:   "add-collaborator USER ORG --repos REPO...",
	Short: "Add a user as collaborator to repositories of an org",
	Args:  cobra.ExactArgs(2),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		user, org := args[0], args[1]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		st := state.Get()
		st.AddItems(len(collabRepos))
		throttle := ghapi.NewThrottle(ghapi.DefaultThrottleDelay)
		for _, repo := range collabRepos {
			if err := throttle.Wait(ctx); err != nil {
				return err
			}
			code, err := c.AddCollaborator(ctx, org, repo, user, collabPerms)
			switch {
			case code == http.StatusCreated:
				st.PrintItem(fmt.Sprintf("User %s added to repo %s", user, repo), true, "")
			case code == http.StatusNoContent:
				st.PrintItem(fmt.Sprintf("User %s already has some level of access to %s", user, repo), true, "")
			case code == 0 && err != nil:
				return err
			default:
				st.PrintItem(fmt.Sprintf("Error adding user to repo %s", repo), false,
					fmt.Sprintf("response code: %d", code))
			}
		}
		st.MarkDone("repos")
		return nil
	}),
}

var orgAddUserCmd = &cobra.Command{
	Use:   "org-add-user ORG USER",
	Short: "Add a user to an org, optionally into teams or as owner",
	Long: `Add USER to ORG. Without --teams the membership is set directly;
with --teams an invitation joining those teams is sent.`,
	Args: cobra.ExactArgs(2),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		org, user := args[0], args[1]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		if _, err := c.GetOrg(ctx, org); err != nil {
			if ghapi.IsNotFound(err) {
				return fmt.Errorf("organization %s is not found", org)
			}
			return err
		}
		u, _, err := c.GetUser(ctx, user)
		if err != nil {
			if ghapi.IsNotFound(err) {
				return fmt.Errorf("user %s is not found", user)
			}
			return err
		}

		var teamIDs []int64
		for _, slug := range addUserTeams {
			team, err := c.TeamBySlug(ctx, org, slug)
			if err != nil {
				if ghapi.IsNotFound(err) {
					return fmt.Errorf("team %s not resolving - please verify the team-slug", slug)
				}
				return err
			}
			teamIDs = append(teamIDs, team.ID)
		}

		role := membershipRole(addUserOwner, len(addUserTeams) > 0)
		if len(addUserTeams) > 0 {
			err = c.Invite(ctx, org, u.GetID(), role, teamIDs)
		} else {
			err = c.SetMembership(ctx, org, user, role)
		}
		if err != nil {
			return err
		}
		pterm.Success.Printf("✓ %s added to %s as %s\n", user, org, role)
		return nil
	}),
}

// membershipRole maps the flags to the role names of the membership and
// invitation endpoints, which differ for plain members.
func membershipRole(owner, invite bool) string {
	switch {
	case owner:
		return "admin"
	case invite:
		return "direct_member"
	}
	return "member"
}

var removeUserCmd = &cobra.Command{
	Use:   "remove-user USER [ORG...]",
	Short: "Remove a user from orgs, or from their repositories as outside collaborator",
	Long: `Remove USER from every listed org. When USER is not a member, every
repository of the org is checked for outside collaborator access instead.

Nothing is changed without --do-it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		user := args[0]
		orgs, err := orgfile.Orgs(args[1:], removeINI)
		if err != nil {
			return err
		}
		c, err := newClient(ctx)
		if err != nil {
			return err
		}
		if err := c.Tracker().EnsureBudget(ctx, ratelimit.PerLoop, ratelimit.Core); err != nil {
			return err
		}
		if !removeDoIt {
			pterm.Info.Println("Dry run - pass --do-it to remove access")
		}

		var found []string
		for _, org := range orgs {
			output.PrintOrgHeader(org)
			member, err := c.IsOrgMember(ctx, org, user)
			if err != nil {
				return err
			}
			if member {
				pterm.Info.Printf("Found user %s in org %s\n", user, org)
				found = append(found, org)
				if removeDoIt {
					if err := c.RemoveOrgMember(ctx, org, user); err != nil {
						return err
					}
					pterm.Success.Printf("✓ Removed user %s from org %s\n", user, org)
				}
				continue
			}
			if err := removeCollaborator(ctx, c, org, user); err != nil {
				return err
			}
		}
		if len(found) > 0 {
			pterm.Info.Printf("Found user %s as a member of these orgs: %s\n", user, strings.Join(found, ","))
		}
		return nil
	}),
}

// removeCollaborator looks for user as outside collaborator in every
// repository of org.
func removeCollaborator(ctx context.Context, c *ghapi.Client, org, user string) error {
	pterm.Info.Printf("Looking for OCs in repos in %s\n", org)
	repos, err := c.OrgRepos(ctx, org, ghapi.RepoTypeAll)
	if err != nil {
		return err
	}

	p, stop := startProgress(c, len(repos), "Checking repos")
	defer stop()

	hits := 0
	for _, repo := range repos {
		p.SetText(fmt.Sprintf("  - checking %s", repo.Name))
		ok, err := c.IsCollaborator(ctx, org, repo.Name, user)
		switch {
		case ghapi.IsNotFound(err) && ghapi.IsExpected404(repo.Name):
			ok, err = false, nil
		case err != nil:
			return fmt.Errorf("repository %s: %w", repo.FullName, err)
		}
		if ok {
			hits++
			pterm.Info.Printf("Found user %s as collaborator in repo %s\n", user, repo.Name)
			if removeDoIt {
				if err := c.RemoveCollaborator(ctx, org, repo.Name, user); err != nil {
					return err
				}
				pterm.Success.Printf("✓ Removed user %s as collaborator from repo %s\n", user, repo.Name)
			}
		}
		if err := c.Tracker().EnsureBudget(ctx, ratelimit.PerLoop, ratelimit.Core); err != nil {
			return err
		}
		p.Increment()
	}
	if hits == 0 {
		pterm.Info.Printf("Did not find user %s as an OC of any repo in %s\n", user, org)
	}
	return nil
}

var userRepoQueryCmd = &cobra.Command{
	Use:   "user-repo-query USER [ORG...]",
	Short: "Show whether a user is a member or outside collaborator of each org",
	Long: `Check every org the token can see (or the listed orgs) for USER as an
org member, then as an outside collaborator.

Examples:
  gh orgtools user-repo-query octocat
  gh orgtools user-repo-query octocat acme tools --format table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		user := args[0]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		var orgs []string
		if len(args) > 1 || queryINI != "" {
			orgs, err = orgfile.Orgs(args[1:], queryINI)
		} else {
			orgs, err = c.ViewerOrganizations(ctx)
		}
		if err != nil {
			return err
		}

		p, stop := startProgress(c, len(orgs), "Checking orgs")
		defer stop()

		report := output.Report{Header: []string{"Org", "Access"}}
		for _, org := range orgs {
			p.SetText("  - checking " + org)
			if err := c.Tracker().EnsureBudget(ctx, ratelimit.PerLoop, ratelimit.Core); err != nil {
				return err
			}
			access, err := orgAccess(ctx, c, org, user)
			if err != nil {
				return fmt.Errorf("org %s: %w", org, err)
			}
			report.Append(org, string(access))
			p.Increment()
		}
		if err := queryOut.emit(report); err != nil {
			return err
		}
		finish("user-repo-query", len(report.Rows), queryOut.path, started)
		return nil
	}),
}

// Access is how a user reaches an org.
type Access string

const (
	AccessMember        Access = "member"
	AccessOutsideCollab Access = "outside collaborator"
	AccessNone          Access = "none"
)

type accessChecker interface {
	IsOrgMember(ctx context.Context, org, user string) (bool, error)
	OutsideCollaborators(ctx context.Context, org string) ([]string, error)
}

// orgAccess checks membership first and only then lists the outside
// collaborators of org. Logins compare case-insensitively.
func orgAccess(ctx context.Context, api accessChecker, org, user string) (Access, error) {
	member, err := api.IsOrgMember(ctx, org, user)
	if err != nil {
		return "", err
	}
	if member {
		return AccessMember, nil
	}
	collabs, err := api.OutsideCollaborators(ctx, org)
	if err != nil {
		return "", err
	}
	if slices.Contains(collabs, strings.ToLower(user)) {
		return AccessOutsideCollab, nil
	}
	return AccessNone, nil
}

var repoAddPermsCmd = &cobra.Command{
	Use:   "repo-add-perms team|member NAME --org ORG --repos REPO... --perm PERM",
	Short: "Grant a team or a user access to repositories",
	Long: `Grant team NAME (a team slug) or user NAME the permission PERM on each
repository of ORG. A user who is not an org member is invited as outside
collaborator.

Examples:
  gh orgtools repo-add-perms team platform --org acme --repos api,web --perm maintain
  gh orgtools repo-add-perms member octocat --org acme --repos api --perm read`,
	Args: cobra.ExactArgs(2),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		kind, name := args[0], args[1]
		if kind != "team" && kind != "member" {
			return fmt.Errorf("first argument must be team or member, got %q", kind)
		}
		if _, err := ghapi.APIPermission(grantPerm); err != nil {
			return err
		}
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		st := state.Get()
		st.AddItems(len(grantRepos))
		throttle := ghapi.NewThrottle(ghapi.DefaultThrottleDelay)
		for _, repo := range grantRepos {
			if err := throttle.Wait(ctx); err != nil {
				return err
			}
			var code int
			if kind == "team" {
				code, err = c.AddTeamRepo(ctx, grantOrg, name, repo, grantPerm)
			} else {
				code, err = c.AddCollaborator(ctx, grantOrg, repo, name, grantPerm)
			}
			if code == 0 && err != nil {
				return err
			}
			ok, msg, detail := grantResult(kind, name, grantOrg, repo, grantPerm, code)
			st.PrintItem(msg, ok, detail)
			if err := c.Tracker().EnsureBudget(ctx, ratelimit.PerLoop, ratelimit.Core); err != nil {
				return err
			}
		}
		st.MarkDone("repos")
		return nil
	}),
}

// grantResult turns the status of a grant call into a result line.
func grantResult(kind, name, org, repo, perm string, code int) (ok bool, msg, detail string) {
	full := org + "/" + repo
	switch {
	case kind == "team" && code == http.StatusNoContent:
		return true, fmt.Sprintf("Repo: %s - Added to %s with %s", full, name, perm), ""
	case kind == "member" && code == http.StatusCreated:
		return true, fmt.Sprintf("User %s added to repository %s", name, full), ""
	case kind == "member" && code == http.StatusNoContent:
		return true, fmt.Sprintf("User %s already a collab on %s", name, full), ""
	case code == http.StatusForbidden:
		return false, fmt.Sprintf("Permission denied for %s", full), ""
	}
	return false, fmt.Sprintf("Repo: %s returned an error code, check spelling/org/permission types", full),
		fmt.Sprintf("code: %d", code)
}

func init() {
	rootCmd.AddCommand(blockUserCmd, addCollaboratorCmd, orgAddUserCmd, removeUserCmd, userRepoQueryCmd, repoAddPermsCmd)

	blockUserCmd.Flags().StringVar(&blockINI, "orgini", "", "Read the org list from an INI file ([GITHUB] orgs=a,b)")
	blockUserCmd.Flags().Lookup("orgini").NoOptDefVal = orgfile.DefaultINI
	blockUserCmd.Flags().BoolVar(&blockBlock, "block", false, "Block the user (default is unblock)")

	addCollaboratorCmd.Flags().StringSliceVar(&collabRepos, "repos", nil, "Repositories to add the user to")
	addCollaboratorCmd.Flags().StringVar(&collabPerms, "perms", "read", "Permission: read, triage, write, maintain or admin")
	_ = addCollaboratorCmd.MarkFlagRequired("repos")

	orgAddUserCmd.Flags().StringSliceVar(&addUserTeams, "teams", nil, "Team slugs to join")
	orgAddUserCmd.Flags().BoolVar(&addUserOwner, "owner", false, "Make the user an org owner")

	removeUserCmd.Flags().StringVar(&removeINI, "orgini", "", "Read the org list from an INI file ([GITHUB] orgs=a,b)")
	removeUserCmd.Flags().Lookup("orgini").NoOptDefVal = orgfile.DefaultINI
	removeUserCmd.Flags().BoolVar(&removeDoIt, "do-it", false, "Actually remove access (default is a dry run)")

	userRepoQueryCmd.Flags().StringVar(&queryINI, "orgini", "", "Read the org list from an INI file ([GITHUB] orgs=a,b)")
	userRepoQueryCmd.Flags().Lookup("orgini").NoOptDefVal = orgfile.DefaultINI
	queryOut.register(userRepoQueryCmd)

	repoAddPermsCmd.Flags().StringVar(&grantOrg, "org", "", "Organization that owns the repositories")
	repoAddPermsCmd.Flags().StringSliceVar(&grantRepos, "repos", nil, "Repository names")
	repoAddPermsCmd.Flags().StringVar(&grantPerm, "perm", "", "Permission: read, triage, write, maintain or admin")
	_ = repoAddPermsCmd.MarkFlagRequired("org")
	_ = repoAddPermsCmd.MarkFlagRequired("repos")
	_ = repoAddPermsCmd.MarkFlagRequired("perm")
}
