package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/output"
	"github.com/spf13/cobra"
)

var (
	teamPermsTeam string
	teamPermsOut  reportFlags

	teamsTeam   string
	teamsUnmark bool
	teamsOut    reportFlags
)

var teamPermsCmd = &cobra.Command{
	Use:   "team-perms ORG",
	Short: "Report the repositories each team can reach, by permission",
	Args:  cobra.ExactArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		org := args[0]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		teams, err := selectTeams(ctx, c, org, teamPermsTeam)
		if err != nil {
			return err
		}

		p, stop := startProgress(c, len(teams), "Getting Perms")
		defer stop()

		report := output.Report{Header: []string{"TeamName", "RepoPermissionsColumns"}}
		for _, team := range teams {
			p.SetText(fmt.Sprintf("  - checking %s", team.Slug))
			order, byPerm, err := c.TeamRepoPermissions(ctx, org, team.Slug, p)
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, perm := range order {
				fmt.Fprintf(&b, "%s:%s,", perm, strings.Join(byPerm[perm], ":"))
			}
			report.Append(team.Slug, b.String())
			p.Increment()
		}

		if err := teamPermsOut.emit(report); err != nil {
			return err
		}
		finish("team-perms", len(teams), teamPermsOut.path, started)
		return nil
	}),
}

var teamsCmd = &cobra.Command{
	Use:   "teams ORG",
	Short: "List the members of every team, maintainers marked with '*'",
	Args:  cobra.ExactArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		org := args[0]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		teams, err := selectTeams(ctx, c, org, teamsTeam)
		if err != nil {
			return err
		}

		report := output.Report{Header: []string{"Team Slug", "User List"}}
		for _, team := range teams {
			maintainers, err := c.TeamMembers(ctx, org, team.Slug, "maintainer")
			if err != nil {
				return err
			}
			members, err := c.TeamMembers(ctx, org, team.Slug, "member")
			if err != nil {
				return err
			}

			users := make([]string, 0, len(maintainers)+len(members))
			for _, m := range maintainers {
				if !teamsUnmark {
					m = "*" + m
				}
				users = append(users, m)
			}
			users = append(users, members...)
			report.Append(team.Slug, strings.Join(users, ","))
		}

		if err := teamsOut.emit(report); err != nil {
			return err
		}
		finish("teams", len(teams), teamsOut.path, started)
		return nil
	}),
}

// selectTeams returns the team with slug, or every team of org.
func selectTeams(ctx context.Context, c *ghapi.Client, org, slug string) ([]ghapi.Team, error) {
	if slug == "" {
		return c.Teams(ctx, org)
	}
	team, err := c.TeamBySlug(ctx, org, slug)
	if err != nil {
		return nil, err
	}
	return []ghapi.Team{team}, nil
}

func init() {
	rootCmd.AddCommand(teamPermsCmd, teamsCmd)

	teamPermsCmd.Flags().StringVar(&teamPermsTeam, "team", "", "Only report this team slug")
	teamPermsOut.register(teamPermsCmd)

	teamsCmd.Flags().StringVar(&teamsTeam, "team", "", "Only report this team slug")
	teamsCmd.Flags().BoolVar(&teamsUnmark, "unmark", false, "Do not prefix maintainers with '*'")
	teamsOut.register(teamsCmd)
}
