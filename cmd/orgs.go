package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
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
	remainOut reportFlags

	samlOut reportFlags

	ownersINI string
	ownersOut reportFlags

	reposArchived   bool
	reposType       string
	reposWithoutOrg bool
	reposOut        reportFlags

	orgsOut reportFlags

	patOwnerRaw bool
	patOwnerOut reportFlags
)

var apiRemainCmd = &cobra.Command{
	Use:   "api-remain",
	Short: "Show the remaining API quota and reset time per resource",
	Args:  cobra.NoArgs,
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		c, err := newClient(ctx)
		if err != nil {
			return err
		}
		limits, err := c.RateLimits(ctx)
		if err != nil {
			return err
		}

		report := output.Report{Header: []string{"Resource", "Remaining", "Limit", "Reset"}}
		for _, res := range ratelimit.Resources {
			st, ok := limits[res]
			if !ok {
				continue
			}
			report.Append(string(res), strconv.Itoa(st.Remaining), strconv.Itoa(st.Limit),
				st.ResetAt.Local().Format(time.DateTime))
		}
		if cfg.GetBool("verbose") {
			state.Get().PrintRateLimit()
		}
		return remainOut.emit(report)
	}),
}

var samlReportCmd = &cobra.Command{
	Use:   "saml-report ORG",
	Short: "Map org members to their linked SAML identities",
	Long: `Map every member of ORG to the NameID of its linked SAML identity.
Members without a linked identity are reported as None.

The PAT needs the admin:org scope and must be SSO authorized for ORG.`,
	Args: cobra.ExactArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		org := args[0]
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		p, stop := startSpinner(c, "fetching SAML identities")
		identities, err := c.SAMLIdentities(ctx, org, p)
		stop()
		if err != nil {
			return err
		}
		members, err := c.OrgMembers(ctx, org, ghapi.RoleAll)
		if err != nil {
			return err
		}

		report := output.Report{
			Comments: []string{fmt.Sprintf("org_samlreport_output gh_org:%s datetime:%s", org, time.Now().Format("20060102T150405"))},
			Header:   []string{"SAML", "GH Login"},
		}
		for _, row := range samlRows(members, identities) {
			report.Append(row[0], row[1])
		}
		if err := samlOut.emit(report); err != nil {
			return err
		}
		finish("saml-report", len(report.Rows), samlOut.path, started)
		return nil
	}),
}

// samlRows pairs every member with its NameID ("None" when unlinked).
// Identities of logins that are not in members are appended after them.
func samlRows(members []string, identities []ghapi.SAMLIdentity) [][2]string {
	nameID := make(map[string]string, len(members))
	order := make([]string, 0, len(members))
	for _, m := range members {
		if _, seen := nameID[m]; !seen {
			order = append(order, m)
		}
		nameID[m] = "None"
	}
	for _, id := range identities {
		if _, seen := nameID[id.Login]; !seen {
			order = append(order, id.Login)
		}
		nameID[id.Login] = id.NameID
	}

	rows := make([][2]string, 0, len(order))
	for _, login := range order {
		rows = append(rows, [2]string{nameID[login], login})
	}
	return rows
}

var ownersCmd = &cobra.Command{
	Use:   "owners [ORG...]",
	Short: "List the owners of one or more orgs and the orgs each one owns",
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		orgs, err := orgfile.Orgs(args, ownersINI)
		if err != nil {
			return err
		}
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		var order []string
		owned := make(map[string][]string)
		for _, org := range orgs {
			owners, err := c.OrgMembers(ctx, org, ghapi.RoleAdmin)
			if ghapi.IsNotFound(err) {
				pterm.Warning.Printf("⚠ Org %s not found - continuing with remaining orgs\n", org)
				state.Get().MarkSkipped()
				continue
			}
			if err != nil {
				return err
			}
			for _, o := range owners {
				if _, seen := owned[o]; !seen {
					order = append(order, o)
				}
				owned[o] = append(owned[o], org)
			}
		}

		report := output.Report{Header: []string{"Owner GHName", "Orgs Owned"}}
		for _, o := range order {
			report.Append(o, strings.Join(owned[o], ","))
		}
		return ownersOut.emit(report)
	}),
}

var reposCmd = &cobra.Command{
	Use:   "repos ORG",
	Short: "List the repositories of an org",
	Long: `List the repositories of ORG as org/repo (or just the name with
--without-org). Archived repositories are left out unless --archived.`,
	Args: cobra.ExactArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		c, err := newClient(ctx)
		if err != nil {
			return err
		}
		repos, err := c.OrgRepos(ctx, args[0], reposType)
		if err != nil {
			return err
		}

		report := output.Report{Header: []string{"Repo"}}
		for _, r := range repos {
			if r.Archived && !reposArchived {
				continue
			}
			name := r.FullName
			if reposWithoutOrg {
				name = r.Name
			}
			report.Append(name)
		}
		return reposOut.emit(report)
	}),
}

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "List the orgs of the authenticated user",
	Args:  cobra.NoArgs,
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		c, err := newClient(ctx)
		if err != nil {
			return err
		}
		orgs, err := c.ViewerOrganizations(ctx)
		if err != nil {
			return err
		}
		sort.Strings(orgs)

		report := output.Report{Header: []string{"Org"}}
		for _, o := range orgs {
			report.Append(o)
		}
		return orgsOut.emit(report)
	}),
}

var patOwnerCmd = &cobra.Command{
	Use:   "pat-owner PAT",
	Short: "Show the user and OAuth scopes behind a token",
	Args:  cobra.ExactArgs(1),
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		c, err := clientFor(ctx, args[0])
		if err != nil {
			return err
		}
		owner, err := c.Whoami(ctx)
		if err != nil {
			return err
		}

		if patOwnerRaw {
			body, err := json.MarshalIndent(owner.User, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode user: %w", err)
			}
			fmt.Fprintf(os.Stdout, "Header: %v\n", owner.Header)
			fmt.Fprintf(os.Stdout, "Results: %s\n", body)
			return nil
		}

		report := output.Report{Header: []string{"login", "node_id", "scopes"}}
		report.Append(owner.Login, owner.NodeID, owner.Scopes)
		return patOwnerOut.emit(report)
	}),
}

func init() {
	rootCmd.AddCommand(apiRemainCmd, samlReportCmd, ownersCmd, reposCmd, orgsCmd, patOwnerCmd)

	remainOut.register(apiRemainCmd)
	samlOut.register(samlReportCmd)

	ownersCmd.Flags().StringVar(&ownersINI, "orgini", "", "Read the org list from an INI file ([GITHUB] orgs=a,b)")
	ownersCmd.Flags().Lookup("orgini").NoOptDefVal = orgfile.DefaultINI
	ownersOut.register(ownersCmd)

	reposCmd.Flags().BoolVar(&reposArchived, "archived", false, "Include archived repositories")
	reposCmd.Flags().StringVar(&reposType, "type", ghapi.RepoTypeAll, "Repository visibility: all, public or private")
	reposCmd.Flags().BoolVar(&reposWithoutOrg, "without-org", false, "Print only the repository name")
	reposOut.register(reposCmd)

	orgsOut.register(orgsCmd)

	patOwnerCmd.Flags().BoolVar(&patOwnerRaw, "raw", false, "Print the raw response headers and body")
	patOwnerOut.register(patOwnerCmd)
}
