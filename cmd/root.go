// Package cmd provides the command-line interface for gh-orgtools.
// It defines the Cobra command structure, the shared authentication and
// output flags, and one subcommand per organization administration task.
package cmd

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set by main from the build flags.
var Version = "dev"

// cfg holds the persistent flags merged with GH_ORGTOOLS_* environment
// variables.
var cfg = viper.New()

var rootCmd = &cobra.Command{
	Use:   "orgtools",
	Short: "Administer GitHub organizations, repositories and their permissions",
	Long: `gh orgtools is a GitHub CLI extension that bundles organization
administration tasks: permission reports, SAML and team listings, user
moderation, and repository archiving.

Reports are written to stdout (or -f FILE); diagnostics go to stderr.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfg.GetBool("verbose") {
			pterm.EnableDebugMessages()
		}
	},
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = Version
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("pat-key", "admin", "Key of the token in the .gh_pat.toml credential file")
	flags.String("token", "", "GitHub personal access token (overrides the credential file)")
	flags.String("hostname", "", "GitHub Enterprise Server hostname (e.g., github.company.com)")
	flags.String("graphql-url", "", "GraphQL endpoint override")
	flags.BoolP("verbose", "v", false, "Enable verbose output")
	flags.BoolP("info", "i", false, "Show progress on stderr")

	_ = cfg.BindPFlags(flags)
}

// initConfig loads .env and wires the GH_ORGTOOLS_ environment prefix.
func initConfig() {
	pterm.SetDefaultOutput(os.Stderr)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		pterm.Debug.Printf("ignoring .env: %v\n", err)
	}

	cfg.SetEnvPrefix("GH_ORGTOOLS")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
}
