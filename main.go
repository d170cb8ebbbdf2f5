// gh orgtools is a GitHub CLI extension that bundles organization
// administration tasks: permission and membership reports, SAML and team
// listings, user moderation, and repository archiving.
//
// Usage:
//
//	gh orgtools org-repo-perms myorg
//	gh orgtools archive myorg/old-repo --label-suffix LEGACY
//
// For full documentation, see: https://github.com/mona-actions/gh-orgtools
package main

import (
	"github.com/mona-actions/gh-orgtools/cmd"
)

// Version is the current version of gh orgtools.
// It can be overridden at build time using:
//
//	go build -ldflags="-X main.Version=v1.0.0"
//
// During releases, this is automatically set from the git tag.
var Version = "dev"

func main() {
	// Set version in cmd package so it can be accessed by subcommands
	cmd.Version = Version
	cmd.Execute()
}
