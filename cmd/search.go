package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/orgfile"
	"github.com/mona-actions/gh-orgtools/internal/output"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Code search allows few requests per minute on top of the hourly quota.
const defaultSearchPause = 10 * time.Second

var (
	searchQuery string
	searchINI   string
	searchFiles bool
	searchPause time.Duration
	searchOut   reportFlags

	depPackage  string
	depLanguage string
	depINI      string
	depFiles    bool
	depPause    time.Duration
	depOut      reportFlags
)

// dependencyManifests are the files searched per language.
var dependencyManifests = map[string][]string{
	"Python":     {"requirements.txt", "pyproject.toml", "Pipfile"},
	"Javascript": {"package.json"},
}

var codeSearchCmd = &cobra.Command{
	Use:   "code-search [ORG...] --query QUERY",
	Short: "List the repositories of each org with files matching a code search",
	Long: `Run QUERY as a code search scoped to each org (org:<ORG> is added) and
list the matching repositories, or every matching file with --files.

Examples:
  gh orgtools code-search acme tools --query 'filename:Dockerfile alpine'
  gh orgtools code-search --orgini --query 'TODO' --files --format table`,
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		orgs, err := orgfile.Orgs(args, searchINI)
		if err != nil {
			return err
		}
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		s := &orgSearch{api: c, files: searchFiles, throttle: ghapi.NewThrottle(searchPause)}
		report := s.newReport()
		if err := s.run(ctx, orgs, searchQuery, &report); err != nil {
			return err
		}
		if err := searchOut.emit(report); err != nil {
			return err
		}
		finish("code-search", len(report.Rows), searchOut.path, started)
		return nil
	}),
}

var dependencySearchCmd = &cobra.Command{
	Use:   "dependency-search [ORG...] --package PACKAGE",
	Short: "Find repositories whose dependency manifests mention a package",
	Long: `Search the dependency manifests of a language (requirements.txt,
pyproject.toml and Pipfile for Python, package.json for Javascript) in
each org for PACKAGE. Archived repositories are marked.

Examples:
  gh orgtools dependency-search acme --package requests
  gh orgtools dependency-search --orgini --package lodash --language Javascript`,
	RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		started := time.Now()
		queries, err := dependencyQueries(depLanguage, depPackage)
		if err != nil {
			return err
		}
		orgs, err := orgfile.Orgs(args, depINI)
		if err != nil {
			return err
		}
		c, err := newClient(ctx)
		if err != nil {
			return err
		}

		s := &orgSearch{
			api:         c,
			files:       depFiles,
			noteArchive: true,
			throttle:    ghapi.NewThrottle(depPause),
		}
		report := s.newReport()
		for _, q := range queries {
			pterm.Info.Printf("Searching for: %s\n", q)
			if err := s.run(ctx, orgs, q, &report); err != nil {
				return err
			}
		}
		if err := depOut.emit(report); err != nil {
			return err
		}
		finish("dependency-search", len(report.Rows), depOut.path, started)
		return nil
	}),
}

func dependencyQueries(language, pkg string) ([]string, error) {
	files, ok := dependencyManifests[language]
	if !ok {
		return nil, fmt.Errorf("unknown language %q (want Python or Javascript)", language)
	}
	queries := make([]string, 0, len(files))
	for _, f := range files {
		queries = append(queries, fmt.Sprintf("filename:%s %s", f, pkg))
	}
	return queries, nil
}

type codeSearcher interface {
	SearchCode(ctx context.Context, query string) ([]ghapi.CodeHit, error)
	GetRepo(ctx context.Context, owner, name string) (ghapi.Repo, error)
}

// orgSearch runs one query per org and collects the hits into a report.
type orgSearch struct {
	api         codeSearcher
	files       bool
	noteArchive bool
	throttle    *ghapi.Throttle

	archived map[string]bool
}

func (s *orgSearch) newReport() output.Report {
	if s.files {
		return output.Report{Header: []string{"Query", "Org", "Repo", "Path"}}
	}
	return output.Report{Header: []string{"Query", "Org", "Repos"}}
}

func (s *orgSearch) run(ctx context.Context, orgs []string, query string, report *output.Report) error {
	for _, org := range orgs {
		if err := s.throttle.Wait(ctx); err != nil {
			return err
		}
		hits, err := s.api.SearchCode(ctx, fmt.Sprintf("org:%s %s", org, query))
		if err != nil {
			return err
		}

		if s.files {
			for _, h := range hits {
				name, err := s.repoLabel(ctx, org, h.Repo)
				if err != nil {
					return err
				}
				report.Append(query, org, name, h.Path)
			}
			continue
		}

		var names []string
		for _, h := range hits {
			name, err := s.repoLabel(ctx, org, h.Repo)
			if err != nil {
				return err
			}
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
		report.Append(query, org, strings.Join(names, ","))
	}
	return nil
}

// repoLabel returns repo, marked when archived and noteArchive is set.
// Archive status is fetched once per repository.
func (s *orgSearch) repoLabel(ctx context.Context, org, repo string) (string, error) {
	if !s.noteArchive {
		return repo, nil
	}
	if s.archived == nil {
		s.archived = make(map[string]bool)
	}
	key := org + "/" + repo
	archived, seen := s.archived[key]
	if !seen {
		r, err := s.api.GetRepo(ctx, org, repo)
		if err != nil {
			return "", err
		}
		archived = r.Archived
		s.archived[key] = archived
	}
	if archived {
		return repo + " (archived)", nil
	}
	return repo, nil
}

func init() {
	rootCmd.AddCommand(codeSearchCmd, dependencySearchCmd)

	codeSearchCmd.Flags().StringVar(&searchQuery, "query", "", "Code search query without the org: qualifier")
	_ = codeSearchCmd.MarkFlagRequired("query")
	codeSearchCmd.Flags().StringVar(&searchINI, "orgini", "", "Read the org list from an INI file ([GITHUB] orgs=a,b)")
	codeSearchCmd.Flags().Lookup("orgini").NoOptDefVal = orgfile.DefaultINI
	codeSearchCmd.Flags().BoolVar(&searchFiles, "files", false, "Report every matching file instead of one row per org")
	codeSearchCmd.Flags().DurationVar(&searchPause, "pause", defaultSearchPause, "Pause between searches")
	searchOut.register(codeSearchCmd)

	dependencySearchCmd.Flags().StringVar(&depPackage, "package", "", "Package to search for")
	_ = dependencySearchCmd.MarkFlagRequired("package")
	dependencySearchCmd.Flags().StringVar(&depLanguage, "language", "Python", "Language of the manifests: Python or Javascript")
	dependencySearchCmd.Flags().StringVar(&depINI, "orgini", "", "Read the org list from an INI file ([GITHUB] orgs=a,b)")
	dependencySearchCmd.Flags().Lookup("orgini").NoOptDefVal = orgfile.DefaultINI
	dependencySearchCmd.Flags().BoolVar(&depFiles, "files", false, "Report every matching file instead of one row per org")
	dependencySearchCmd.Flags().DurationVar(&depPause, "pause", defaultSearchPause, "Pause between searches")
	depOut.register(dependencySearchCmd)
}
