package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/creds"
	"github.com/mona-actions/gh-orgtools/internal/ghapi"
	"github.com/mona-actions/gh-orgtools/internal/output"
	"github.com/mona-actions/gh-orgtools/internal/progress"
	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/mona-actions/gh-orgtools/internal/state"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM. A second
// Ctrl-C force quits.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var sig os.Signal
		select {
		case sig = <-sigChan:
		case <-ctx.Done():
			signal.Stop(sigChan)
			return
		}

		if sig == syscall.SIGTERM {
			fmt.Fprintln(os.Stderr, "\nReceived termination signal (SIGTERM), shutting down gracefully...")
		} else {
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down gracefully... (press Ctrl-C again to force quit)")
		}
		cancel()

		// SIGTERM comes from a supervisor, there is nobody to press Ctrl-C again.
		if sig == syscall.SIGTERM {
			return
		}

		<-sigChan
		fmt.Fprintln(os.Stderr, "\nForce quitting...")
		os.Exit(130) // Standard exit code for SIGINT
	}()

	return ctx, cancel
}

// runE adapts a context aware command body to cobra, installing signal
// handling around it.
func runE(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return fn(ctx, cmd, args)
	}
}

// resolveToken finds the PAT from the flags, the credential file, the
// environment or an interactive prompt.
func resolveToken() (string, error) {
	token, err := creds.Resolver{
		Token:  cfg.GetString("token"),
		Key:    cfg.GetString("pat-key"),
		Prompt: creds.TerminalPrompt(os.Stdin, os.Stderr),
	}.Resolve()
	if err != nil {
		return "", fmt.Errorf("no GitHub token available (use --token, %s or GH_ORGTOOLS_TOKEN): %w", creds.FileName, err)
	}
	return token, nil
}

// newClient builds the authenticated GitHub client shared by every command.
func newClient(ctx context.Context) (*ghapi.Client, error) {
	token, err := resolveToken()
	if err != nil {
		return nil, err
	}
	return clientFor(ctx, token)
}

func clientFor(ctx context.Context, token string) (*ghapi.Client, error) {
	c, err := ghapi.NewClient(ctx, ghapi.Config{
		Token:      token,
		Hostname:   cfg.GetString("hostname"),
		GraphQLURL: cfg.GetString("graphql-url"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return c, nil
}

// startProgress returns a progress bar for total items when -i is set and
// attaches it to the client's rate tracker. stop must always be called.
func startProgress(c *ghapi.Client, total int, title string) (p progress.Progress, stop func()) {
	if !cfg.GetBool("info") || total <= 0 {
		return progress.Nop{}, func() {}
	}
	bar, err := progress.NewBar(total, title)
	if err != nil {
		pterm.Debug.Printf("progress bar unavailable: %v\n", err)
		return progress.Nop{}, func() {}
	}
	c.Tracker().SetProgress(bar)
	return bar, func() {
		bar.Stop()
		c.Tracker().SetProgress(nil)
	}
}

// startSpinner is startProgress for loops of unknown length.
func startSpinner(c *ghapi.Client, label string) (p progress.Progress, stop func()) {
	if !cfg.GetBool("info") {
		return progress.Nop{}, func() {}
	}
	s := progress.NewSpinner(os.Stderr, label)
	c.Tracker().SetProgress(s)
	return s, func() {
		s.Done()
		c.Tracker().SetProgress(nil)
	}
}

// reportFlags are the output flags of every report command.
type reportFlags struct {
	format string
	path   string
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", string(output.FormatCSV), "Output format: csv, table, json or markdown")
	cmd.Flags().StringVarP(&f.path, "output", "f", "", "Write the report to this file instead of stdout")
}

func (f *reportFlags) emit(r output.Report) error {
	format, err := output.ParseFormat(f.format)
	if err != nil {
		return err
	}
	return output.Emit(os.Stdout, f.path, r, format)
}

// finish prints the end-of-run summary when progress output is enabled.
func finish(command string, items int, path string, started time.Time) {
	if !cfg.GetBool("info") && !cfg.GetBool("verbose") {
		return
	}
	st := state.Get()
	quota := make(map[ratelimit.Resource]ratelimit.Status)
	for _, res := range ratelimit.Resources {
		if q, ok := st.GetRateLimit(res); ok {
			quota[res] = q
		}
	}
	output.PrintCompletionSummary(output.CompletionSummary{
		Command:    command,
		Items:      items,
		OutputFile: path,
		Duration:   time.Since(started),
		APICalls:   st.GetAPICalls(),
		Quota:      quota,
	})
}
