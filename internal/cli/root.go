// Package cli implements the docqa command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"docqa/internal/app"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/logging"
)

// Exit codes returned by Execute.
const (
	ExitOK           = 0
	ExitError        = 1
	ExitNoContent    = 2
	ExitDependencies = 3
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// NewRootCommand builds the docqa command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "docqa",
		Short: "Ask questions about your documents",
		Long: `docqa decomposes PDF, text and spreadsheet files into clauses and
table facts, indexes them in a vector store and answers questions from
the most relevant passages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (default ./config.yaml or ~/.config/docqa/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newDeleteCmd(opts),
		newExtractCmd(opts),
		newTUICmd(opts),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return exitCode(err)
	}
	return ExitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrNoExtractableContent):
		return ExitNoContent
	case errors.Is(err, domain.ErrDependencyUnavailable):
		return ExitDependencies
	default:
		return ExitError
	}
}

// loadConfig resolves the configuration and the logger it asks for.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.AppConfig, *slog.Logger, error) {
	cfg, path, err := config.Resolve(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Log.Level
	if o.verbose {
		level = "debug"
	}
	logger := logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())
	logger.Debug("config.loaded", "path", path)
	return cfg, logger, nil
}

// bootstrap builds the application for commands that need the backends.
func (o *rootOptions) bootstrap(cmd *cobra.Command) (*app.App, error) {
	cfg, logger, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, logger)
}

// expandInputs resolves glob patterns; patterns without matches are kept as
// literal paths.
func expandInputs(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		out = append(out, matches...)
	}
	return out
}

// ingestAll indexes every file, reporting progress on the command output.
// It continues past failures and returns them joined.
func ingestAll(cmd *cobra.Command, a *app.App, files []string) (int, error) {
	var errs []error
	indexed := 0
	for _, f := range files {
		n, err := a.Service.IngestFile(cmd.Context(), f)
		if err != nil {
			errs = append(errs, err)
			cmd.PrintErrf("failed: %s: %v\n", f, err)
			continue
		}
		indexed++
		cmd.Printf("indexed %d units from %s\n", n, f)
	}
	return indexed, errors.Join(errs...)
}
