// Package cli wires configuration, credentials and the sync pipeline into the
// x-seed-notes command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mcao2/x-seed-notes/internal/config"
	"github.com/mcao2/x-seed-notes/internal/logger"
	"github.com/mcao2/x-seed-notes/internal/ui"
	"github.com/mcao2/x-seed-notes/internal/xcom"
)

// Exit codes
const (
	ExitOK    = 0
	ExitFatal = 1
	ExitUsage = 2
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string

	// test seams
	xcomOptions []xcom.ClientOption
	setupForm   func(*config.Config) (*ui.SetupResult, error)
}

// ExitError carries the exit code and an optional remediation hint
type ExitError struct {
	Code int
	Err  error
	Hint string
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func fatal(err error, hint string) error {
	return &ExitError{Code: ExitFatal, Err: err, Hint: hint}
}

func usage(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// NewRootCommand creates the root command. Without a subcommand it syncs.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	syncOpts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "x-seed-notes",
		Short: "Turn X.com bookmarks into Obsidian seed notes",
		Long: `Fetches your newest X.com bookmarks, asks a local model for a title,
core claim, seed questions and link candidates, and writes one markdown
note per new bookmark into your Obsidian inbox.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, syncOpts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.config/x-seed-notes/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	addSyncFlags(cmd, syncOpts)

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewSetupCommand(opts))
	cmd.AddCommand(NewDoctorCommand(opts))

	return cmd
}

// Execute runs the CLI and returns the process exit code
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, newRootCommand(&RootOptions{}), args, stdout, stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	styles := ui.DefaultStyles()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// flag parsing and unknown commands come straight from cobra
		exitErr = &ExitError{Code: ExitUsage, Err: err}
	}

	fmt.Fprintln(stderr, styles.Error.Render("Error: "+exitErr.Error()))
	if exitErr.Hint != "" {
		fmt.Fprintln(stderr, styles.Help.Render(exitErr.Hint))
	}
	return exitErr.Code
}

// loadConfig loads the config and sets up logging; failures are usage errors
func loadConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, usage(err)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	return cfg, nil
}
