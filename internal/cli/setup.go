package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mcao2/x-seed-notes/internal/config"
	"github.com/mcao2/x-seed-notes/internal/ui"
)

// NewSetupCommand creates the setup command.
func NewSetupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactively write the config file",
		Long: `Walk through the config values and optionally import the X.com session
cookies from a Cookie header copied to the clipboard.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd, rootOpts)
		},
	}

	return cmd
}

func runSetup(cmd *cobra.Command, rootOpts *RootOptions) error {
	// edit what the file holds; SEEDS_* overrides must not end up saved
	cfg, err := config.LoadFile(rootOpts.ConfigPath)
	if err != nil {
		return usage(err)
	}

	runForm := rootOpts.setupForm
	if runForm == nil {
		runForm = func(cfg *config.Config) (*ui.SetupResult, error) {
			return ui.NewSetupForm(cfg).Run()
		}
	}

	styles := ui.DefaultStyles()
	result, err := runForm(cfg)
	if errors.Is(err, huh.ErrUserAborted) {
		fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("Setup cancelled; nothing saved."))
		return nil
	}
	if err != nil {
		return fatal(err, "")
	}

	if err := result.ApplyTo(cfg); err != nil {
		return usage(err)
	}
	if err := cfg.Save(); err != nil {
		return fatal(fmt.Errorf("failed to save config: %w", err), "")
	}

	fmt.Fprintln(cmd.OutOrStdout(), styles.StatusLine(ui.MarkOK, "Config saved", cfg.Path()))
	fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render(`Run "x-seed-notes doctor" to check the setup.`))
	return nil
}
