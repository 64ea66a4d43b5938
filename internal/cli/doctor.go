package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcao2/x-seed-notes/internal/config"
	"github.com/mcao2/x-seed-notes/internal/enrich"
	"github.com/mcao2/x-seed-notes/internal/state"
	"github.com/mcao2/x-seed-notes/internal/ui"
	"github.com/mcao2/x-seed-notes/internal/xcom"
)

const doctorTimeout = 5 * time.Second

// Check is one doctor result line
type Check struct {
	Mark   string
	Label  string
	Detail string
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials and local services",
		Long: `Verify everything a sync needs: the config file, X.com cookies, a
writable inbox, the state backend, the generation service and model, and
the headless Chrome used for X articles.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, rootOpts)
		},
	}

	return cmd
}

func runDoctor(cmd *cobra.Command, rootOpts *RootOptions) error {
	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, rootOpts)
	if err != nil {
		printChecks(out, styles, []Check{{ui.MarkFail, "Config", err.Error()}})
		return err
	}

	checks := runChecks(cmd.Context(), cfg)
	printChecks(out, styles, checks)

	failed := 0
	for _, c := range checks {
		if c.Mark == ui.MarkFail {
			failed++
		}
	}
	if failed > 0 {
		return fatal(fmt.Errorf("%d check(s) failed", failed), "")
	}
	return nil
}

func printChecks(w io.Writer, styles ui.Styles, checks []Check) {
	for _, c := range checks {
		fmt.Fprintln(w, styles.StatusLine(c.Mark, c.Label, c.Detail))
	}
}

func runChecks(ctx context.Context, cfg *config.Config) []Check {
	return []Check{
		{ui.MarkOK, "Config", cfg.Path()},
		checkCredentials(cfg),
		checkInbox(cfg.InboxDir()),
		checkState(cfg.StateLocation()),
		checkGeneration(ctx, cfg),
		checkRenderer(cfg.ArticleRenderer),
	}
}

func checkCredentials(cfg *config.Config) Check {
	if _, err := config.LoadCredentials(cfg); err != nil {
		return Check{ui.MarkFail, "X.com cookies", err.Error()}
	}
	return Check{ui.MarkOK, "X.com cookies", "auth_token and ct0 present"}
}

func checkInbox(dir string) Check {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Check{ui.MarkFail, "Inbox", err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Check{ui.MarkFail, "Inbox", "not writable: " + err.Error()}
	}
	f.Close()
	os.Remove(f.Name())
	return Check{ui.MarkOK, "Inbox", dir}
}

func checkState(dsn string) Check {
	backend, err := state.BuildBackend(dsn)
	if err != nil {
		return Check{ui.MarkFail, "State", err.Error()}
	}
	if c, ok := backend.(io.Closer); ok {
		defer c.Close()
	}

	snap, err := backend.Load()
	if err != nil {
		// sync fails open on this and starts empty
		return Check{ui.MarkWarn, "State", "unreadable, next sync starts empty: " + err.Error()}
	}
	if snap == nil {
		return Check{ui.MarkOK, "State", "empty (" + dsn + ")"}
	}
	return Check{ui.MarkOK, "State", fmt.Sprintf("%d processed, %d notes, last run %s", len(snap.ProcessedIDs), snap.TotalNotes, orNever(snap.LastRun))}
}

func checkGeneration(ctx context.Context, cfg *config.Config) Check {
	label := "Generation service"
	client, err := newGenerationClient(cfg, enrich.WithTimeout(doctorTimeout))
	if err != nil {
		return Check{ui.MarkFail, label, err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	models, err := client.Models(ctx)
	if err != nil {
		return Check{ui.MarkFail, label, fmt.Sprintf("%s unreachable: %v", cfg.GenerationURL, err)}
	}
	if !enrich.HasModel(models, cfg.GenerationModel) {
		return Check{ui.MarkWarn, label, fmt.Sprintf("model %q not listed by %s", cfg.GenerationModel, cfg.GenerationURL)}
	}
	return Check{ui.MarkOK, label, fmt.Sprintf("%s (%s)", cfg.GenerationModel, client.Format())}
}

func checkRenderer(mode string) Check {
	label := "Article renderer"
	if mode == config.RendererOff {
		return Check{ui.MarkOK, label, "disabled"}
	}
	path := xcom.FindChrome()
	switch {
	case path != "":
		return Check{ui.MarkOK, label, path}
	case mode == config.RendererChrome:
		return Check{ui.MarkFail, label, "Chrome not found"}
	default:
		return Check{ui.MarkWarn, label, "Chrome not found; X articles stay as links"}
	}
}

func orNever(s string) string {
	if s == "" {
		return "never"
	}
	return s
}
