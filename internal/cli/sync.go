package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mcao2/x-seed-notes/internal/config"
	"github.com/mcao2/x-seed-notes/internal/enrich"
	"github.com/mcao2/x-seed-notes/internal/logger"
	"github.com/mcao2/x-seed-notes/internal/note"
	"github.com/mcao2/x-seed-notes/internal/state"
	"github.com/mcao2/x-seed-notes/internal/syncer"
	"github.com/mcao2/x-seed-notes/internal/ui"
	"github.com/mcao2/x-seed-notes/internal/xcom"
)

// SyncOptions holds the sync flags
type SyncOptions struct {
	TUI       bool
	BatchSize int
	Insecure  bool
}

func addSyncFlags(cmd *cobra.Command, opts *SyncOptions) {
	cmd.Flags().BoolVar(&opts.TUI, "tui", false, "show a full-screen progress view")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "number of bookmarks to fetch (overrides fetch_batch_size)")
	cmd.Flags().BoolVar(&opts.Insecure, "insecure", false, "skip TLS certificate verification (sets verify_certificates=false)")
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Turn new bookmarks into notes (default command)",
		Long: `Fetch the newest bookmarks, skip the ones already synced, and write one
enriched note per new bookmark. Safe to run repeatedly, e.g. from cron.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, opts)
		},
	}
	addSyncFlags(cmd, opts)

	return cmd
}

// pipeline holds the wired sync stages
type pipeline struct {
	cfg    *config.Config
	store  *state.Store
	client *xcom.Client
	engine *enrich.Engine
	writer *note.Writer
	close  func()
}

func (p *pipeline) run(ctx context.Context, progress func(syncer.Event)) (*syncer.Report, error) {
	r := syncer.NewRunner(p.client, p.engine, p.writer, p.store, p.cfg.FetchBatchSize,
		syncer.WithProgress(progress),
		syncer.WithLogger(logger.Named("syncer")),
	)
	return r.Run(ctx)
}

func runSync(cmd *cobra.Command, rootOpts *RootOptions, opts *SyncOptions) error {
	cfg, err := loadConfig(cmd, rootOpts)
	if err != nil {
		return err
	}
	if opts.BatchSize > 0 {
		cfg.FetchBatchSize = opts.BatchSize
	}
	if opts.Insecure {
		cfg.VerifyCertificates = false
	}
	if err := cfg.Validate(); err != nil {
		return usage(fmt.Errorf("invalid options: %w", err))
	}

	p, err := buildPipeline(cfg, rootOpts)
	if err != nil {
		return err
	}
	defer p.close()

	var report *syncer.Report
	if opts.TUI {
		report, err = ui.RunSync(cmd.Context(), p.run)
	} else {
		report, err = p.run(cmd.Context(), func(syncer.Event) {})
	}
	printReport(cmd.OutOrStdout(), report, p.writer.Dir())

	if err != nil {
		var fe *xcom.FetchError
		if errors.As(err, &fe) {
			return fatal(err, fe.Hint())
		}
		return fatal(err, "")
	}
	return nil
}

func buildPipeline(cfg *config.Config, rootOpts *RootOptions) (*pipeline, error) {
	creds, err := config.LoadCredentials(cfg)
	if err != nil {
		return nil, fatal(err, config.CredentialsHint)
	}

	backend, err := state.BuildBackend(cfg.StateLocation())
	if err != nil {
		return nil, usage(err)
	}
	closeFn := func() {}
	if c, ok := backend.(io.Closer); ok {
		closeFn = func() {
			if err := c.Close(); err != nil {
				logger.Named("state").Warn().Err(err).Msg("failed to close state backend")
			}
		}
	}
	store := state.Open(backend, state.WithLogger(logger.Named("state")))

	insecure := !cfg.VerifyCertificates
	renderer, err := xcom.NewRenderer(cfg.ArticleRenderer, insecure)
	if err != nil {
		closeFn()
		return nil, usage(err)
	}

	clientOpts := []xcom.ClientOption{
		xcom.WithQueryID(cfg.BookmarksQueryID),
		xcom.WithInsecureSkipVerify(insecure),
		xcom.WithRenderer(renderer),
		xcom.WithLogger(logger.Named("xcom")),
	}
	client, err := xcom.NewClient(
		xcom.Credentials{AuthToken: creds.AuthToken, CSRFToken: creds.CT0},
		append(clientOpts, rootOpts.xcomOptions...)...,
	)
	if err != nil {
		closeFn()
		return nil, fatal(err, config.CredentialsHint)
	}

	gen, err := newGenerationClient(cfg)
	if err != nil {
		closeFn()
		return nil, usage(err)
	}

	return &pipeline{
		cfg:    cfg,
		store:  store,
		client: client,
		engine: enrich.NewEngine(gen, enrich.WithEngineLogger(logger.Named("enrich"))),
		writer: note.NewWriter(cfg.InboxDir(), note.WithLogger(logger.Named("note"))),
		close:  closeFn,
	}, nil
}

func newGenerationClient(cfg *config.Config, extra ...enrich.Option) (*enrich.Client, error) {
	opts := []enrich.Option{
		enrich.WithFormat(cfg.GenerationFormat),
		enrich.WithAPIKey(cfg.GenerationAPIKey),
		enrich.WithTimeout(cfg.GenerationTimeout),
	}
	return enrich.NewClient(cfg.GenerationURL, cfg.GenerationModel, append(opts, extra...)...)
}

func printReport(w io.Writer, report *syncer.Report, inbox string) {
	if report == nil {
		return
	}
	styles := ui.DefaultStyles()
	fmt.Fprintln(w, ui.FormatReport(styles, report, nil))
	if report.Created > 0 {
		fmt.Fprintln(w, styles.Muted.Render("Notes written to "+inbox))
	}
}
