// Package syncer runs one incremental bookmark sync: fetch a batch, skip
// what was already processed, then enrich, write and mark each new post in
// order.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcao2/x-seed-notes/internal/enrich"
	"github.com/mcao2/x-seed-notes/internal/logger"
	"github.com/mcao2/x-seed-notes/internal/xcom"
)

// Fetcher returns up to count posts, newest first
type Fetcher interface {
	FetchBookmarks(ctx context.Context, count int) ([]xcom.Post, error)
}

// Enricher never fails; it degrades to a fallback result
type Enricher interface {
	Enrich(ctx context.Context, text, authorHandle string) enrich.Result
}

// NoteWriter persists one note and returns its path
type NoteWriter interface {
	Write(post xcom.Post, result enrich.Result) (string, error)
}

// StateStore is the dedup ledger
type StateStore interface {
	IsProcessed(id string) bool
	MarkProcessed(id string) error
	UpdateLastRun() error
	TotalNotes() int
}

// EventKind identifies a progress event
type EventKind int

const (
	// EventFetched is sent once with Total set to the number of new posts
	EventFetched EventKind = iota
	// EventSkipped is sent for each already-processed post
	EventSkipped
	// EventEnriching is sent before the generation call for a post
	EventEnriching
	// EventWritten is sent after a note was written
	EventWritten
	// EventFailed is sent when writing a note failed
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventFetched:
		return "fetched"
	case EventSkipped:
		return "skipped"
	case EventEnriching:
		return "enriching"
	case EventWritten:
		return "written"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event reports pipeline progress. Index is 1-based among new posts.
type Event struct {
	Kind     EventKind
	Index    int
	Total    int
	Post     xcom.Post
	Path     string
	Fallback bool
	Err      error
}

// Report summarises a finished run
type Report struct {
	RunID      string
	Fetched    int
	Skipped    int
	Created    int
	Failed     int
	TotalNotes int
	Paths      []string
	Duration   time.Duration
}

// Runner wires the pipeline stages together
type Runner struct {
	fetcher   Fetcher
	enricher  Enricher
	writer    NoteWriter
	state     StateStore
	batchSize int
	progress  func(Event)
	log       *logger.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithProgress registers a callback invoked synchronously for every event
func WithProgress(fn func(Event)) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithLogger sets the runner logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// NewRunner builds a runner. batchSize is the number of bookmarks requested.
func NewRunner(f Fetcher, e Enricher, w NoteWriter, s StateStore, batchSize int, opts ...Option) *Runner {
	r := &Runner{
		fetcher:   f,
		enricher:  e,
		writer:    w,
		state:     s,
		batchSize: batchSize,
		progress:  func(Event) {},
		log:       logger.Named("syncer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one sync. Only a fetch failure or cancellation is returned as
// an error; per-post write failures are logged and counted in the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	log := r.log.With().Str("run_id", report.RunID).Logger()

	log.Info().Int("batch_size", r.batchSize).Msg("fetching bookmarks")
	posts, err := r.fetcher.FetchBookmarks(ctx, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch bookmarks: %w", err)
	}
	report.Fetched = len(posts)

	fresh := make([]xcom.Post, 0, len(posts))
	for _, p := range posts {
		if r.state.IsProcessed(p.ID) {
			report.Skipped++
			r.progress(Event{Kind: EventSkipped, Post: p})
			continue
		}
		fresh = append(fresh, p)
	}
	log.Info().Int("fetched", report.Fetched).Int("new", len(fresh)).Msg("bookmarks filtered")
	r.progress(Event{Kind: EventFetched, Total: len(fresh)})

	for i, p := range fresh {
		if err := ctx.Err(); err != nil {
			return r.finish(log, report, start), fmt.Errorf("sync interrupted: %w", err)
		}

		idx := i + 1
		plog := log.With().Str("post_id", p.ID).Str("author", p.AuthorHandle).Logger()

		r.progress(Event{Kind: EventEnriching, Index: idx, Total: len(fresh), Post: p})
		result := r.enricher.Enrich(ctx, p.Text, p.AuthorHandle)
		if err := ctx.Err(); err != nil {
			// a cancelled generation degrades to a fallback; don't commit it
			plog.Info().Msg("sync interrupted before writing; post left for next run")
			return r.finish(log, report, start), fmt.Errorf("sync interrupted: %w", err)
		}

		path, err := r.writer.Write(p, result)
		if err != nil {
			report.Failed++
			plog.Error().Err(err).Msg("note write failed; will retry next run")
			r.progress(Event{Kind: EventFailed, Index: idx, Total: len(fresh), Post: p, Err: err})
			continue
		}

		if err := r.state.MarkProcessed(p.ID); err != nil {
			plog.Warn().Err(err).Msg("note written but state not persisted")
		}
		report.Created++
		report.Paths = append(report.Paths, path)
		plog.Info().Str("path", path).Bool("fallback", result.Fallback).Msg("note created")
		r.progress(Event{Kind: EventWritten, Index: idx, Total: len(fresh), Post: p, Path: path, Fallback: result.Fallback})
	}

	return r.finish(log, report, start), nil
}

func (r *Runner) finish(log logger.Logger, report *Report, start time.Time) *Report {
	if err := r.state.UpdateLastRun(); err != nil {
		log.Warn().Err(err).Msg("failed to persist last run")
	}
	report.TotalNotes = r.state.TotalNotes()
	report.Duration = time.Since(start)

	log.Info().
		Int("created", report.Created).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("total_notes", report.TotalNotes).
		Dur("duration", report.Duration).
		Msg("sync finished")
	return report
}
