// Package state tracks which bookmarks have already become notes.
//
// The processed-ID list is the only dedup source: an ID present here never
// produces a second note, and existing notes are never scanned. The list is
// bounded to the most recent MaxProcessedIDs entries.
package state

import (
	"slices"
	"time"

	"github.com/mcao2/x-seed-notes/internal/logger"
)

// MaxProcessedIDs bounds the dedup history; older IDs are evicted first
const MaxProcessedIDs = 2000

// LastRunLayout is the local-time format used for Snapshot.LastRun
const LastRunLayout = "2006-01-02T15:04:05"

// Snapshot is the persisted sync state
type Snapshot struct {
	ProcessedIDs []string `json:"processed_ids"`
	LastRun      string   `json:"last_run,omitempty"`
	TotalNotes   int      `json:"total_notes"`
}

func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		ProcessedIDs: slices.Clone(s.ProcessedIDs),
		LastRun:      s.LastRun,
		TotalNotes:   s.TotalNotes,
	}
}

// Backend persists whole snapshots
type Backend interface {
	// Load returns the stored snapshot, or nil when nothing has been stored yet
	Load() (*Snapshot, error)
	// Save replaces the stored snapshot
	Save(*Snapshot) error
}

// Store is the in-memory view of the sync state, written through to its
// backend on every mutation
type Store struct {
	backend Backend
	data    *Snapshot
	index   map[string]struct{}
	now     func() time.Time
	log     *logger.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides time.Now (tests)
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger used for load warnings
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Open loads state from the backend once. A missing or unreadable snapshot
// yields empty state; the worst case is re-processing items already seen.
func Open(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		log:     logger.Named("state"),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := backend.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("state unreadable; starting from empty state")
		snap = nil
	}
	if snap == nil {
		snap = &Snapshot{}
	}
	if snap.ProcessedIDs == nil {
		snap.ProcessedIDs = []string{}
	}
	if snap.TotalNotes < 0 {
		snap.TotalNotes = 0
	}
	if len(snap.ProcessedIDs) > MaxProcessedIDs {
		snap.ProcessedIDs = snap.ProcessedIDs[len(snap.ProcessedIDs)-MaxProcessedIDs:]
	}

	s.data = snap
	s.reindex()
	return s
}

func (s *Store) reindex() {
	s.index = make(map[string]struct{}, len(s.data.ProcessedIDs))
	for _, id := range s.data.ProcessedIDs {
		s.index[id] = struct{}{}
	}
}

// IsProcessed reports whether id already produced a note
func (s *Store) IsProcessed(id string) bool {
	_, ok := s.index[id]
	return ok
}

// MarkProcessed records id, evicting the oldest entries past MaxProcessedIDs,
// bumps the note counter and persists. Marking a known id changes nothing.
func (s *Store) MarkProcessed(id string) error {
	if s.IsProcessed(id) {
		return nil
	}

	ids := append(s.data.ProcessedIDs, id)
	if len(ids) > MaxProcessedIDs {
		evicted := ids[:len(ids)-MaxProcessedIDs]
		for _, old := range evicted {
			delete(s.index, old)
		}
		ids = slices.Clone(ids[len(ids)-MaxProcessedIDs:])
	}
	s.data.ProcessedIDs = ids
	s.index[id] = struct{}{}
	s.data.TotalNotes++

	return s.save()
}

// UpdateLastRun stamps the current time and persists
func (s *Store) UpdateLastRun() error {
	s.data.LastRun = s.now().Format(LastRunLayout)
	return s.save()
}

// TotalNotes is the number of notes ever created
func (s *Store) TotalNotes() int { return s.data.TotalNotes }

// LastRun is the last completed run timestamp, empty before the first run
func (s *Store) LastRun() string { return s.data.LastRun }

// Len is the number of IDs currently remembered
func (s *Store) Len() int { return len(s.data.ProcessedIDs) }

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() *Snapshot { return s.data.clone() }

func (s *Store) save() error {
	return s.backend.Save(s.data.clone())
}
