package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// JSONFileBackend stores the snapshot as one JSON document
type JSONFileBackend struct {
	path string
}

// NewJSONFileBackend returns a backend writing to path
func NewJSONFileBackend(path string) *JSONFileBackend {
	return &JSONFileBackend{path: path}
}

// Path returns the state file location
func (b *JSONFileBackend) Path() string { return b.path }

// Load reads the snapshot; a missing file is not an error
func (b *JSONFileBackend) Load() (*Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot atomically: temp file, fsync, rename
func (b *JSONFileBackend) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-tmp-*")
	if err != nil {
		return fmt.Errorf("state: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("state: write temp: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("state: chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("state: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("state: rename: %w", err)
	}
	success = true
	return nil
}

// MemoryBackend keeps a deep copy of the last saved snapshot
type MemoryBackend struct {
	mu       sync.Mutex
	snapshot *Snapshot
	saves    int
}

// NewMemoryBackend returns an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Load returns a copy of the stored snapshot
func (b *MemoryBackend) Load() (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return nil, nil
	}
	return b.snapshot.clone(), nil
}

// Save stores a copy of snap
func (b *MemoryBackend) Save(snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = snap.clone()
	b.saves++
	return nil
}

// Saves counts Save calls
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// BuildBackend picks a backend from a DSN: a plain path or file:// URL for
// JSON, sqlite:// for SQLite and memory:// for an in-process store
func BuildBackend(dsn string) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("state: empty location")
	}
	if !strings.Contains(dsn, "://") {
		return NewJSONFileBackend(dsn), nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("state: parse location: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "file":
		path, err := dsnPath(parsed)
		if err != nil {
			return nil, err
		}
		return NewJSONFileBackend(path), nil
	case "sqlite", "sqlite3":
		path, err := dsnPath(parsed)
		if err != nil {
			return nil, err
		}
		return NewSQLiteBackend(path), nil
	case "memory", "mem":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported state backend scheme: %s", parsed.Scheme)
	}
}

func dsnPath(u *url.URL) (string, error) {
	path := u.Host + u.Path
	if u.Opaque != "" {
		path = u.Opaque
	}
	if path == "" {
		return "", fmt.Errorf("state: location %q has no path", u.String())
	}
	return path, nil
}
