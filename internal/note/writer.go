// Package note writes seed notes into the vault inbox.
package note

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mcao2/x-seed-notes/internal/enrich"
	"github.com/mcao2/x-seed-notes/internal/logger"
	"github.com/mcao2/x-seed-notes/internal/xcom"
)

// FilenameLayout is the minute-resolution filename prefix
const FilenameLayout = "200601021504"

// maxSuffix bounds the " (n)" collision suffixes tried per note
const maxSuffix = 100

// Writer creates one new file per note and never overwrites
type Writer struct {
	dir string
	now func() time.Time
	log *logger.Logger
}

// Option configures a Writer
type Option func(*Writer)

// WithClock overrides time.Now (tests)
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// WithLogger sets the writer logger
func WithLogger(l *logger.Logger) Option {
	return func(w *Writer) {
		w.log = l
	}
}

// NewWriter returns a writer targeting dir
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{
		dir: dir,
		now: time.Now,
		log: logger.Named("note"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the target directory
func (w *Writer) Dir() string { return w.dir }

// Write renders the note and stores it as "<YYYYMMDDHHmm> <title>.md". An
// existing file with that name gets a " (2)", " (3)", ... sibling instead.
func (w *Writer) Write(post xcom.Post, result enrich.Result) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create inbox: %w", err)
	}

	now := w.now()
	content := Render(post, result, now)
	base := now.Format(FilenameLayout) + " " + SanitizeTitle(result.Title, post.ID)

	tmpName, err := w.writeTemp(content)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmpName)

	for n := 1; n <= maxSuffix; n++ {
		name := base + ".md"
		if n > 1 {
			name = fmt.Sprintf("%s (%d).md", base, n)
		}
		path := filepath.Join(w.dir, name)

		err := place(tmpName, path, content)
		if err == nil {
			if n > 1 {
				w.log.Info().Str("path", path).Msg("note name taken; wrote with suffix")
			}
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("write note: %w", err)
		}
	}
	return "", fmt.Errorf("write note: %d files named %q already exist", maxSuffix, base)
}

// writeTemp stores content durably in a hidden temp file inside the inbox
func (w *Writer) writeTemp(content []byte) (string, error) {
	tmp, err := os.CreateTemp(w.dir, ".seed-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp note: %w", err)
	}
	name := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("write temp note: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("chmod temp note: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("fsync temp note: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close temp note: %w", err)
	}
	return name, nil
}

// place publishes the temp file at path without replacing anything. Hard
// links make the note appear complete or not at all; filesystems without
// them get an exclusive create instead.
func place(tmpName, path string, content []byte) error {
	err := os.Link(tmpName, path)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return err
	}

	f, cerr := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if cerr != nil {
		return cerr
	}
	if _, werr := f.Write(content); werr != nil {
		f.Close()
		os.Remove(path)
		return werr
	}
	if serr := f.Sync(); serr != nil {
		f.Close()
		os.Remove(path)
		return serr
	}
	return f.Close()
}
