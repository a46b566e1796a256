// Package snapshot saves JPEG frames to disk as timestamped pictures.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// NameLayout is the time layout of a picture's file name, without the
// extension.
const NameLayout = "Picture_2006-01-02_15-04-05"

// ErrDisabled is returned by Save when no directory is configured.
var ErrDisabled = errors.New("snapshot: no picture directory configured")

// Store writes pictures into one directory.
type Store struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// New returns a store writing into dir. An empty dir disables saving.
func New(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the picture directory.
func (s *Store) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Enabled reports whether Save can write anything.
func (s *Store) Enabled() bool {
	return s.Dir() != ""
}

// Save writes jpeg as Picture_<local time>.jpg and returns its path.
// Pictures taken within the same second get a _1, _2, ... suffix; an
// existing file is never overwritten.
func (s *Store) Save(jpeg []byte) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create dir: %w", err)
	}

	base := s.now().Format(NameLayout)
	for i := 0; ; i++ {
		name := base + ".jpg"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.jpg", base, i)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("snapshot: %w", err)
		}

		_, werr := f.Write(jpeg)
		if err := errors.Join(werr, f.Close()); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("snapshot: write %s: %w", name, err)
		}
		return path, nil
	}
}
