package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultPrefix starts every suggested file name.
const DefaultPrefix = "VicVoix"

// SuggestName returns "<prefix>_<unix millis>.mp3".
func SuggestName(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s_%d.mp3", prefix, now.UnixMilli())
}

// ResolvePath joins a relative name onto dir and expands a leading "~/".
func ResolvePath(dir, name string) string {
	name = expandHome(strings.TrimSpace(name))
	if filepath.IsAbs(name) || dir == "" {
		return filepath.Clean(name)
	}
	return filepath.Join(expandHome(dir), name)
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// FileSink writes to a temporary file next to path and renames it into
// place on Close, so a failed export never leaves a truncated file behind.
// The temporary file is created on the first write.
type FileSink struct {
	path string

	mu     sync.Mutex
	tmp    *os.File
	closed bool
}

// NewFileSink returns a sink for path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Name returns the final path.
func (s *FileSink) Name() string { return s.path }

func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, os.ErrClosed
	}
	if err := s.openLocked(); err != nil {
		return 0, err
	}
	return s.tmp.Write(p)
}

// Close flushes the temp file and renames it to the final path.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return os.ErrClosed
	}
	if err := s.openLocked(); err != nil {
		return err
	}
	s.closed = true

	tmpName := s.tmp.Name()
	if err := s.tmp.Sync(); err != nil {
		s.tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := s.tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Abort discards anything written so far.
func (s *FileSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.tmp == nil {
		return nil
	}
	name := s.tmp.Name()
	s.tmp.Close()
	return os.Remove(name)
}

func (s *FileSink) openLocked() error {
	if s.tmp != nil {
		return nil
	}
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.part")
	if err != nil {
		return err
	}
	s.tmp = f
	return nil
}
