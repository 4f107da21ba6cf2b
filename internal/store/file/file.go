// Package file keeps one UTF-8 text file per room, one transcript line per file line.
package file

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/vovakirdan/wirechat-minutes/internal/store"
)

const filePrefix = "transcript-"

// FileStore implements store.TranscriptLog on top of an afero filesystem.
type FileStore struct {
	fs  afero.Fs
	dir string

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// New creates a file store rooted at dir, creating the directory if needed.
func New(fs afero.Fs, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &FileStore{
		fs:    fs,
		dir:   dir,
		locks: make(map[string]*sync.RWMutex),
	}, nil
}

// Path returns the log file of a room. The room id is escaped so it can never leave dir.
func (s *FileStore) Path(room string) string {
	return filepath.Join(s.dir, filePrefix+url.PathEscape(room)+".txt")
}

func (s *FileStore) lock(room string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[room]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[room] = l
	}
	return l
}

// Append adds one line to the room's log.
func (s *FileStore) Append(_ context.Context, room, line string) error {
	l := s.lock(room)
	l.Lock()
	defer l.Unlock()

	f, err := s.fs.OpenFile(s.Path(room), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append transcript: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close transcript: %w", err)
	}
	return nil
}

// Lines reads the whole log of a room.
func (s *FileStore) Lines(_ context.Context, room string) ([]string, error) {
	l := s.lock(room)
	l.RLock()
	defer l.RUnlock()

	data, err := afero.ReadFile(s.fs, s.Path(room))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return SplitLines(string(data)), nil
}

// Drop removes the room's log file.
func (s *FileStore) Drop(_ context.Context, room string) error {
	l := s.lock(room)
	l.Lock()
	defer l.Unlock()

	if err := s.fs.Remove(s.Path(room)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove transcript: %w", err)
	}
	return nil
}

// Close is a no-op; files are closed after every operation.
func (s *FileStore) Close() error {
	return nil
}

// SplitLines splits text on \n or \r\n and drops the empty element a trailing newline leaves.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

var _ store.TranscriptLog = (*FileStore)(nil)
