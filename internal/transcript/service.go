// Package transcript maintains each room's transcript: the append-only line log used
// to build departure slices and a structured accumulator keyed by time bucket.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-minutes/internal/store"
)

// ErrNotFound is returned when a room has no transcript.
var ErrNotFound = store.ErrNotFound

// Service is the Transcript Store. Append failures are logged and swallowed by the
// Record* helpers so session handling never aborts on storage trouble.
type Service struct {
	log    store.TranscriptLog
	clock  Clock
	retain bool
	logger *zerolog.Logger

	mu   sync.Mutex
	accs map[string]*Accumulator
}

// NewService builds the transcript service.
// When retainOnEmpty is false, Release drops a room's transcript once the room empties.
func NewService(log store.TranscriptLog, clock Clock, retainOnEmpty bool, logger *zerolog.Logger) *Service {
	return &Service{
		log:    log,
		clock:  clock,
		retain: retainOnEmpty,
		logger: logger,
		accs:   make(map[string]*Accumulator),
	}
}

// Stamp formats t with the service clock.
func (s *Service) Stamp(t time.Time) string {
	return s.clock.Stamp(t)
}

// Marker returns the join line that opens a participant's share of the log.
func (s *Service) Marker(name string, joinedAt time.Time) string {
	return JoinLine(s.Stamp(joinedAt), name)
}

// Append writes one line to the room's log.
func (s *Service) Append(ctx context.Context, room, line string) error {
	if err := s.log.Append(ctx, room, line); err != nil {
		return fmt.Errorf("append to room %q: %w", room, err)
	}
	return nil
}

// RecordJoin appends the arrival line of name.
func (s *Service) RecordJoin(room, name string, at time.Time) {
	line := s.Marker(name, at)
	if err := s.Append(context.Background(), room, line); err != nil {
		s.logger.Warn().Err(err).Str("room", room).Msg("failed to record join")
	}
}

// RecordUtterance appends a recognized utterance and accumulates it.
// Empty text is never recorded.
func (s *Service) RecordUtterance(room, speaker, text string, at time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	stamp := s.Stamp(at)
	if err := s.Append(context.Background(), room, UtteranceLine(stamp, speaker, text)); err != nil {
		s.logger.Warn().Err(err).Str("room", room).Str("speaker", speaker).Msg("failed to record utterance")
	}
	s.accumulator(room).Add(stamp, speaker, text)
}

// ReadSlice returns the room's log from the first line equal to marker onwards,
// or the whole log when the marker is missing.
func (s *Service) ReadSlice(ctx context.Context, room, marker string) (string, error) {
	lines, err := s.log.Lines(ctx, room)
	if err != nil {
		return "", err
	}
	return SliceFrom(lines, marker), nil
}

// Slice is ReadSlice with the marker built from a participant's name and join time.
func (s *Service) Slice(ctx context.Context, room, name string, joinedAt time.Time) (string, error) {
	return s.ReadSlice(ctx, room, s.Marker(name, joinedAt))
}

// Text returns the full log of a room.
func (s *Service) Text(ctx context.Context, room string) (string, error) {
	lines, err := s.log.Lines(ctx, room)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// Buckets returns the accumulated utterances of a room, or nil when none exist.
func (s *Service) Buckets(room string) []Bucket {
	s.mu.Lock()
	acc, ok := s.accs[room]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return acc.Snapshot()
}

// Release applies the retention policy to a room that just became empty.
// It is called while the room index is locked, so no join can race the drop.
func (s *Service) Release(room string) {
	if s.retain {
		s.logger.Debug().Str("room", room).Msg("room empty, transcript retained")
		return
	}

	s.mu.Lock()
	delete(s.accs, room)
	s.mu.Unlock()

	if err := s.log.Drop(context.Background(), room); err != nil {
		s.logger.Warn().Err(err).Str("room", room).Msg("failed to drop transcript")
		return
	}
	s.logger.Info().Str("room", room).Msg("room empty, transcript dropped")
}

func (s *Service) accumulator(room string) *Accumulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accs[room]
	if !ok {
		acc = NewAccumulator()
		s.accs[room] = acc
	}
	return acc
}

// IsNotFound reports whether err means the room has no transcript.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
