package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a room has no transcript log yet.
var ErrNotFound = errors.New("transcript log not found")

// TranscriptLog is the append-only, line-oriented transcript persistence of each room.
type TranscriptLog interface {
	// Append adds one line to the room's log, creating the log on first write.
	Append(ctx context.Context, room, line string) error

	// Lines returns every line of the room's log in append order.
	// Returns ErrNotFound if nothing was ever appended for the room.
	Lines(ctx context.Context, room string) ([]string, error)

	// Drop deletes the room's log. Dropping a missing log is not an error.
	Drop(ctx context.Context, room string) error

	// Close releases the underlying storage.
	Close() error
}
