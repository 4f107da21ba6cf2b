// Package transcription bridges connection audio to a streaming speech-to-text engine
// and feeds recognized text back into the room transcript.
package transcription

import (
	"context"
	"errors"
)

var (
	// ErrNotOpen is returned when audio or a finish request reaches a stream that is not open.
	ErrNotOpen = errors.New("transcription stream not open")
	// ErrBackpressure is returned when the stream cannot take more audio right now.
	ErrBackpressure = errors.New("transcription stream backpressure")
	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("transcription stream closed")
)

// Options are the fixed recognition parameters of a session.
type Options struct {
	Language       string
	Punctuate      bool
	InterimResults bool
	// Encoding and SampleRate are only sent when Encoding is set; containerized
	// audio is detected by the engine.
	Encoding   string
	SampleRate int
}

// StreamEventKind identifies what a stream reports.
type StreamEventKind int

const (
	// StreamReady fires once when the session accepts audio.
	StreamReady StreamEventKind = iota
	// StreamResult carries one raw recognition payload.
	StreamResult
	// StreamClosed is the last event of a stream.
	StreamClosed
)

func (k StreamEventKind) String() string {
	switch k {
	case StreamReady:
		return "ready"
	case StreamResult:
		return "result"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StreamEvent is pushed by a stream onto its events channel.
type StreamEvent struct {
	Kind    StreamEventKind
	Payload []byte
	Err     error
}

// Stream is one streaming recognition session. Events is closed after the
// StreamClosed event.
type Stream interface {
	Events() <-chan StreamEvent
	// Open reports whether the transport currently accepts audio.
	Open() bool
	// Send queues audio without blocking.
	Send(chunk []byte) error
	// Finish asks the engine to flush and end the session.
	Finish() error
	// Close tears the session down immediately.
	Close() error
}

// Engine opens recognition sessions. Start must not block on the network; readiness
// is reported through the stream's events.
type Engine interface {
	Start(ctx context.Context, opts Options) (Stream, error)
}
