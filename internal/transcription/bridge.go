package transcription

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-minutes/internal/core"
)

// State is the lifecycle position of a bridge.
type State int

const (
	StateIdle State = iota
	StateStreamOpening
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreamOpening:
		return "stream_opening"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sink receives recognized utterances.
type Sink interface {
	RecordUtterance(room, speaker, text string, at time.Time)
}

// Bridge relays one connection's audio to a recognition stream and its results to
// the sink. All state changes happen under mu, so once Close has run no result is
// recorded and no ready signal is sent.
type Bridge struct {
	spec   core.BridgeSpec
	engine Engine
	opts   Options
	sink   Sink
	now    func() time.Time
	log    zerolog.Logger

	mu     sync.Mutex
	state  State
	stream Stream
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

func newBridge(spec core.BridgeSpec, engine Engine, opts Options, sink Sink, now func() time.Time, logger *zerolog.Logger) *Bridge {
	return &Bridge{
		spec:   spec,
		engine: engine,
		opts:   opts,
		sink:   sink,
		now:    now,
		log:    logger.With().Str("conn_id", spec.ConnID).Str("room", spec.Room).Logger(),
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

// State returns the current state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Done is closed when the bridge goroutine has exited.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

func (b *Bridge) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)

	b.mu.Lock()
	b.cancel = cancel
	b.state = StateStreamOpening
	b.mu.Unlock()

	go b.run(ctx, cancel)
}

func (b *Bridge) run(ctx context.Context, cancel context.CancelFunc) {
	defer close(b.done)
	defer cancel()

	stream, err := b.engine.Start(ctx, b.opts)
	if err != nil {
		b.log.Warn().Err(err).Msg("transcription session failed to start")
		b.mu.Lock()
		b.state = StateClosed
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	if b.state == StateClosed {
		b.mu.Unlock()
		_ = stream.Close()
		return
	}
	b.stream = stream
	b.mu.Unlock()

	events := stream.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				b.markClosed(nil)
				return
			}
			b.handle(ev)
		case <-ctx.Done():
			if b.State() != StateClosed {
				_ = stream.Close()
				b.markClosed(nil)
			}
			return
		}
	}
}

func (b *Bridge) handle(ev StreamEvent) {
	switch ev.Kind {
	case StreamReady:
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.state != StateStreamOpening {
			return
		}
		b.state = StateStreaming
		b.log.Debug().Msg("transcription stream ready")
		if b.spec.Ready != nil {
			b.spec.Ready()
		}
	case StreamResult:
		text := ExtractTranscript(ev.Payload)
		if text == "" {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.state == StateClosed {
			return
		}
		b.sink.RecordUtterance(b.spec.Room, b.spec.Speaker, text, b.now())
	case StreamClosed:
		b.markClosed(ev.Err)
	}
}

func (b *Bridge) markClosed(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return
	}
	b.state = StateClosed
	if err != nil {
		b.log.Warn().Err(err).Msg("transcription stream closed")
		return
	}
	b.log.Debug().Msg("transcription stream closed")
}

// Forward hands a chunk to the stream only while streaming over an open transport.
// Everything else is dropped.
func (b *Bridge) Forward(chunk []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateStreaming || b.stream == nil || !b.stream.Open() {
		return false
	}
	if err := b.stream.Send(chunk); err != nil {
		b.log.Debug().Err(err).Msg("audio chunk dropped")
		return false
	}
	return true
}

// Close finishes the stream if it is open and closes it otherwise. Safe to call
// more than once.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		prev := b.state
		b.state = StateClosed
		stream := b.stream
		cancel := b.cancel
		b.mu.Unlock()

		switch {
		case stream != nil && stream.Open():
			if err := stream.Finish(); err != nil {
				b.log.Debug().Err(err).Msg("finish transcription stream")
			}
		case stream != nil:
			_ = stream.Close()
			if cancel != nil {
				cancel()
			}
		case cancel != nil:
			cancel()
		}
		b.log.Debug().Str("state", prev.String()).Msg("bridge closed")
	})
}

// Manager opens bridges for joined connections.
type Manager struct {
	engine Engine
	opts   Options
	sink   Sink
	now    func() time.Time
	log    *zerolog.Logger
}

// NewManager builds a bridge manager.
func NewManager(engine Engine, opts Options, sink Sink, logger *zerolog.Logger) *Manager {
	return &Manager{
		engine: engine,
		opts:   opts,
		sink:   sink,
		now:    time.Now,
		log:    logger,
	}
}

// OpenBridge starts a bridge for spec. The session opens in the background.
func (m *Manager) OpenBridge(ctx context.Context, spec core.BridgeSpec) core.AudioBridge {
	b := newBridge(spec, m.engine, m.opts, m.sink, m.now, m.log)
	b.start(ctx)
	return b
}
