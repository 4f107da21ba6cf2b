package transcription

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-minutes/internal/config"
)

const (
	closeStreamMessage = `{"type":"CloseStream"}`
	defaultFinishGrace = 5 * time.Second
	defaultOpenTimeout = 10 * time.Second
	audioQueueLen      = 64
	resultReadLimit    = 1 << 20
)

// ErrNoAPIKey is returned by Start when the engine has no credential.
var ErrNoAPIKey = errors.New("deepgram api key is empty")

// DeepgramEngine opens live transcription sessions over Deepgram's streaming WebSocket API.
type DeepgramEngine struct {
	apiKey      string
	endpoint    string
	openTimeout time.Duration
	finishGrace time.Duration
	log         *zerolog.Logger
}

// NewDeepgramEngine builds an engine from configuration.
func NewDeepgramEngine(cfg config.DeepgramConfig, logger *zerolog.Logger) *DeepgramEngine {
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = defaultOpenTimeout
	}
	return &DeepgramEngine{
		apiKey:      cfg.APIKey,
		endpoint:    cfg.URL,
		openTimeout: timeout,
		finishGrace: defaultFinishGrace,
		log:         logger,
	}
}

// ListenURL renders the session URL for opts.
func (e *DeepgramEngine) ListenURL(opts Options) (string, error) {
	u, err := url.Parse(e.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse deepgram url: %w", err)
	}
	q := u.Query()
	q.Set("punctuate", strconv.FormatBool(opts.Punctuate))
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if opts.Encoding != "" {
		q.Set("encoding", opts.Encoding)
		if opts.SampleRate > 0 {
			q.Set("sample_rate", strconv.Itoa(opts.SampleRate))
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start dials the session in the background and returns immediately.
func (e *DeepgramEngine) Start(ctx context.Context, opts Options) (Stream, error) {
	if e.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	target, err := e.ListenURL(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &deepgramStream{
		events: make(chan StreamEvent, 16),
		audio:  make(chan []byte, audioQueueLen),
		finish: make(chan struct{}),
		cancel: cancel,
		log:    e.log,
	}
	go s.run(ctx, e, target)
	return s, nil
}

type deepgramStream struct {
	events chan StreamEvent
	audio  chan []byte
	finish chan struct{}
	cancel context.CancelFunc
	log    *zerolog.Logger

	open       atomic.Bool
	finishOnce sync.Once
}

func (s *deepgramStream) Events() <-chan StreamEvent { return s.events }

func (s *deepgramStream) Open() bool { return s.open.Load() }

func (s *deepgramStream) Send(chunk []byte) error {
	select {
	case <-s.finish:
		return ErrClosed
	default:
	}
	if !s.open.Load() {
		return ErrNotOpen
	}
	select {
	case s.audio <- chunk:
		return nil
	default:
		return ErrBackpressure
	}
}

func (s *deepgramStream) Finish() error {
	if !s.open.Load() {
		return ErrNotOpen
	}
	s.finishOnce.Do(func() { close(s.finish) })
	return nil
}

func (s *deepgramStream) Close() error {
	s.open.Store(false)
	s.cancel()
	return nil
}

func (s *deepgramStream) emit(ctx context.Context, ev StreamEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *deepgramStream) run(ctx context.Context, e *DeepgramEngine, target string) {
	defer close(s.events)
	defer s.cancel()

	dialCtx, cancelDial := context.WithTimeout(ctx, e.openTimeout)
	conn, _, err := websocket.Dial(dialCtx, target, &websocket.DialOptions{
		HTTPHeader: stdhttp.Header{"Authorization": []string{"Token " + e.apiKey}},
	})
	cancelDial()
	if err != nil {
		s.emit(ctx, StreamEvent{Kind: StreamClosed, Err: fmt.Errorf("dial deepgram: %w", err)})
		return
	}
	conn.SetReadLimit(resultReadLimit)

	s.open.Store(true)
	s.emit(ctx, StreamEvent{Kind: StreamReady})

	readErr := make(chan error, 1)
	go func() {
		readErr <- s.readLoop(ctx, conn)
	}()

	err = s.writeLoop(ctx, conn, readErr, e.finishGrace)
	s.open.Store(false)
	if err != nil && !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		s.emitLast(StreamEvent{Kind: StreamClosed, Err: err})
		return
	}
	s.emitLast(StreamEvent{Kind: StreamClosed})
}

// emitLast never blocks: the reader may already be gone.
func (s *deepgramStream) emitLast(ev StreamEvent) {
	select {
	case s.events <- ev:
	default:
	}
}

func (s *deepgramStream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		s.emit(ctx, StreamEvent{Kind: StreamResult, Payload: data})
	}
}

func (s *deepgramStream) writeLoop(ctx context.Context, conn *websocket.Conn, readErr <-chan error, grace time.Duration) error {
	for {
		select {
		case chunk := <-s.audio:
			if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				conn.Close(websocket.StatusInternalError, "write failed")
				return err
			}
		case <-s.finish:
			s.open.Store(false)
			if err := conn.Write(ctx, websocket.MessageText, []byte(closeStreamMessage)); err != nil {
				conn.Close(websocket.StatusInternalError, "finish failed")
				return err
			}
			// Final results arrive before the engine closes the socket.
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case <-readErr:
			case <-timer.C:
				s.log.Debug().Msg("deepgram finish grace elapsed")
			case <-ctx.Done():
			}
			conn.Close(websocket.StatusNormalClosure, "finished")
			return nil
		case err := <-readErr:
			conn.Close(websocket.StatusNormalClosure, "")
			return err
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "closing")
			return ctx.Err()
		}
	}
}
