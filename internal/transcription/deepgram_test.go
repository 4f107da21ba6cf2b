package transcription

import (
	"context"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-minutes/internal/config"
)

func nextEvent(t *testing.T, s Stream) StreamEvent {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatalf("no stream event")
		return StreamEvent{}
	}
}

func newTestEngine(rawURL, key string) *DeepgramEngine {
	logger := zerolog.New(io.Discard)
	return NewDeepgramEngine(config.DeepgramConfig{
		APIKey:      key,
		URL:         rawURL,
		OpenTimeout: time.Second,
	}, &logger)
}

func TestDeepgramListenURL(t *testing.T) {
	e := newTestEngine("wss://api.deepgram.com/v1/listen", "k")

	raw, err := e.ListenURL(Options{Language: "en-IN", Punctuate: true})
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "true", q.Get("punctuate"))
	require.Equal(t, "false", q.Get("interim_results"))
	require.Equal(t, "en-IN", q.Get("language"))
	require.False(t, q.Has("encoding"))
	require.False(t, q.Has("sample_rate"))

	raw, err = e.ListenURL(Options{Encoding: "opus", SampleRate: 16000})
	require.NoError(t, err)
	u, err = url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "opus", u.Query().Get("encoding"))
	require.Equal(t, "16000", u.Query().Get("sample_rate"))
}

func TestDeepgramStartRequiresKey(t *testing.T) {
	_, err := newTestEngine("wss://example.invalid/v1/listen", "").Start(context.Background(), Options{})
	require.ErrorIs(t, err, ErrNoAPIKey)
}

func TestDeepgramStreamRoundTrip(t *testing.T) {
	gotAuth := make(chan string, 1)
	gotQuery := make(chan url.Values, 1)
	gotAudio := make(chan []byte, 1)
	gotFinish := make(chan string, 1)

	srv := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		gotAuth <- r.Header.Get("Authorization")
		gotQuery <- r.URL.Query()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		typ, data, err := conn.Read(ctx)
		if err != nil || typ != websocket.MessageBinary {
			return
		}
		gotAudio <- data

		result := `{"is_final":true,"channel":{"alternatives":[{"transcript":"hello world"}]}}`
		if err := conn.Write(ctx, websocket.MessageText, []byte(result)); err != nil {
			return
		}

		_, data, err = conn.Read(ctx)
		if err != nil {
			return
		}
		gotFinish <- string(data)
		conn.Close(websocket.StatusNormalClosure, "done")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine := newTestEngine("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/listen", "secret")
	stream, err := engine.Start(ctx, Options{Language: "en-IN", Punctuate: true})
	require.NoError(t, err)

	require.Equal(t, StreamReady, nextEvent(t, stream).Kind)
	require.True(t, stream.Open())
	require.Equal(t, "Token secret", <-gotAuth)
	require.Equal(t, "en-IN", (<-gotQuery).Get("language"))

	require.NoError(t, stream.Send([]byte{0x1a, 0x45, 0xdf, 0xa3}))
	require.Equal(t, []byte{0x1a, 0x45, 0xdf, 0xa3}, <-gotAudio)

	ev := nextEvent(t, stream)
	require.Equal(t, StreamResult, ev.Kind)
	require.Equal(t, "hello world", ExtractTranscript(ev.Payload))

	require.NoError(t, stream.Finish())
	require.JSONEq(t, closeStreamMessage, <-gotFinish)

	ev = nextEvent(t, stream)
	require.Equal(t, StreamClosed, ev.Kind)
	require.NoError(t, ev.Err)
	require.False(t, stream.Open())
	require.ErrorIs(t, stream.Send([]byte{1}), ErrClosed)

	_, ok := <-stream.Events()
	require.False(t, ok)
}

func TestDeepgramDialFailureReportsClosed(t *testing.T) {
	srv := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusUnauthorized)
	}))
	defer srv.Close()

	engine := newTestEngine("ws"+strings.TrimPrefix(srv.URL, "http"), "bad")
	stream, err := engine.Start(context.Background(), Options{})
	require.NoError(t, err)

	ev := nextEvent(t, stream)
	require.Equal(t, StreamClosed, ev.Kind)
	require.Error(t, ev.Err)
	require.False(t, stream.Open())
	require.ErrorIs(t, stream.Finish(), ErrNotOpen)
}
