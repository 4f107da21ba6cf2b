package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-minutes/internal/config"
	"github.com/vovakirdan/wirechat-minutes/internal/core"
	"github.com/vovakirdan/wirechat-minutes/internal/proto"
)

// instantBridges opens bridges that are ready immediately and record audio.
type instantBridges struct {
	mu     sync.Mutex
	chunks map[string][][]byte
}

type instantBridge struct {
	owner *instantBridges
	id    string
}

func (b *instantBridge) Forward(chunk []byte) bool {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()
	b.owner.chunks[b.id] = append(b.owner.chunks[b.id], chunk)
	return true
}

func (b *instantBridge) Close() {}

func (f *instantBridges) OpenBridge(_ context.Context, spec core.BridgeSpec) core.AudioBridge {
	spec.Ready()
	return &instantBridge{owner: f, id: spec.ConnID}
}

func (f *instantBridges) received(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks[id])
}

type inboundEnvelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func startTestServer(t *testing.T, ws config.WSConfig) (*httptest.Server, *instantBridges) {
	t.Helper()

	bridges := &instantBridges{chunks: make(map[string][][]byte)}
	hub := core.NewHub(core.Options{DefaultRoom: "smartmom", Bridges: bridges})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	disabledLogger := zerolog.New(nil)
	cfg := config.Default()
	cfg.WS = ws

	server := NewServer(hub, newTestTranscripts(t), cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, bridges
}

func dial(ctx context.Context, t *testing.T, ts *httptest.Server) (*websocket.Conn, string) {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	welcome := waitFor(ctx, t, conn, proto.EventWelcome)
	var data proto.EventWelcomeData
	if err := json.Unmarshal(welcome.Data, &data); err != nil || data.ID == "" {
		t.Fatalf("bad welcome payload %s: %v", welcome.Data, err)
	}
	return conn, data.ID
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// waitFor reads until an event named event (or an error envelope when event is "error") arrives.
func waitFor(ctx context.Context, t *testing.T, conn *websocket.Conn, event string) inboundEnvelope {
	t.Helper()
	for {
		var env inboundEnvelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if event == proto.OutboundTypeError && env.Type == proto.OutboundTypeError {
			return env
		}
		if env.Type == proto.OutboundTypeEvent && env.Event == event {
			return env
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t, config.Default().WS)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketJoinSignalAndDisconnect(t *testing.T) {
	ts, _ := startTestServer(t, config.Default().WS)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA, idA := dial(ctx, t, ts)
	connB, idB := dial(ctx, t, ts)

	send(ctx, t, connA, proto.InboundTypeJoin, proto.JoinData{Room: "r1", User: proto.UserData{Name: "alice", Email: "alice@example.com"}})
	waitFor(ctx, t, connA, proto.EventReadyToStream)

	send(ctx, t, connB, proto.InboundTypeJoin, proto.JoinData{Room: "r1", User: proto.UserData{Name: "bob", Email: "bob@example.com"}})
	waitFor(ctx, t, connB, proto.EventReadyToStream)

	arrived := waitFor(ctx, t, connA, proto.EventMemberArrived)
	var arrivedData proto.EventMemberArrivedData
	if err := json.Unmarshal(arrived.Data, &arrivedData); err != nil {
		t.Fatalf("unmarshal member_arrived: %v", err)
	}
	if arrivedData.ID != idB || arrivedData.Name != "bob" || arrivedData.Room != "r1" {
		t.Fatalf("unexpected member_arrived: %+v", arrivedData)
	}

	candidate := json.RawMessage(`{"candidate":"candidate:0 1 UDP 2122252543 192.168.1.2 50000 typ host","sdpMLineIndex":0}`)
	send(ctx, t, connB, proto.InboundTypeICECandidate, proto.SignalData{To: idA, Payload: candidate})

	sig := waitFor(ctx, t, connA, proto.EventSignal)
	var sigData proto.EventSignalData
	if err := json.Unmarshal(sig.Data, &sigData); err != nil {
		t.Fatalf("unmarshal signal: %v", err)
	}
	if sigData.From != idB {
		t.Fatalf("signal from %q, want %q", sigData.From, idB)
	}
	var gotPayload, wantPayload map[string]any
	_ = json.Unmarshal(sigData.Payload, &gotPayload)
	_ = json.Unmarshal(candidate, &wantPayload)
	if gotPayload["candidate"] != wantPayload["candidate"] {
		t.Fatalf("payload altered: %s", sigData.Payload)
	}

	connB.Close(websocket.StatusNormalClosure, "bye")

	left := waitFor(ctx, t, connA, proto.EventMemberLeft)
	var leftData proto.EventMemberLeftData
	if err := json.Unmarshal(left.Data, &leftData); err != nil {
		t.Fatalf("unmarshal member_left: %v", err)
	}
	if leftData.ID != idB || leftData.Room != "r1" {
		t.Fatalf("unexpected member_left: %+v", leftData)
	}
}

func TestWebSocketAudioForwarded(t *testing.T) {
	ts, bridges := startTestServer(t, config.Default().WS)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, id := dial(ctx, t, ts)
	send(ctx, t, conn, proto.InboundTypeJoin, proto.JoinData{User: proto.UserData{Name: "alice"}})
	waitFor(ctx, t, conn, proto.EventReadyToStream)

	if err := conn.Write(ctx, websocket.MessageBinary, []byte{0x4f, 0x67, 0x67, 0x53}); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for bridges.received(id) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("audio chunk never reached the bridge")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketUnknownTypeProducesError(t *testing.T) {
	ts, _ := startTestServer(t, config.Default().WS)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dial(ctx, t, ts)
	send(ctx, t, conn, "msg", map[string]string{"text": "hi"})

	env := waitFor(ctx, t, conn, proto.OutboundTypeError)
	if env.Error == nil || env.Error.Code != core.ErrCodeInvalidMessage {
		t.Fatalf("expected invalid_message, got %+v", env.Error)
	}
}

func TestWebSocketSignalBeforeJoin(t *testing.T) {
	ts, _ := startTestServer(t, config.Default().WS)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dial(ctx, t, ts)
	send(ctx, t, conn, proto.InboundTypeSignal, proto.SignalData{To: "someone", Payload: json.RawMessage(`{}`)})

	env := waitFor(ctx, t, conn, proto.OutboundTypeError)
	if env.Error == nil || env.Error.Code != core.ErrCodeNotInRoom {
		t.Fatalf("expected not_in_room, got %+v", env.Error)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	ws := config.Default().WS
	ws.RateLimit = 1
	ts, _ := startTestServer(t, ws)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dial(ctx, t, ts)
	send(ctx, t, conn, "msg", struct{}{})
	send(ctx, t, conn, "msg", struct{}{})

	first := waitFor(ctx, t, conn, proto.OutboundTypeError)
	if first.Error == nil || first.Error.Code != core.ErrCodeInvalidMessage {
		t.Fatalf("expected invalid_message first, got %+v", first.Error)
	}
	second := waitFor(ctx, t, conn, proto.OutboundTypeError)
	if second.Error == nil || second.Error.Code != core.ErrCodeRateLimited {
		t.Fatalf("expected rate_limited, got %+v", second.Error)
	}
}
