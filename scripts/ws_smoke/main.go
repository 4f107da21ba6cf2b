package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	wclog "github.com/vovakirdan/wirechat-minutes/internal/log"
	"github.com/vovakirdan/wirechat-minutes/internal/proto"
)

type incoming struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	logger := wclog.New("debug", "console")
	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("ws_smoke failed")
		os.Exit(1)
	}
}

func run(logger *zerolog.Logger) error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	name := flag.String("name", "tester", "display name to join with")
	email := flag.String("email", "", "address the transcript is mailed to")
	room := flag.String("room", "", "room name (empty selects the server default)")
	to := flag.String("to", "", "peer connection id to send a test ICE candidate to")
	audio := flag.String("audio", "", "file streamed as binary audio after ready_to_stream")
	chunk := flag.Int("chunk", 4096, "audio chunk size in bytes")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeJoin, proto.JoinData{
		Room: *room,
		User: proto.UserData{Name: *name, Email: *email},
	}); err != nil {
		return err
	}

	if *to != "" {
		candidate := json.RawMessage(`{"candidate":"candidate:0 1 UDP 2122252543 127.0.0.1 50000 typ host","sdpMid":"0","sdpMLineIndex":0}`)
		if err := send(proto.InboundTypeSignal, proto.SignalData{To: *to, Payload: candidate}); err != nil {
			return err
		}
	}

	for {
		var msg incoming
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Info().Msg("timeout reached, disconnecting")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		ev := logger.Info().Str("type", msg.Type)
		if msg.Event != "" {
			ev = ev.Str("event", msg.Event)
		}
		if len(msg.Data) > 0 {
			ev = ev.RawJSON("data", msg.Data)
		}
		if msg.Error != nil {
			ev = ev.Str("code", msg.Error.Code).Str("msg", msg.Error.Msg)
		}
		ev.Msg("received")

		if msg.Event == proto.EventReadyToStream && *audio != "" {
			if err := streamFile(ctx, conn, *audio, *chunk); err != nil {
				return err
			}
			logger.Info().Str("file", *audio).Msg("audio streamed")
		}
	}
}

func streamFile(ctx context.Context, conn *websocket.Conn, path string, size int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	if size <= 0 {
		size = len(data)
	}
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		if err := conn.Write(ctx, websocket.MessageBinary, data[start:end]); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
	}
	return nil
}
