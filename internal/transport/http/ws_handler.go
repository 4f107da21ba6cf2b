package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-minutes/internal/config"
	"github.com/vovakirdan/wirechat-minutes/internal/core"
	"github.com/vovakirdan/wirechat-minutes/internal/proto"
	"github.com/vovakirdan/wirechat-minutes/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub *core.Hub
	cfg config.WSConfig
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg config.WSConfig, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewID(), h.cfg.EventBuffer)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := newRateLimiter(h.cfg.RateLimit, time.Minute)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("read ws frame")
			return err
		}

		if typ == websocket.MessageBinary {
			if !h.enqueue(ctx, client, &core.Command{Kind: core.CommandAudio, Audio: data}) {
				return ctx.Err()
			}
			continue
		}

		if !limiter.allow() {
			client.Send(core.ErrorEvent(core.NewError(core.ErrCodeRateLimited, "too many messages")))
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("malformed ws message")
			client.Send(core.ErrorEvent(core.NewError(core.ErrCodeInvalidMessage, "malformed json")))
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			client.Send(core.ErrorEvent(core.NewError(protoErr.Code, protoErr.Msg)))
			continue
		}
		if !h.enqueue(ctx, client, cmd) {
			return ctx.Err()
		}
	}
}

func (h *WSHandler) enqueue(ctx context.Context, client *core.Client, cmd *core.Command) bool {
	select {
	case client.Commands <- cmd:
		return true
	case <-client.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if event == nil {
				continue
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
