package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Transcripts receives the room events that shape the transcript log.
type Transcripts interface {
	RecordJoin(room, name string, at time.Time)
	// Release is called with the room index locked when a room becomes empty.
	Release(room string)
}

// AudioBridge forwards a connection's audio to its transcription session.
type AudioBridge interface {
	// Forward never blocks; it returns false when the chunk was dropped.
	Forward(chunk []byte) bool
	Close()
}

// BridgeSpec describes the connection an audio bridge serves.
type BridgeSpec struct {
	ConnID  string
	Room    string
	Speaker string
	// Ready is invoked once, when the bridge accepts audio.
	Ready func()
}

// BridgeOpener starts an audio bridge for a joined connection.
type BridgeOpener interface {
	OpenBridge(ctx context.Context, spec BridgeSpec) AudioBridge
}

// Departer runs the departure pipeline for a disconnected identity. It must read
// whatever it needs from the transcript before returning.
type Departer interface {
	Depart(ident Identity)
}

// Options configures a Hub. Nil collaborators are replaced by no-ops.
type Options struct {
	DefaultRoom string
	Transcripts Transcripts
	Bridges     BridgeOpener
	Departures  Departer
	Now         func() time.Time
	Logger      *zerolog.Logger
}

// Hub coordinates connections, rooms, signaling and audio bridges.
// Each client's commands are handled on that client's own goroutine.
type Hub struct {
	registry    *Registry
	rooms       *Rooms
	relay       *Relay
	transcripts Transcripts
	bridges     BridgeOpener
	departures  Departer
	defaultRoom string
	now         func() time.Time
	log         *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

// NewHub creates a new hub instance.
func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Transcripts == nil {
		opts.Transcripts = nopTranscripts{}
	}
	if opts.Bridges == nil {
		opts.Bridges = nopBridges{}
	}
	if opts.Departures == nil {
		opts.Departures = nopDeparter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()
	h := &Hub{
		registry:    registry,
		relay:       NewRelay(registry, logger),
		transcripts: opts.Transcripts,
		bridges:     opts.Bridges,
		departures:  opts.Departures,
		defaultRoom: opts.DefaultRoom,
		now:         opts.Now,
		log:         logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	h.rooms = NewRooms(logger, opts.Transcripts.Release)
	return h
}

// Run blocks until ctx is done, then cancels every open audio bridge.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.cancel()
}

// RegisterClient records a new connection, greets it and starts its command loop.
func (h *Hub) RegisterClient(c *Client) {
	h.registry.Register(c)
	h.conns.Add(1)
	c.Send(&Event{Kind: EventWelcome, ConnID: c.ID})
	go h.serve(c)
	h.log.Debug().Str("conn_id", c.ID).Msg("client registered")
}

// UnregisterClient tears a connection down exactly once: the audio bridge is closed,
// the identity is removed, the departure pipeline runs, and the room is told.
func (h *Hub) UnregisterClient(c *Client) {
	if _, ok := h.registry.Client(c.ID); !ok {
		return
	}
	if !c.stop() {
		return
	}
	<-c.loopDone
	defer h.conns.Done()

	if c.bridge != nil {
		c.bridge.Close()
		c.bridge = nil
	}

	ident, err := h.registry.Remove(c.ID)
	if err != nil {
		h.log.Debug().Str("conn_id", c.ID).Msg("client already removed")
		return
	}
	if !ident.Joined() {
		h.log.Debug().Str("conn_id", c.ID).Msg("client disconnected before joining")
		return
	}

	h.departures.Depart(ident)
	h.rooms.Leave(ident.Room, c.ID)
	h.rooms.Broadcast(ident.Room, &Event{Kind: EventMemberLeft, Room: ident.Room, ConnID: c.ID, Name: ident.Name}, c.ID)
	h.log.Info().Str("conn_id", c.ID).Str("room", ident.Room).Msg("client disconnected")
}

// Rooms lists the active rooms.
func (h *Hub) Rooms() []RoomInfo {
	return h.rooms.Snapshot()
}

// Members lists the connection ids currently in room.
func (h *Hub) Members(room string) []string {
	return h.rooms.Members(room)
}

// Wait blocks until every registered client has been unregistered or ctx is done.
func (h *Hub) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) serve(c *Client) {
	defer close(c.loopDone)
	for {
		select {
		case <-c.quit:
			return
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			if cerr := h.handle(c, cmd); cerr != nil {
				c.Send(ErrorEvent(cerr))
			}
		}
	}
}

func (h *Hub) handle(c *Client, cmd *Command) *CoreError {
	switch cmd.Kind {
	case CommandJoin:
		return h.join(c, cmd)
	case CommandLeave:
		return h.leave(c)
	case CommandSignal:
		return h.signal(c, cmd)
	case CommandAudio:
		h.audio(c, cmd.Audio)
		return nil
	default:
		return coreError(ErrCodeBadRequest, "unknown command")
	}
}

func (h *Hub) join(c *Client, cmd *Command) *CoreError {
	room := strings.TrimSpace(cmd.Room)
	if room == "" {
		room = h.defaultRoom
	}
	if room == "" {
		return coreError(ErrCodeBadRequest, "room is required")
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return coreError(ErrCodeBadRequest, "name is required")
	}

	current, err := h.registry.Lookup(c.ID)
	if err != nil {
		return coreError(ErrCodeInternal, "connection not registered")
	}
	if current.Joined() {
		return coreError(ErrCodeAlreadyJoined, "already joined room "+current.Room)
	}

	joinedAt := h.now()
	ident := Identity{Name: name, Email: strings.TrimSpace(cmd.Email), JoinedAt: joinedAt}
	if err := h.registry.Attach(c.ID, ident, room); err != nil {
		h.log.Warn().Err(err).Str("conn_id", c.ID).Msg("attach failed")
		if errors.Is(err, ErrInvalidState) {
			return coreError(ErrCodeAlreadyJoined, err.Error())
		}
		return coreError(ErrCodeInternal, err.Error())
	}

	existing := h.rooms.Join(room, c)
	h.rooms.Broadcast(room, &Event{Kind: EventMemberArrived, Room: room, ConnID: c.ID, Name: name}, c.ID)
	h.transcripts.RecordJoin(room, name, joinedAt)

	c.bridge = h.bridges.OpenBridge(h.ctx, BridgeSpec{
		ConnID:  c.ID,
		Room:    room,
		Speaker: name,
		Ready: func() {
			c.Send(&Event{Kind: EventReadyToStream, Room: room, ConnID: c.ID})
		},
	})

	h.log.Info().
		Str("conn_id", c.ID).
		Str("room", room).
		Str("name", name).
		Int("peers", len(existing)).
		Msg("client joined")
	return nil
}

func (h *Hub) leave(c *Client) *CoreError {
	ident, err := h.registry.Lookup(c.ID)
	if err != nil || !ident.Joined() {
		return coreError(ErrCodeNotInRoom, "not in a room")
	}

	if c.bridge != nil {
		c.bridge.Close()
		c.bridge = nil
	}
	if _, err := h.registry.Detach(c.ID); err != nil {
		return coreError(ErrCodeInternal, err.Error())
	}
	h.rooms.Leave(ident.Room, c.ID)
	h.rooms.Broadcast(ident.Room, &Event{Kind: EventMemberLeft, Room: ident.Room, ConnID: c.ID, Name: ident.Name}, c.ID)

	h.log.Info().Str("conn_id", c.ID).Str("room", ident.Room).Msg("client left room")
	return nil
}

func (h *Hub) signal(c *Client, cmd *Command) *CoreError {
	ident, err := h.registry.Lookup(c.ID)
	if err != nil || !ident.Joined() {
		return coreError(ErrCodeNotInRoom, "join a room before signaling")
	}
	if cmd.To == "" {
		return coreError(ErrCodeBadRequest, "signal target is required")
	}
	payload := cmd.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	h.relay.Forward(c.ID, cmd.To, payload)
	return nil
}

func (h *Hub) audio(c *Client, chunk []byte) {
	if c.bridge == nil {
		h.log.Debug().Str("conn_id", c.ID).Msg("audio before join dropped")
		return
	}
	c.bridge.Forward(chunk)
}

type nopTranscripts struct{}

func (nopTranscripts) RecordJoin(string, string, time.Time) {}
func (nopTranscripts) Release(string)                       {}

type nopBridges struct{}

func (nopBridges) OpenBridge(context.Context, BridgeSpec) AudioBridge { return nil }

type nopDeparter struct{}

func (nopDeparter) Depart(Identity) {}
