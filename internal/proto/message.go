package proto

import "encoding/json"

// Inbound is the envelope for text messages coming from the client.
// Binary frames carry audio and have no envelope.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin         = "join"
	InboundTypeSignal       = "signal"
	InboundTypeICECandidate = "ice-candidate"
	InboundTypeLeave        = "leave"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventWelcome       = "welcome"
	EventMemberArrived = "member_arrived"
	EventMemberLeft    = "member_left"
	EventSignal        = "signal"
	EventReadyToStream = "ready_to_stream"
)

// UserData identifies the participant behind a join.
type UserData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// JoinData requests to join a room; an empty room selects the default one.
type JoinData struct {
	Room string   `json:"room"`
	User UserData `json:"user"`
}

// SignalData carries a negotiation payload for one peer.
type SignalData struct {
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventWelcomeData tells a connection its id.
type EventWelcomeData struct {
	ID string `json:"id"`
}

// EventMemberArrivedData announces a new room member.
type EventMemberArrivedData struct {
	Room string `json:"room"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EventMemberLeftData announces a departed member.
type EventMemberLeftData struct {
	Room string `json:"room"`
	ID   string `json:"id"`
}

// EventSignalData relays a peer's negotiation payload.
type EventSignalData struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// EventReadyToStreamData has no fields; clients may start sending audio.
type EventReadyToStreamData struct{}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
