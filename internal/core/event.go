package core

import "encoding/json"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventWelcome tells a fresh connection its id.
	EventWelcome EventKind = iota
	// EventMemberArrived notifies room members about a new member.
	EventMemberArrived
	// EventMemberLeft notifies remaining members that a peer is gone.
	EventMemberLeft
	// EventSignal delivers a negotiation payload from a peer.
	EventSignal
	// EventReadyToStream tells the client it may start sending audio.
	EventReadyToStream
	// EventError notifies clients about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventWelcome:
		return "welcome"
	case EventMemberArrived:
		return "member_arrived"
	case EventMemberLeft:
		return "member_left"
	case EventSignal:
		return "signal"
	case EventReadyToStream:
		return "ready_to_stream"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind
	Room string
	// ConnID is the subject of the event: the arriving or departing member,
	// the signal sender, or the receiver of a welcome.
	ConnID  string
	Name    string
	Payload json.RawMessage
	Error   *CoreError
}

// ErrorEvent wraps err for delivery to a client.
func ErrorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}
