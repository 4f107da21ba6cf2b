package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin attaches the client to a room.
	CommandJoin CommandKind = iota
	// CommandLeave detaches the client from its room without disconnecting.
	CommandLeave
	// CommandSignal relays a negotiation payload to one peer.
	CommandSignal
	// CommandAudio carries one audio chunk for the transcription bridge.
	CommandAudio
)

func (k CommandKind) String() string {
	switch k {
	case CommandJoin:
		return "join"
	case CommandLeave:
		return "leave"
	case CommandSignal:
		return "signal"
	case CommandAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	// Join
	Room  string
	Name  string
	Email string

	// Signal
	To      string
	Payload json.RawMessage

	// Audio
	Audio []byte
}
