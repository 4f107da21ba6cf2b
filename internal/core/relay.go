package core

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Relay forwards negotiation payloads between two connections. Payloads are
// never inspected or buffered.
type Relay struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewRelay builds a relay that resolves targets through registry.
func NewRelay(registry *Registry, logger *zerolog.Logger) *Relay {
	return &Relay{registry: registry, log: logger}
}

// Forward delivers payload to the connection to, tagged with from.
// A missing target means the peer already left; the payload is dropped.
func (r *Relay) Forward(from, to string, payload json.RawMessage) bool {
	target, ok := r.registry.Client(to)
	if !ok {
		r.log.Debug().Str("conn_id", from).Str("to", to).Msg("signal target gone, dropped")
		return false
	}
	if !target.Send(&Event{Kind: EventSignal, ConnID: from, Payload: payload}) {
		r.log.Warn().Str("conn_id", from).Str("to", to).Msg("signal target slow, dropped")
		return false
	}
	return true
}
