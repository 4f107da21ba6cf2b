package core

import (
	"fmt"
	"sync"
	"time"
)

// Identity is what the registry knows about a connection once it joined a room.
type Identity struct {
	ConnID   string
	Name     string
	Email    string
	Room     string
	JoinedAt time.Time
}

// Joined reports whether the identity is attached to a room.
func (i Identity) Joined() bool {
	return i.Room != ""
}

type entry struct {
	client   *Client
	identity Identity
}

// Registry tracks every live connection and owns its identity record.
// Other components refer to connections by id only.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*entry)}
}

// Register records a freshly connected client.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = &entry{client: c, identity: Identity{ConnID: c.ID}}
}

// Attach binds an identity and room to a registered connection. Attaching again to
// the same room is a no-op; attaching to another room before detaching is an error.
func (r *Registry) Attach(id string, ident Identity, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return fmt.Errorf("attach %s: %w", id, ErrInvalidState)
	}
	if e.identity.Joined() {
		if e.identity.Room == room {
			return nil
		}
		return fmt.Errorf("attach %s to %q while in %q: %w", id, room, e.identity.Room, ErrInvalidState)
	}

	ident.ConnID = id
	ident.Room = room
	e.identity = ident
	return nil
}

// Detach clears the room of a connection and returns the identity it had.
func (r *Registry) Detach(id string) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	prev := e.identity
	e.identity = Identity{ConnID: id}
	return prev, nil
}

// Lookup returns the identity of a connection.
func (r *Registry) Lookup(id string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return e.identity, nil
}

// Client returns the live client registered under id.
func (r *Registry) Client(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Remove deletes a connection and hands back its full identity.
// Only the first call for an id succeeds.
func (r *Registry) Remove(id string) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	delete(r.conns, id)
	return e.identity, nil
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
