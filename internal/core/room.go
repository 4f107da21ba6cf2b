package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// RoomInfo is a snapshot of one active room.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Room groups clients sharing broadcast scope. It only exists while it has members.
type Room struct {
	Name    string
	clients map[string]*Client
}

// NewRoom constructs a room with no clients.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[string]*Client),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c.ID]; exists {
		return false
	}
	r.clients[c.ID] = c
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(id string) bool {
	if _, exists := r.clients[id]; !exists {
		return false
	}
	delete(r.clients, id)
	return true
}

// Broadcast sends an event to every client except the one with id exclude.
// Slow consumers drop the event.
func (r *Room) Broadcast(event *Event, exclude string) int {
	delivered := 0
	for id, client := range r.clients {
		if id == exclude {
			continue
		}
		if client.Send(event) {
			delivered++
		}
	}
	return delivered
}

// IDs returns member ids in sorted order.
func (r *Room) IDs() []string {
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

// Rooms is the room membership index. Rooms are created by the first join and
// discarded by the last leave.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	log   *zerolog.Logger

	// onEmpty runs with the index write-locked, right after a room is discarded.
	onEmpty func(room string)
}

// NewRooms builds an empty index. onEmpty may be nil.
func NewRooms(logger *zerolog.Logger, onEmpty func(room string)) *Rooms {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Rooms{
		rooms:   make(map[string]*Room),
		log:     logger,
		onEmpty: onEmpty,
	}
}

// Join adds c to room and returns the ids of the members that were already there.
func (rs *Rooms) Join(room string, c *Client) []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r, ok := rs.rooms[room]
	if !ok {
		r = NewRoom(room)
		rs.rooms[room] = r
	}
	existing := make([]string, 0, len(r.clients))
	for _, id := range r.IDs() {
		if id != c.ID {
			existing = append(existing, id)
		}
	}
	r.AddClient(c)
	return existing
}

// Broadcast delivers event to every member of room except exclude.
func (rs *Rooms) Broadcast(room string, event *Event, exclude string) int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.rooms[room]
	if !ok {
		return 0
	}
	return r.Broadcast(event, exclude)
}

// Leave removes id from room and reports whether the room is now empty.
// Unknown ids are logged and ignored since disconnects race with leaves.
func (rs *Rooms) Leave(room, id string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r, ok := rs.rooms[room]
	if !ok || !r.RemoveClient(id) {
		rs.log.Debug().Str("room", room).Str("conn_id", id).Msg("leave for non-member ignored")
		return !ok
	}
	if !r.Empty() {
		return false
	}

	delete(rs.rooms, room)
	if rs.onEmpty != nil {
		rs.onEmpty(room)
	}
	return true
}

// Members returns the sorted member ids of room.
func (rs *Rooms) Members(room string) []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.rooms[room]
	if !ok {
		return nil
	}
	return r.IDs()
}

// Snapshot lists active rooms sorted by name.
func (rs *Rooms) Snapshot() []RoomInfo {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rs.rooms))
	for name, r := range rs.rooms {
		out = append(out, RoomInfo{Name: name, Members: len(r.clients)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
