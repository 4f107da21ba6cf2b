package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	c := NewClient("a", 0)

	if err := r.Attach("a", Identity{Name: "alice"}, "r1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("attach before register: want ErrInvalidState, got %v", err)
	}

	r.Register(c)
	joined := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ident := Identity{Name: "alice", Email: "alice@example.com", JoinedAt: joined}
	if err := r.Attach("a", ident, "r1"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := r.Attach("a", ident, "r1"); err != nil {
		t.Fatalf("attach same room should be idempotent: %v", err)
	}
	if err := r.Attach("a", ident, "r2"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("attach other room: want ErrInvalidState, got %v", err)
	}

	got, err := r.Lookup("a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ConnID != "a" || got.Room != "r1" || got.Name != "alice" || !got.JoinedAt.Equal(joined) {
		t.Fatalf("unexpected identity: %+v", got)
	}

	removed, err := r.Remove("a")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != got {
		t.Fatalf("remove returned %+v, want %+v", removed, got)
	}
	if _, err := r.Remove("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: want ErrNotFound, got %v", err)
	}
	if _, err := r.Lookup("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup after remove: want ErrNotFound, got %v", err)
	}
}

func TestRegistryDetachAllowsNewRoom(t *testing.T) {
	r := NewRegistry()
	r.Register(NewClient("a", 0))

	if err := r.Attach("a", Identity{Name: "alice"}, "r1"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	prev, err := r.Detach("a")
	if err != nil || prev.Room != "r1" {
		t.Fatalf("detach: %+v %v", prev, err)
	}
	if err := r.Attach("a", Identity{Name: "alice"}, "r2"); err != nil {
		t.Fatalf("attach after detach: %v", err)
	}
}

func TestRegistryConcurrentRemoveOnce(t *testing.T) {
	r := NewRegistry()
	r.Register(NewClient("a", 0))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Remove("a"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one successful remove, got %d", wins)
	}
}

func TestRoomsMembershipIsNetEffect(t *testing.T) {
	rooms := NewRooms(nil, nil)
	clients := make(map[string]*Client)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("c%d", i)
		clients[id] = NewClient(id, 0)
	}

	steps := []struct {
		join bool
		id   string
	}{
		{true, "c0"}, {true, "c1"}, {true, "c2"}, {false, "c1"}, {true, "c3"},
		{false, "c9"}, {true, "c1"}, {false, "c0"}, {true, "c4"}, {false, "c4"},
	}
	want := map[string]bool{}
	for _, s := range steps {
		if s.join {
			rooms.Join("r", clients[s.id])
			want[s.id] = true
		} else {
			rooms.Leave("r", s.id)
			delete(want, s.id)
		}
	}

	var expected []string
	for id := range want {
		expected = append(expected, id)
	}
	sort.Strings(expected)

	got := rooms.Members("r")
	if fmt.Sprint(got) != fmt.Sprint(expected) {
		t.Fatalf("members = %v, want %v", got, expected)
	}
}

func TestRoomsBroadcastExcludesSender(t *testing.T) {
	rooms := NewRooms(nil, nil)
	a, b, c := NewClient("a", 0), NewClient("b", 0), NewClient("c", 0)

	if existing := rooms.Join("r", a); len(existing) != 0 {
		t.Fatalf("first join should see nobody, got %v", existing)
	}
	rooms.Join("r", b)
	if existing := rooms.Join("r", c); fmt.Sprint(existing) != "[a b]" {
		t.Fatalf("unexpected existing members %v", existing)
	}

	n := rooms.Broadcast("r", &Event{Kind: EventSignal, ConnID: "a"}, "a")
	if n != 2 {
		t.Fatalf("delivered to %d, want 2", n)
	}
	if len(a.Events) != 0 {
		t.Fatalf("sender received its own broadcast")
	}
	if len(b.Events) != 1 || len(c.Events) != 1 {
		t.Fatalf("peers did not receive broadcast")
	}
}

func TestRoomsLeaveReportsEmpty(t *testing.T) {
	var emptied []string
	rooms := NewRooms(nil, func(room string) { emptied = append(emptied, room) })
	a, b := NewClient("a", 0), NewClient("b", 0)
	rooms.Join("r", a)
	rooms.Join("r", b)

	if rooms.Leave("r", "a") {
		t.Fatalf("room should not be empty yet")
	}
	if rooms.Leave("r", "ghost") {
		t.Fatalf("unknown id must not empty the room")
	}
	if !rooms.Leave("r", "b") {
		t.Fatalf("room should be empty")
	}
	if len(emptied) != 1 || emptied[0] != "r" {
		t.Fatalf("unexpected onEmpty calls %v", emptied)
	}
	if len(rooms.Snapshot()) != 0 {
		t.Fatalf("empty room should be discarded")
	}
}

func TestClientSendDropsWhenFull(t *testing.T) {
	c := NewClient("a", 1)
	if !c.Send(&Event{Kind: EventWelcome}) {
		t.Fatalf("first send should succeed")
	}
	if c.Send(&Event{Kind: EventWelcome}) {
		t.Fatalf("second send should be dropped")
	}
}
