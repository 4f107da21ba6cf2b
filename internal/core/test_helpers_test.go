package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}

type fakeTranscripts struct {
	mu       sync.Mutex
	joins    []string
	released []string
}

func (f *fakeTranscripts) RecordJoin(room, name string, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, room+"/"+name)
}

func (f *fakeTranscripts) Release(room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, room)
}

func (f *fakeTranscripts) snapshot() (joins, released []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joins...), append([]string(nil), f.released...)
}

type fakeBridge struct {
	mu     sync.Mutex
	spec   BridgeSpec
	ready  bool
	chunks [][]byte
	closed int
}

func (b *fakeBridge) Forward(chunk []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready || b.closed > 0 {
		return false
	}
	b.chunks = append(b.chunks, chunk)
	return true
}

func (b *fakeBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
}

func (b *fakeBridge) markReady() {
	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()
	b.spec.Ready()
}

func (b *fakeBridge) stats() (chunks, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks), b.closed
}

type fakeBridges struct {
	mu      sync.Mutex
	bridges map[string]*fakeBridge
	opened  chan *fakeBridge
}

func newFakeBridges() *fakeBridges {
	return &fakeBridges{bridges: make(map[string]*fakeBridge), opened: make(chan *fakeBridge, 16)}
}

func (f *fakeBridges) OpenBridge(_ context.Context, spec BridgeSpec) AudioBridge {
	b := &fakeBridge{spec: spec}
	f.mu.Lock()
	f.bridges[spec.ConnID] = b
	f.mu.Unlock()
	f.opened <- b
	return b
}

func (f *fakeBridges) await(t *testing.T) *fakeBridge {
	t.Helper()
	select {
	case b := <-f.opened:
		return b
	case <-time.After(2 * time.Second):
		t.Fatalf("bridge was not opened")
		return nil
	}
}

type fakeDeparter struct {
	mu         sync.Mutex
	departures []Identity
	// members is the room membership observed while the departure ran.
	members [][]string
	hub     *Hub
}

func (f *fakeDeparter) Depart(ident Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.departures = append(f.departures, ident)
	if f.hub != nil {
		f.members = append(f.members, f.hub.Members(ident.Room))
	}
}

func (f *fakeDeparter) snapshot() []Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Identity(nil), f.departures...)
}
