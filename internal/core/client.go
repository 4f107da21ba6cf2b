package core

import "sync"

// DefaultEventBuffer is the events queue length used when none is configured.
const DefaultEventBuffer = 32

// Client is a live connection as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	// bridge is owned by the client's command loop and read by Disconnect
	// only after that loop has stopped.
	bridge AudioBridge

	quit     chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, buffer),
		Events:   make(chan *Event, buffer),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Send queues an event without blocking. It returns false when the client is slow
// and the event was dropped.
func (c *Client) Send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Done is closed once the client has been disconnected.
func (c *Client) Done() <-chan struct{} {
	return c.quit
}

func (c *Client) stop() bool {
	stopped := false
	c.stopOnce.Do(func() {
		close(c.quit)
		stopped = true
	})
	return stopped
}
