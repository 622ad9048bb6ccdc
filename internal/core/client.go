package core

import "time"

// ClientState tracks the connection lifecycle. Transitions are applied only
// by the hub goroutine.
type ClientState int

const (
	// StateConnecting is the initial state before registration completes.
	StateConnecting ClientState = iota
	// StateOpen means the connection is registered and delivery is attempted.
	StateOpen
	// StateClosing means teardown has started; no new events are enqueued.
	StateClosing
	// StateClosed is terminal: removed from every index, Events closed.
	StateClosed
)

// Client is a chat participant as seen by the core layer. The transport
// layer writes Commands and drains Events; everything else is owned by the
// hub goroutine and must not be touched from outside it.
type Client struct {
	UserID    string
	SessionID string

	// Commands carries decoded inbound commands, one writer (the transport
	// read loop), preserving per-sender submission order.
	Commands chan Command
	// Events is the bounded outbound delivery queue. Closed by the hub when
	// the connection reaches StateClosed.
	Events chan *Event
	// Done is closed by the hub on teardown so transport loops can unblock.
	Done chan struct{}

	// hub-owned state below.
	state    ClientState
	nickname string
	rooms    map[string]struct{}
	lastPong time.Time
	missed   int
	dropped  int
}

// NewClient constructs a client with an outbound queue of the given
// capacity. nickname may be empty; it is then set by a SetNickname command.
func NewClient(userID, sessionID, nickname string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Client{
		UserID:    userID,
		SessionID: sessionID,
		Commands:  make(chan Command, 8),
		Events:    make(chan *Event, queueSize),
		Done:      make(chan struct{}),
		nickname:  nickname,
		rooms:     make(map[string]struct{}),
	}
}

// trySend enqueues an event without blocking. A full queue drops the event
// and counts the failure; the hub evicts the connection when drops pile up
// within one heartbeat interval. Returns false when the event was not
// delivered.
func (c *Client) trySend(ev *Event) bool {
	if c.state != StateOpen {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		c.dropped++
		return false
	}
}
