package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventConnected confirms the handshake and carries the assigned user id.
	EventConnected EventKind = iota
	// EventMessage notifies clients about a global chat message.
	EventMessage
	// EventUserJoined notifies clients that a user connected.
	EventUserJoined
	// EventUserLeft notifies clients that a user disconnected.
	EventUserLeft
	// EventRoomMessage notifies room members about a chat message.
	EventRoomMessage
	// EventUserJoinedRoom notifies room members that a user joined the room.
	EventUserJoinedRoom
	// EventUserLeftRoom notifies room members that a user left the room.
	EventUserLeftRoom
	// EventPing is a heartbeat probe; clients answer with a Pong command.
	EventPing
	// EventPong acknowledges a transport-level ping from the client.
	EventPong
	// EventError reports a command failure to the sender only.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	User     string
	Nickname string
	Room     string
	Message  Message
	Rooms    []string // for EventConnected: persisted membership being replayed
	Err      *Error
}
