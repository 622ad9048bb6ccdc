package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendMessage broadcasts a chat message to every open connection.
	CommandSendMessage CommandKind = iota
	// CommandSendRoomMessage delivers a chat message to room members.
	CommandSendRoomMessage
	// CommandJoinRoom subscribes the client to a room.
	CommandJoinRoom
	// CommandLeaveRoom unsubscribes the client from a room.
	CommandLeaveRoom
	// CommandSetNickname changes the client's display nickname.
	CommandSetNickname
	// CommandPong is the client's reply to a heartbeat ping.
	CommandPong
	// CommandInvalid carries a decode failure; the hub answers the sender
	// with an error event and touches no other state.
	CommandInvalid
)

// Command represents an action requested by a client. The transport layer
// produces commands in the order frames arrive; the hub applies them in
// that order for each sender.
type Command struct {
	Kind     CommandKind
	Room     string
	Text     string
	Nickname string
	Err      *Error // set for CommandInvalid
}
