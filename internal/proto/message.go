// Package proto defines the JSON wire protocol: one frame is one JSON
// object, an event envelope server-to-client and a command envelope
// client-to-server.
package proto

import (
	"encoding/json"
	"time"
)

// Server-to-client event kinds.
const (
	EventConnected      = "Connected"
	EventMessage        = "Message"
	EventUserJoined     = "UserJoined"
	EventUserLeft       = "UserLeft"
	EventRoomMessage    = "RoomMessage"
	EventUserJoinedRoom = "UserJoinedRoom"
	EventUserLeftRoom   = "UserLeftRoom"
	EventPing           = "Ping"
	EventPong           = "Pong"
	EventError          = "Error"
)

// Client-to-server command kinds.
const (
	TypeSendMessage     = "SendMessage"
	TypeSendRoomMessage = "SendRoomMessage"
	TypeJoinRoom        = "JoinRoom"
	TypeLeaveRoom       = "LeaveRoom"
	TypeSetNickname     = "SetNickname"
	TypePong            = "Pong"
)

// Message kinds carried inside MessageData.
const (
	KindText       = "Text"
	KindNickChange = "NickChange"
	KindSystem     = "System"
)

// ServerEvent is the envelope for frames sent to the client.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ClientCommand is the envelope for frames coming from the client. Data
// stays raw until the command type selects a payload shape.
type ClientCommand struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ConnectedData confirms the handshake. Rooms lists persisted membership
// being replayed for a reconnecting user.
type ConnectedData struct {
	UserID string   `json:"user_id"`
	Rooms  []string `json:"rooms,omitempty"`
}

// MessageData is a chat message as delivered to clients.
type MessageData struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Nickname  string    `json:"nickname,omitempty"`
	Kind      string    `json:"kind"`
	OldNick   string    `json:"old_nick,omitempty"`
	NewNick   string    `json:"new_nick,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomMessageData wraps a message scoped to a room.
type RoomMessageData struct {
	RoomID  string      `json:"room_id"`
	Message MessageData `json:"message"`
}

// PresenceData announces a user joining or leaving the server.
type PresenceData struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname,omitempty"`
}

// RoomPresenceData announces a user joining or leaving a room.
type RoomPresenceData struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// ErrorData reports a command failure to its sender.
type ErrorData struct {
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// SendMessageData requests a global broadcast. Nickname optionally names
// the sender when no nickname has been set yet.
type SendMessageData struct {
	Content  string `json:"content"`
	Nickname string `json:"nickname,omitempty"`
}

// SendRoomMessageData requests a room-scoped broadcast.
type SendRoomMessageData struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

// JoinRoomData requests room membership.
type JoinRoomData struct {
	RoomID string `json:"room_id"`
}

// LeaveRoomData gives up room membership.
type LeaveRoomData struct {
	RoomID string `json:"room_id"`
}

// SetNicknameData changes the sender's display nickname.
type SetNicknameData struct {
	Nickname string `json:"nickname"`
}
