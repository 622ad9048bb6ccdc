package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind distinguishes ordinary chat text from system-generated records.
type MessageKind int

const (
	// MessageText is an ordinary chat message.
	MessageText MessageKind = iota
	// MessageNickChange records a nickname change.
	MessageNickChange
	// MessageSystem is a server-generated notice.
	MessageSystem
)

// Message is the domain model for a chat message. Once dispatched it is
// immutable: the hub fans out copies, never shared pointers.
type Message struct {
	ID        string
	From      string
	Nickname  string
	Text      string
	Kind      MessageKind
	Room      string // empty for global scope
	OldNick   string // set for MessageNickChange
	NewNick   string // set for MessageNickChange
	CreatedAt time.Time
}

func newTextMessage(from, nickname, text, room string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		From:      from,
		Nickname:  nickname,
		Text:      text,
		Kind:      MessageText,
		Room:      room,
		CreatedAt: at,
	}
}

func newNickChangeMessage(from, oldNick, newNick string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		From:      from,
		Nickname:  newNick,
		Kind:      MessageNickChange,
		OldNick:   oldNick,
		NewNick:   newNick,
		CreatedAt: at,
	}
}
