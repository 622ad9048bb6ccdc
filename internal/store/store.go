package store

import (
	"context"
	"time"
)

// MessageKind values persisted alongside message records.
const (
	MessageKindText       = "text"
	MessageKindNickChange = "nick_change"
	MessageKindSystem     = "system"
)

// Room represents a persisted chat room.
type Room struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Message represents a finalized message record handed over for persistence.
type Message struct {
	ID        string
	RoomID    string // empty for global messages
	UserID    string
	Nickname  string
	Kind      string
	Body      string
	CreatedAt time.Time
}

// Store is the persistence collaborator the dispatcher calls into. The
// dispatcher only appends finalized message records and resolves rooms and
// membership; everything else about storage lives behind this interface.
type Store interface {
	// AppendMessage persists a finalized message record.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListRooms returns the room catalogue, used to seed the dispatcher at
	// cold start.
	ListRooms(ctx context.Context) ([]*Room, error)

	// CreateRoom persists a new room.
	CreateRoom(ctx context.Context, room *Room) error

	// RoomsOf returns the room ids the user is a member of, used to replay
	// membership when the user reconnects.
	RoomsOf(ctx context.Context, userID string) ([]string, error)

	// AddMember records room membership.
	AddMember(ctx context.Context, roomID, userID string) error

	// RemoveMember removes room membership.
	RemoveMember(ctx context.Context, roomID, userID string) error

	// Close closes the underlying database connection.
	Close() error
}
