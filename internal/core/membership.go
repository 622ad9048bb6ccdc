package core

// Room is a named broadcast scope known to the dispatcher.
type Room struct {
	ID          string
	Name        string
	Description string
}

// Membership is the bidirectional room<->user index. Both directions are
// updated inside each call, so the invariant
//
//	user in MembersOf(room) <=> room in RoomsOf(user)
//
// holds for every observer at every point between calls. Owned by the hub
// goroutine.
type Membership struct {
	rooms     map[string]Room
	members   map[string]map[string]struct{} // room id -> user ids
	userRooms map[string]map[string]struct{} // user id -> room ids
}

// NewMembership constructs an empty index.
func NewMembership() *Membership {
	return &Membership{
		rooms:     make(map[string]Room),
		members:   make(map[string]map[string]struct{}),
		userRooms: make(map[string]map[string]struct{}),
	}
}

// AddRoom registers a room in the catalogue. Joining an unknown room fails,
// so the catalogue is seeded from the store at cold start.
func (m *Membership) AddRoom(room Room) {
	if _, ok := m.rooms[room.ID]; ok {
		return
	}
	m.rooms[room.ID] = room
	m.members[room.ID] = make(map[string]struct{})
}

// Exists reports whether the room is in the catalogue.
func (m *Membership) Exists(roomID string) bool {
	_, ok := m.rooms[roomID]
	return ok
}

// Join adds the user to the room and the room to the user's set as one
// step. Idempotent: returns false without side effects if already a member.
func (m *Membership) Join(roomID, userID string) (bool, error) {
	members, ok := m.members[roomID]
	if !ok {
		return false, ErrRoomNotFound
	}
	if _, already := members[userID]; already {
		return false, nil
	}
	members[userID] = struct{}{}
	if m.userRooms[userID] == nil {
		m.userRooms[userID] = make(map[string]struct{})
	}
	m.userRooms[userID][roomID] = struct{}{}
	return true, nil
}

// Leave removes the user from the room and the room from the user's set.
// Idempotent: returns false without side effects if not a member.
func (m *Membership) Leave(roomID, userID string) (bool, error) {
	members, ok := m.members[roomID]
	if !ok {
		return false, ErrRoomNotFound
	}
	if _, present := members[userID]; !present {
		return false, nil
	}
	delete(members, userID)
	delete(m.userRooms[userID], roomID)
	if len(m.userRooms[userID]) == 0 {
		delete(m.userRooms, userID)
	}
	return true, nil
}

// IsMember reports whether the user belongs to the room.
func (m *Membership) IsMember(roomID, userID string) bool {
	_, ok := m.members[roomID][userID]
	return ok
}

// MembersOf returns the user ids currently in the room.
func (m *Membership) MembersOf(roomID string) []string {
	members := m.members[roomID]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// RoomsOf returns the room ids the user currently belongs to.
func (m *Membership) RoomsOf(userID string) []string {
	rooms := m.userRooms[userID]
	out := make([]string, 0, len(rooms))
	for id := range rooms {
		out = append(out, id)
	}
	return out
}
