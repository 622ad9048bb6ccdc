package core

// Registry is the authoritative set of live connections, keyed both by user
// and by session. It is owned by the hub goroutine; callers outside the hub
// interact with it only through hub commands.
type Registry struct {
	byUser    map[string]*Client
	bySession map[string]*Client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:    make(map[string]*Client),
		bySession: make(map[string]*Client),
	}
}

// Register inserts a client and marks it open. If the user already has a
// live connection the prior one is returned so the hub can evict it
// (single-session-per-user policy).
func (r *Registry) Register(c *Client) (replaced *Client) {
	replaced = r.byUser[c.UserID]
	c.state = StateOpen
	r.byUser[c.UserID] = c
	r.bySession[c.SessionID] = c
	return replaced
}

// Unregister removes a client and returns the rooms it belonged to so the
// hub can cascade membership removal. Returns nil if the session is not
// registered (already evicted).
func (r *Registry) Unregister(sessionID string) (*Client, []string) {
	c, ok := r.bySession[sessionID]
	if !ok {
		return nil, nil
	}
	delete(r.bySession, sessionID)
	if cur := r.byUser[c.UserID]; cur == c {
		delete(r.byUser, c.UserID)
	}
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return c, rooms
}

// Lookup returns the live connection for a user, or nil.
func (r *Registry) Lookup(userID string) *Client {
	return r.byUser[userID]
}

// BroadcastGlobal enqueues the event onto every open connection's queue and
// returns how many deliveries succeeded. A full queue never blocks delivery
// to the remaining recipients.
func (r *Registry) BroadcastGlobal(ev *Event) int {
	delivered := 0
	for _, c := range r.bySession {
		if c.trySend(ev) {
			delivered++
		}
	}
	return delivered
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.bySession)
}

func (r *Registry) each(fn func(*Client)) {
	for _, c := range r.bySession {
		fn(c)
	}
}
