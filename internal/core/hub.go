package core

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/relaychat/relaychat-server/internal/store"
)

const maxNicknameLen = 32

// HubConfig tunes dispatcher behavior. Zero values fall back to defaults.
type HubConfig struct {
	// QueueCapacity is the outbound queue size for new connections.
	QueueCapacity int
	// MissedLimit is how many consecutive unanswered pings a connection may
	// accumulate before the next heartbeat sweep evicts it.
	MissedLimit int
}

func (c HubConfig) withDefaults() HubConfig {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 32
	}
	if c.MissedLimit <= 0 {
		c.MissedLimit = 2
	}
	return c
}

type submission struct {
	client *Client
	cmd    Command
}

// Hub is the broadcast dispatcher: the single authority that interprets
// client commands, mutates the registry and membership index, and fans
// events out to recipient queues. All shared state is owned by the Run
// goroutine; registration, commands, and heartbeat sweeps arrive through
// channels, so each item is applied and fanned out as one indivisible unit.
type Hub struct {
	log        zerolog.Logger
	store      store.Store
	clk        clock.Clock
	cfg        HubConfig
	registry   *Registry
	membership *Membership

	register   chan *Client
	unregister chan *Client
	commands   chan submission
	heartbeat  chan struct{}

	ctx context.Context
}

// NewHub constructs the dispatcher. The store may be nil, in which case
// persistence and membership replay are skipped (used by tests).
func NewHub(st store.Store, logger *zerolog.Logger, clk clock.Clock, cfg HubConfig) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Hub{
		log:        logger.With().Str("component", "hub").Logger(),
		store:      st,
		clk:        clk,
		cfg:        cfg.withDefaults(),
		registry:   NewRegistry(),
		membership: NewMembership(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan submission, 64),
		heartbeat:  make(chan struct{}, 1),
	}
}

// QueueCapacity returns the configured outbound queue size so the transport
// can construct clients to match.
func (h *Hub) QueueCapacity() int {
	return h.cfg.QueueCapacity
}

// Bootstrap seeds the room catalogue from the store. Must be called before
// Run starts.
func (h *Hub) Bootstrap(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	rooms, err := h.store.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	for _, r := range rooms {
		h.membership.AddRoom(Room{ID: r.ID, Name: r.Name, Description: r.Description})
	}
	h.log.Info().Int("rooms", len(rooms)).Msg("room catalogue loaded")
	return nil
}

// SeedRoom adds a room to the catalogue directly. Must be called before Run
// starts; runtime room creation goes through the store and a restart.
func (h *Hub) SeedRoom(room Room) {
	h.membership.AddRoom(room)
}

// Run processes hub traffic until the context is cancelled. It should be
// called in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unregister:
			h.dropClient(c, "disconnect", false)
		case sub := <-h.commands:
			h.handleCommand(sub.client, sub.cmd)
		case <-h.heartbeat:
			h.handleHeartbeat()
		}
	}
}

// RegisterClient hands a freshly accepted connection to the hub. Blocks
// until the hub picks it up.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient requests teardown for a connection. Safe to call for a
// connection the hub already evicted.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-c.Done:
	}
}

// RequestHeartbeat schedules a heartbeat sweep. Non-blocking: a sweep
// already pending absorbs the request.
func (h *Hub) RequestHeartbeat() {
	select {
	case h.heartbeat <- struct{}{}:
	default:
	}
}

func (h *Hub) handleRegister(c *Client) {
	// Single-session policy: a second register for a live user evicts the
	// prior session without presence events, the user never left. The same
	// rule keeps the registration below silent, so peers never see a join
	// with no matching leave.
	replacing := false
	if prior := h.registry.Lookup(c.UserID); prior != nil {
		h.log.Info().Str("user_id", c.UserID).Str("session_id", prior.SessionID).Msg("session replaced")
		h.dropClient(prior, "session_replaced", true)
		replacing = true
	}

	h.registry.Register(c)
	c.lastPong = h.clk.Now()

	persisted := h.persistedRooms(c.UserID)
	c.trySend(&Event{Kind: EventConnected, User: c.UserID, Rooms: persisted})
	if !replacing {
		h.registry.BroadcastGlobal(&Event{Kind: EventUserJoined, User: c.UserID, Nickname: c.nickname})
	}

	// Replay persisted membership so a reconnecting user lands back in its
	// rooms without re-issuing joins.
	for _, room := range persisted {
		if !h.membership.Exists(room) {
			continue
		}
		joined, err := h.membership.Join(room, c.UserID)
		if err != nil || !joined {
			continue
		}
		c.rooms[room] = struct{}{}
		if !replacing {
			h.broadcastRoom(room, &Event{Kind: EventUserJoinedRoom, Room: room, User: c.UserID}, "")
		}
	}

	h.log.Info().
		Str("user_id", c.UserID).
		Str("session_id", c.SessionID).
		Int("connections", h.registry.Len()).
		Msg("client registered")

	go h.pump(c)
}

// pump forwards a client's commands into the shared inbox, preserving the
// per-sender submission order.
func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.commands <- submission{client: c, cmd: cmd}:
			case <-c.Done:
				return
			}
		case <-c.Done:
			return
		}
	}
}

func (h *Hub) handleCommand(c *Client, cmd Command) {
	if c.state != StateOpen {
		// Stale submission from an evicted connection.
		return
	}

	switch cmd.Kind {
	case CommandSendMessage:
		h.handleSendMessage(c, cmd)
	case CommandSendRoomMessage:
		h.handleSendRoomMessage(c, cmd)
	case CommandJoinRoom:
		h.handleJoinRoom(c, cmd.Room)
	case CommandLeaveRoom:
		h.handleLeaveRoom(c, cmd.Room)
	case CommandSetNickname:
		h.handleSetNickname(c, cmd.Nickname)
	case CommandPong:
		c.lastPong = h.clk.Now()
		c.missed = 0
	case CommandInvalid:
		err := cmd.Err
		if err == nil {
			err = coreError(ErrCodeInvalidCommand, "malformed command payload")
		}
		h.replyError(c, err)
	default:
		h.replyError(c, coreError(ErrCodeInvalidCommand, "unknown command"))
	}
}

func (h *Hub) handleSendMessage(c *Client, cmd Command) {
	nickname := c.nickname
	if nickname == "" {
		nickname = cmd.Nickname
	}
	msg := newTextMessage(c.UserID, nickname, cmd.Text, "", h.clk.Now())
	h.appendBestEffort(&msg)
	h.registry.BroadcastGlobal(&Event{Kind: EventMessage, User: c.UserID, Message: msg})
}

func (h *Hub) handleSendRoomMessage(c *Client, cmd Command) {
	if !h.membership.Exists(cmd.Room) {
		h.replyError(c, coreError(ErrCodeRoomNotFound, "room not found: "+cmd.Room))
		return
	}
	if !h.membership.IsMember(cmd.Room, c.UserID) {
		h.replyError(c, coreError(ErrCodeNotMember, "not a member of room: "+cmd.Room))
		return
	}

	msg := newTextMessage(c.UserID, c.nickname, cmd.Text, cmd.Room, h.clk.Now())
	if err := h.append(&msg); err != nil {
		h.log.Error().Err(err).Str("room", cmd.Room).Msg("room message append failed")
		h.replyError(c, retryableError(ErrCodeStorageUnavailable, "message store unavailable, retry"))
		return
	}

	// Sender exclusion: the author already has the message locally.
	h.broadcastRoom(cmd.Room, &Event{Kind: EventRoomMessage, Room: cmd.Room, User: c.UserID, Message: msg}, c.UserID)
}

func (h *Hub) handleJoinRoom(c *Client, room string) {
	if !h.membership.Exists(room) {
		h.replyError(c, coreError(ErrCodeRoomNotFound, "room not found: "+room))
		return
	}
	if h.membership.IsMember(room, c.UserID) {
		// Idempotent: no duplicate membership, no duplicate event.
		return
	}

	if h.store != nil {
		if err := h.store.AddMember(h.runCtx(), room, c.UserID); err != nil {
			h.log.Error().Err(err).Str("room", room).Str("user_id", c.UserID).Msg("persist join failed")
			h.replyError(c, retryableError(ErrCodeStorageUnavailable, "membership store unavailable, retry"))
			return
		}
	}

	if _, err := h.membership.Join(room, c.UserID); err != nil {
		h.replyError(c, coreError(ErrCodeRoomNotFound, "room not found: "+room))
		return
	}
	c.rooms[room] = struct{}{}

	h.log.Debug().Str("room", room).Str("user_id", c.UserID).Msg("joined room")
	h.broadcastRoom(room, &Event{Kind: EventUserJoinedRoom, Room: room, User: c.UserID}, "")
}

func (h *Hub) handleLeaveRoom(c *Client, room string) {
	if !h.membership.Exists(room) {
		h.replyError(c, coreError(ErrCodeRoomNotFound, "room not found: "+room))
		return
	}
	if !h.membership.IsMember(room, c.UserID) {
		h.replyError(c, coreError(ErrCodeNotMember, "not a member of room: "+room))
		return
	}

	// Pre-leave recipient set: the leaver sees its own departure confirmed.
	h.broadcastRoom(room, &Event{Kind: EventUserLeftRoom, Room: room, User: c.UserID}, "")

	if h.store != nil {
		if err := h.store.RemoveMember(h.runCtx(), room, c.UserID); err != nil {
			h.log.Warn().Err(err).Str("room", room).Str("user_id", c.UserID).Msg("persist leave failed")
		}
	}

	_, _ = h.membership.Leave(room, c.UserID)
	delete(c.rooms, room)
	h.log.Debug().Str("room", room).Str("user_id", c.UserID).Msg("left room")
}

func (h *Hub) handleSetNickname(c *Client, nickname string) {
	nickname = strings.TrimSpace(nickname)
	if err := validateNickname(nickname); err != nil {
		h.replyError(c, err)
		return
	}
	if nickname == c.nickname {
		return
	}

	oldNick := c.nickname
	if oldNick == "" {
		oldNick = "anonymous"
	}
	c.nickname = nickname

	msg := newNickChangeMessage(c.UserID, oldNick, nickname, h.clk.Now())
	h.appendBestEffort(&msg)
	h.log.Info().Str("user_id", c.UserID).Str("old", oldNick).Str("new", nickname).Msg("nickname changed")
	h.registry.BroadcastGlobal(&Event{Kind: EventMessage, User: c.UserID, Message: msg})
}

func validateNickname(nickname string) *Error {
	if nickname == "" {
		return coreError(ErrCodeInvalidCommand, "nickname must not be empty")
	}
	if len([]rune(nickname)) > maxNicknameLen {
		return coreError(ErrCodeInvalidCommand, "nickname too long")
	}
	for _, r := range nickname {
		if unicode.IsControl(r) {
			return coreError(ErrCodeInvalidCommand, "nickname contains control characters")
		}
	}
	return nil
}

// handleHeartbeat probes every open connection and evicts the unresponsive
// ones. A connection whose queue kept overflowing since the last sweep is
// evicted on the same path; the drop counter restarts every sweep so the
// check measures sustained slowness, not lifetime history.
func (h *Hub) handleHeartbeat() {
	var stale []*Client
	var reasons []string
	h.registry.each(func(c *Client) {
		if c.state != StateOpen {
			return
		}
		switch {
		case c.missed >= h.cfg.MissedLimit:
			stale = append(stale, c)
			reasons = append(reasons, "heartbeat_timeout")
		case c.dropped >= cap(c.Events):
			stale = append(stale, c)
			reasons = append(reasons, "queue_overflow")
		default:
			c.missed++
			c.dropped = 0
			c.trySend(&Event{Kind: EventPing})
		}
	})
	for i, c := range stale {
		h.dropClient(c, reasons[i], false)
	}
}

// dropClient removes the connection from every index, cascades membership
// removal, and broadcasts departure events. silent suppresses the events
// (session replacement). Eviction is indistinguishable from a graceful
// disconnect to the remaining peers.
func (h *Hub) dropClient(c *Client, reason string, silent bool) {
	if c.state == StateClosed || c.state == StateClosing {
		return
	}
	c.state = StateClosing

	dropped, rooms := h.registry.Unregister(c.SessionID)
	if dropped != nil {
		for _, room := range rooms {
			_, _ = h.membership.Leave(room, c.UserID)
			if !silent {
				h.broadcastRoom(room, &Event{Kind: EventUserLeftRoom, Room: room, User: c.UserID}, "")
			}
		}
		if !silent {
			h.registry.BroadcastGlobal(&Event{Kind: EventUserLeft, User: c.UserID, Nickname: c.nickname})
		}
	}

	c.state = StateClosed
	close(c.Done)
	close(c.Events)

	h.log.Info().
		Str("user_id", c.UserID).
		Str("session_id", c.SessionID).
		Str("reason", reason).
		Int("connections", h.registry.Len()).
		Msg("client dropped")
}

func (h *Hub) shutdown() {
	var all []*Client
	h.registry.each(func(c *Client) { all = append(all, c) })
	for _, c := range all {
		h.dropClient(c, "shutdown", true)
	}
}

// broadcastRoom fans an event out to the room's current members, skipping
// exclude when non-empty. The recipient set is fixed here, inside the same
// hub iteration that mutated membership.
func (h *Hub) broadcastRoom(room string, ev *Event, exclude string) int {
	delivered := 0
	for _, userID := range h.membership.MembersOf(room) {
		if userID == exclude {
			continue
		}
		c := h.registry.Lookup(userID)
		if c == nil {
			continue
		}
		if c.trySend(ev) {
			delivered++
		} else {
			h.log.Warn().Str("user_id", userID).Str("room", room).Msg("outbound queue full, event dropped")
		}
	}
	return delivered
}

func (h *Hub) replyError(c *Client, err *Error) {
	c.trySend(&Event{Kind: EventError, Err: err})
}

func (h *Hub) append(msg *Message) error {
	if h.store == nil {
		return nil
	}
	return h.store.AppendMessage(h.runCtx(), toStoreMessage(msg))
}

// appendBestEffort logs persistence failures without blocking fan-out;
// global delivery does not depend on the store being healthy.
func (h *Hub) appendBestEffort(msg *Message) {
	if err := h.append(msg); err != nil {
		h.log.Error().Err(err).Str("message_id", msg.ID).Msg("message append failed")
	}
}

func (h *Hub) persistedRooms(userID string) []string {
	if h.store == nil {
		return nil
	}
	rooms, err := h.store.RoomsOf(h.runCtx(), userID)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("membership replay failed")
		return nil
	}
	return rooms
}

func (h *Hub) runCtx() context.Context {
	if h.ctx != nil {
		return h.ctx
	}
	return context.Background()
}

func toStoreMessage(msg *Message) *store.Message {
	kind := store.MessageKindText
	switch msg.Kind {
	case MessageNickChange:
		kind = store.MessageKindNickChange
	case MessageSystem:
		kind = store.MessageKindSystem
	}
	return &store.Message{
		ID:        msg.ID,
		RoomID:    msg.Room,
		UserID:    msg.From,
		Nickname:  msg.Nickname,
		Kind:      kind,
		Body:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
}
