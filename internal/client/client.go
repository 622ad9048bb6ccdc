package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/relaychat/relaychat-server/internal/proto"
)

// Options configures a chat client.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	URL string
	// Token is sent as a query parameter; empty connects anonymously.
	Token string
	// Policy tunes reconnection; zero value uses DefaultPolicy.
	Policy Policy
	// OnEvent receives every decoded server event.
	OnEvent func(proto.ServerEvent)
	// Clock defaults to the real clock; tests inject a mock.
	Clock clock.Clock
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Client maintains a chat connection, transparently reconnecting on
// unexpected closes and answering heartbeat pings.
type Client struct {
	opts Options
	mgr  *Manager
	log  zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a client; Run starts it.
func New(opts Options) *Client {
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy()
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	c := &Client{
		opts: opts,
		log:  opts.Logger.With().Str("component", "client").Logger(),
	}
	c.mgr = NewManager(opts.Policy, opts.Clock, opts.Logger, c.dial)
	return c
}

// Run connects and blocks until the context is cancelled or the
// reconnection budget is exhausted.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	cancel := c.cancel
	c.mu.Unlock()

	c.mgr.SetOnFailed(cancel)

	if !c.mgr.Connect() {
		return fmt.Errorf("connect from state %s", c.mgr.State())
	}

	<-c.ctx.Done()
	failed := c.mgr.State() == Failed
	c.Disconnect()
	if failed {
		return fmt.Errorf("gave up after %d reconnect attempts", c.opts.Policy.MaxAttempts)
	}
	return nil
}

// Disconnect tears the connection down and cancels any pending retry.
func (c *Client) Disconnect() {
	c.mgr.Disconnect()
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "bye")
	}
	if cancel != nil {
		cancel()
	}
}

// Send writes a command frame. Returns an error while disconnected.
func (c *Client) Send(cmd proto.ClientCommand) error {
	c.mu.Lock()
	conn := c.conn
	ctx := c.ctx
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return wsjson.Write(ctx, conn, cmd)
}

// SendMessage broadcasts a global chat message.
func (c *Client) SendMessage(content string) error {
	return c.sendTyped(proto.TypeSendMessage, proto.SendMessageData{Content: content})
}

// SendRoomMessage sends a message scoped to a room.
func (c *Client) SendRoomMessage(roomID, content string) error {
	return c.sendTyped(proto.TypeSendRoomMessage, proto.SendRoomMessageData{RoomID: roomID, Content: content})
}

// JoinRoom subscribes to a room.
func (c *Client) JoinRoom(roomID string) error {
	return c.sendTyped(proto.TypeJoinRoom, proto.JoinRoomData{RoomID: roomID})
}

// LeaveRoom unsubscribes from a room.
func (c *Client) LeaveRoom(roomID string) error {
	return c.sendTyped(proto.TypeLeaveRoom, proto.LeaveRoomData{RoomID: roomID})
}

// SetNickname changes the display nickname.
func (c *Client) SetNickname(nickname string) error {
	return c.sendTyped(proto.TypeSetNickname, proto.SetNicknameData{Nickname: nickname})
}

// State exposes the reconnection state for status displays.
func (c *Client) State() State {
	return c.mgr.State()
}

func (c *Client) sendTyped(cmdType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", cmdType, err)
	}
	return c.Send(proto.ClientCommand{Type: cmdType, Data: raw})
}

// dial is the manager's attempt callback: one dial plus, on success, a read
// loop that reports transport closure back to the manager.
func (c *Client) dial(attempt int) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	url := c.opts.URL
	if c.opts.Token != "" {
		url += "?token=" + c.opts.Token
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("dial failed")
		c.mgr.TransportClosed()
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.mgr.TransportUp()
	c.log.Info().Int("attempt", attempt).Msg("connected")

	go c.readLoop(ctx, conn)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var ev proto.ServerEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			c.mgr.TransportClosed()
			return
		}

		if ev.Event == proto.EventPing {
			// Heartbeat: answer immediately so the server keeps us alive.
			if err := c.Send(proto.ClientCommand{Type: proto.TypePong}); err != nil {
				c.log.Debug().Err(err).Msg("pong failed")
			}
			continue
		}

		if c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	}
}
