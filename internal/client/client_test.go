package client

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/relaychat/relaychat-server/internal/proto"
)

// startWSServer runs handle once per accepted websocket connection and
// returns the ws:// endpoint.
func startWSServer(t *testing.T, handle func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()

	ts := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handle(r.Context(), conn)
	}))
	t.Cleanup(ts.Close)
	return strings.Replace(ts.URL, "http", "ws", 1)
}

func fastPolicy() Policy {
	return Policy{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Factor:       2.0,
		MaxAttempts:  5,
	}
}

func TestClientAnswersPingWithPong(t *testing.T) {
	pongs := make(chan proto.ClientCommand, 1)
	url := startWSServer(t, func(ctx context.Context, conn *websocket.Conn) {
		if err := wsjson.Write(ctx, conn, proto.ServerEvent{
			Event: proto.EventConnected,
			Data:  proto.ConnectedData{UserID: "u1"},
		}); err != nil {
			return
		}
		if err := wsjson.Write(ctx, conn, proto.ServerEvent{Event: proto.EventPing}); err != nil {
			return
		}
		var cmd proto.ClientCommand
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			return
		}
		pongs <- cmd
		// Hold the connection open until the client hangs up.
		_ = wsjson.Read(ctx, conn, &cmd)
	})

	events := make(chan proto.ServerEvent, 8)
	c := New(Options{
		URL:     url,
		Policy:  fastPolicy(),
		OnEvent: func(ev proto.ServerEvent) { events <- ev },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	select {
	case ev := <-events:
		require.Equal(t, proto.EventConnected, ev.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("never received the connected event")
	}

	select {
	case cmd := <-pongs:
		require.Equal(t, proto.TypePong, cmd.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received a pong")
	}

	// The heartbeat is handled inside the transport, never surfaced.
	select {
	case ev := <-events:
		t.Fatalf("unexpected event surfaced: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestClientReconnectsAfterServerDrop(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	connected := make(chan int, 4)

	url := startWSServer(t, func(ctx context.Context, conn *websocket.Conn) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()
		connected <- n

		if n == 1 {
			// Abnormal close: the client should treat this as transport
			// loss and redial.
			conn.Close(websocket.StatusInternalError, "boom")
			return
		}
		var cmd proto.ClientCommand
		_ = wsjson.Read(ctx, conn, &cmd)
	})

	c := New(Options{URL: url, Policy: fastPolicy()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	for _, want := range []int{1, 2} {
		select {
		case n := <-connected:
			require.Equal(t, want, n)
		case <-time.After(2 * time.Second):
			t.Fatalf("dial %d never arrived", want)
		}
	}

	// The second dial succeeded, so the machine settles back in Connected.
	deadline := time.Now().Add(2 * time.Second)
	for c.State() != Connected {
		if time.Now().After(deadline) {
			t.Fatalf("never reconnected, state %s", c.State())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestClientGivesUpWhenServerUnreachable(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 2

	// Port 1 refuses connections, so every dial fails immediately.
	c := New(Options{URL: "ws://127.0.0.1:1/ws", Policy: policy})

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(context.Background()) }()

	select {
	case err := <-runErr:
		require.Error(t, err)
		require.Contains(t, err.Error(), "gave up after 2 reconnect attempts")
	case <-time.After(5 * time.Second):
		t.Fatal("run did not give up")
	}
}
