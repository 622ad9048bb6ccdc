package core

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestHeartbeatEvictsSilentClient(t *testing.T) {
	hub, _, _ := newTestHub(t, nil, "general")

	silent := registerClient(hub, "a", "alice")
	watcher := registerClient(hub, "b", "bob")

	silent.Commands <- Command{Kind: CommandJoinRoom, Room: "general"}
	watcher.Commands <- Command{Kind: CommandJoinRoom, Room: "general"}
	mustEvent(t, watcher.Events, EventUserJoinedRoom)

	// The watcher answers every ping; the silent client never does.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Kind == EventPing {
					watcher.Commands <- Command{Kind: CommandPong}
				}
				if ev.Kind == EventUserLeft && ev.User == "a" {
					return
				}
			case <-time.After(3 * time.Second):
				t.Error("silent client was never evicted")
				return
			}
		}
	}()

	for i := 0; i < 3; i++ {
		hub.RequestHeartbeat()
		time.Sleep(50 * time.Millisecond)
	}

	<-done

	select {
	case <-silent.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("silent client connection was not closed")
	}
	if hub.registry.Lookup("b") == nil {
		t.Fatal("responsive client was evicted")
	}
}

func TestHeartbeatEvictionAnnouncesDepartureOnce(t *testing.T) {
	hub, _, _ := newTestHub(t, nil, "general")

	silent := registerClient(hub, "a", "alice")
	watcher := registerClient(hub, "b", "bob")

	silent.Commands <- Command{Kind: CommandJoinRoom, Room: "general"}
	watcher.Commands <- Command{Kind: CommandJoinRoom, Room: "general"}
	mustEvent(t, watcher.Events, EventUserJoinedRoom)

	for i := 0; i < 3; i++ {
		hub.RequestHeartbeat()
		time.Sleep(50 * time.Millisecond)
		// Keep the watcher alive across sweeps.
		watcher.Commands <- Command{Kind: CommandPong}
		time.Sleep(20 * time.Millisecond)
	}

	roomLeft := mustEvent(t, watcher.Events, EventUserLeftRoom)
	if roomLeft.User != "a" || roomLeft.Room != "general" {
		t.Fatalf("unexpected room departure: %+v", roomLeft)
	}
	left := mustEvent(t, watcher.Events, EventUserLeft)
	if left.User != "a" {
		t.Fatalf("unexpected departure: %+v", left)
	}
	assertNoEvent(t, watcher.Events, EventUserLeft)
	assertNoEvent(t, watcher.Events, EventUserLeftRoom)
}

func TestHeartbeatEvictsOverflowingQueue(t *testing.T) {
	hub, _, _ := newTestHub(t, nil)

	slow := NewClient("a", "a-session", "alice", 1)
	hub.RegisterClient(slow)

	// The queue holds exactly the Connected event; everything after drops.
	chatter := registerClient(hub, "b", "bob")
	mustEvent(t, chatter.Events, EventConnected)
	chatter.Commands <- Command{Kind: CommandSendMessage, Text: "overflow"}
	mustEvent(t, chatter.Events, EventMessage)

	hub.RequestHeartbeat()

	select {
	case <-slow.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("overflowing client was not evicted")
	}
}

func TestHeartbeatOverflowCountsPerSweep(t *testing.T) {
	hub, _, _ := newTestHub(t, nil)

	slow := NewClient("a", "a-session", "alice", 2)
	hub.RegisterClient(slow)

	chatter := registerClient(hub, "b", "bob")
	mustEvent(t, chatter.Events, EventConnected)

	// slow's queue is full (Connected + chatter's arrival), so this drops.
	chatter.Commands <- Command{Kind: CommandSendMessage, Text: "one"}
	mustEvent(t, chatter.Events, EventMessage)

	// One drop is under the limit: the sweep keeps the connection and the
	// counter starts over.
	hub.RequestHeartbeat()
	time.Sleep(50 * time.Millisecond)

	// The consumer catches up and answers the probe.
	for len(slow.Events) > 0 {
		<-slow.Events
	}
	slow.Commands <- Command{Kind: CommandPong}

	chatter.Commands <- Command{Kind: CommandSendMessage, Text: "two"}
	if ev := mustEvent(t, slow.Events, EventMessage); ev.Message.Text != "two" {
		t.Fatalf("unexpected message: %+v", ev)
	}

	// A lifetime total of two drops spread across sweeps must not read as
	// sustained overflow.
	hub.RequestHeartbeat()
	time.Sleep(50 * time.Millisecond)

	select {
	case <-slow.Done:
		t.Fatal("connection evicted on stale drop history")
	default:
	}

	chatter.Commands <- Command{Kind: CommandSendMessage, Text: "three"}
	if ev := mustEvent(t, slow.Events, EventMessage); ev.Message.Text != "three" {
		t.Fatalf("unexpected message: %+v", ev)
	}
}

func TestHeartbeatMonitorDrivesSweeps(t *testing.T) {
	mck := clock.NewMock()
	hub, _, _ := newTestHub(t, mck)

	alice := registerClient(hub, "a", "alice")
	mustEvent(t, alice.Events, EventConnected)

	monitor := NewHeartbeatMonitor(hub, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	// Let the monitor install its ticker before advancing the clock.
	time.Sleep(50 * time.Millisecond)
	mck.Add(time.Second)

	ev := mustEvent(t, alice.Events, EventPing)
	if ev.Kind != EventPing {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
