package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relaychat/relaychat-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("events channel closed while waiting for kind %v", kind)
			}
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// assertNoEvent drains for a short window and fails if an event of the
// given kind shows up.
func assertNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// fakeStore is an in-memory store.Store with switchable failure modes.
type fakeStore struct {
	mu         sync.Mutex
	rooms      []*store.Room
	members    map[string]map[string]struct{}
	messages   []*store.Message
	failAppend bool
	failJoin   bool
}

func newFakeStore(roomIDs ...string) *fakeStore {
	fs := &fakeStore{members: make(map[string]map[string]struct{})}
	for _, id := range roomIDs {
		fs.rooms = append(fs.rooms, &store.Room{ID: id, Name: id})
		fs.members[id] = make(map[string]struct{})
	}
	return fs
}

func (f *fakeStore) AppendMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppend {
		return context.DeadlineExceeded
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) ListRooms(_ context.Context) ([]*store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*store.Room(nil), f.rooms...), nil
}

func (f *fakeStore) CreateRoom(_ context.Context, room *store.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, room)
	f.members[room.ID] = make(map[string]struct{})
	return nil
}

func (f *fakeStore) RoomsOf(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for roomID, members := range f.members {
		if _, ok := members[userID]; ok {
			out = append(out, roomID)
		}
	}
	return out, nil
}

func (f *fakeStore) AddMember(_ context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failJoin {
		return context.DeadlineExceeded
	}
	f.members[roomID][userID] = struct{}{}
	return nil
}

func (f *fakeStore) RemoveMember(_ context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[roomID], userID)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// newTestHub starts a hub over a fake store seeded with the given rooms.
func newTestHub(t *testing.T, clk clock.Clock, roomIDs ...string) (*Hub, *fakeStore, context.CancelFunc) {
	t.Helper()

	fs := newFakeStore(roomIDs...)
	hub := NewHub(fs, nil, clk, HubConfig{QueueCapacity: 16})
	ctx, cancel := context.WithCancel(context.Background())
	if err := hub.Bootstrap(ctx); err != nil {
		cancel()
		t.Fatalf("bootstrap: %v", err)
	}
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, fs, cancel
}

func registerClient(hub *Hub, userID, nickname string) *Client {
	c := NewClient(userID, userID+"-session", nickname, 16)
	hub.RegisterClient(c)
	return c
}
