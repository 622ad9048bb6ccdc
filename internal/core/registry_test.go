package core

import "testing"

func TestRegistryRegisterLookup(t *testing.T) {
	r := NewRegistry()
	c := NewClient("a", "s1", "alice", 4)

	if replaced := r.Register(c); replaced != nil {
		t.Fatalf("unexpected replaced client: %+v", replaced)
	}
	if c.state != StateOpen {
		t.Fatalf("register should open the connection, state=%v", c.state)
	}
	if r.Lookup("a") != c {
		t.Fatal("lookup by user failed")
	}
	if r.Len() != 1 {
		t.Fatalf("unexpected len: %d", r.Len())
	}
}

func TestRegistryReplaceReturnsPriorSession(t *testing.T) {
	r := NewRegistry()
	first := NewClient("a", "s1", "alice", 4)
	second := NewClient("a", "s2", "alice", 4)

	r.Register(first)
	replaced := r.Register(second)
	if replaced != first {
		t.Fatalf("expected first session back, got %+v", replaced)
	}
	if r.Lookup("a") != second {
		t.Fatal("user index should point at the new session")
	}
}

func TestRegistryUnregisterReturnsRooms(t *testing.T) {
	r := NewRegistry()
	c := NewClient("a", "s1", "alice", 4)
	r.Register(c)
	c.rooms["general"] = struct{}{}
	c.rooms["random"] = struct{}{}

	got, rooms := r.Unregister("s1")
	if got != c {
		t.Fatalf("unexpected client: %+v", got)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %v", rooms)
	}
	if r.Lookup("a") != nil || r.Len() != 0 {
		t.Fatal("client still indexed after unregister")
	}

	// Unregistering again is a no-op.
	if got, _ := r.Unregister("s1"); got != nil {
		t.Fatalf("second unregister returned %+v", got)
	}
}

func TestRegistryUnregisterStaleSessionKeepsUserIndex(t *testing.T) {
	r := NewRegistry()
	first := NewClient("a", "s1", "alice", 4)
	second := NewClient("a", "s2", "alice", 4)
	r.Register(first)
	r.Register(second)

	// Tearing down the replaced session must not evict the live one.
	r.Unregister("s1")
	if r.Lookup("a") != second {
		t.Fatal("live session lost when stale session unregistered")
	}
}

func TestRegistryBroadcastGlobal(t *testing.T) {
	r := NewRegistry()
	a := NewClient("a", "s1", "alice", 4)
	b := NewClient("b", "s2", "bob", 4)
	r.Register(a)
	r.Register(b)

	full := NewClient("c", "s3", "carol", 1)
	r.Register(full)
	full.trySend(&Event{Kind: EventPing}) // fill the queue

	delivered := r.BroadcastGlobal(&Event{Kind: EventMessage})
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
	if full.dropped != 1 {
		t.Fatalf("expected 1 drop on the full queue, got %d", full.dropped)
	}
}
