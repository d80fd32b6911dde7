package core

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistryRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	p := &fakePeer{id: "a"}

	r.Register(1, p)
	r.Register(1, p)

	if got := r.Count(1); got != 1 {
		t.Fatalf("expected 1 peer after double register, got %d", got)
	}
}

func TestRegistryUnregisterAbsentPeer(t *testing.T) {
	r := NewRegistry()
	p := &fakePeer{id: "a"}

	// Unregistering a peer that was never registered must not panic or
	// disturb other rooms.
	r.Unregister(1, p)

	other := &fakePeer{id: "b"}
	r.Register(2, other)
	r.Unregister(1, p)

	if got := r.Count(2); got != 1 {
		t.Fatalf("expected room 2 untouched, got %d peers", got)
	}
}

func TestRegistryUnregisterTwice(t *testing.T) {
	r := NewRegistry()
	p := &fakePeer{id: "a"}

	r.Register(1, p)
	r.Unregister(1, p)
	r.Unregister(1, p)

	if got := r.Count(1); got != 0 {
		t.Fatalf("expected empty room, got %d peers", got)
	}
}

func TestRegistryMembersSnapshot(t *testing.T) {
	r := NewRegistry()
	a := &fakePeer{id: "a"}
	b := &fakePeer{id: "b"}
	r.Register(1, a)
	r.Register(1, b)

	snapshot := r.Members(1)
	if len(snapshot) != 2 {
		t.Fatalf("expected snapshot of 2, got %d", len(snapshot))
	}

	// Mutating the registry must not affect an already taken snapshot.
	r.Unregister(1, a)
	r.Unregister(1, b)
	if len(snapshot) != 2 {
		t.Fatalf("snapshot changed after unregister, got %d", len(snapshot))
	}
	if r.Members(1) != nil {
		t.Fatal("expected nil members for empty room")
	}
}

func TestRegistryRoomIsolation(t *testing.T) {
	r := NewRegistry()
	a := &fakePeer{id: "a"}
	b := &fakePeer{id: "b"}
	r.Register(1, a)
	r.Register(2, b)

	if got := r.Count(1); got != 1 {
		t.Fatalf("room 1: expected 1 peer, got %d", got)
	}
	if got := r.Count(2); got != 1 {
		t.Fatalf("room 2: expected 1 peer, got %d", got)
	}

	r.Unregister(1, a)
	if got := r.Count(2); got != 1 {
		t.Fatalf("room 2 lost a peer when room 1 was emptied, got %d", got)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p := &fakePeer{id: fmt.Sprintf("peer-%d", n)}
			roomID := int64(n % 4)
			for j := 0; j < 100; j++ {
				r.Register(roomID, p)
				r.Members(roomID)
				r.Unregister(roomID, p)
			}
		}(i)
	}
	wg.Wait()

	for roomID := int64(0); roomID < 4; roomID++ {
		if got := r.Count(roomID); got != 0 {
			t.Fatalf("room %d: expected 0 peers after churn, got %d", roomID, got)
		}
	}
}
