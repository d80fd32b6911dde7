package core

import (
	"context"
	"sync"
)

// Peer is one live connection as seen by the registry and broadcaster.
// The registry references peers but never owns them; each peer is owned
// by its session.
type Peer interface {
	// Deliver writes one serialized envelope to the peer's socket.
	Deliver(ctx context.Context, payload []byte) error
	// ConnID identifies the peer in logs.
	ConnID() string
}

// Registry maps room IDs to the set of live peers in each room. It is safe
// for concurrent use from arbitrarily many session goroutines. The lock is
// only held for map mutations and snapshot copies, never across socket I/O.
type Registry struct {
	mu    sync.RWMutex
	rooms map[int64]map[Peer]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[int64]map[Peer]struct{}),
	}
}

// Register adds a peer to a room's set. Registering the same peer twice
// yields no duplicate entry.
func (r *Registry) Register(roomID int64, p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers, ok := r.rooms[roomID]
	if !ok {
		peers = make(map[Peer]struct{})
		r.rooms[roomID] = peers
	}
	peers[p] = struct{}{}
}

// Unregister removes a peer from a room's set. Removing an absent peer is a
// no-op; this covers the race where a connection closes during a broadcast.
func (r *Registry) Unregister(roomID int64, p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(peers, p)
	if len(peers) == 0 {
		delete(r.rooms, roomID)
	}
}

// Members returns a point-in-time snapshot of the room's peer set. Callers
// may iterate the snapshot while the registry mutates concurrently.
func (r *Registry) Members(roomID int64) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := r.rooms[roomID]
	if len(peers) == 0 {
		return nil
	}
	snapshot := make([]Peer, 0, len(peers))
	for p := range peers {
		snapshot = append(snapshot, p)
	}
	return snapshot
}

// Count returns the number of peers currently registered in a room.
func (r *Registry) Count(roomID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
