package core

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/proto"
)

// Broadcaster fans out envelopes to every peer currently registered in a
// room. Fan-out is best effort over a dynamic membership set: a delivery
// failure on one peer removes that peer from the registry and never aborts
// delivery to the remaining peers or surfaces to the caller.
type Broadcaster struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewBroadcaster builds a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		log:      logger,
	}
}

// Broadcast serializes the envelope once and delivers it to a snapshot of
// the room's membership taken at call time. Peers joining after the snapshot
// do not receive this envelope.
func (b *Broadcaster) Broadcast(ctx context.Context, roomID int64, env proto.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		b.log.Error().Err(err).Int64("room_id", roomID).Msg("marshal envelope")
		return
	}

	for _, peer := range b.registry.Members(roomID) {
		if err := peer.Deliver(ctx, payload); err != nil {
			b.registry.Unregister(roomID, peer)
			b.log.Warn().Err(err).
				Int64("room_id", roomID).
				Str("conn_id", peer.ConnID()).
				Msg("delivery failed, peer unregistered")
		}
	}
}

// SendTo delivers an envelope to a single peer, used for direct replies such
// as history replay. On failure the peer is unregistered and false is
// returned so the caller can stop using the connection.
func (b *Broadcaster) SendTo(ctx context.Context, roomID int64, peer Peer, env proto.Envelope) bool {
	payload, err := json.Marshal(env)
	if err != nil {
		b.log.Error().Err(err).Int64("room_id", roomID).Msg("marshal envelope")
		return false
	}

	if err := peer.Deliver(ctx, payload); err != nil {
		b.registry.Unregister(roomID, peer)
		b.log.Warn().Err(err).
			Int64("room_id", roomID).
			Str("conn_id", peer.ConnID()).
			Msg("direct delivery failed, peer unregistered")
		return false
	}
	return true
}
