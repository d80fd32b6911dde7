package core

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/proto"
	"github.com/roomchat/roomchat-server/internal/store"
)

// CloseCode is a websocket close status the session can emit.
type CloseCode int

const (
	CloseNormal          CloseCode = 1000
	ClosePolicyViolation CloseCode = 1008
	CloseInternalError   CloseCode = 1011
)

// Socket is the wire surface a session drives. The transport layer adapts
// the underlying websocket connection to this interface.
type Socket interface {
	// ReadFrame blocks for the next inbound text frame.
	ReadFrame(ctx context.Context) ([]byte, error)
	// WriteFrame writes one text frame.
	WriteFrame(ctx context.Context, payload []byte) error
	// Close closes the socket with the given code and reason.
	Close(code CloseCode, reason string) error
}

// Gateway is the durable-storage collaborator the session calls into.
// It is satisfied by the sqlite store.
type Gateway interface {
	SaveMessage(ctx context.Context, msg *store.Message) error
	ListRecentMessages(ctx context.Context, roomID int64, limit int) ([]*store.Message, error)
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)
	AddMember(ctx context.Context, userID, roomID int64) error
	RecordActivity(ctx context.Context, userID int64, activityType string, roomID *int64) error
}

// Identity is a verified user bound to a session.
type Identity struct {
	UserID   int64
	Username string
	Role     string
}

// State tracks the session lifecycle. A session is constructed Authorized:
// the transport has already verified the credential and the room before
// handing the socket over.
type State int32

const (
	StateAuthorized State = iota
	StateActive
	StateClosed
)

// SessionConfig bounds the session's I/O.
type SessionConfig struct {
	// HistoryLimit is the number of messages replayed on join.
	HistoryLimit int
	// ReadIdleTimeout closes connections with no inbound traffic.
	ReadIdleTimeout time.Duration
	// WriteTimeout bounds each delivery so a blocked consumer turns into a
	// delivery failure instead of stalling the broadcaster.
	WriteTimeout time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = 5 * time.Minute
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Session is the server-side state machine for one connected client bound to
// one user and one room. It owns the socket and the receive loop; the
// registry only references it.
type Session struct {
	id          string
	roomID      int64
	identity    Identity
	sock        Socket
	registry    *Registry
	broadcaster *Broadcaster
	gateway     Gateway
	cfg         SessionConfig
	log         *zerolog.Logger

	state     atomic.Int32
	closeOnce sync.Once
}

// NewSession binds an authorized connection to a room.
func NewSession(roomID int64, identity Identity, sock Socket, registry *Registry, broadcaster *Broadcaster, gateway Gateway, cfg SessionConfig, logger *zerolog.Logger) *Session {
	s := &Session{
		id:          uuid.NewString(),
		roomID:      roomID,
		identity:    identity,
		sock:        sock,
		registry:    registry,
		broadcaster: broadcaster,
		gateway:     gateway,
		cfg:         cfg.withDefaults(),
		log:         logger,
	}
	s.state.Store(int32(StateAuthorized))
	return s
}

// ConnID returns the unique connection handle.
func (s *Session) ConnID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Deliver writes one payload to the socket with the configured write
// timeout. On failure the session tears itself down so its read loop
// unblocks; the caller additionally unregisters it.
func (s *Session) Deliver(ctx context.Context, payload []byte) error {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	if err := s.sock.WriteFrame(wctx, payload); err != nil {
		s.teardown(CloseInternalError, "delivery failure")
		return err
	}
	return nil
}

// Run registers the session, replays history, and drives the receive loop.
// It returns when the client disconnects, an unrecoverable error occurs, or
// ctx is canceled (server shutdown). The registry entry is removed exactly
// once on the way out.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown(CloseNormal, "closing")

	if err := s.ensureMembership(ctx); err != nil {
		s.log.Error().Err(err).Int64("room_id", s.roomID).Int64("user_id", s.identity.UserID).Msg("membership check failed")
		s.teardown(CloseInternalError, "internal error")
		return
	}

	s.registry.Register(s.roomID, s)
	s.state.Store(int32(StateActive))
	s.log.Info().
		Str("conn_id", s.id).
		Int64("room_id", s.roomID).
		Str("username", s.identity.Username).
		Msg("session active")

	if !s.replayHistory(ctx) {
		return
	}
	s.receiveLoop(ctx)
}

// ensureMembership auto-joins the user if the persistence layer has no
// membership record yet, and logs a join activity.
func (s *Session) ensureMembership(ctx context.Context) error {
	member, err := s.gateway.IsMember(ctx, s.identity.UserID, s.roomID)
	if err != nil {
		return err
	}
	if member {
		return nil
	}
	if err := s.gateway.AddMember(ctx, s.identity.UserID, s.roomID); err != nil {
		return err
	}
	roomID := s.roomID
	if err := s.gateway.RecordActivity(ctx, s.identity.UserID, store.ActivityJoinRoom, &roomID); err != nil {
		s.log.Warn().Err(err).Int64("room_id", s.roomID).Msg("record join activity")
	}
	return nil
}

// replayHistory delivers the most recent messages in chronological order to
// this session only. If a delivery fails mid-replay the rest is abandoned;
// the connection is likely already gone. Returns false when the session
// should not proceed to the receive loop.
func (s *Session) replayHistory(ctx context.Context) bool {
	messages, err := s.gateway.ListRecentMessages(ctx, s.roomID, s.cfg.HistoryLimit)
	if err != nil {
		s.log.Error().Err(err).Int64("room_id", s.roomID).Msg("load history")
		s.teardown(CloseInternalError, "failed to load history")
		return false
	}

	// Gateway returns newest first; replay oldest first.
	for i := len(messages) - 1; i >= 0; i-- {
		if !s.broadcaster.SendTo(ctx, s.roomID, s, proto.NewEnvelope(messages[i], proto.TypeHistory)) {
			break
		}
	}
	return true
}

// receiveLoop blocks for inbound frames until disconnect, error, or
// shutdown. Each decoded frame is persisted first and only then broadcast;
// a message that could not be durably recorded is never fanned out.
func (s *Session) receiveLoop(ctx context.Context) {
	for {
		rctx, cancel := context.WithTimeout(ctx, s.cfg.ReadIdleTimeout)
		data, err := s.sock.ReadFrame(rctx)
		cancel()
		if err != nil {
			s.log.Debug().Err(err).Str("conn_id", s.id).Msg("read frame")
			return
		}

		var in proto.Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.log.Warn().Err(err).Str("conn_id", s.id).Msg("malformed inbound frame")
			s.teardown(CloseInternalError, "malformed frame")
			return
		}

		if !s.handleInbound(ctx, in) {
			return
		}
	}
}

func (s *Session) handleInbound(ctx context.Context, in proto.Inbound) bool {
	msgType := store.MessageType(in.MessageType)
	if msgType == "" {
		msgType = store.MessageTypeText
	}

	msg := &store.Message{
		RoomID:      s.roomID,
		UserID:      s.identity.UserID,
		Username:    s.identity.Username,
		Content:     in.Content,
		MessageType: msgType,
	}
	if err := s.gateway.SaveMessage(ctx, msg); err != nil {
		s.log.Error().Err(err).Str("conn_id", s.id).Msg("persist message")
		s.teardown(CloseInternalError, "failed to persist message")
		return false
	}

	roomID := s.roomID
	if err := s.gateway.RecordActivity(ctx, s.identity.UserID, store.ActivitySendMessage, &roomID); err != nil {
		s.log.Warn().Err(err).Str("conn_id", s.id).Msg("record send activity")
	}

	s.broadcaster.Broadcast(ctx, s.roomID, proto.NewEnvelope(msg, proto.TypeNewMessage))
	return true
}

// teardown transitions to Closed, unregisters exactly once, and releases
// the socket. Safe to call from any goroutine and idempotent.
func (s *Session) teardown(code CloseCode, reason string) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.registry.Unregister(s.roomID, s)
		if err := s.sock.Close(code, reason); err != nil {
			s.log.Debug().Err(err).Str("conn_id", s.id).Msg("close socket")
		}
		s.log.Info().Str("conn_id", s.id).Int64("room_id", s.roomID).Str("reason", reason).Msg("session closed")
	})
}
