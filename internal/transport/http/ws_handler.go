package http

import (
	"context"
	"errors"
	"strconv"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/auth"
	"github.com/roomchat/roomchat-server/internal/config"
	"github.com/roomchat/roomchat-server/internal/core"
	"github.com/roomchat/roomchat-server/internal/store"
)

// WSHandler upgrades HTTP connections, authorizes them, and hands the socket
// to a core.Session.
type WSHandler struct {
	lifecycle   context.Context
	authService *auth.Service
	store       store.Store
	registry    *core.Registry
	broadcaster *core.Broadcaster
	sessionCfg  core.SessionConfig
	maxBytes    int64
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. Sessions started by the
// handler are terminated when lifecycle is canceled.
func NewWSHandler(lifecycle context.Context, cfg *config.Config, authService *auth.Service, st store.Store, registry *core.Registry, broadcaster *core.Broadcaster, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		lifecycle:   lifecycle,
		authService: authService,
		store:       st,
		registry:    registry,
		broadcaster: broadcaster,
		sessionCfg: core.SessionConfig{
			HistoryLimit:    cfg.HistoryLimit,
			ReadIdleTimeout: cfg.ReadIdleTimeout,
			WriteTimeout:    cfg.WriteTimeout,
		},
		maxBytes: cfg.MaxMessageBytes,
		log:      logger,
	}
}

// Handle serves GET /ws/:room_id?token=...
// Credential and room checks run after the upgrade so the client receives a
// websocket close code (policy violation) rather than an HTTP error.
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.maxBytes > 0 {
		conn.SetReadLimit(h.maxBytes)
	}

	claims, err := h.authService.ValidateToken(c.Query("token"))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth rejected")
		_ = conn.Close(websocket.StatusPolicyViolation, "invalid credential")
		return
	}

	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "invalid room")
		return
	}

	room, err := h.store.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = conn.Close(websocket.StatusPolicyViolation, "unknown room")
			return
		}
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("ws room lookup failed")
		_ = conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	identity := core.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}

	session := core.NewSession(room.ID, identity, newWSSocket(conn), h.registry, h.broadcaster, h.store, h.sessionCfg, h.log)

	ctx, cancel := context.WithCancel(h.lifecycle)
	defer cancel()
	session.Run(ctx)
}
