package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/store"
)

// MessageHandlers provides HTTP handlers for message history.
type MessageHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store: st,
		log:   logger,
	}
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID          int64   `json:"id"`
	Content     string  `json:"content"`
	MessageType string  `json:"message_type"`
	RoomID      int64   `json:"room_id"`
	UserID      int64   `json:"user_id"`
	Username    string  `json:"username"`
	IsEdited    bool    `json:"is_edited"`
	IsDeleted   bool    `json:"is_deleted"`
	CreatedAt   string  `json:"created_at"`
	EditedAt    *string `json:"edited_at"`
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// ListMessages returns a room's message history, newest first, with cursor
// pagination. Only room members and admins may read it.
// GET /api/rooms/:room_id/messages?cursor=&limit=
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	ctx := c.Request.Context()
	room, err := h.store.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if identity.Role != string(store.RoleAdmin) {
		member, err := h.store.IsMember(ctx, identity.UserID, room.ID)
		if err != nil {
			h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to check membership")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied to this room"})
			return
		}
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	var cursor *int64
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid cursor"})
			return
		}
		cursor = &parsed
	}

	messages, err := h.store.ListMessages(ctx, room.ID, limit, cursor)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		var editedAt *string
		if msg.EditedAt != nil {
			formatted := msg.EditedAt.Format(time.RFC3339)
			editedAt = &formatted
		}
		response = append(response, MessageResponse{
			ID:          msg.ID,
			Content:     msg.Content,
			MessageType: string(msg.MessageType),
			RoomID:      msg.RoomID,
			UserID:      msg.UserID,
			Username:    msg.Username,
			IsEdited:    msg.IsEdited,
			IsDeleted:   msg.IsDeleted,
			CreatedAt:   msg.CreatedAt.Format(time.RFC3339),
			EditedAt:    editedAt,
		})
	}

	c.JSON(http.StatusOK, response)
}
