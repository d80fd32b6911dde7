package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/store"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=64"`
	Description string `json:"description" binding:"omitempty,max=512"`
	RoomType    string `json:"room_type" binding:"omitempty,oneof=public private direct"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Type         string `json:"type"`
	CreatorID    int64  `json:"creator_id"`
	IsActive     bool   `json:"is_active"`
	CreatedAt    string `json:"created_at"`
	MessageCount int64  `json:"message_count"`
	UserCount    int64  `json:"user_count"`
}

// CreateRoom handles room creation. The creator becomes the first member.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	room, err := h.store.CreateRoom(ctx, req.Name, req.Description, store.RoomType(req.RoomType), identity.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "room with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if err := h.store.AddMember(ctx, identity.UserID, room.ID); err != nil {
		h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to add creator to room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if err := h.store.RecordActivity(ctx, identity.UserID, store.ActivityCreateRoom, &room.ID); err != nil {
		h.log.Warn().Err(err).Int64("room_id", room.ID).Msg("record create activity")
	}

	h.log.Info().Str("room_name", room.Name).Int64("room_id", room.ID).Int64("creator_id", identity.UserID).Msg("room created successfully")
	c.JSON(http.StatusCreated, RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		Type:        string(room.Type),
		CreatorID:   room.CreatorID,
		IsActive:    room.IsActive,
		CreatedAt:   room.CreatedAt.Format(time.RFC3339),
		UserCount:   1,
	})
}

// ListRooms lists active rooms with message and member counts.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	rooms, err := h.store.ListRooms(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		messageCount, err := h.store.CountMessages(ctx, room.ID)
		if err != nil {
			h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to count messages")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		userCount, err := h.store.CountMembers(ctx, room.ID)
		if err != nil {
			h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to count members")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		response = append(response, RoomResponse{
			ID:           room.ID,
			Name:         room.Name,
			Description:  room.Description,
			Type:         string(room.Type),
			CreatorID:    room.CreatorID,
			IsActive:     room.IsActive,
			CreatedAt:    room.CreatedAt.Format(time.RFC3339),
			MessageCount: messageCount,
			UserCount:    userCount,
		})
	}

	c.JSON(http.StatusOK, response)
}

// JoinRoom adds the authenticated user to a room.
// POST /api/rooms/:room_id/join
func (h *RoomHandlers) JoinRoom(c *gin.Context) {
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

	member, err := h.store.IsMember(ctx, identity.UserID, room.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if member {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "already joined this room"})
		return
	}

	if err := h.store.AddMember(ctx, identity.UserID, room.ID); err != nil {
		h.log.Error().Err(err).Int64("room_id", room.ID).Msg("failed to join room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if err := h.store.RecordActivity(ctx, identity.UserID, store.ActivityJoinRoom, &room.ID); err != nil {
		h.log.Warn().Err(err).Int64("room_id", room.ID).Msg("record join activity")
	}

	h.log.Info().Int64("room_id", room.ID).Int64("user_id", identity.UserID).Msg("user joined room")
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("successfully joined room %s", room.Name)})
}
