package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/store"
)

// AnalyticsHandlers provides admin-only aggregate statistics endpoints.
type AnalyticsHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewAnalyticsHandlers creates a new analytics handlers instance.
func NewAnalyticsHandlers(st store.Store, logger *zerolog.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		store: st,
		log:   logger,
	}
}

// RoomStatsResponse represents per-room analytics.
type RoomStatsResponse struct {
	RoomID       int64   `json:"room_id"`
	RoomName     string  `json:"room_name"`
	MessageCount int64   `json:"message_count"`
	UserCount    int64   `json:"user_count"`
	LastActivity *string `json:"last_activity"`
}

// UserStatsResponse represents per-user analytics.
type UserStatsResponse struct {
	UserID       int64   `json:"user_id"`
	Username     string  `json:"username"`
	MessageCount int64   `json:"message_count"`
	RoomsJoined  int64   `json:"rooms_joined"`
	LastActivity *string `json:"last_activity"`
}

// parseTimeRange reads optional RFC3339 start/end query parameters.
func parseTimeRange(c *gin.Context) (start, end *time.Time, ok bool) {
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{
		{"start_date", &start},
		{"end_date", &end},
	} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + q.name})
			return nil, nil, false
		}
		*q.dst = &parsed
	}
	return start, end, true
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}

// RoomStats returns analytics for all active rooms.
// GET /api/analytics/rooms
func (h *AnalyticsHandlers) RoomStats(c *gin.Context) {
	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}

	stats, err := h.store.RoomStats(c.Request.Context(), start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to compute room stats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomStatsResponse, 0, len(stats))
	for _, st := range stats {
		response = append(response, RoomStatsResponse{
			RoomID:       st.RoomID,
			RoomName:     st.RoomName,
			MessageCount: st.MessageCount,
			UserCount:    st.UserCount,
			LastActivity: formatTime(st.LastActivity),
		})
	}
	c.JSON(http.StatusOK, response)
}

// UserStats returns analytics for all active users.
// GET /api/analytics/users
func (h *AnalyticsHandlers) UserStats(c *gin.Context) {
	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}

	stats, err := h.store.UserStats(c.Request.Context(), start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to compute user stats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserStatsResponse, 0, len(stats))
	for _, st := range stats {
		response = append(response, UserStatsResponse{
			UserID:       st.UserID,
			Username:     st.Username,
			MessageCount: st.MessageCount,
			RoomsJoined:  st.RoomsJoined,
			LastActivity: formatTime(st.LastActivity),
		})
	}
	c.JSON(http.StatusOK, response)
}
