package proto

import (
	"time"

	"github.com/roomchat/roomchat-server/internal/store"
)

// Envelope delivery kinds.
const (
	// TypeHistory marks a replayed historical message.
	TypeHistory = "history"
	// TypeNewMessage marks a freshly broadcast message.
	TypeNewMessage = "new_message"
)

// Inbound is a new-message request coming from the client.
type Inbound struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type,omitempty"`
}

// Envelope is the outbound frame wrapping either a historical or a freshly
// broadcast message. It is constructed fresh per delivery and never mutated.
type Envelope struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	RoomID      int64  `json:"room_id"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	CreatedAt   string `json:"created_at"`
	Type        string `json:"type"`
}

// NewEnvelope wraps a persisted message for wire delivery.
func NewEnvelope(msg *store.Message, kind string) Envelope {
	return Envelope{
		ID:          msg.ID,
		Content:     msg.Content,
		MessageType: string(msg.MessageType),
		RoomID:      msg.RoomID,
		UserID:      msg.UserID,
		Username:    msg.Username,
		CreatedAt:   msg.CreatedAt.Format(time.RFC3339),
		Type:        kind,
	}
}
