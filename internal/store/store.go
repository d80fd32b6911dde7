package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Role defines the access level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    time.Time
}

// RoomType defines different types of rooms.
type RoomType string

const (
	RoomTypePublic  RoomType = "public"
	RoomTypePrivate RoomType = "private"
	RoomTypeDirect  RoomType = "direct"
)

// Room represents a chat room.
type Room struct {
	ID          int64
	Name        string
	Description string
	Type        RoomType
	CreatorID   int64
	IsActive    bool
	CreatedAt   time.Time
}

// MessageType classifies message content.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Message represents a persisted chat message.
// Username is populated on reads that join against users; it is ignored on writes.
type Message struct {
	ID          int64
	RoomID      int64
	UserID      int64
	Username    string
	Content     string
	MessageType MessageType
	IsEdited    bool
	IsDeleted   bool
	CreatedAt   time.Time
	EditedAt    *time.Time
}

// Activity types recorded by the service.
const (
	ActivityLogin       = "login"
	ActivityCreateRoom  = "create_room"
	ActivityJoinRoom    = "join_room"
	ActivitySendMessage = "send_message"
)

// Activity is one entry in the user activity log.
type Activity struct {
	ID           int64
	UserID       int64
	ActivityType string
	RoomID       *int64
	CreatedAt    time.Time
}

// RoomStats aggregates per-room analytics.
type RoomStats struct {
	RoomID       int64
	RoomName     string
	MessageCount int64
	UserCount    int64
	LastActivity *time.Time
}

// UserStats aggregates per-user analytics.
type UserStats struct {
	UserID       int64
	Username     string
	MessageCount int64
	RoomsJoined  int64
	LastActivity *time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with an already-hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string, role Role) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers lists all users.
	ListUsers(ctx context.Context) ([]*User, error)

	// TouchLastLogin updates the user's last login timestamp.
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
}

// RoomStore handles room and membership persistence.
type RoomStore interface {
	// CreateRoom creates a new room.
	CreateRoom(ctx context.Context, name, description string, roomType RoomType, creatorID int64) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// GetRoomByName retrieves a room by name.
	GetRoomByName(ctx context.Context, name string) (*Room, error)

	// ListRooms lists all active rooms.
	ListRooms(ctx context.Context) ([]*Room, error)

	// AddMember adds a user to a room. Adding an existing member is a no-op.
	AddMember(ctx context.Context, userID, roomID int64) error

	// RemoveMember removes a user from a room.
	RemoveMember(ctx context.Context, userID, roomID int64) error

	// IsMember checks if user is a member of the room.
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)

	// CountMembers returns the number of members in a room.
	CountMembers(ctx context.Context, roomID int64) (int64, error)

	// CountMessages returns the number of non-deleted messages in a room.
	CountMessages(ctx context.Context, roomID int64) (int64, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and assigns its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves non-deleted messages from a room, newest first.
	// If beforeID is provided, only messages older than that ID are returned.
	ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*Message, error)

	// ListRecentMessages retrieves the most recent non-deleted messages, newest first.
	ListRecentMessages(ctx context.Context, roomID int64, limit int) ([]*Message, error)
}

// ActivityStore handles the user activity log.
type ActivityStore interface {
	// RecordActivity appends one entry to the activity log.
	RecordActivity(ctx context.Context, userID int64, activityType string, roomID *int64) error
}

// AnalyticsStore computes aggregate statistics.
type AnalyticsStore interface {
	// RoomStats returns analytics for all active rooms, optionally bounded in time.
	RoomStats(ctx context.Context, start, end *time.Time) ([]*RoomStats, error)

	// UserStats returns analytics for all active users, optionally bounded in time.
	UserStats(ctx context.Context, start, end *time.Time) ([]*UserStats, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	ActivityStore
	AnalyticsStore

	// Close closes the underlying database connection.
	Close() error
}
