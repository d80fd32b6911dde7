package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/roomchat/roomchat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'user',
	is_active     BOOLEAN NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_login    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL DEFAULT 'public',
	creator_id  INTEGER NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (creator_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id   INTEGER NOT NULL,
	user_id   INTEGER NOT NULL,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id),
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id      INTEGER NOT NULL,
	user_id      INTEGER NOT NULL,
	content      TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'text',
	is_edited    BOOLEAN NOT NULL DEFAULT 0,
	is_deleted   BOOLEAN NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	edited_at    DATETIME,
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS user_activities (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       INTEGER NOT NULL,
	activity_type TEXT NOT NULL,
	room_id       INTEGER,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);
CREATE INDEX IF NOT EXISTS idx_user_activities_user ON user_activities(user_id, created_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file (":memory:" for tests).
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with an already-hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string, role store.Role) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, role)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, email, passwordHash, string(role))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

const userColumns = `id, username, email, password_hash, role, is_active, created_at, last_login`

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.LastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

// ListUsers lists all users.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var user store.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.IsActive,
			&user.CreatedAt,
			&user.LastLogin,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

// TouchLastLogin updates the user's last login timestamp.
func (s *SQLiteStore) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET last_login = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, at.UTC(), userID); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name, description string, roomType store.RoomType, creatorID int64) (*store.Room, error) {
	if roomType == "" {
		roomType = store.RoomTypePublic
	}
	query := `
		INSERT INTO rooms (name, description, type, creator_id)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, description, string(roomType), creatorID)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetRoomByID(ctx, id)
}

const roomColumns = `id, name, description, type, creator_id, is_active, created_at`

func (s *SQLiteStore) scanRoom(row *sql.Row) (*store.Room, error) {
	var room store.Room
	err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&room.Type,
		&room.CreatorID,
		&room.IsActive,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return &room, nil
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, id))
}

// GetRoomByName retrieves a room by name.
func (s *SQLiteStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE name = ?`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, name))
}

// ListRooms lists all active rooms.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE is_active = 1 ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.Description,
			&room.Type,
			&room.CreatorID,
			&room.IsActive,
			&room.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// AddMember adds a user to a room. Adding an existing member is a no-op.
func (s *SQLiteStore) AddMember(ctx context.Context, userID, roomID int64) error {
	query := `
		INSERT OR IGNORE INTO room_members (user_id, room_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, userID, roomID); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a room.
func (s *SQLiteStore) RemoveMember(ctx context.Context, userID, roomID int64) error {
	query := `DELETE FROM room_members WHERE user_id = ? AND room_id = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, roomID); err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}
	return nil
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, userID, roomID int64) (bool, error) {
	query := `SELECT 1 FROM room_members WHERE user_id = ? AND room_id = ?`
	var one int
	err := s.db.QueryRowContext(ctx, query, userID, roomID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query room member: %w", err)
	}
	return true, nil
}

// CountMembers returns the number of members in a room.
func (s *SQLiteStore) CountMembers(ctx context.Context, roomID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM room_members WHERE room_id = ?`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// CountMessages returns the number of non-deleted messages in a room.
func (s *SQLiteStore) CountMessages(ctx context.Context, roomID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM messages WHERE room_id = ? AND is_deleted = 0`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and assigns its ID and creation timestamp.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.MessageType == "" {
		msg.MessageType = store.MessageTypeText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (room_id, user_id, content, message_type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.RoomID, msg.UserID, msg.Content, string(msg.MessageType), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListMessages retrieves non-deleted messages from a room, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	var query string
	var args []interface{}

	if beforeID != nil {
		query = `
			SELECT m.id, m.room_id, m.user_id, u.username, m.content, m.message_type,
			       m.is_edited, m.is_deleted, m.created_at, m.edited_at
			FROM messages m
			JOIN users u ON u.id = m.user_id
			WHERE m.room_id = ? AND m.is_deleted = 0 AND m.id < ?
			ORDER BY m.id DESC
			LIMIT ?
		`
		args = []interface{}{roomID, *beforeID, limit}
	} else {
		query = `
			SELECT m.id, m.room_id, m.user_id, u.username, m.content, m.message_type,
			       m.is_edited, m.is_deleted, m.created_at, m.edited_at
			FROM messages m
			JOIN users u ON u.id = m.user_id
			WHERE m.room_id = ? AND m.is_deleted = 0
			ORDER BY m.id DESC
			LIMIT ?
		`
		args = []interface{}{roomID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var editedAt sql.NullTime
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.UserID,
			&msg.Username,
			&msg.Content,
			&msg.MessageType,
			&msg.IsEdited,
			&msg.IsDeleted,
			&msg.CreatedAt,
			&editedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if editedAt.Valid {
			msg.EditedAt = &editedAt.Time
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// ListRecentMessages retrieves the most recent non-deleted messages, newest first.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, roomID int64, limit int) ([]*store.Message, error) {
	return s.ListMessages(ctx, roomID, limit, nil)
}

// ==== ActivityStore implementation ====

// RecordActivity appends one entry to the activity log.
func (s *SQLiteStore) RecordActivity(ctx context.Context, userID int64, activityType string, roomID *int64) error {
	query := `
		INSERT INTO user_activities (user_id, activity_type, room_id)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, userID, activityType, roomID); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ==== AnalyticsStore implementation ====

// sqliteTimeFormats are the timestamp layouts the driver may hand back for
// expression columns such as MAX(created_at), where the declared column type
// is lost and no automatic conversion happens.
var sqliteTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

func parseSQLiteTime(value string) *time.Time {
	for _, layout := range sqliteTimeFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func timeRangeCond(column string, start, end *time.Time) (string, []interface{}) {
	cond := ""
	var args []interface{}
	if start != nil {
		cond += " AND " + column + " >= ?"
		args = append(args, start.UTC())
	}
	if end != nil {
		cond += " AND " + column + " <= ?"
		args = append(args, end.UTC())
	}
	return cond, args
}

// RoomStats returns analytics for all active rooms, optionally bounded in time.
func (s *SQLiteStore) RoomStats(ctx context.Context, start, end *time.Time) ([]*store.RoomStats, error) {
	cond, condArgs := timeRangeCond("m.created_at", start, end)
	query := fmt.Sprintf(`
		SELECT r.id, r.name,
		       (SELECT COUNT(*) FROM messages m WHERE m.room_id = r.id AND m.is_deleted = 0%s),
		       (SELECT COUNT(*) FROM room_members rm WHERE rm.room_id = r.id),
		       (SELECT MAX(m.created_at) FROM messages m WHERE m.room_id = r.id AND m.is_deleted = 0%s)
		FROM rooms r
		WHERE r.is_active = 1
		ORDER BY r.id
	`, cond, cond)

	args := append(append([]interface{}{}, condArgs...), condArgs...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query room stats: %w", err)
	}
	defer rows.Close()

	var stats []*store.RoomStats
	for rows.Next() {
		var st store.RoomStats
		var last sql.NullString
		if err := rows.Scan(&st.RoomID, &st.RoomName, &st.MessageCount, &st.UserCount, &last); err != nil {
			return nil, fmt.Errorf("scan room stats: %w", err)
		}
		if last.Valid {
			st.LastActivity = parseSQLiteTime(last.String)
		}
		stats = append(stats, &st)
	}

	return stats, rows.Err()
}

// UserStats returns analytics for all active users, optionally bounded in time.
func (s *SQLiteStore) UserStats(ctx context.Context, start, end *time.Time) ([]*store.UserStats, error) {
	cond, condArgs := timeRangeCond("m.created_at", start, end)
	query := fmt.Sprintf(`
		SELECT u.id, u.username,
		       (SELECT COUNT(*) FROM messages m WHERE m.user_id = u.id AND m.is_deleted = 0%s),
		       (SELECT COUNT(*) FROM room_members rm WHERE rm.user_id = u.id),
		       (SELECT MAX(a.created_at) FROM user_activities a WHERE a.user_id = u.id)
		FROM users u
		WHERE u.is_active = 1
		ORDER BY u.id
	`, cond)

	rows, err := s.db.QueryContext(ctx, query, condArgs...)
	if err != nil {
		return nil, fmt.Errorf("query user stats: %w", err)
	}
	defer rows.Close()

	var stats []*store.UserStats
	for rows.Next() {
		var st store.UserStats
		var last sql.NullString
		if err := rows.Scan(&st.UserID, &st.Username, &st.MessageCount, &st.RoomsJoined, &last); err != nil {
			return nil, fmt.Errorf("scan user stats: %w", err)
		}
		if last.Valid {
			st.LastActivity = parseSQLiteTime(last.String)
		}
		stats = append(stats, &st)
	}

	return stats, rows.Err()
}
