// Package sessions persists assistant conversations: sessions and the
// messages exchanged in them.
package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/clinrag/internal/db"
	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/memory"
)

// maxIDAttempts bounds message id regeneration on primary-key collisions.
const maxIDAttempts = 5

// ErrSessionNotFound is returned when a message targets an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// Session is one conversation thread.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single stored turn.
type Message struct {
	ID            string             `json:"id"`
	SessionID     string             `json:"session_id"`
	Role          llm.Role           `json:"role"`
	Content       string             `json:"content"`
	FunctionCalls []llm.FunctionCall `json:"function_calls,omitempty"`
	UsedMemories  []memory.Entry     `json:"used_memories,omitempty"`
	IsUsingMemory bool               `json:"is_using_memory"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Store manages persistence of sessions and messages.
type Store struct {
	db    *db.DB
	newID func() string
	now   func() time.Time
}

// NewStore creates a session store on top of an open database.
func NewStore(database *db.DB) *Store {
	return &Store{
		db:    database,
		newID: func() string { return uuid.New().String() },
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession creates a new chat session.
func (s *Store) CreateSession(ctx context.Context, userID, title string) (*Session, error) {
	now := s.now()
	sess := Session{
		ID:        s.newID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &sess, nil
}

// GetSession returns the session with the given id, or nil if it does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &sess, nil
}

// ListSessions returns a user's sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM chat_sessions WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, by cascade, its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// AddMessage appends a message to a session. The message always receives a
// fresh id; a colliding id is regenerated rather than overwriting the
// existing row.
func (s *Store) AddMessage(ctx context.Context, sessionID string, msg Message) (*Message, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	calls, err := json.Marshal(nonNil(msg.FunctionCalls))
	if err != nil {
		return nil, fmt.Errorf("encoding function calls: %w", err)
	}
	mems, err := json.Marshal(nonNil(msg.UsedMemories))
	if err != nil {
		return nil, fmt.Errorf("encoding used memories: %w", err)
	}

	msg.SessionID = sessionID
	msg.CreatedAt = s.now()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		msg.ID = s.newID()
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO chat_messages (id, session_id, role, content, function_calls, used_memories, is_using_memory, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.SessionID, string(msg.Role), msg.Content, string(calls), string(mems), msg.IsUsingMemory, msg.CreatedAt,
		)
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("adding message: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("adding message: no free id after %d attempts: %w", maxIDAttempts, err)
	}

	// Update session timestamp.
	s.db.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, msg.CreatedAt, sessionID)

	return &msg, nil
}

// GetMessages returns all messages for a session in insertion order.
func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, function_calls, used_memories, is_using_memory, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m           Message
			role        string
			calls, mems string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &calls, &mems, &m.IsUsingMemory, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = llm.Role(role)
		if err := json.Unmarshal([]byte(calls), &m.FunctionCalls); err != nil {
			return nil, fmt.Errorf("decoding function calls of %s: %w", m.ID, err)
		}
		if err := json.Unmarshal([]byte(mems), &m.UsedMemories); err != nil {
			return nil, fmt.Errorf("decoding used memories of %s: %w", m.ID, err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// History returns the session's messages as model conversation history.
func (s *Store) History(ctx context.Context, sessionID string) ([]llm.Message, error) {
	msgs, err := s.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	history := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
