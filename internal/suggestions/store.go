package suggestions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/clinrag/internal/db"
)

// Store persists suggestions and their audit trail.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a suggestion store on top of an open database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: func() time.Time { return time.Now().UTC() }}
}

// Create records a pending suggestion and its "created" entry.
func (s *Store) Create(ctx context.Context, content string, typ Type, ownerRef string) (*Suggestion, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if !typ.valid() {
		return nil, ErrInvalidType
	}

	now := s.now()
	sg := &Suggestion{
		ID:        uuid.New().String(),
		OwnerRef:  ownerRef,
		Type:      typ,
		Content:   content,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO suggestions (id, owner_ref, type, content, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sg.ID, sg.OwnerRef, sg.Type, sg.Content, sg.Status, sg.CreatedAt, sg.UpdatedAt,
		); err != nil {
			return fmt.Errorf("inserting suggestion: %w", err)
		}
		return appendAudit(ctx, tx, sg.ID, ActionCreated, content, now)
	})
	if err != nil {
		return nil, err
	}
	sg.AuditTrail = []AuditEntry{{Action: ActionCreated, Timestamp: now, Content: content}}
	return sg, nil
}

// Edit replaces the content of a pending suggestion.
func (s *Store) Edit(ctx context.Context, id, content string) (*Suggestion, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	return s.transition(ctx, id, ActionEdited, content)
}

// Accept marks a pending suggestion accepted.
func (s *Store) Accept(ctx context.Context, id string) (*Suggestion, error) {
	return s.transition(ctx, id, ActionAccepted, "")
}

// Reject marks a pending suggestion rejected.
func (s *Store) Reject(ctx context.Context, id string) (*Suggestion, error) {
	return s.transition(ctx, id, ActionRejected, "")
}

// transition applies action to a pending suggestion and appends its audit
// entry in the same transaction.
func (s *Store) transition(ctx context.Context, id string, action Action, content string) (*Suggestion, error) {
	now := s.now()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		switch action {
		case ActionEdited:
			res, err = tx.ExecContext(ctx,
				`UPDATE suggestions SET content = ?, updated_at = ? WHERE id = ? AND status = ?`,
				content, now, id, StatusPending)
		case ActionAccepted, ActionRejected:
			res, err = tx.ExecContext(ctx,
				`UPDATE suggestions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
				statusAfter(action), now, id, StatusPending)
		default:
			return fmt.Errorf("unsupported action %q", action)
		}
		if err != nil {
			return fmt.Errorf("updating suggestion: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM suggestions WHERE id = ?`, id).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("checking suggestion: %w", err)
			}
			return ErrInvalidTransition
		}
		return appendAudit(ctx, tx, id, action, content, now)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func statusAfter(a Action) Status {
	if a == ActionAccepted {
		return StatusAccepted
	}
	return StatusRejected
}

func appendAudit(ctx context.Context, tx *sql.Tx, id string, action Action, content string, at time.Time) error {
	var c sql.NullString
	if content != "" {
		c = sql.NullString{String: content, Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO suggestion_audit (suggestion_id, action, content, timestamp) VALUES (?, ?, ?, ?)`,
		id, action, c, at,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// Get returns a suggestion with its full trail, or nil when unknown.
func (s *Store) Get(ctx context.Context, id string) (*Suggestion, error) {
	var sg Suggestion
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_ref, type, content, status, created_at, updated_at FROM suggestions WHERE id = ?`, id,
	).Scan(&sg.ID, &sg.OwnerRef, &sg.Type, &sg.Content, &sg.Status, &sg.CreatedAt, &sg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting suggestion: %w", err)
	}

	trails, err := s.trails(ctx, []string{sg.ID})
	if err != nil {
		return nil, err
	}
	sg.AuditTrail = trails[sg.ID]
	return &sg, nil
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	OwnerRef string
	Status   Status
}

// List returns matching suggestions oldest first, each with its trail.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Suggestion, error) {
	query := `SELECT id, owner_ref, type, content, status, created_at, updated_at FROM suggestions WHERE 1=1`
	var args []any
	if f.OwnerRef != "" {
		query += ` AND owner_ref = ?`
		args = append(args, f.OwnerRef)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying suggestions: %w", err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var sg Suggestion
		if err := rows.Scan(&sg.ID, &sg.OwnerRef, &sg.Type, &sg.Content, &sg.Status, &sg.CreatedAt, &sg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	trails, err := s.trails(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].AuditTrail = trails[out[i].ID]
	}
	return out, nil
}

// trails loads audit entries for ids in insertion order.
func (s *Store) trails(ctx context.Context, ids []string) (map[string][]AuditEntry, error) {
	out := make(map[string][]AuditEntry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT suggestion_id, action, content, timestamp FROM suggestion_audit
		 WHERE suggestion_id IN (`+strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")+`)
		 ORDER BY seq`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit trail: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var e AuditEntry
		var content sql.NullString
		if err := rows.Scan(&id, &e.Action, &content, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Content = content.String
		out[id] = append(out[id], e)
	}
	return out, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
