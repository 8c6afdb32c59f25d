// Package records is the practice's administrative data: patients,
// scheduled therapy sessions and clinician reminders.
package records

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

var (
	ErrPatientNotFound    = errors.New("patient not found")
	ErrSchedulingConflict = errors.New("time slot already booked")
)

// Session statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Patient is a person under the care of an owning clinician.
type Patient struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScheduledSession is a booked therapy appointment.
type ScheduledSession struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	PatientID       string    `json:"patient_id"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// Reminder is a note-to-self for a clinician.
type Reminder struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     string    `json:"due_date,omitempty"`
	DueTime     string    `json:"due_time,omitempty"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store manages persistence of administrative records.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a records store on top of an open database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: func() time.Time { return time.Now().UTC() }}
}

// CreatePatient inserts a patient, assigning an id when empty.
func (s *Store) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, errors.New("patient name is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO patients (id, owner_id, name, email, phone, date_of_birth, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.Email, p.Phone, p.DateOfBirth, p.Notes, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating patient: %w", err)
	}
	return &p, nil
}

// GetPatient returns an owner's patient, or nil if there is none with that id.
func (s *Store) GetPatient(ctx context.Context, ownerID, id string) (*Patient, error) {
	var p Patient
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, email, phone, date_of_birth, notes, created_at
		 FROM patients WHERE id = ? AND owner_id = ?`, id, ownerID,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Email, &p.Phone, &p.DateOfBirth, &p.Notes, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}
	return &p, nil
}

// SearchPatients matches name, email, phone or id case-insensitively. An
// empty query or "*" lists the owner's patients.
func (s *Store) SearchPatients(ctx context.Context, ownerID, query string, limit int) ([]Patient, error) {
	if limit <= 0 {
		limit = 10
	}
	query = strings.TrimSpace(query)

	q := `SELECT id, owner_id, name, email, phone, date_of_birth, notes, created_at
		 FROM patients WHERE owner_id = ?`
	args := []any{ownerID}
	if query != "" && query != "*" {
		like := "%" + strings.ToLower(query) + "%"
		q += ` AND (lower(name) LIKE ? OR lower(email) LIKE ? OR phone LIKE ? OR id = ?)`
		args = append(args, like, like, like, query)
	}
	q += ` ORDER BY name ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching patients: %w", err)
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Email, &p.Phone, &p.DateOfBirth, &p.Notes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ScheduleSession books a session for one of the owner's patients. It
// fails with ErrPatientNotFound or ErrSchedulingConflict when the slot
// overlaps another scheduled session of the same owner.
func (s *Store) ScheduleSession(ctx context.Context, ownerID, patientID string, start time.Time, duration time.Duration, notes string) (*ScheduledSession, error) {
	patient, err := s.GetPatient(ctx, ownerID, patientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, ErrPatientNotFound
	}

	end := start.Add(duration)
	var conflict string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM scheduled_sessions
		 WHERE owner_id = ? AND status = ? AND starts_at < ? AND ends_at > ? LIMIT 1`,
		ownerID, StatusScheduled, end.Unix(), start.Unix(),
	).Scan(&conflict)
	if err == nil {
		return nil, fmt.Errorf("%w by session %s", ErrSchedulingConflict, conflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking conflicts: %w", err)
	}

	sess := ScheduledSession{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		PatientID:       patientID,
		StartsAt:        start.UTC(),
		EndsAt:          end.UTC(),
		DurationMinutes: int(duration / time.Minute),
		Notes:           notes,
		Status:          StatusScheduled,
		CreatedAt:       s.now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scheduled_sessions (id, owner_id, patient_id, starts_at, ends_at, duration_minutes, notes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OwnerID, sess.PatientID, sess.StartsAt.Unix(), sess.EndsAt.Unix(),
		sess.DurationMinutes, sess.Notes, sess.Status, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling session: %w", err)
	}
	return &sess, nil
}

// ListSessions returns the owner's sessions starting in [from, to), earliest first.
func (s *Store) ListSessions(ctx context.Context, ownerID string, from, to time.Time) ([]ScheduledSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, patient_id, starts_at, ends_at, duration_minutes, notes, status, created_at
		 FROM scheduled_sessions WHERE owner_id = ? AND starts_at >= ? AND starts_at < ?
		 ORDER BY starts_at ASC`,
		ownerID, from.Unix(), to.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []ScheduledSession
	for rows.Next() {
		var (
			ss         ScheduledSession
			start, end int64
		)
		if err := rows.Scan(&ss.ID, &ss.OwnerID, &ss.PatientID, &start, &end, &ss.DurationMinutes, &ss.Notes, &ss.Status, &ss.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		ss.StartsAt = time.Unix(start, 0).UTC()
		ss.EndsAt = time.Unix(end, 0).UTC()
		out = append(out, ss)
	}
	return out, rows.Err()
}

// CancelSession marks a scheduled session cancelled, freeing its slot.
func (s *Store) CancelSession(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_sessions SET status = ? WHERE id = ? AND owner_id = ?`,
		StatusCancelled, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("cancelling session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// CreateReminder stores a reminder. Priority defaults to medium.
func (s *Store) CreateReminder(ctx context.Context, r Reminder) (*Reminder, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Priority == "" {
		r.Priority = "medium"
	}
	r.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, user_id, title, description, due_date, due_time, priority, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Title, r.Description, r.DueDate, r.DueTime, r.Priority, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating reminder: %w", err)
	}
	return &r, nil
}

// ListReminders returns a user's reminders ordered by due date and time.
func (s *Store) ListReminders(ctx context.Context, userID string) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, due_date, due_time, priority, created_at
		 FROM reminders WHERE user_id = ? ORDER BY due_date ASC, due_time ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.DueDate, &r.DueTime, &r.Priority, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
