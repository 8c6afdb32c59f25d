// Package suggestions tracks AI-generated clinical suggestions through
// clinician review. Every change appends to an audit trail that is never
// rewritten.
package suggestions

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("suggestion not found")
	ErrInvalidTransition = errors.New("suggestion is no longer pending")
	ErrInvalidType       = errors.New("suggestion type must be objective, activity or note")
	ErrEmptyContent      = errors.New("suggestion content is required")
)

// Type is what kind of clinical item a suggestion proposes.
type Type string

const (
	TypeObjective Type = "objective"
	TypeActivity  Type = "activity"
	TypeNote      Type = "note"
)

func (t Type) valid() bool {
	switch t {
	case TypeObjective, TypeActivity, TypeNote:
		return true
	}
	return false
}

// Status is where a suggestion is in review.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Action names an audit entry.
type Action string

const (
	ActionCreated  Action = "created"
	ActionEdited   Action = "edited"
	ActionAccepted Action = "accepted"
	ActionRejected Action = "rejected"
)

// AuditEntry is one immutable step in a suggestion's history.
type AuditEntry struct {
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content,omitempty"`
}

// Suggestion is a proposal awaiting, or past, clinician review.
type Suggestion struct {
	ID         string       `json:"id"`
	OwnerRef   string       `json:"owner_ref"`
	Type       Type         `json:"type"`
	Content    string       `json:"content"`
	Status     Status       `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	AuditTrail []AuditEntry `json:"audit_trail"`
}
