package models

import "time"

// NotificationKind categorizes workflow notifications emitted by the
// transition dispatcher.
type NotificationKind string

const (
	NotificationSubmitted     NotificationKind = "REQUEST_SUBMITTED"
	NotificationStageAdvanced NotificationKind = "REQUEST_STAGE_ADVANCED"
	NotificationApproved      NotificationKind = "REQUEST_APPROVED"
	NotificationRejected      NotificationKind = "REQUEST_REJECTED"
)

// Notification is a per-recipient message derived from a transition event.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"userId"`
	RequestID *string          `db:"request_id" json:"requestId,omitempty"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Read      bool             `db:"read" json:"read"`
	ReadAt    *time.Time       `db:"read_at" json:"readAt,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
}

// NotificationFilter constrains notification listings.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}
