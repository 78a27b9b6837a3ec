package session

import "time"

// ReferenceKind tells what a session's reference id points at.
type ReferenceKind string

const (
	SignedInUser    ReferenceKind = "SIGNED_IN_USER"
	NonSignedInUser ReferenceKind = "NON_SIGNED_IN_USER"
)

// Session binds request identity to stored conversation state. Sessions are
// deactivated on teardown, never deleted.
type Session struct {
	ID            string        `gorm:"type:varchar(26);primaryKey" json:"session_id"`
	ReferenceID   string        `gorm:"type:varchar(256);not null;index:idx_sessions_reference,priority:1" json:"-"`
	ReferenceKind ReferenceKind `gorm:"type:varchar(32);not null;index:idx_sessions_reference,priority:2" json:"reference_type"`
	Active        bool          `gorm:"not null;index" json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (Session) TableName() string { return "user_sessions" }
