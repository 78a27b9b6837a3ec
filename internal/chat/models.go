package chat

import (
	"time"

	"gorm.io/datatypes"
)

// Role classifies a stored message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSummary   Role = "SUMMARY"
)

// Chat groups the messages of one conversation. Chats are created lazily on
// the first message and belong to exactly one session.
type Chat struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"chat_id"`
	SessionID string    `gorm:"type:varchar(64);index;not null" json:"-"`
	Title     string    `gorm:"type:varchar(120)" json:"title"`
	Archived  bool      `gorm:"index;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (Chat) TableName() string { return "chats" }

// Message is one append-only history entry. Content always holds the full
// text of a turn. Image inputs are fingerprinted into Metadata; raw bytes
// and base64 payloads are never persisted.
type Message struct {
	ID                string            `gorm:"type:varchar(64);primaryKey" json:"id"`
	ChatID            string            `gorm:"type:varchar(64);index;not null" json:"-"`
	PreviousMessageID *string           `gorm:"type:varchar(64)" json:"previous_message_id,omitempty"`
	Role              Role              `gorm:"type:varchar(16);index;not null" json:"role"`
	Mode              string            `gorm:"type:varchar(64);index;not null" json:"mode"`
	Content           string            `gorm:"type:text;not null" json:"content"`
	Metadata          datatypes.JSONMap `gorm:"type:json" json:"meta"`
	CreatedAt         time.Time         `gorm:"index" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }
