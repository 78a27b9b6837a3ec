package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

const titleMaxRunes = 50

func chatTitle(prompt string) string {
	r := []rune(prompt)
	if len(r) > titleMaxRunes {
		return string(r[:titleMaxRunes])
	}
	return prompt
}

// GetOrCreateChat reuses an existing chat when the supplied id belongs to
// the session, otherwise creates a fresh chat titled from the prompt.
// Foreign or unknown ids fall through to creation.
func (r *Repo) GetOrCreateChat(ctx context.Context, sessionID, chatID, prompt string) (*Chat, error) {
	if chatID != "" {
		var c Chat
		err := r.db.WithContext(ctx).
			Where("id = ? AND session_id = ?", chatID, sessionID).
			First(&c).Error
		if err == nil {
			return &c, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	c := &Chat{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Title:     chatTitle(prompt),
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetChat looks a chat up without session scoping so callers can tell
// foreign chats apart from missing ones.
func (r *Repo) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).First(&c, "id = ?", chatID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChats returns the session's unarchived chats, newest first.
func (r *Repo) ListChats(ctx context.Context, sessionID string) ([]Chat, error) {
	var chats []Chat
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND archived = ?", sessionID, false).
		Order("created_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *Repo) CreateMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns a chat's full history, oldest first. Model context
// is assembled from this ordering.
func (r *Repo) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListMessagesPage returns one history page, newest first.
func (r *Repo) ListMessagesPage(ctx context.Context, chatID string, page, pageSize int) ([]Message, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	var msgs []Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// CountUserMessages reports how many user turns a session has spent in one
// mode across all of its chats. The count runs fresh on every call; the
// ceiling check and the subsequent insert are not atomic.
func (r *Repo) CountUserMessages(ctx context.Context, sessionID, mode string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&Message{}).
		Joins("JOIN chats ON chats.id = chat_messages.chat_id").
		Where("chats.session_id = ? AND chat_messages.role = ? AND chat_messages.mode = ?",
			sessionID, RoleUser, mode).
		Count(&n).Error
	return n, err
}
