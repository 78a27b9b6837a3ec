package session

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) FindActiveByReference(ctx context.Context, refID string, kind ReferenceKind) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Where("reference_id = ? AND reference_kind = ? AND active = ?", refID, kind, true).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) GetActive(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Deactivate marks a session inactive. A session that is already inactive
// deactivates again without error; an unknown id returns
// gorm.ErrRecordNotFound.
func (r *Repo) Deactivate(ctx context.Context, id string) error {
	var s Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&s).Update("active", false).Error
}

// DeactivateAllForReference marks every active session of one reference
// inactive and reports how many rows changed.
func (r *Repo) DeactivateAllForReference(ctx context.Context, refID string, kind ReferenceKind) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("reference_id = ? AND reference_kind = ? AND active = ?", refID, kind, true).
		Update("active", false)
	return res.RowsAffected, res.Error
}
