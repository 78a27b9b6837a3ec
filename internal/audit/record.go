package audit

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"chatgate/internal/common"
)

// Record is the persisted form of an Event, written by the worker.
type Record struct {
	ID        string            `gorm:"type:varchar(26);primaryKey"`
	Kind      string            `gorm:"type:varchar(32);index;not null"`
	Reason    string            `gorm:"type:varchar(256);not null"`
	SessionID string            `gorm:"type:varchar(64);index"`
	ClientIP  string            `gorm:"type:varchar(64)"`
	Path      string            `gorm:"type:varchar(256)"`
	Method    string            `gorm:"type:varchar(16)"`
	Details   datatypes.JSONMap `gorm:"type:json"`
	CreatedAt time.Time         `gorm:"index"`
}

func (Record) TableName() string { return "audit_events" }

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Insert persists one consumed event, minting its id when absent.
func (r *Repo) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		id, err := common.NewULID()
		if err != nil {
			return err
		}
		rec.ID = id
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// RecordFromEvent maps a wire event to its storage row.
func RecordFromEvent(ev Event) *Record {
	return &Record{
		Kind:      ev.Kind,
		Reason:    ev.Reason,
		SessionID: ev.SessionID,
		ClientIP:  ev.ClientIP,
		Path:      ev.Path,
		Method:    ev.Method,
		Details:   datatypes.JSONMap(ev.Details),
	}
}
