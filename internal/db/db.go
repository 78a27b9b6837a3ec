package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"chatgate/internal/audit"
	"chatgate/internal/chat"
	"chatgate/internal/session"
)

// Connect opens the configured database.
func Connect(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "mysql", "":
		g, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("db: open mysql: %w", err)
		}
		return g, nil
	case "sqlite":
		g, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}
}

// Migrate creates or updates the schema for every persisted model.
func Migrate(g *gorm.DB) error {
	return g.AutoMigrate(
		&session.Session{},
		&chat.Chat{},
		&chat.Message{},
		&audit.Record{},
	)
}
