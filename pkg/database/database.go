package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/fanline/config"
	"github.com/d60-Lab/fanline/internal/model"
)

// InitDB opens the source-of-truth store and migrates the schema.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates all tables. Split out so tests can run it against :memory: sqlite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Post{},
		&model.Follow{},
		&model.Fan{},
		&model.Conversation{},
		&model.Message{},
		&model.MessageReadStatus{},
		&model.UnreadCount{},
	)
}
