package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"tablematch_server/config"
	"tablematch_server/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the relational store selected by cfg.Store.Driver
func Connect(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return Open(postgres.Open(cfg.Postgres.DSN()), false)
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		db, err := Open(sqlite.Open(cfg.SQLite.Path+"?_busy_timeout=5000&_foreign_keys=on"), cfg.SQLite.LogMode)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
		if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL;"); err != nil {
			log.Printf("⚠️ Could not enable WAL journal for %s: %v", cfg.SQLite.Path, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("driver %q is not a relational store", cfg.Store.Driver)
	}
}

// Open opens a gorm connection with duplicate-key error translation enabled
func Open(dialector gorm.Dialector, logMode bool) (*gorm.DB, error) {
	gormLogger := logger.Default
	if !logMode {
		gormLogger = gormLogger.LogMode(logger.Silent)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Printf("✅ database connected (%s)", dialector.Name())
	return db, nil
}

// AutoMigrate creates or updates every table the store needs
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Session{},
		&models.SessionMember{},
		&models.Venue{},
		&models.DeckItem{},
		&models.Swipe{},
		&models.MatchSnapshot{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	log.Println("✅ database migrated")
	return nil
}
