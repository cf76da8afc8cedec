package database

import (
	"strings"

	"energy-exchange/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a GORM DB. "sqlite://<path>" (or "sqlite://:memory:") selects
// SQLite; anything else is a Postgres DSN.
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind connection poolers such as PgBouncer.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		db, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, err
		}
		// SQLite has a single writer, and each :memory: connection is its own database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), cfg)
}

// AutoMigrate creates the listing and listing-event tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Listing{}, &domain.ListingEvent{})
}
