// Package store persists scheduler state: an append-only reposition
// audit log and per-user snapshots, both in SQLite via gorm. The
// scheduler core depends only on the EventRepo and SnapshotRepo
// interfaces; tests use the in-memory implementations.
package store

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/zenlearn/helix/internal/logger"
)

// Store holds the gorm handle and provides access to repositories.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to the SQLite database at path, applies pragmas for
// single-writer use, and auto-migrates the schema.
func Open(path string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := db.AutoMigrate(&RepositionEvent{}, &UserSnapshot{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db, log: log.With("component", "store")}, nil
}

// DB returns the underlying gorm handle for raw queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EventRepo returns an EventRepo backed by this store.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{db: s.db}
}

// SnapshotRepo returns a SnapshotRepo backed by this store.
func (s *Store) SnapshotRepo() SnapshotRepo {
	return &snapshotRepo{db: s.db}
}

// Reset drops all scheduler state. Used by the reset command.
func (s *Store) Reset() error {
	if err := s.db.Exec("DELETE FROM reposition_events").Error; err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	if err := s.db.Exec("DELETE FROM user_snapshots").Error; err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

// nowUTC truncates to millisecond so round-trips through SQLite compare
// cleanly.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
