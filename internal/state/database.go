/*
Package state - idempotency tracking and per-sheet write serialization

Wraps a GORM connection (sqlite for local runs, postgres in production) the
way this codebase's database package does, and adds the two pieces of
shared mutable state the document pipeline needs: a table of already
processed file ids (the sole guard against double-insert on re-scan) and a
registry of per-sheet mutexes so concurrent tasks never interleave appends
to the same ledger sheet.
*/
package state

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens a GORM connection for dbDriver ("sqlite" or
// "postgres") against dbURL.
func NewConnection(dbURL, dbDriver string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{LogLevel: logger.Warn},
	)

	var dialector gorm.Dialector
	switch dbDriver {
	case "postgres":
		dialector = postgres.Open(dbURL)
	case "sqlite":
		dialector = sqlite.Open(dbURL)
	default:
		dialector = sqlite.Open(dbURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
