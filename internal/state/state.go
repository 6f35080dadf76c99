package state

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedFile records that a FileId has already been persisted to a
// sheet, so a re-scan of the same document store folder never appends a
// duplicate row (spec §3: "each FileId appears in at most one ledger
// sheet").
type ProcessedFile struct {
	FileId      string `gorm:"primaryKey"`
	SheetId     string
	ProcessedAt time.Time
}

// Store is the idempotency and write-serialization backing for the
// pipeline and matchers.
type Store struct {
	db *gorm.DB

	mu         sync.Mutex
	sheetLocks map[string]*sync.Mutex
}

// Open connects to dbDriver/dbURL and migrates the idempotency table.
func Open(dbURL, dbDriver string) (*Store, error) {
	db, err := NewConnection(dbURL, dbDriver)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ProcessedFile{}); err != nil {
		return nil, err
	}
	return &Store{db: db, sheetLocks: make(map[string]*sync.Mutex)}, nil
}

// IsProcessed reports whether fileId has already been written to any
// sheet.
func (s *Store) IsProcessed(ctx context.Context, fileId string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ProcessedFile{}).Where("file_id = ?", fileId).Count(&count).Error
	return count > 0, err
}

// MarkProcessed records fileId as persisted to sheetId. Safe to call
// concurrently; a duplicate call for the same fileId is a no-op.
func (s *Store) MarkProcessed(ctx context.Context, fileId, sheetId string) error {
	record := ProcessedFile{FileId: fileId, SheetId: sheetId, ProcessedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

// SheetLock returns the mutex guarding appends/updates to sheetId,
// creating it on first use. Callers hold it across a read-modify-write
// cycle (append, or TOCTOU-protected update).
func (s *Store) SheetLock(sheetId string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.sheetLocks[sheetId]
	if !ok {
		l = &sync.Mutex{}
		s.sheetLocks[sheetId] = l
	}
	return l
}

// DB exposes the underlying connection for components that need direct
// GORM access (e.g. administrative queries from cmd/server).
func (s *Store) DB() *gorm.DB {
	return s.db
}
