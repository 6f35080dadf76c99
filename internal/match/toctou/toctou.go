/*
Package toctou - time-of-check/time-of-use row guard

A bank-movement row is read once to compute a match, then written back
much later (after an LLM round-trip and ranking). Another process could
have touched the same row in between. Guard hashes the fields that make
up a row's identity at read time and refuses the write if a re-read
produces a different hash (spec §4.11).
*/
package toctou

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"adva-reconciliation-engine/internal/model"
)

// ErrStale is returned when the row changed between read and write.
var ErrStale = errors.New("toctou: row changed since it was read")

// Snapshot is the set of fields whose drift invalidates a pending write.
type Snapshot struct {
	Fecha                 time.Time
	Concepto              string
	Debito                *model.Amount
	Credito               *model.Amount
	ExistingMatchedFileId model.FileId
	ExistingDetalle       string
}

// Hash returns a stable digest of the snapshot.
func Hash(s Snapshot) string {
	debito, credito := "", ""
	if s.Debito != nil {
		debito = s.Debito.String()
	}
	if s.Credito != nil {
		credito = s.Credito.String()
	}
	raw := fmt.Sprintf("%d|%s|%s|%s|%s|%s",
		s.Fecha.UnixNano(), s.Concepto, debito, credito, s.ExistingMatchedFileId, s.ExistingDetalle)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ReReadFunc re-reads the authoritative row state just before a write.
type ReReadFunc func() (Snapshot, error)

// WriteFunc performs the actual persisted update.
type WriteFunc func() error

// Apply re-reads the row and compares its hash against the one computed
// when the match was first proposed. The write only proceeds on a match;
// on a mismatch it returns ErrStale and performs no write.
func Apply(original Snapshot, reread ReReadFunc, write WriteFunc) error {
	current, err := reread()
	if err != nil {
		return err
	}
	if Hash(original) != Hash(current) {
		return ErrStale
	}
	return write()
}
