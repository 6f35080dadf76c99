package reconcile

import (
	"context"
	"errors"

	"adva-reconciliation-engine/internal/fxrate"
	"adva-reconciliation-engine/internal/match/bankmatch"
	"adva-reconciliation-engine/internal/match/toctou"
	"adva-reconciliation-engine/internal/model"
)

// MovementWriter persists a bank-movement match under TOCTOU protection.
// ReadSnapshot must reflect the row's current persisted state (not the
// in-memory movement struct, which the caller may have already mutated
// for ranking purposes) so a concurrent writer's change is visible.
type MovementWriter interface {
	ReadSnapshot(m *model.BankMovement) toctou.Snapshot
	Write(m *model.BankMovement, result bankmatch.Result) error
}

// BankMovementOutcome pairs a movement with its classification and
// whether the write actually landed.
type BankMovementOutcome struct {
	Movement *model.BankMovement
	Result   bankmatch.Result
	Written  bool
	Err      error
}

// ReconcileBankMovements classifies every still-unmatched movement and
// writes results under a TOCTOU guard; a stale row is reported, not
// retried, since a concurrent process already moved it forward.
func ReconcileBankMovements(ctx context.Context, movements []*model.BankMovement, pool bankmatch.Pool, fx *fxrate.Cache, cfg bankmatch.Config, writer MovementWriter) []BankMovementOutcome {
	outcomes := make([]BankMovementOutcome, 0, len(movements))

	for _, m := range movements {
		if m.MatchedFileId != "" {
			continue
		}

		original := writer.ReadSnapshot(m)
		result := bankmatch.Match(ctx, m, pool, fx, cfg)
		outcome := BankMovementOutcome{Movement: m, Result: result}

		if result.MatchType == "no_match" {
			outcomes = append(outcomes, outcome)
			continue
		}

		err := toctou.Apply(original, func() (toctou.Snapshot, error) {
			return writer.ReadSnapshot(m), nil
		}, func() error {
			m.MatchedFileId = result.MatchedFileId
			return writer.Write(m, result)
		})

		if err != nil {
			if errors.Is(err, toctou.ErrStale) {
				outcome.Written = false
			}
			outcome.Err = err
		} else {
			outcome.Written = true
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}
