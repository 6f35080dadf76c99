/*
Package pipeline - per-file document intake state machine

Walks one file through QUEUED -> FETCHING -> CLASSIFYING -> EXTRACTING ->
VALIDATING -> PERSISTING -> FILING -> DONE, short-circuiting to ERROR or
SIN_PROCESAR on classification failure, extraction failure, or a quota/
permanent LLM error (spec §4.6). Driven one file at a time by the work
queue; idempotency against re-scans is the sole guard against double
insertion, enforced through the state store.
*/
package pipeline

import (
	"context"
	"fmt"
	"time"

	"adva-reconciliation-engine/internal/apperrors"
	"adva-reconciliation-engine/internal/filing"
	"adva-reconciliation-engine/internal/llm"
	"adva-reconciliation-engine/internal/model"
	"adva-reconciliation-engine/internal/state"
	"adva-reconciliation-engine/internal/store"

	"github.com/sirupsen/logrus"
)

func currentYear() int { return time.Now().Year() }

// Stage names the state machine node a run stopped at.
type Stage string

const (
	StageQueued     Stage = "QUEUED"
	StageFetching   Stage = "FETCHING"
	StageClassify   Stage = "CLASSIFYING"
	StageExtract    Stage = "EXTRACTING"
	StageValidate   Stage = "VALIDATING"
	StagePersist    Stage = "PERSISTING"
	StageFile       Stage = "FILING"
	StageDone       Stage = "DONE"
	StageError      Stage = "ERROR"
	StageSinProcesar Stage = "SIN_PROCESAR"
)

// Prompts holds the vision-LLM prompt text per stage/document type. The
// prompt wording itself is a black-box collaborator concern (spec §1);
// only the contract that one prompt produces one typed reply matters here.
type Prompts struct {
	Classify string
	Extract  map[string]string // documentType -> extraction prompt
}

// SheetIds maps a logical ledger sheet name to its TabularStore sheetId.
type SheetIds struct {
	InvoicesReceived string
	InvoicesEmitidas string
	PaymentsSent     string
	PaymentsReceived string
	Receipts         string
	Statements       string
}

// Deps bundles every collaborator the state machine drives.
type Deps struct {
	Docs      store.DocumentStore
	Tabular   store.TabularStore
	Gateway   *llm.Gateway
	State     *state.Store
	Log       *logrus.Logger
	Prompts   Prompts
	Sheets    SheetIds
	RootFolderId string
	MaxRetries   int
}

// Outcome reports how far one file got and what it became.
type Outcome struct {
	FileId       model.FileId
	FinalStage   Stage
	DocumentType string
	Direction    model.Direction
	Err          error
}

// ProcessFile drives a single file through the full state machine.
func ProcessFile(ctx context.Context, deps *Deps, info store.FileInfo) Outcome {
	fileId := model.FileId(info.Id)
	outcome := Outcome{FileId: fileId, FinalStage: StageQueued}

	processed, err := deps.State.IsProcessed(ctx, info.Id)
	if err != nil {
		return errOutcome(outcome, StageFetching, err)
	}
	if processed {
		outcome.FinalStage = StageDone
		return outcome
	}

	// FETCHING
	outcome.FinalStage = StageFetching
	docBytes, err := deps.Docs.Download(ctx, info.Id)
	if err != nil {
		return errOutcome(outcome, StageFetching, err)
	}

	// CLASSIFYING
	outcome.FinalStage = StageClassify
	classification, err := classify(ctx, deps, docBytes, info.MimeType)
	if err != nil {
		return sinProcesar(ctx, deps, info, outcome, err)
	}
	outcome.DocumentType = classification.DocumentType

	if classification.DocumentType == "statement" {
		return processStatement(ctx, deps, docBytes, info, outcome)
	}

	// EXTRACTING
	outcome.FinalStage = StageExtract
	extracted, err := extract(ctx, deps, docBytes, info, classification.DocumentType)
	if err != nil {
		return sinProcesar(ctx, deps, info, outcome, err)
	}
	outcome.Direction = extracted.direction()

	// VALIDATING (never drops the file; only flags needsReview, already
	// computed by the type-specific extractor).
	outcome.FinalStage = StageValidate

	// PERSISTING
	outcome.FinalStage = StagePersist
	sheetId := sheetFor(deps.Sheets, extracted.direction())
	if sheetId == "" {
		return sinProcesar(ctx, deps, info, outcome, apperrors.ErrUnrecognized)
	}
	lock := deps.State.SheetLock(sheetId)
	lock.Lock()
	persistErr := func() error {
		defer lock.Unlock()
		already, err := deps.State.IsProcessed(ctx, info.Id)
		if err != nil {
			return err
		}
		if already {
			return nil
		}
		if err := deps.Tabular.AppendRows(ctx, sheetId, [][]any{extracted.row()}); err != nil {
			return apperrors.Wrap(err, apperrors.ErrStorage)
		}
		return deps.State.MarkProcessed(ctx, info.Id, sheetId)
	}()
	if persistErr != nil {
		return errOutcome(outcome, StagePersist, persistErr)
	}

	// FILING
	outcome.FinalStage = StageFile
	dest := extracted.destination()
	if err := fileInto(ctx, deps, info, dest); err != nil {
		return errOutcome(outcome, StageFile, err)
	}

	outcome.FinalStage = StageDone
	return outcome
}

func errOutcome(o Outcome, stage Stage, err error) Outcome {
	o.FinalStage = StageError
	o.Err = fmt.Errorf("stage %s: %w", stage, err)
	return o
}

// sinProcesar moves the file into the unprocessed bucket: classification
// or extraction failed outright, so no ledger row is ever written. A quota
// error instead leaves the file where it is and ends in ERROR, so the next
// scan picks it up again.
func sinProcesar(ctx context.Context, deps *Deps, info store.FileInfo, o Outcome, cause error) Outcome {
	if apperrors.Is(cause, apperrors.ErrQuotaExceeded) {
		return errOutcome(o, o.FinalStage, cause)
	}
	folderPath := fmt.Sprintf("%d/%s", currentYear(), filing.ClassSinProcesar)
	folderId, err := resolveFolder(ctx, deps, folderPath)
	if err == nil {
		_ = deps.Docs.Move(ctx, info.Id, folderId, info.Name)
	}
	o.FinalStage = StageSinProcesar
	o.Err = cause
	return o
}

func fileInto(ctx context.Context, deps *Deps, info store.FileInfo, dest filing.Destination) error {
	folderId, err := resolveFolder(ctx, deps, dest.FolderPath)
	if err != nil {
		return err
	}
	return deps.Docs.Move(ctx, info.Id, folderId, dest.FileName)
}

// resolveFolder walks a "/"-joined relative path, creating each segment
// under RootFolderId as needed.
func resolveFolder(ctx context.Context, deps *Deps, relPath string) (string, error) {
	parent := deps.RootFolderId
	for _, segment := range splitPath(relPath) {
		id, err := deps.Docs.GetOrCreateFolder(ctx, parent, segment)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

func splitPath(p string) []string {
	var segments []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				segments = append(segments, p[start:i])
			}
			start = i + 1
		}
	}
	return segments
}

func sheetFor(s SheetIds, dir model.Direction) string {
	switch dir {
	case model.DirFacturaRecibida:
		return s.InvoicesReceived
	case model.DirFacturaEmitida:
		return s.InvoicesEmitidas
	case model.DirPagoEnviado:
		return s.PaymentsSent
	case model.DirPagoRecibido:
		return s.PaymentsReceived
	case model.DirRecibo:
		return s.Receipts
	case model.DirResumenBancario:
		return s.Statements
	default:
		return ""
	}
}
