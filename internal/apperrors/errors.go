/*
Package apperrors - Tagged Error Taxonomy for the Reconciliation Engine

DESCRIPTION:
    Provides typed error definitions so pipeline and matcher code branches on
    error *kind*, never on error strings. Mirrors the AppError pattern used
    across this codebase's other services, extended with the five-kind
    taxonomy the document pipeline needs (transient / quota / permanent /
    validation / storage).

USAGE:
    return apperrors.Wrap(err, apperrors.ErrTransient)

    if apperrors.Is(err, apperrors.ErrQuotaExceeded) {
        // stop the pipeline immediately, defer to next scheduled run
    }
*/
package apperrors

import (
	"errors"
	"fmt"
)

var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// AsAppError unwraps err looking for an *AppError, the way callers branch
// on Kind/Retryable without a type switch at every call site.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Kind classifies an error for pipeline retry/escalation policy.
type Kind string

const (
	KindTransient        Kind = "transient"
	KindQuota            Kind = "quota"
	KindPermanentExtract Kind = "permanent-extract"
	KindValidation       Kind = "validation"
	KindStorage          Kind = "storage"
)

// AppError is an application-level error carrying a machine-readable code,
// a retry policy, and an optional wrapped cause.
type AppError struct {
	Code      string
	Message   string
	Kind      Kind
	Retryable bool
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewAppError(code, message string, kind Kind, retryable bool) *AppError {
	return &AppError{Code: code, Message: message, Kind: kind, Retryable: retryable}
}

// Wrap attaches an underlying cause to a sentinel AppError without mutating
// the sentinel itself.
func Wrap(err error, appErr *AppError) *AppError {
	return &AppError{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Kind:      appErr.Kind,
		Retryable: appErr.Retryable,
		Err:       err,
	}
}

func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{Code: e.Code, Message: msg, Kind: e.Kind, Retryable: e.Retryable, Err: e.Err}
}

// ============================================================================
// Pipeline error taxonomy (spec §7)
// ============================================================================

var (
	// ErrTransient covers LLM 5xx, network failure, store rate limit: retry
	// within the task with exponential backoff.
	ErrTransient = NewAppError(
		"PIPELINE_TRANSIENT",
		"transient failure, will retry",
		KindTransient,
		true,
	)

	// ErrQuotaExceeded means the LLM vendor's daily quota is exhausted: stop
	// the pipeline immediately and defer to the next scheduled run.
	ErrQuotaExceeded = NewAppError(
		"PIPELINE_QUOTA_EXCEEDED",
		"LLM quota exceeded",
		KindQuota,
		false,
	)

	// ErrPermanentExtract covers LLM 4xx, malformed JSON, or a required
	// field set too large to trust: the file is moved to sin_procesar with
	// no ledger row. No error-sheet row is written for it.
	ErrPermanentExtract = NewAppError(
		"PIPELINE_PERMANENT_EXTRACT",
		"permanent extraction failure",
		KindPermanentExtract,
		false,
	)

	// ErrValidation covers CUIT checksum failures or an implausible
	// direction: the row is still persisted, flagged needsReview=true.
	ErrValidation = NewAppError(
		"PIPELINE_VALIDATION",
		"validation failed",
		KindValidation,
		false,
	)

	// ErrStorage covers a failed or partial sheet append: surface
	// immediately, never mark the file as processed.
	ErrStorage = NewAppError(
		"PIPELINE_STORAGE",
		"storage operation failed",
		KindStorage,
		false,
	)
)

// ErrUnrecognized signals the classifier could not assign a document type;
// the file is filed to sin_procesar with no ledger row.
var ErrUnrecognized = NewAppError(
	"PIPELINE_UNRECOGNIZED",
	"document type not recognized",
	KindPermanentExtract,
	false,
)
