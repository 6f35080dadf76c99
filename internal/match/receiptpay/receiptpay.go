/*
Package receiptpay - salary receipt to payment matcher

Identical to invoicepay except the compared amount is totalNeto, the
identity signal is beneficiary-only (ADVA is always the payer, so a payer
signal would be meaningless here), and the name match target is
nombreEmpleado (spec §4.8).
*/
package receiptpay

import (
	"context"
	"sort"
	"strings"

	"adva-reconciliation-engine/internal/dateutil"
	"adva-reconciliation-engine/internal/model"
	"adva-reconciliation-engine/internal/validators"
)

// Config holds the window parameters shared with invoicepay (spec §6).
type Config struct {
	MatchDaysBefore int
	MatchDaysAfter  int
}

// Candidate is one ranked receipt against the payment under evaluation.
type Candidate struct {
	Receipt       *model.Receipt
	Confidence    model.MatchConfidence
	DateDiffDays  int
	IsExactAmount bool
	IsUpgrade     bool
}

// Rank filters and orders receipts against payment. Receipts never carry a
// foreign currency, so there is no cross-currency branch here.
func Rank(ctx context.Context, payment *model.Payment, receipts []*model.Receipt, cfg Config) []Candidate {
	candidates := make([]Candidate, 0, len(receipts))
	for _, r := range receipts {
		c, ok := evaluate(payment, r, cfg)
		if ok {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return less(candidates[i], candidates[j]) })
	return candidates
}

func tierRank(c model.MatchConfidence) int {
	switch c {
	case model.ConfidenceHigh:
		return 0
	case model.ConfidenceMedium:
		return 1
	default:
		return 2
	}
}

func less(a, b Candidate) bool {
	if ta, tb := tierRank(a.Confidence), tierRank(b.Confidence); ta != tb {
		return ta < tb
	}
	ad, bd := abs(a.DateDiffDays), abs(b.DateDiffDays)
	if ad != bd {
		return ad < bd
	}
	if a.IsExactAmount != b.IsExactAmount {
		return a.IsExactAmount
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func evaluate(payment *model.Payment, r *model.Receipt, cfg Config) (Candidate, bool) {
	exact := payment.ImportePagado.EqualWithin(r.TotalNeto, model.DefaultEpsilonCents)
	if !exact {
		return Candidate{}, false
	}

	dateDiff := dateutil.DayDistance(r.FechaPago, payment.FechaPago)
	window := classifyWindow(dateDiff, cfg)
	if window == windowNone {
		return Candidate{}, false
	}

	identityHit := identitySignal(payment, r)
	confidence := baseConfidence(window, identityHit)

	return Candidate{
		Receipt:       r,
		Confidence:    confidence,
		DateDiffDays:  dateDiff,
		IsExactAmount: exact,
		IsUpgrade:     r.MatchedPagoFileId != "",
	}, true
}

type window int

const (
	windowNone window = iota
	windowHigh
	windowMedium
	windowLow
)

func classifyWindow(dateDiff int, cfg Config) window {
	if dateDiff >= 0 && dateDiff <= 15 {
		return windowHigh
	}
	if dateDiff > -3 && dateDiff < 30 {
		return windowMedium
	}
	before, after := cfg.MatchDaysBefore, cfg.MatchDaysAfter
	if dateDiff > -before && dateDiff < after {
		return windowLow
	}
	return windowNone
}

func baseConfidence(w window, identityHit bool) model.MatchConfidence {
	switch w {
	case windowHigh:
		if identityHit {
			return model.ConfidenceHigh
		}
		return model.ConfidenceMedium
	case windowMedium:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func identitySignal(payment *model.Payment, r *model.Receipt) bool {
	if payment.CuitBeneficiario != "" && validators.IdentifierMatch(payment.CuitBeneficiario, r.CuilEmpleado) {
		return true
	}
	return nameSubstringMatch(payment.NombreBeneficiario, r.NombreEmpleado)
}

func nameSubstringMatch(a, b string) bool {
	a, b = strings.ToUpper(strings.TrimSpace(a)), strings.ToUpper(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
