/*
Package invoicepay - invoice to payment matcher

Ranks candidate invoices against one payment by amount, date window, and
identity signal, per spec §4.7. Output ordering follows the deterministic
tie-break style this codebase's payment-reconciliation matcher uses:
confidence tier first, then date proximity, then exactness of the amount
match, never float equality.
*/
package invoicepay

import (
	"context"
	"sort"
	"strings"

	"adva-reconciliation-engine/internal/dateutil"
	"adva-reconciliation-engine/internal/fxrate"
	"adva-reconciliation-engine/internal/model"
	"adva-reconciliation-engine/internal/validators"
)

// Config holds the window/tolerance parameters from spec §6.
type Config struct {
	MatchDaysBefore        int
	MatchDaysAfter         int
	UsdArsTolerancePercent float64
}

// Candidate is one ranked invoice against the payment under evaluation.
type Candidate struct {
	Invoice       *model.Invoice
	Confidence    model.MatchConfidence
	DateDiffDays  int
	IsExactAmount bool
	CrossCurrency bool
	IsUpgrade     bool
}

// Rank filters and orders invoices against payment. The fx cache is
// consulted only for a USD-invoice/ARS-payment pair; a cache miss rejects
// that candidate rather than guessing a rate.
func Rank(ctx context.Context, payment *model.Payment, invoices []*model.Invoice, fx *fxrate.Cache, cfg Config) []Candidate {
	candidates := make([]Candidate, 0, len(invoices))
	for _, inv := range invoices {
		c, ok := evaluate(ctx, payment, inv, fx, cfg)
		if ok {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return less(candidates[i], candidates[j])
	})
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

func evaluate(ctx context.Context, payment *model.Payment, inv *model.Invoice, fx *fxrate.Cache, cfg Config) (Candidate, bool) {
	amountOK, exact, crossCurrency := matchAmount(ctx, payment, inv, fx, cfg)
	if !amountOK {
		return Candidate{}, false
	}

	dateDiff := dateutil.DayDistance(inv.FechaEmision, payment.FechaPago)
	window := classifyWindow(dateDiff, cfg)
	if window == windowNone {
		return Candidate{}, false
	}

	identityHit := identitySignal(payment, inv)
	confidence := baseConfidence(window, identityHit)

	if crossCurrency {
		if !identityHit {
			confidence = model.ConfidenceLow
		} else if confidence == model.ConfidenceHigh {
			confidence = model.ConfidenceMedium
		}
	}

	return Candidate{
		Invoice:       inv,
		Confidence:    confidence,
		DateDiffDays:  dateDiff,
		IsExactAmount: exact,
		CrossCurrency: crossCurrency,
		IsUpgrade:     inv.MatchedPagoFileId != "",
	}, true
}

func matchAmount(ctx context.Context, payment *model.Payment, inv *model.Invoice, fx *fxrate.Cache, cfg Config) (ok bool, exact bool, crossCurrency bool) {
	if payment.Moneda == inv.Moneda {
		return payment.ImportePagado.EqualWithin(inv.ImporteTotal, model.DefaultEpsilonCents), true, false
	}

	if inv.Moneda == model.USD && payment.Moneda == model.ARS {
		converted, rateOK := fx.ConvertUSDToARS(ctx, inv.ImporteTotal.Cents, inv.FechaEmision)
		if !rateOK {
			return false, false, true
		}
		convertedAmount := model.Amount{Cents: converted}
		within := payment.ImportePagado.WithinPercent(convertedAmount, cfg.UsdArsTolerancePercent)
		return within, false, true
	}

	return false, false, true
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

// identitySignal checks beneficiary CUIT/DNI vs issuer CUIT (beneficiary
// takes precedence over payer), then beneficiary/payer name substring
// match against razonSocialEmisor.
func identitySignal(payment *model.Payment, inv *model.Invoice) bool {
	if payment.CuitBeneficiario != "" && validators.IdentifierMatch(payment.CuitBeneficiario, inv.CuitEmisor) {
		return true
	}
	if payment.CuitPagador != "" && validators.IdentifierMatch(payment.CuitPagador, inv.CuitEmisor) {
		return true
	}
	if nameSubstringMatch(payment.NombreBeneficiario, inv.RazonSocialEmisor) {
		return true
	}
	return nameSubstringMatch(payment.NombrePagador, inv.RazonSocialEmisor)
}

func nameSubstringMatch(a, b string) bool {
	a, b = strings.ToUpper(strings.TrimSpace(a)), strings.ToUpper(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
