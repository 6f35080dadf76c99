package reconcile

import (
	"context"

	"adva-reconciliation-engine/internal/fxrate"
	"adva-reconciliation-engine/internal/match/invoicepay"
	"adva-reconciliation-engine/internal/model"
)

// InvoicePaymentPool is the working set reconciled together. Entries are
// mutated in place: MatchedFacturaFileId/MatchedPagoFileId/MatchConfidence
// reflect the end state of the cascade.
type InvoicePaymentPool struct {
	Invoices []*model.Invoice
	Payments []*model.Payment
}

// ReconcileInvoicePayments drives invoicepay.Rank over every unmatched
// payment, displacing weaker existing matches per spec §4.10.
func ReconcileInvoicePayments(ctx context.Context, pool InvoicePaymentPool, fx *fxrate.Cache, mcfg invoicepay.Config, ccfg CascadeConfig) []LinkEvent {
	state := newCascadeState(ccfg)
	var events []LinkEvent

	for _, payment := range pool.Payments {
		if payment.MatchedFacturaFileId != "" {
			continue
		}
		events = append(events, reconcilePayment(ctx, payment, pool, fx, mcfg, state, 0)...)
	}
	return events
}

func reconcilePayment(ctx context.Context, payment *model.Payment, pool InvoicePaymentPool, fx *fxrate.Cache, mcfg invoicepay.Config, state *cascadeState, depth int) []LinkEvent {
	if state.budgetExceeded(depth) {
		return nil
	}

	candidates := invoicepay.Rank(ctx, payment, pool.Invoices, fx, mcfg)
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	inv := best.Invoice

	if inv.MatchedPagoFileId == "" {
		linkInvoicePayment(payment, inv, best.Confidence)
		return []LinkEvent{{Kind: "linked", FileIdA: payment.FileId, FileIdB: inv.FileId}}
	}

	existingPayment := findPaymentByFileId(pool.Payments, inv.MatchedPagoFileId)
	if existingPayment == nil {
		linkInvoicePayment(payment, inv, best.Confidence)
		return []LinkEvent{{Kind: "linked", FileIdA: payment.FileId, FileIdB: inv.FileId}}
	}

	candMetrics := candidateMetrics{confidence: best.Confidence, dateDiff: best.DateDiffDays, isExact: best.IsExactAmount}
	existingMetrics, stillValid := existingInvoiceMetrics(ctx, existingPayment, inv, fx, mcfg)
	if stillValid && !shouldReplace(candMetrics, existingMetrics) {
		return nil
	}

	unlinkInvoicePayment(existingPayment, inv)
	linkInvoicePayment(payment, inv, best.Confidence)

	events := []LinkEvent{{Kind: "displaced", FileIdA: payment.FileId, FileIdB: inv.FileId, DisplacedFrom: existingPayment.FileId}}
	events = append(events, reconcilePayment(ctx, existingPayment, pool, fx, mcfg, state, depth+1)...)
	return events
}

func existingInvoiceMetrics(ctx context.Context, existingPayment *model.Payment, inv *model.Invoice, fx *fxrate.Cache, mcfg invoicepay.Config) (candidateMetrics, bool) {
	candidates := invoicepay.Rank(ctx, existingPayment, []*model.Invoice{inv}, fx, mcfg)
	if len(candidates) == 0 {
		return candidateMetrics{}, false
	}
	c := candidates[0]
	return candidateMetrics{confidence: c.Confidence, dateDiff: c.DateDiffDays, isExact: c.IsExactAmount}, true
}

func linkInvoicePayment(payment *model.Payment, inv *model.Invoice, confidence model.MatchConfidence) {
	payment.MatchedFacturaFileId = inv.FileId
	payment.MatchConfidence = confidence
	inv.MatchedPagoFileId = payment.FileId
	inv.MatchConfidence = confidence
}

func unlinkInvoicePayment(payment *model.Payment, inv *model.Invoice) {
	payment.MatchedFacturaFileId = ""
	payment.MatchConfidence = ""
	_ = inv
}

func findPaymentByFileId(payments []*model.Payment, id model.FileId) *model.Payment {
	for _, p := range payments {
		if p.FileId == id {
			return p
		}
	}
	return nil
}
