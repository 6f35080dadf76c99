package reconcile

import (
	"context"

	"adva-reconciliation-engine/internal/match/receiptpay"
	"adva-reconciliation-engine/internal/model"
)

// ReceiptPaymentPool is the working set for salary-receipt reconciliation.
type ReceiptPaymentPool struct {
	Receipts []*model.Receipt
	Payments []*model.Payment
}

// ReconcileReceiptPayments mirrors ReconcileInvoicePayments for receipts,
// which never cross currency (spec §4.8).
func ReconcileReceiptPayments(ctx context.Context, pool ReceiptPaymentPool, cfg receiptpay.Config, ccfg CascadeConfig) []LinkEvent {
	state := newCascadeState(ccfg)
	var events []LinkEvent

	for _, payment := range pool.Payments {
		if payment.MatchedFacturaFileId != "" {
			continue
		}
		events = append(events, reconcileReceiptPayment(ctx, payment, pool, cfg, state, 0)...)
	}
	return events
}

func reconcileReceiptPayment(ctx context.Context, payment *model.Payment, pool ReceiptPaymentPool, cfg receiptpay.Config, state *cascadeState, depth int) []LinkEvent {
	if state.budgetExceeded(depth) {
		return nil
	}

	candidates := receiptpay.Rank(ctx, payment, pool.Receipts, cfg)
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	r := best.Receipt

	if r.MatchedPagoFileId == "" {
		linkReceiptPayment(payment, r, best.Confidence)
		return []LinkEvent{{Kind: "linked", FileIdA: payment.FileId, FileIdB: r.FileId}}
	}

	existingPayment := findPaymentByFileId(pool.Payments, r.MatchedPagoFileId)
	if existingPayment == nil {
		linkReceiptPayment(payment, r, best.Confidence)
		return []LinkEvent{{Kind: "linked", FileIdA: payment.FileId, FileIdB: r.FileId}}
	}

	candMetrics := candidateMetrics{confidence: best.Confidence, dateDiff: best.DateDiffDays, isExact: best.IsExactAmount}
	existingMetrics, stillValid := existingReceiptMetrics(ctx, existingPayment, r, cfg)
	if stillValid && !shouldReplace(candMetrics, existingMetrics) {
		return nil
	}

	unlinkReceiptPayment(existingPayment)
	linkReceiptPayment(payment, r, best.Confidence)

	events := []LinkEvent{{Kind: "displaced", FileIdA: payment.FileId, FileIdB: r.FileId, DisplacedFrom: existingPayment.FileId}}
	events = append(events, reconcileReceiptPayment(ctx, existingPayment, pool, cfg, state, depth+1)...)
	return events
}

func existingReceiptMetrics(ctx context.Context, existingPayment *model.Payment, r *model.Receipt, cfg receiptpay.Config) (candidateMetrics, bool) {
	candidates := receiptpay.Rank(ctx, existingPayment, []*model.Receipt{r}, cfg)
	if len(candidates) == 0 {
		return candidateMetrics{}, false
	}
	c := candidates[0]
	return candidateMetrics{confidence: c.Confidence, dateDiff: c.DateDiffDays, isExact: c.IsExactAmount}, true
}

func linkReceiptPayment(payment *model.Payment, r *model.Receipt, confidence model.MatchConfidence) {
	payment.MatchedFacturaFileId = r.FileId
	payment.MatchConfidence = confidence
	r.MatchedPagoFileId = payment.FileId
	r.MatchConfidence = confidence
}

func unlinkReceiptPayment(payment *model.Payment) {
	payment.MatchedFacturaFileId = ""
	payment.MatchConfidence = ""
}
