/*
Package bankmatch - bank-movement reconciliation tiers

Classifies one statement row (debit or credit) against the document pool in
five decreasing-confidence tiers, per spec §4.9: combo payment+invoice
pairs already linked (tier 1), CUIT-confirmed identity (tier 2),
reference-number confirmed payments (tier 3), keyword-scored matches
(tier 4), and bare amount+date matches (tier 5). Two short-circuit
patterns - bank fees and credit card settlements - are recognized before
any of that (Phase 0) since they never reconcile against a document.

Grounded on this codebase's deterministic tie-break style (date proximity,
then exactness, never float equality) generalized from the two-party
invoicepay/receiptpay matchers to a five-tier scheme with a hard identity
filter in between.
*/
package bankmatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"adva-reconciliation-engine/internal/dateutil"
	"adva-reconciliation-engine/internal/fxrate"
	"adva-reconciliation-engine/internal/model"
	"adva-reconciliation-engine/internal/validators"
)

const (
	matchTypeBankFee           = "bank_fee"
	matchTypeCreditCardPayment = "credit_card_payment"
	matchTypePagoFactura       = "pago_factura"
	matchTypeDirectFactura     = "direct_factura"
	matchTypeRecibo            = "recibo"
	matchTypePagoOnly          = "pago_only"
	matchTypeNoMatch           = "no_match"
)

// Pool is the set of already-extracted documents a movement is matched
// against. Debit movements draw from the egreso side (invoices received,
// payments sent, receipts); credit movements draw from the ingreso side
// (invoices issued, payments received), adjusted by withholdings.
type Pool struct {
	InvoicesReceived []*model.Invoice
	InvoicesEmitidas []*model.Invoice
	PaymentsSent     []*model.Payment
	PaymentsReceived []*model.Payment
	Receipts         []*model.Receipt
	Withholdings     []*model.Withholding
}

// Config holds the window parameters from spec §6.
type Config struct {
	PaymentWindowDays      int     // default 15, symmetric
	InvoiceWindowBefore    int     // default 30
	InvoiceWindowAfter     int     // default 5
	WithholdingWindowAfter int     // default 90
	UsdArsTolerancePercent float64 // default 5, cross-currency amount band
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		PaymentWindowDays:      15,
		InvoiceWindowBefore:    30,
		InvoiceWindowAfter:     5,
		WithholdingWindowAfter: 90,
		UsdArsTolerancePercent: 5,
	}
}

// Result is the outcome of matching one bank movement.
type Result struct {
	MatchType       string
	Description     string
	MatchedFileId   model.FileId
	ExtractedCuit   string
	Confidence      model.MatchConfidence
	Tier            int
	Reasons         []string
	UsedRetenciones []*model.Withholding
}

// Match runs the full five-phase classification for one movement. fx
// resolves the venta rate for any candidate denominated in USD; a rate
// miss rejects that candidate rather than guessing (spec §4.9 Phase 4).
func Match(ctx context.Context, movement *model.BankMovement, pool Pool, fx *fxrate.Cache, cfg Config) Result {
	if matchType, desc, ok := detectAutoCategory(movement.Concepto); ok {
		return Result{MatchType: matchType, Description: desc, Confidence: model.ConfidenceHigh, Tier: 0}
	}

	extractedCuit, hasCuit := validators.ExtractCUIT(movement.Concepto)
	if hasCuit && !validators.IsValidCUIT(extractedCuit) {
		hasCuit = false
	}
	extractedRef, hasRef := ExtractReference(movement.Concepto)
	tokens := Tokenize(movement.Concepto)

	candidates := gatherCandidates(ctx, movement, pool, fx, cfg)

	// Phase 3: hard identity filter. No fallthrough - if an identity
	// signal was extracted and nothing survives filtering on it, the
	// movement is unmatched even if looser candidates exist.
	var filtered []candidate
	switch {
	case hasCuit:
		for _, c := range candidates {
			if c.cuit != "" && validators.IdentifierMatch(c.cuit, extractedCuit) {
				filtered = append(filtered, c)
			}
		}
	case hasRef:
		for _, c := range candidates {
			if c.kind == kindPaymentSent || c.kind == kindPaymentReceived {
				if c.reference != "" && c.reference == extractedRef {
					filtered = append(filtered, c)
				}
			}
		}
	default:
		filtered = candidates
	}

	if len(filtered) == 0 {
		return Result{MatchType: matchTypeNoMatch, Confidence: model.ConfidenceLow, Tier: 5, ExtractedCuit: extractedCuit}
	}

	for i := range filtered {
		filtered[i].tier, filtered[i].keywordScore = assignTier(filtered[i], hasCuit, hasRef, tokens)
	}

	sort.SliceStable(filtered, func(i, j int) bool { return lessCandidate(filtered[i], filtered[j]) })
	best := filtered[0]

	return buildResult(movement, best, extractedCuit, extractedRef, hasCuit)
}

type kind int

const (
	kindInvoiceReceived kind = iota
	kindInvoiceEmitida
	kindPaymentSent
	kindPaymentReceived
	kindReceipt
)

type candidate struct {
	kind            kind
	fileId          model.FileId
	dateDiff        int
	isExact         bool
	crossCurrency   bool
	rate            float64
	cuit            string
	reference       string
	entityName      string
	concepto        string
	tier            int
	keywordScore    int
	usedRetenciones []*model.Withholding

	invoice *model.Invoice
	payment *model.Payment
	receipt *model.Receipt
}

// matchAmount compares the movement's amount against a candidate document's
// amount, converting via fx when the document is USD-denominated (spec
// §4.9 Phase 4). A rate miss rejects the candidate rather than guessing.
func matchAmount(ctx context.Context, movement *model.BankMovement, docAmount model.Amount, docMoneda model.Currency, docDate time.Time, fx *fxrate.Cache, cfg Config) (ok, exact, crossCurrency bool, rate float64) {
	if docMoneda != model.USD {
		return movement.Amount().EqualWithin(docAmount, model.DefaultEpsilonCents), true, false, 0
	}

	venta, rateOK := fx.Venta(ctx, docDate)
	if !rateOK {
		return false, false, true, 0
	}
	converted := model.Amount{Cents: int64(docAmount.Float() * venta * 100)}
	within := movement.Amount().WithinPercent(converted, cfg.UsdArsTolerancePercent)
	return within, false, true, venta
}

func gatherCandidates(ctx context.Context, movement *model.BankMovement, pool Pool, fx *fxrate.Cache, cfg Config) []candidate {
	var out []candidate

	if movement.IsDebit() {
		for _, inv := range pool.InvoicesReceived {
			dd, ok := invoiceWindow(movement.Fecha, inv.FechaEmision, cfg)
			if !ok {
				continue
			}
			if ok, exact, cross, rate := matchAmount(ctx, movement, inv.ImporteTotal, inv.Moneda, inv.FechaEmision, fx, cfg); ok {
				out = append(out, candidate{
					kind: kindInvoiceReceived, fileId: inv.FileId, dateDiff: dd, isExact: exact,
					crossCurrency: cross, rate: rate,
					cuit: inv.CuitEmisor, entityName: inv.RazonSocialEmisor, concepto: inv.Concepto, invoice: inv,
				})
			}
		}
		for _, p := range pool.PaymentsSent {
			dd, ok := paymentWindow(movement.Fecha, p.FechaPago, cfg)
			if !ok {
				continue
			}
			if ok, exact, cross, rate := matchAmount(ctx, movement, p.ImportePagado, p.Moneda, p.FechaPago, fx, cfg); ok {
				out = append(out, candidate{
					kind: kindPaymentSent, fileId: p.FileId, dateDiff: dd, isExact: exact,
					crossCurrency: cross, rate: rate,
					cuit: p.CuitBeneficiario, reference: p.Referencia, entityName: p.NombreBeneficiario,
					concepto: p.Concepto, payment: p,
				})
			}
		}
		for _, r := range pool.Receipts {
			if dd, ok := paymentWindow(movement.Fecha, r.FechaPago, cfg); ok {
				if exact := movement.Amount().EqualWithin(r.TotalNeto, model.DefaultEpsilonCents); exact {
					out = append(out, candidate{
						kind: kindReceipt, fileId: r.FileId, dateDiff: dd, isExact: true,
						cuit: r.CuilEmpleado, entityName: r.NombreEmpleado, receipt: r,
					})
				}
			}
		}
		return out
	}

	// Credit side.
	for _, inv := range pool.InvoicesEmitidas {
		dd, ok := invoiceWindow(movement.Fecha, inv.FechaEmision, cfg)
		if !ok {
			continue
		}
		if ok, exact, cross, rate := matchAmount(ctx, movement, inv.ImporteTotal, inv.Moneda, inv.FechaEmision, fx, cfg); ok {
			out = append(out, candidate{
				kind: kindInvoiceEmitida, fileId: inv.FileId, dateDiff: dd, isExact: exact,
				crossCurrency: cross, rate: rate,
				cuit: inv.CuitReceptor, entityName: inv.RazonSocialReceptor, concepto: inv.Concepto, invoice: inv,
			})
			continue
		}
		if used, adjusted, ok := matchWithWithholdings(movement.Amount(), inv, pool.Withholdings, cfg); ok {
			out = append(out, candidate{
				kind: kindInvoiceEmitida, fileId: inv.FileId, dateDiff: dd, isExact: adjusted,
				cuit: inv.CuitReceptor, entityName: inv.RazonSocialReceptor, concepto: inv.Concepto,
				invoice: inv, usedRetenciones: used,
			})
		}
	}
	for _, p := range pool.PaymentsReceived {
		dd, ok := paymentWindow(movement.Fecha, p.FechaPago, cfg)
		if !ok {
			continue
		}
		if ok, exact, cross, rate := matchAmount(ctx, movement, p.ImportePagado, p.Moneda, p.FechaPago, fx, cfg); ok {
			out = append(out, candidate{
				kind: kindPaymentReceived, fileId: p.FileId, dateDiff: dd, isExact: exact,
				crossCurrency: cross, rate: rate,
				cuit: p.CuitPagador, reference: p.Referencia, entityName: p.NombrePagador,
				concepto: p.Concepto, payment: p,
			})
		}
	}
	return out
}

func invoiceWindow(movementDate, invoiceDate time.Time, cfg Config) (int, bool) {
	dd := dateutil.DayDistance(movementDate, invoiceDate)
	if dd >= -cfg.InvoiceWindowBefore && dd <= cfg.InvoiceWindowAfter {
		return dd, true
	}
	return dd, false
}

func paymentWindow(movementDate, paymentDate time.Time, cfg Config) (int, bool) {
	dd := dateutil.DayDistance(movementDate, paymentDate)
	if dd >= -cfg.PaymentWindowDays && dd <= cfg.PaymentWindowDays {
		return dd, true
	}
	return dd, false
}

// matchWithWithholdings tries movement.credito + sum(retenciones) against
// the invoice total, for withholdings issued against the same receptor
// within the post-invoice window.
func matchWithWithholdings(credito model.Amount, inv *model.Invoice, withholdings []*model.Withholding, cfg Config) ([]*model.Withholding, bool, bool) {
	var used []*model.Withholding
	var sum model.Amount
	for _, w := range withholdings {
		if w.CuitAgenteRetencion != inv.CuitReceptor {
			continue
		}
		if !dateutil.WithinWindow(inv.FechaEmision, w.FechaEmision, 0, cfg.WithholdingWindowAfter) {
			continue
		}
		used = append(used, w)
		sum = sum.Add(w.MontoRetencion)
	}
	if len(used) == 0 {
		return nil, false, false
	}
	adjusted := credito.Add(sum)
	return used, true, adjusted.EqualWithin(inv.ImporteTotal, model.DefaultEpsilonCents)
}

// assignTier implements Phase 5's priority order: an already-linked
// payment+invoice combo outranks everything; otherwise the identity
// channel used to survive Phase 3 determines the tier; absent any
// identity channel, keyword score against entity name/concepto decides
// between tier 4 and tier 5.
func assignTier(c candidate, hasCuit, hasRef bool, tokens []string) (tier int, score int) {
	if (c.kind == kindPaymentSent || c.kind == kindPaymentReceived) && c.payment != nil && c.payment.MatchedFacturaFileId != "" {
		return 1, 0
	}
	if len(c.usedRetenciones) > 0 {
		return 2, 0
	}
	if hasCuit {
		return 2, 0
	}
	if hasRef {
		return 3, 0
	}
	score = KeywordScore(tokens, c.entityName, c.concepto)
	if score >= 2 {
		return 4, score
	}
	return 5, score
}

func lessCandidate(a, b candidate) bool {
	if a.tier != b.tier {
		return a.tier < b.tier
	}
	ad, bd := absInt(a.dateDiff), absInt(b.dateDiff)
	if ad != bd {
		return ad < bd
	}
	if a.isExact != b.isExact {
		return a.isExact
	}
	return a.keywordScore > b.keywordScore
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// confidenceForTier derives the tier's base confidence, capped one notch
// (HIGH→MEDIUM, MEDIUM→LOW) when the winning candidate is cross-currency
// (spec §4.9 confidence derivation).
func confidenceForTier(tier int, crossCurrency bool) model.MatchConfidence {
	switch {
	case tier <= 3:
		if crossCurrency {
			return model.ConfidenceMedium
		}
		return model.ConfidenceHigh
	case tier == 4:
		if crossCurrency {
			return model.ConfidenceLow
		}
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func buildResult(movement *model.BankMovement, best candidate, extractedCuit, extractedRef string, hasCuit bool) Result {
	confidence := confidenceForTier(best.tier, best.crossCurrency)

	matchType := matchTypeFor(best)
	description := describe(movement, best, matchType)

	cuit := ""
	if hasCuit {
		cuit = extractedCuit
	}

	return Result{
		MatchType:       matchType,
		Description:     description,
		MatchedFileId:   best.fileId,
		ExtractedCuit:   cuit,
		Confidence:      confidence,
		Tier:            best.tier,
		Reasons:         buildReasons(best, extractedCuit, extractedRef),
		UsedRetenciones: best.usedRetenciones,
	}
}

// buildReasons explains the winning candidate's identity channel and, for
// a cross-currency win, the conversion rate applied - the §4.9 Output
// contract's reasons[] field.
func buildReasons(best candidate, extractedCuit, extractedRef string) []string {
	var reasons []string
	switch {
	case best.tier == 1:
		reasons = append(reasons, "Payment linked to invoice")
	case len(best.usedRetenciones) > 0:
		reasons = append(reasons, "Withholding-adjusted amount match")
	case best.tier == 2:
		reasons = append(reasons, fmt.Sprintf("CUIT match: %s", extractedCuit))
	case best.tier == 3:
		reasons = append(reasons, fmt.Sprintf("Reference match: %s", extractedRef))
	case best.tier == 4:
		reasons = append(reasons, fmt.Sprintf("Keyword match (score: %d)", best.keywordScore))
	}
	if best.crossCurrency {
		reasons = append(reasons, "Cross-currency match (USD→ARS)", fmt.Sprintf("rate: %.1f", best.rate))
	}
	return reasons
}

func matchTypeFor(c candidate) string {
	if c.tier == 1 {
		return matchTypePagoFactura
	}
	switch c.kind {
	case kindInvoiceReceived, kindInvoiceEmitida:
		return matchTypeDirectFactura
	case kindReceipt:
		return matchTypeRecibo
	default:
		return matchTypePagoOnly
	}
}

func describe(movement *model.BankMovement, c candidate, matchType string) string {
	suffix := ""
	if len(c.usedRetenciones) > 0 {
		suffix = " (con retencion)"
	}

	switch matchType {
	case matchTypePagoFactura:
		if movement.IsDebit() {
			return fmt.Sprintf("Pago Factura a %s - %s", c.entityName, c.concepto)
		}
		return fmt.Sprintf("Cobro Factura de %s - %s", c.entityName, c.concepto)
	case matchTypeDirectFactura:
		base := ""
		if movement.IsDebit() {
			base = fmt.Sprintf("Pago Factura a %s - %s", c.entityName, c.concepto)
		} else {
			base = fmt.Sprintf("Cobro Factura de %s - %s", c.entityName, c.concepto)
		}
		return base + suffix
	case matchTypeRecibo:
		periodo := ""
		if c.receipt != nil {
			periodo = c.receipt.PeriodoAbonado
		}
		return fmt.Sprintf("Sueldo %s - %s", periodo, c.entityName)
	case matchTypePagoOnly:
		if movement.IsDebit() {
			return fmt.Sprintf("REVISAR! Pago a %s %s (%s)", c.entityName, c.cuit, c.concepto)
		}
		return fmt.Sprintf("REVISAR! Cobro de %s", c.entityName)
	default:
		return ""
	}
}
