package pipeline

import (
	"context"
	"strings"
	"time"

	"adva-reconciliation-engine/internal/apperrors"
	"adva-reconciliation-engine/internal/dateutil"
	"adva-reconciliation-engine/internal/filing"
	"adva-reconciliation-engine/internal/model"
	"adva-reconciliation-engine/internal/parser"
	"adva-reconciliation-engine/internal/store"
	"adva-reconciliation-engine/internal/validators"
)

// extracted is the common shape EXTRACTING produces for the single-row
// document types (invoice, payment, receipt). Bank statements fan out
// into a header row plus many movement rows and are handled separately
// in statement.go.
type extracted interface {
	direction() model.Direction
	row() []any
	destination() filing.Destination
}

func extract(ctx context.Context, deps *Deps, docBytes []byte, info store.FileInfo, documentType string) (extracted, error) {
	prompt, ok := deps.Prompts.Extract[documentType]
	if !ok {
		return nil, apperrors.ErrUnrecognized.WithMessage("no extraction prompt for documentType " + documentType)
	}
	reply, err := deps.Gateway.AnalyzeDocument(ctx, docBytes, info.MimeType, prompt, deps.MaxRetries)
	if err != nil {
		return nil, err
	}

	switch documentType {
	case "invoice":
		return buildInvoice(reply, info)
	case "payment":
		return buildPayment(reply, info)
	case "receipt":
		return buildReceipt(reply, info)
	default:
		return nil, apperrors.ErrUnrecognized.WithMessage("unhandled documentType " + documentType)
	}
}

type rawInvoice struct {
	Type                string   `json:"type"`
	Number              string   `json:"number"`
	FechaEmision        string   `json:"fechaEmision"`
	NombreEmisor        string   `json:"nombreEmisor"`
	NombreReceptor      string   `json:"nombreReceptor"`
	Cuits               []string `json:"cuits"`
	ImporteNeto         string   `json:"importeNeto"`
	ImporteIva          string   `json:"importeIva"`
	ImporteTotal        string   `json:"importeTotal"`
	Moneda              string   `json:"moneda"`
	Concepto            string   `json:"concepto"`
}

type invoiceExtraction struct {
	inv *model.Invoice
}

func buildInvoice(reply string, info store.FileInfo) (extracted, error) {
	var raw rawInvoice
	if err := parser.Decode(reply, &raw); err != nil {
		return nil, err
	}

	var cuits []string
	for _, c := range raw.Cuits {
		if normalized, ok := parser.NormalizeCUIT(c); ok {
			cuits = append(cuits, normalized)
		}
	}

	assignment, err := parser.AssignParties(raw.NombreEmisor, raw.NombreReceptor, cuits)
	if err != nil {
		return nil, err
	}

	fecha, fechaErr := dateutil.ParseDate(raw.FechaEmision)
	neto, _ := validators.ParseAmount(raw.ImporteNeto)
	iva, _ := validators.ParseAmount(raw.ImporteIva)
	total, totalErr := validators.ParseAmount(raw.ImporteTotal)

	moneda := model.Currency(strings.ToUpper(strings.TrimSpace(raw.Moneda)))
	if !moneda.Valid() {
		moneda = model.ARS
	}

	presence := parser.FieldPresence{Total: 5}
	anyMissing := false
	for _, ok := range []bool{raw.Number != "", fechaErr == nil, assignment.CuitEmisor != "", totalErr == nil, moneda.Valid()} {
		if ok {
			presence.Present++
		} else {
			anyMissing = true
		}
	}
	confidence := presence.Confidence()
	needsReview := parser.NeedsReview(confidence, anyMissing, raw.Concepto == "")

	inv := &model.Invoice{
		DocumentMeta: model.DocumentMeta{
			FileId:      model.FileId(info.Id),
			FileName:    info.Name,
			ProcessedAt: time.Now(),
			Confidence:  confidence,
			NeedsReview: needsReview,
		},
		Type:                model.InvoiceType(strings.ToUpper(raw.Type)),
		Number:              raw.Number,
		FechaEmision:        fecha,
		CuitEmisor:          assignment.CuitEmisor,
		RazonSocialEmisor:   raw.NombreEmisor,
		CuitReceptor:        assignment.CuitReceptor,
		RazonSocialReceptor: raw.NombreReceptor,
		ImporteNeto:         neto,
		ImporteIva:          iva,
		ImporteTotal:        total,
		Moneda:              moneda,
		Concepto:            raw.Concepto,
		Direction:           assignment.Direction,
	}
	return &invoiceExtraction{inv: inv}, nil
}

func (e *invoiceExtraction) direction() model.Direction { return e.inv.Direction }

// row follows the invoices-received column contract: fechaEmision, fileId,
// fileName, tipoComprobante, nroFactura, cuitEmisor, razonSocialEmisor,
// importeNeto, importeIva, importeTotal, moneda, concepto, processedAt,
// confidence, needsReview, matchedPagoFileId, matchConfidence, hasCuitMatch.
// Invoices-emitidas carries the receptor identity in the counterpart slots.
func (e *invoiceExtraction) row() []any {
	inv := e.inv
	counterpartCuit, counterpartName := inv.CuitEmisor, inv.RazonSocialEmisor
	if inv.Direction == model.DirFacturaEmitida {
		counterpartCuit, counterpartName = inv.CuitReceptor, inv.RazonSocialReceptor
	}
	return []any{
		inv.FechaEmision.Format("2006-01-02"), string(inv.FileId), inv.FileName,
		string(inv.Type), inv.Number, counterpartCuit, counterpartName,
		inv.ImporteNeto.Float(), inv.ImporteIva.Float(), inv.ImporteTotal.Float(),
		string(inv.Moneda), inv.Concepto, inv.ProcessedAt.Format(time.RFC3339),
		inv.Confidence, inv.NeedsReview,
		string(inv.MatchedPagoFileId), string(inv.MatchConfidence), false,
	}
}

func (e *invoiceExtraction) destination() filing.Destination {
	inv := e.inv
	class := filing.ClassFor(inv.Direction)
	var name string
	if inv.Direction == model.DirFacturaEmitida {
		name = filing.InvoiceIssuedFilename(inv.FechaEmision, inv.Number, inv.RazonSocialReceptor, inv.Concepto)
	} else {
		name = filing.InvoiceReceivedFilename(inv.FechaEmision, inv.Number, inv.RazonSocialEmisor, inv.Concepto)
	}
	return filing.Destination{FolderPath: filing.FolderPath(inv.FechaEmision, class), FileName: name}
}

type rawPayment struct {
	Banco              string `json:"banco"`
	FechaPago          string `json:"fechaPago"`
	ImportePagado      string `json:"importePagado"`
	Moneda             string `json:"moneda"`
	Referencia         string `json:"referencia"`
	CuitPagador        string `json:"cuitPagador"`
	NombrePagador      string `json:"nombrePagador"`
	CuitBeneficiario   string `json:"cuitBeneficiario"`
	NombreBeneficiario string `json:"nombreBeneficiario"`
	Concepto           string `json:"concepto"`
}

type paymentExtraction struct {
	pay *model.Payment
}

func buildPayment(reply string, info store.FileInfo) (extracted, error) {
	var raw rawPayment
	if err := parser.Decode(reply, &raw); err != nil {
		return nil, err
	}

	payerIsAdva := parser.IsAdvaName(raw.NombrePagador)
	beneficiaryIsAdva := parser.IsAdvaName(raw.NombreBeneficiario)
	if payerIsAdva == beneficiaryIsAdva {
		return nil, apperrors.ErrUnrecognized
	}
	direction := model.DirPagoRecibido
	if payerIsAdva {
		direction = model.DirPagoEnviado
	}

	fecha, fechaErr := dateutil.ParseDate(raw.FechaPago)
	importe, importeErr := validators.ParseAmount(raw.ImportePagado)
	moneda := model.Currency(strings.ToUpper(strings.TrimSpace(raw.Moneda)))
	if !moneda.Valid() {
		moneda = model.ARS
	}

	cuitPagador, _ := parser.NormalizeCUIT(raw.CuitPagador)
	cuitBeneficiario, _ := parser.NormalizeCUIT(raw.CuitBeneficiario)

	presence := parser.FieldPresence{Total: 4}
	anyMissing := false
	for _, ok := range []bool{fechaErr == nil, importeErr == nil, raw.NombrePagador != "" || raw.NombreBeneficiario != "", moneda.Valid()} {
		if ok {
			presence.Present++
		} else {
			anyMissing = true
		}
	}
	confidence := presence.Confidence()
	needsReview := parser.NeedsReview(confidence, anyMissing, raw.Referencia == "")

	pay := &model.Payment{
		DocumentMeta: model.DocumentMeta{
			FileId:      model.FileId(info.Id),
			FileName:    info.Name,
			ProcessedAt: time.Now(),
			Confidence:  confidence,
			NeedsReview: needsReview,
		},
		Banco:              raw.Banco,
		FechaPago:          fecha,
		ImportePagado:      importe,
		Moneda:             moneda,
		Referencia:         raw.Referencia,
		CuitPagador:        cuitPagador,
		NombrePagador:      raw.NombrePagador,
		CuitBeneficiario:   cuitBeneficiario,
		NombreBeneficiario: raw.NombreBeneficiario,
		Concepto:           raw.Concepto,
		Direction:          direction,
	}
	return &paymentExtraction{pay: pay}, nil
}

func (e *paymentExtraction) direction() model.Direction { return e.pay.Direction }

// row mirrors the invoices-received contract shape: date, identity, then the
// fixed processedAt/confidence/needsReview/match tail.
func (e *paymentExtraction) row() []any {
	p := e.pay
	return []any{
		p.FechaPago.Format("2006-01-02"), string(p.FileId), p.FileName, p.Banco,
		p.ImportePagado.Float(), string(p.Moneda), p.Referencia,
		p.CuitPagador, p.NombrePagador, p.CuitBeneficiario, p.NombreBeneficiario,
		p.Concepto, p.ProcessedAt.Format(time.RFC3339), p.Confidence, p.NeedsReview,
		string(p.MatchedFacturaFileId), string(p.MatchConfidence),
	}
}

func (e *paymentExtraction) destination() filing.Destination {
	p := e.pay
	class := filing.ClassFor(p.Direction)
	var name string
	if p.Direction == model.DirPagoEnviado {
		name = filing.PaymentSentFilename(p.FechaPago, p.NombreBeneficiario, p.Concepto)
	} else {
		name = filing.PaymentReceivedFilename(p.FechaPago, p.NombrePagador, p.Concepto)
	}
	return filing.Destination{FolderPath: filing.FolderPath(p.FechaPago, class), FileName: name}
}

type rawReceipt struct {
	Type                   string `json:"type"`
	NombreEmpleado         string `json:"nombreEmpleado"`
	CuilEmpleado           string `json:"cuilEmpleado"`
	Legajo                 string `json:"legajo"`
	CuitEmpleador          string `json:"cuitEmpleador"`
	PeriodoAbonado         string `json:"periodoAbonado"`
	FechaPago              string `json:"fechaPago"`
	SubtotalRemuneraciones string `json:"subtotalRemuneraciones"`
	SubtotalDescuentos     string `json:"subtotalDescuentos"`
	TotalNeto              string `json:"totalNeto"`
	TareaDesempenada       string `json:"tareaDesempenada"`
}

type receiptExtraction struct {
	rec *model.Receipt
}

func buildReceipt(reply string, info store.FileInfo) (extracted, error) {
	var raw rawReceipt
	if err := parser.Decode(reply, &raw); err != nil {
		return nil, err
	}

	fecha, fechaErr := dateutil.ParseDate(raw.FechaPago)
	remuneraciones, _ := validators.ParseAmount(raw.SubtotalRemuneraciones)
	descuentos, _ := validators.ParseAmount(raw.SubtotalDescuentos)
	neto, netoErr := validators.ParseAmount(raw.TotalNeto)
	cuil, _ := parser.NormalizeCUIT(raw.CuilEmpleado)

	presence := parser.FieldPresence{Total: 4}
	anyMissing := false
	for _, ok := range []bool{raw.NombreEmpleado != "", fechaErr == nil, netoErr == nil, raw.PeriodoAbonado != ""} {
		if ok {
			presence.Present++
		} else {
			anyMissing = true
		}
	}
	confidence := presence.Confidence()
	needsReview := parser.NeedsReview(confidence, anyMissing, raw.Legajo == "")

	rec := &model.Receipt{
		DocumentMeta: model.DocumentMeta{
			FileId:      model.FileId(info.Id),
			FileName:    info.Name,
			ProcessedAt: time.Now(),
			Confidence:  confidence,
			NeedsReview: needsReview,
		},
		Type:                   model.ReceiptType(strings.ToLower(raw.Type)),
		NombreEmpleado:         raw.NombreEmpleado,
		CuilEmpleado:           cuil,
		Legajo:                 raw.Legajo,
		CuitEmpleador:          raw.CuitEmpleador,
		PeriodoAbonado:         raw.PeriodoAbonado,
		FechaPago:              fecha,
		SubtotalRemuneraciones: remuneraciones,
		SubtotalDescuentos:     descuentos,
		TotalNeto:              neto,
		TareaDesempenada:       raw.TareaDesempenada,
	}
	return &receiptExtraction{rec: rec}, nil
}

func (e *receiptExtraction) direction() model.Direction { return model.DirRecibo }

func (e *receiptExtraction) row() []any {
	r := e.rec
	return []any{
		r.FechaPago.Format("2006-01-02"), string(r.FileId), r.FileName, string(r.Type),
		r.NombreEmpleado, r.CuilEmpleado, r.Legajo, r.CuitEmpleador, r.PeriodoAbonado,
		r.SubtotalRemuneraciones.Float(), r.SubtotalDescuentos.Float(), r.TotalNeto.Float(),
		r.TareaDesempenada, r.ProcessedAt.Format(time.RFC3339), r.Confidence, r.NeedsReview,
		string(r.MatchedPagoFileId), string(r.MatchConfidence),
	}
}

func (e *receiptExtraction) destination() filing.Destination {
	r := e.rec
	return filing.Destination{
		FolderPath: filing.FolderPath(r.FechaPago, filing.ClassFor(model.DirRecibo)),
		FileName:   filing.ReceiptFilename(r.FechaPago, r.NombreEmpleado),
	}
}
