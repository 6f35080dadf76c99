/*
Package scanner - intake-then-reconcile batch orchestration

Runs one full cycle: list unseen files from the document store, walk each
through the pipeline state machine, then read back every ledger sheet and
hand the typed pool to the three matchers (spec §4.10). Reading a sheet back
into typed rows is the mirror image of pipeline.extract's row-building: the
column order is part of the external contract (spec §6) in both directions.
*/
package scanner

import (
	"strconv"
	"strings"

	"adva-reconciliation-engine/internal/dateutil"
	"adva-reconciliation-engine/internal/model"
)

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseFloatCell(row []string, i int) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(cell(row, i)), 64)
	return v
}

func parseBoolCell(row []string, i int) bool {
	return strings.EqualFold(strings.TrimSpace(cell(row, i)), "true")
}

// invoiceColumns mirrors invoiceExtraction.row(): fechaEmision, fileId,
// fileName, tipoComprobante, nroFactura, counterpartCuit, counterpartName,
// importeNeto, importeIva, importeTotal, moneda, concepto, processedAt,
// confidence, needsReview, matchedPagoFileId, matchConfidence, hasCuitMatch.
func parseInvoiceRow(row []string, direction model.Direction) *model.Invoice {
	fecha, err := dateutil.ParseDate(cell(row, 0))
	if err != nil {
		return nil
	}
	inv := &model.Invoice{
		DocumentMeta: model.DocumentMeta{
			FileId:      model.FileId(cell(row, 1)),
			FileName:    cell(row, 2),
			Confidence:  parseFloatCell(row, 13),
			NeedsReview: parseBoolCell(row, 14),
		},
		Type:         model.InvoiceType(cell(row, 3)),
		Number:       cell(row, 4),
		FechaEmision: fecha,
		ImporteNeto:  model.AmountFromFloat(parseFloatCell(row, 7)),
		ImporteIva:   model.AmountFromFloat(parseFloatCell(row, 8)),
		ImporteTotal: model.AmountFromFloat(parseFloatCell(row, 9)),
		Moneda:       model.Currency(cell(row, 10)),
		Concepto:     cell(row, 11),
		Direction:    direction,

		MatchedPagoFileId: model.FileId(cell(row, 15)),
		MatchConfidence:   model.MatchConfidence(cell(row, 16)),
	}
	if direction == model.DirFacturaEmitida {
		inv.CuitReceptor = cell(row, 5)
		inv.RazonSocialReceptor = cell(row, 6)
	} else {
		inv.CuitEmisor = cell(row, 5)
		inv.RazonSocialEmisor = cell(row, 6)
	}
	return inv
}

// paymentColumns mirrors paymentExtraction.row().
func parsePaymentRow(row []string, direction model.Direction) *model.Payment {
	fecha, err := dateutil.ParseDate(cell(row, 0))
	if err != nil {
		return nil
	}
	return &model.Payment{
		DocumentMeta: model.DocumentMeta{
			FileId:      model.FileId(cell(row, 1)),
			FileName:    cell(row, 2),
			Confidence:  parseFloatCell(row, 13),
			NeedsReview: parseBoolCell(row, 14),
		},
		Banco:              cell(row, 3),
		FechaPago:          fecha,
		ImportePagado:      model.AmountFromFloat(parseFloatCell(row, 4)),
		Moneda:             model.Currency(cell(row, 5)),
		Referencia:         cell(row, 6),
		CuitPagador:        cell(row, 7),
		NombrePagador:      cell(row, 8),
		CuitBeneficiario:   cell(row, 9),
		NombreBeneficiario: cell(row, 10),
		Concepto:           cell(row, 11),
		Direction:          direction,

		MatchedFacturaFileId: model.FileId(cell(row, 15)),
		MatchConfidence:      model.MatchConfidence(cell(row, 16)),
	}
}

// receiptColumns mirrors receiptExtraction.row().
func parseReceiptRow(row []string) *model.Receipt {
	fecha, err := dateutil.ParseDate(cell(row, 0))
	if err != nil {
		return nil
	}
	return &model.Receipt{
		DocumentMeta: model.DocumentMeta{
			FileId:      model.FileId(cell(row, 1)),
			FileName:    cell(row, 2),
			Confidence:  parseFloatCell(row, 14),
			NeedsReview: parseBoolCell(row, 15),
		},
		Type:                   model.ReceiptType(cell(row, 3)),
		NombreEmpleado:         cell(row, 4),
		CuilEmpleado:           cell(row, 5),
		Legajo:                 cell(row, 6),
		CuitEmpleador:          cell(row, 7),
		PeriodoAbonado:         cell(row, 8),
		FechaPago:              fecha,
		SubtotalRemuneraciones: model.AmountFromFloat(parseFloatCell(row, 9)),
		SubtotalDescuentos:     model.AmountFromFloat(parseFloatCell(row, 10)),
		TotalNeto:              model.AmountFromFloat(parseFloatCell(row, 11)),
		TareaDesempenada:       cell(row, 12),

		MatchedPagoFileId: model.FileId(cell(row, 16)),
		MatchConfidence:   model.MatchConfidence(cell(row, 17)),
	}
}

// parseBankMovementRow mirrors bankMovementRow; header rows (column 3 ==
// "header") are skipped by the caller.
func parseBankMovementRow(row []string) *model.BankMovement {
	fecha, err := dateutil.ParseDate(cell(row, 0))
	if err != nil {
		return nil
	}
	fechaValor, _ := dateutil.ParseDate(cell(row, 4))
	mov := &model.BankMovement{
		DocumentMeta: model.DocumentMeta{
			FileId:   model.FileId(cell(row, 1)),
			FileName: cell(row, 2),
		},
		Fecha:         fecha,
		FechaValor:    fechaValor,
		Concepto:      cell(row, 5),
		Codigo:        cell(row, 6),
		Oficina:       cell(row, 7),
		Detalle:       cell(row, 10),
		MatchedFileId: model.FileId(cell(row, 11)),
	}
	if strings.TrimSpace(cell(row, 8)) != "" {
		a := model.AmountFromFloat(parseFloatCell(row, 8))
		mov.Credito = &a
	}
	if strings.TrimSpace(cell(row, 9)) != "" {
		a := model.AmountFromFloat(parseFloatCell(row, 9))
		mov.Debito = &a
	}
	return mov
}
