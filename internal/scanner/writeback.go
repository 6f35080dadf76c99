package scanner

import (
	"context"
	"fmt"

	"adva-reconciliation-engine/internal/match/bankmatch"
	"adva-reconciliation-engine/internal/match/toctou"
	"adva-reconciliation-engine/internal/model"
	"adva-reconciliation-engine/internal/store"
)

// rowIndex maps a FileId to its position within a sheet's data rows, built
// once per readback and reused for every write-back BatchUpdate.
type rowIndex map[model.FileId]int

func buildRowIndex(rows [][]string, fileIdCol int) rowIndex {
	idx := make(rowIndex, len(rows))
	for i, row := range rows {
		idx[model.FileId(cell(row, fileIdCol))] = i
	}
	return idx
}

const (
	invoiceMatchedCol    = 15
	invoiceConfidenceCol = 16
	paymentMatchedCol    = 15
	paymentConfidenceCol = 16
	receiptMatchedCol    = 16
	receiptConfidenceCol = 17

	movementDetalleCol     = 10
	movementMatchedFileCol = 11
)

func writeInvoiceMatch(ctx context.Context, tab store.TabularStore, sheetId string, idx rowIndex, inv *model.Invoice) error {
	row, ok := idx[inv.FileId]
	if !ok {
		return fmt.Errorf("scanner: invoice %s not found in sheet %s", inv.FileId, sheetId)
	}
	return tab.BatchUpdate(ctx, sheetId, []store.CellUpdate{
		{Row: row, Col: invoiceMatchedCol, Value: string(inv.MatchedPagoFileId)},
		{Row: row, Col: invoiceConfidenceCol, Value: string(inv.MatchConfidence)},
	})
}

func writePaymentMatch(ctx context.Context, tab store.TabularStore, sheetId string, idx rowIndex, p *model.Payment) error {
	row, ok := idx[p.FileId]
	if !ok {
		return fmt.Errorf("scanner: payment %s not found in sheet %s", p.FileId, sheetId)
	}
	return tab.BatchUpdate(ctx, sheetId, []store.CellUpdate{
		{Row: row, Col: paymentMatchedCol, Value: string(p.MatchedFacturaFileId)},
		{Row: row, Col: paymentConfidenceCol, Value: string(p.MatchConfidence)},
	})
}

func writeReceiptMatch(ctx context.Context, tab store.TabularStore, sheetId string, idx rowIndex, r *model.Receipt) error {
	row, ok := idx[r.FileId]
	if !ok {
		return fmt.Errorf("scanner: receipt %s not found in sheet %s", r.FileId, sheetId)
	}
	return tab.BatchUpdate(ctx, sheetId, []store.CellUpdate{
		{Row: row, Col: receiptMatchedCol, Value: string(r.MatchedPagoFileId)},
		{Row: row, Col: receiptConfidenceCol, Value: string(r.MatchConfidence)},
	})
}

// movementWriter implements reconcile.MovementWriter against the statements
// sheet, re-reading the live row before every write so toctou.Apply can
// detect a concurrent change.
type movementWriter struct {
	ctx     context.Context
	tab     store.TabularStore
	sheetId string
	idx     rowIndex
}

func (w *movementWriter) ReadSnapshot(m *model.BankMovement) toctou.Snapshot {
	row, ok := w.idx[m.FileId]
	if !ok {
		return toctou.Snapshot{}
	}
	values, err := w.tab.GetValues(w.ctx, w.sheetId, "")
	if err != nil || row >= len(values) {
		return toctou.Snapshot{}
	}
	current := parseBankMovementRow(values[row])
	if current == nil {
		return toctou.Snapshot{}
	}
	return toctou.Snapshot{
		Fecha:                 current.Fecha,
		Concepto:              current.Concepto,
		Debito:                current.Debito,
		Credito:               current.Credito,
		ExistingMatchedFileId: current.MatchedFileId,
		ExistingDetalle:       current.Detalle,
	}
}

func (w *movementWriter) Write(m *model.BankMovement, result bankmatch.Result) error {
	row, ok := w.idx[m.FileId]
	if !ok {
		return fmt.Errorf("scanner: movement %s not found in sheet %s", m.FileId, w.sheetId)
	}
	return w.tab.BatchUpdate(w.ctx, w.sheetId, []store.CellUpdate{
		{Row: row, Col: movementDetalleCol, Value: result.Description},
		{Row: row, Col: movementMatchedFileCol, Value: string(result.MatchedFileId)},
	})
}
