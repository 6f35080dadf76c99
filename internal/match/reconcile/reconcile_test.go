package reconcile

import (
	"context"
	"testing"
	"time"

	"adva-reconciliation-engine/internal/fxrate"
	"adva-reconciliation-engine/internal/match/bankmatch"
	"adva-reconciliation-engine/internal/match/invoicepay"
	"adva-reconciliation-engine/internal/match/receiptpay"
	"adva-reconciliation-engine/internal/match/toctou"
	"adva-reconciliation-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRateProvider struct{}

func (stubRateProvider) Fetch(ctx context.Context, date time.Time) (fxrate.Rate, error) {
	return fxrate.Rate{Venta: 1000}, nil
}

func invoicepayConfig() invoicepay.Config {
	return invoicepay.Config{MatchDaysBefore: 10, MatchDaysAfter: 60, UsdArsTolerancePercent: 5}
}

func TestReconcileInvoicePaymentsDisplacesWeakerMatch(t *testing.T) {
	invDate := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		DocumentMeta:      model.DocumentMeta{FileId: "inv-1"},
		FechaEmision:      invDate,
		CuitEmisor:        "30712345671",
		RazonSocialEmisor: "Proveedor SA",
		ImporteTotal:      model.AmountFromFloat(10000),
		Moneda:            model.ARS,
	}
	weakPayment := &model.Payment{
		DocumentMeta:         model.DocumentMeta{FileId: "pay-weak"},
		FechaPago:            invDate.AddDate(0, 0, 25),
		ImportePagado:        model.AmountFromFloat(10000),
		Moneda:               model.ARS,
		MatchedFacturaFileId: "inv-1",
		MatchConfidence:      model.ConfidenceMedium,
	}
	inv.MatchedPagoFileId = weakPayment.FileId
	inv.MatchConfidence = model.ConfidenceMedium

	strongPayment := &model.Payment{
		DocumentMeta:     model.DocumentMeta{FileId: "pay-strong"},
		FechaPago:        invDate.AddDate(0, 0, 2),
		ImportePagado:    model.AmountFromFloat(10000),
		Moneda:           model.ARS,
		CuitBeneficiario: "30712345671",
	}

	pool := InvoicePaymentPool{Invoices: []*model.Invoice{inv}, Payments: []*model.Payment{weakPayment, strongPayment}}
	fx := fxrate.NewCache(stubRateProvider{})

	events := ReconcileInvoicePayments(context.Background(), pool, fx, invoicepayConfig(), DefaultCascadeConfig())

	require.NotEmpty(t, events)
	assert.Equal(t, "displaced", events[0].Kind)
	assert.Equal(t, model.FileId("pay-strong"), inv.MatchedPagoFileId)
	assert.Equal(t, model.FileId("pay-strong"), strongPayment.MatchedFacturaFileId)
	assert.Empty(t, weakPayment.MatchedFacturaFileId)
}

func TestReconcileInvoicePaymentsKeepsStrongerExistingMatch(t *testing.T) {
	invDate := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		DocumentMeta:      model.DocumentMeta{FileId: "inv-2"},
		FechaEmision:      invDate,
		CuitEmisor:        "30712345671",
		RazonSocialEmisor: "Proveedor SA",
		ImporteTotal:      model.AmountFromFloat(10000),
		Moneda:            model.ARS,
	}
	strongPayment := &model.Payment{
		DocumentMeta:         model.DocumentMeta{FileId: "pay-strong"},
		FechaPago:            invDate.AddDate(0, 0, 2),
		ImportePagado:        model.AmountFromFloat(10000),
		Moneda:               model.ARS,
		CuitBeneficiario:     "30712345671",
		MatchedFacturaFileId: "inv-2",
		MatchConfidence:      model.ConfidenceHigh,
	}
	inv.MatchedPagoFileId = strongPayment.FileId
	inv.MatchConfidence = model.ConfidenceHigh

	weakPayment := &model.Payment{
		DocumentMeta:  model.DocumentMeta{FileId: "pay-weak"},
		FechaPago:     invDate.AddDate(0, 0, 25),
		ImportePagado: model.AmountFromFloat(10000),
		Moneda:        model.ARS,
	}

	pool := InvoicePaymentPool{Invoices: []*model.Invoice{inv}, Payments: []*model.Payment{strongPayment, weakPayment}}
	fx := fxrate.NewCache(stubRateProvider{})

	events := ReconcileInvoicePayments(context.Background(), pool, fx, invoicepayConfig(), DefaultCascadeConfig())

	assert.Empty(t, events)
	assert.Equal(t, model.FileId("pay-strong"), inv.MatchedPagoFileId)
	assert.Empty(t, weakPayment.MatchedFacturaFileId)
}

func TestReconcileReceiptPaymentsLinksFreshMatch(t *testing.T) {
	payDate := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	receipt := &model.Receipt{
		DocumentMeta:   model.DocumentMeta{FileId: "rec-1"},
		NombreEmpleado: "Juan Perez",
		CuilEmpleado:   "20123456789",
		FechaPago:      payDate.AddDate(0, 0, -1),
		TotalNeto:      model.AmountFromFloat(50000),
	}
	payment := &model.Payment{
		DocumentMeta:       model.DocumentMeta{FileId: "pay-1"},
		FechaPago:          payDate,
		ImportePagado:      model.AmountFromFloat(50000),
		CuitBeneficiario:   "20123456789",
		NombreBeneficiario: "Juan Perez",
	}

	pool := ReceiptPaymentPool{Receipts: []*model.Receipt{receipt}, Payments: []*model.Payment{payment}}
	events := ReconcileReceiptPayments(context.Background(), pool, receiptpay.Config{MatchDaysBefore: 10, MatchDaysAfter: 60}, DefaultCascadeConfig())

	require.Len(t, events, 1)
	assert.Equal(t, "linked", events[0].Kind)
	assert.Equal(t, model.FileId("rec-1"), payment.MatchedFacturaFileId)
}

type fakeMovementWriter struct {
	snapshots map[model.FileId]toctou.Snapshot
	written   map[model.FileId]bankmatch.Result
}

func (w *fakeMovementWriter) ReadSnapshot(m *model.BankMovement) toctou.Snapshot {
	return w.snapshots[m.FileId]
}

func (w *fakeMovementWriter) Write(m *model.BankMovement, result bankmatch.Result) error {
	w.written[m.FileId] = result
	return nil
}

func TestReconcileBankMovementsWritesMatchedRow(t *testing.T) {
	fee := amtPtr(500)
	movement := &model.BankMovement{
		DocumentMeta: model.DocumentMeta{FileId: "mov-1"},
		Fecha:        time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Concepto:     "COMISION MANTENIMIENTO",
		Debito:       fee,
	}
	snap := toctou.Snapshot{Fecha: movement.Fecha, Concepto: movement.Concepto, Debito: fee}
	writer := &fakeMovementWriter{
		snapshots: map[model.FileId]toctou.Snapshot{"mov-1": snap},
		written:   map[model.FileId]bankmatch.Result{},
	}
	fx := fxrate.NewCache(stubRateProvider{})

	outcomes := ReconcileBankMovements(context.Background(), []*model.BankMovement{movement}, bankmatch.Pool{}, fx, bankmatch.DefaultConfig(), writer)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Written)
	assert.Equal(t, "bank_fee", outcomes[0].Result.MatchType)
	assert.Contains(t, writer.written, model.FileId("mov-1"))
}

func TestReconcileBankMovementsSkipsStaleRow(t *testing.T) {
	fee := amtPtr(500)
	movement := &model.BankMovement{
		DocumentMeta: model.DocumentMeta{FileId: "mov-2"},
		Fecha:        time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Concepto:     "COMISION MANTENIMIENTO",
		Debito:       fee,
	}
	readCount := 0
	writer := &stalingWriter{fee: fee, fecha: movement.Fecha, concepto: movement.Concepto, readCount: &readCount}
	fx := fxrate.NewCache(stubRateProvider{})

	outcomes := ReconcileBankMovements(context.Background(), []*model.BankMovement{movement}, bankmatch.Pool{}, fx, bankmatch.DefaultConfig(), writer)

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Written)
	assert.ErrorIs(t, outcomes[0].Err, toctou.ErrStale)
}

type stalingWriter struct {
	fee       *model.Amount
	fecha     time.Time
	concepto  string
	readCount *int
}

func (w *stalingWriter) ReadSnapshot(m *model.BankMovement) toctou.Snapshot {
	*w.readCount++
	detalle := ""
	if *w.readCount > 1 {
		detalle = "modificado por otro proceso"
	}
	return toctou.Snapshot{Fecha: w.fecha, Concepto: w.concepto, Debito: w.fee, ExistingDetalle: detalle}
}

func (w *stalingWriter) Write(m *model.BankMovement, result bankmatch.Result) error {
	return nil
}

func amtPtr(v float64) *model.Amount {
	a := model.AmountFromFloat(v)
	return &a
}
