package bankmatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"adva-reconciliation-engine/internal/fxrate"
	"adva-reconciliation-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(v float64) *model.Amount {
	a := model.AmountFromFloat(v)
	return &a
}

type stubRateProvider struct{ venta float64 }

func (s stubRateProvider) Fetch(ctx context.Context, date time.Time) (fxrate.Rate, error) {
	return fxrate.Rate{Venta: s.venta}, nil
}

func fxWithRate(venta float64) *fxrate.Cache {
	return fxrate.NewCache(stubRateProvider{venta: venta})
}

type missingRateProvider struct{}

func (missingRateProvider) Fetch(ctx context.Context, date time.Time) (fxrate.Rate, error) {
	return fxrate.Rate{}, errors.New("rate unavailable")
}

func noRateFx() *fxrate.Cache {
	return fxrate.NewCache(missingRateProvider{})
}

func TestMatchDetectsBankFee(t *testing.T) {
	movement := &model.BankMovement{
		Fecha:    time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Concepto: "COMISION MANTENIMIENTO DE CUENTA",
		Debito:   amt(500),
	}
	result := Match(context.Background(), movement, Pool{}, noRateFx(), DefaultConfig())
	assert.Equal(t, matchTypeBankFee, result.MatchType)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, 0, result.Tier)
}

func TestMatchDetectsCreditCardPayment(t *testing.T) {
	movement := &model.BankMovement{
		Fecha:    time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Concepto: "PAGO TARJETA VISA 4521",
		Debito:   amt(120000),
	}
	result := Match(context.Background(), movement, Pool{}, noRateFx(), DefaultConfig())
	assert.Equal(t, matchTypeCreditCardPayment, result.MatchType)
}

func TestMatchTier1PaymentInvoiceCombo(t *testing.T) {
	invDate := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	payDate := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		DocumentMeta:      model.DocumentMeta{FileId: "inv-1"},
		FechaEmision:      invDate,
		CuitEmisor:        "30712345671",
		RazonSocialEmisor: "Proveedor SA",
		ImporteTotal:      model.AmountFromFloat(50000),
	}
	pay := &model.Payment{
		DocumentMeta:         model.DocumentMeta{FileId: "pay-1"},
		FechaPago:            payDate,
		ImportePagado:        model.AmountFromFloat(50000),
		CuitBeneficiario:     "30712345671",
		NombreBeneficiario:   "Proveedor SA",
		MatchedFacturaFileId: "inv-1",
	}
	movement := &model.BankMovement{
		Fecha:    payDate,
		Concepto: "TRANSFERENCIA A PROVEEDOR SA",
		Debito:   amt(50000),
	}
	pool := Pool{InvoicesReceived: []*model.Invoice{inv}, PaymentsSent: []*model.Payment{pay}}

	result := Match(context.Background(), movement, pool, noRateFx(), DefaultConfig())
	require.Equal(t, matchTypePagoFactura, result.MatchType)
	assert.Equal(t, 1, result.Tier)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, model.FileId("pay-1"), result.MatchedFileId)
}

func TestMatchTier2CuitIdentityConfirmed(t *testing.T) {
	invDate := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		DocumentMeta:      model.DocumentMeta{FileId: "inv-2"},
		FechaEmision:      invDate,
		CuitEmisor:        "30712345671",
		RazonSocialEmisor: "Proveedor SA",
		ImporteTotal:      model.AmountFromFloat(75000),
	}
	movement := &model.BankMovement{
		Fecha:    invDate.AddDate(0, 0, 2),
		Concepto: "TRANSFERENCIA CUIT 30-71234567-1 PROVEEDOR",
		Debito:   amt(75000),
	}
	pool := Pool{InvoicesReceived: []*model.Invoice{inv}}

	result := Match(context.Background(), movement, pool, noRateFx(), DefaultConfig())
	assert.Equal(t, matchTypeDirectFactura, result.MatchType)
	assert.Equal(t, 2, result.Tier)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
}

func TestMatchTier2HardFilterNoFallthrough(t *testing.T) {
	invDate := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		DocumentMeta:      model.DocumentMeta{FileId: "inv-3"},
		FechaEmision:      invDate,
		CuitEmisor:        "30799999994",
		RazonSocialEmisor: "Otro Proveedor",
		ImporteTotal:      model.AmountFromFloat(75000),
	}
	movement := &model.BankMovement{
		Fecha:    invDate.AddDate(0, 0, 2),
		Concepto: "TRANSFERENCIA CUIT 30-71234567-1 PROVEEDOR",
		Debito:   amt(75000),
	}
	pool := Pool{InvoicesReceived: []*model.Invoice{inv}}

	result := Match(context.Background(), movement, pool, noRateFx(), DefaultConfig())
	assert.Equal(t, matchTypeNoMatch, result.MatchType)
	assert.Equal(t, 5, result.Tier)
}

func TestMatchTier3ReferenceConfirmed(t *testing.T) {
	payDate := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	pay := &model.Payment{
		DocumentMeta:  model.DocumentMeta{FileId: "pay-3"},
		FechaPago:     payDate,
		ImportePagado: model.AmountFromFloat(32000),
		Referencia:    "1234567",
	}
	movement := &model.BankMovement{
		Fecha:    payDate,
		Concepto: "OG 1234567.01.2025 TRANSFERENCIA",
		Debito:   amt(32000),
	}
	pool := Pool{PaymentsSent: []*model.Payment{pay}}

	result := Match(context.Background(), movement, pool, noRateFx(), DefaultConfig())
	assert.Equal(t, matchTypePagoOnly, result.MatchType)
	assert.Equal(t, 3, result.Tier)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
}

func TestMatchTier4KeywordScore(t *testing.T) {
	invDate := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		DocumentMeta:      model.DocumentMeta{FileId: "inv-4"},
		FechaEmision:      invDate,
		RazonSocialEmisor: "LIBRERIA MODERNA SRL",
		ImporteTotal:      model.AmountFromFloat(8800),
	}
	movement := &model.BankMovement{
		Fecha:    invDate.AddDate(0, 0, 1),
		Concepto: "TRANSFERENCIA LIBRERIA MODERNA",
		Debito:   amt(8800),
	}
	pool := Pool{InvoicesReceived: []*model.Invoice{inv}}

	result := Match(context.Background(), movement, pool, noRateFx(), DefaultConfig())
	assert.Equal(t, matchTypeDirectFactura, result.MatchType)
	assert.Equal(t, 4, result.Tier)
	assert.Equal(t, model.ConfidenceMedium, result.Confidence)
	assert.Contains(t, result.Reasons, "Keyword match (score: 4)")
}

func TestMatchTier5AmountDateOnly(t *testing.T) {
	invDate := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		DocumentMeta:      model.DocumentMeta{FileId: "inv-5"},
		FechaEmision:      invDate,
		RazonSocialEmisor: "Servicios Tecnicos Anonimos",
		ImporteTotal:      model.AmountFromFloat(4400),
	}
	movement := &model.BankMovement{
		Fecha:    invDate.AddDate(0, 0, 1),
		Concepto: "TRANSFERENCIA VARIOS",
		Debito:   amt(4400),
	}
	pool := Pool{InvoicesReceived: []*model.Invoice{inv}}

	result := Match(context.Background(), movement, pool, noRateFx(), DefaultConfig())
	assert.Equal(t, matchTypeDirectFactura, result.MatchType)
	assert.Equal(t, 5, result.Tier)
	assert.Equal(t, model.ConfidenceLow, result.Confidence)
}

func TestMatchCreditSideWithholdingAdjustedInvoice(t *testing.T) {
	invDate := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		DocumentMeta:        model.DocumentMeta{FileId: "inv-6"},
		FechaEmision:        invDate,
		CuitReceptor:        "30712345671",
		RazonSocialReceptor: "ADVA",
		ImporteTotal:        model.AmountFromFloat(100000),
	}
	withholding := &model.Withholding{
		CuitAgenteRetencion: "30712345671",
		FechaEmision:        invDate.AddDate(0, 0, 5),
		MontoRetencion:      model.AmountFromFloat(10000),
	}
	movement := &model.BankMovement{
		Fecha:    invDate.AddDate(0, 0, 5),
		Concepto: "TRANSFERENCIA RECIBIDA CUIT 30-71234567-1",
		Credito:  amt(90000),
	}
	pool := Pool{InvoicesEmitidas: []*model.Invoice{inv}, Withholdings: []*model.Withholding{withholding}}

	result := Match(context.Background(), movement, pool, noRateFx(), DefaultConfig())
	assert.Equal(t, matchTypeDirectFactura, result.MatchType)
	assert.Equal(t, 2, result.Tier)
	assert.Len(t, result.UsedRetenciones, 1)
	assert.Contains(t, result.Description, "con retencion")
}

func TestMatchCrossCurrencyCapsConfidenceAtLow(t *testing.T) {
	invDate := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		DocumentMeta:        model.DocumentMeta{FileId: "inv-usd"},
		FechaEmision:        invDate,
		RazonSocialReceptor: "Cliente Foraneo SA",
		ImporteTotal:        model.AmountFromFloat(100),
		Moneda:              model.USD,
	}
	movement := &model.BankMovement{
		Fecha:    invDate.AddDate(0, 0, 2),
		Concepto: "TRANSFERENCIA RECIBIDA VARIOS CONCEPTOS",
		Credito:  amt(85550),
	}
	pool := Pool{InvoicesEmitidas: []*model.Invoice{inv}}

	result := Match(context.Background(), movement, pool, fxWithRate(855.5), DefaultConfig())
	assert.Equal(t, matchTypeDirectFactura, result.MatchType)
	assert.Equal(t, 5, result.Tier)
	assert.Equal(t, model.ConfidenceLow, result.Confidence)
	assert.Contains(t, result.Reasons, "Cross-currency match (USD→ARS)")
	assert.Contains(t, result.Reasons, "rate: 855.5")
}

func TestMatchCrossCurrencyRateUnavailableRejectsCandidate(t *testing.T) {
	invDate := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	inv := &model.Invoice{
		DocumentMeta:        model.DocumentMeta{FileId: "inv-usd-2"},
		FechaEmision:        invDate,
		RazonSocialReceptor: "Cliente Foraneo SA",
		ImporteTotal:        model.AmountFromFloat(100),
		Moneda:              model.USD,
	}
	movement := &model.BankMovement{
		Fecha:    invDate.AddDate(0, 0, 2),
		Concepto: "TRANSFERENCIA RECIBIDA VARIOS CONCEPTOS",
		Credito:  amt(85550),
	}
	pool := Pool{InvoicesEmitidas: []*model.Invoice{inv}}

	result := Match(context.Background(), movement, pool, noRateFx(), DefaultConfig())
	assert.Equal(t, matchTypeNoMatch, result.MatchType)
}

func TestMatchNoCandidatesIsNoMatch(t *testing.T) {
	movement := &model.BankMovement{
		Fecha:    time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Concepto: "MOVIMIENTO SIN DOCUMENTO ASOCIADO",
		Debito:   amt(999999),
	}
	result := Match(context.Background(), movement, Pool{}, noRateFx(), DefaultConfig())
	assert.Equal(t, matchTypeNoMatch, result.MatchType)
	assert.Equal(t, model.ConfidenceLow, result.Confidence)
}
