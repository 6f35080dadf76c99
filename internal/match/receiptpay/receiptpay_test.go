package receiptpay

import (
	"context"
	"testing"
	"time"

	"adva-reconciliation-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() Config {
	return Config{MatchDaysBefore: 10, MatchDaysAfter: 60}
}

func TestRankMatchesOnTotalNetoAndBeneficiaryIdentity(t *testing.T) {
	payDate := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	receipt := &model.Receipt{
		NombreEmpleado: "Juan Perez",
		CuilEmpleado:   "20123456789",
		FechaPago:      payDate.AddDate(0, 0, -2),
		TotalNeto:      model.AmountFromFloat(50000),
	}
	payment := &model.Payment{
		FechaPago:          payDate,
		ImportePagado:      model.AmountFromFloat(50000),
		CuitBeneficiario:   "20123456789",
		NombreBeneficiario: "Juan Perez",
	}

	candidates := Rank(context.TODO(), payment, []*model.Receipt{receipt}, defaultConfig())
	require.Len(t, candidates, 1)
	assert.Equal(t, model.ConfidenceHigh, candidates[0].Confidence)
}

func TestRankPayerIdentityIsIgnored(t *testing.T) {
	payDate := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	receipt := &model.Receipt{
		NombreEmpleado: "Juan Perez",
		CuilEmpleado:   "20123456789",
		FechaPago:      payDate,
		TotalNeto:      model.AmountFromFloat(50000),
	}
	payment := &model.Payment{
		FechaPago:     payDate,
		ImportePagado: model.AmountFromFloat(50000),
		CuitPagador:   "20123456789",
	}

	candidates := Rank(context.TODO(), payment, []*model.Receipt{receipt}, defaultConfig())
	require.Len(t, candidates, 1)
	assert.Equal(t, model.ConfidenceMedium, candidates[0].Confidence)
}

func TestRankAmountMismatchRejected(t *testing.T) {
	payDate := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	receipt := &model.Receipt{
		FechaPago: payDate,
		TotalNeto: model.AmountFromFloat(50000),
	}
	payment := &model.Payment{
		FechaPago:     payDate,
		ImportePagado: model.AmountFromFloat(40000),
	}

	candidates := Rank(context.TODO(), payment, []*model.Receipt{receipt}, defaultConfig())
	assert.Empty(t, candidates)
}
