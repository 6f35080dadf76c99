package toctou

import (
	"testing"
	"time"

	"adva-reconciliation-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSnapshot() Snapshot {
	amt := model.AmountFromFloat(1000)
	return Snapshot{
		Fecha:    time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Concepto: "TRANSFERENCIA",
		Debito:   &amt,
	}
}

func TestApplyWritesWhenRowUnchanged(t *testing.T) {
	original := baseSnapshot()
	wrote := false

	err := Apply(original, func() (Snapshot, error) { return baseSnapshot(), nil }, func() error {
		wrote = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestApplySkipsWriteWhenRowChanged(t *testing.T) {
	original := baseSnapshot()
	wrote := false

	err := Apply(original, func() (Snapshot, error) {
		changed := baseSnapshot()
		changed.ExistingDetalle = "otro proceso ya lo escribio"
		return changed, nil
	}, func() error {
		wrote = true
		return nil
	})

	assert.ErrorIs(t, err, ErrStale)
	assert.False(t, wrote)
}

func TestHashIsStableAcrossEqualSnapshots(t *testing.T) {
	a, b := baseSnapshot(), baseSnapshot()
	assert.Equal(t, Hash(a), Hash(b))
}
