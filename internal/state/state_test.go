package state

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	s, err := Open(":memory:", "sqlite")
	require.NoError(t, err, "failed to open test store")
	return s
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	processed, err := s.IsProcessed(ctx, "file-1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkProcessed(ctx, "file-1", "invoices_received"))
	require.NoError(t, s.MarkProcessed(ctx, "file-1", "invoices_received"))

	processed, err = s.IsProcessed(ctx, "file-1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestSheetLockReturnsSameMutexForSameSheet(t *testing.T) {
	s := setupTestStore(t)
	a := s.SheetLock("invoices_received")
	b := s.SheetLock("invoices_received")
	c := s.SheetLock("bank_movements")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestSheetLockSerializesConcurrentWrites(t *testing.T) {
	s := setupTestStore(t)
	lock := s.SheetLock("invoices_received")

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.Lock()
			defer lock.Unlock()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, order, 5)
}
