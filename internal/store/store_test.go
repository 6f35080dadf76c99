package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDocumentStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	ds := NewLocalDocumentStore(root)
	ctx := context.Background()

	folderId, err := ds.GetOrCreateFolder(ctx, "", "2025")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, filepath.FromSlash(folderId), "a.pdf"), []byte("pdf-bytes"), 0o644))

	files, err := ds.List(ctx, folderId)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.pdf", files[0].Name)
	assert.Equal(t, "application/pdf", files[0].MimeType)

	data, err := ds.Download(ctx, files[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))

	destFolder, err := ds.GetOrCreateFolder(ctx, "", "bancos")
	require.NoError(t, err)
	require.NoError(t, ds.Move(ctx, files[0].Id, destFolder, "renamed.pdf"))

	_, err = ds.Download(ctx, files[0].Id)
	assert.Error(t, err, "file should no longer exist at old id")

	moved, err := ds.Download(ctx, filepath.ToSlash(filepath.Join(destFolder, "renamed.pdf")))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(moved))
}

func TestExcelTabularStoreAppendAndRead(t *testing.T) {
	ts := NewExcelTabularStore(t.TempDir())
	ctx := context.Background()

	err := ts.AppendRows(ctx, "invoices_received", [][]any{
		{"2025-01-05", "file-1", "Proveedor SA", 100000},
	})
	require.NoError(t, err)
	err = ts.AppendRows(ctx, "invoices_received", [][]any{
		{"2025-01-06", "file-2", "Otro Proveedor", 50000},
	})
	require.NoError(t, err)

	rows, err := ts.GetValues(ctx, "invoices_received", "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "file-1", rows[0][1])
	assert.Equal(t, "file-2", rows[1][1])
}

func TestExcelTabularStoreBatchUpdate(t *testing.T) {
	ts := NewExcelTabularStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, ts.AppendRows(ctx, "bank_movements", [][]any{
		{"2025-01-07", "", ""},
	}))

	require.NoError(t, ts.BatchUpdate(ctx, "bank_movements", []CellUpdate{
		{Row: 0, Col: 1, Value: "file-99"},
		{Row: 0, Col: 2, Value: "Pago Factura a Proveedor SA"},
	}))

	rows, err := ts.GetValues(ctx, "bank_movements", "")
	require.NoError(t, err)
	assert.Equal(t, "file-99", rows[0][1])
	assert.Equal(t, "Pago Factura a Proveedor SA", rows[0][2])
}

func TestExcelTabularStoreSortSheetByDate(t *testing.T) {
	ts := NewExcelTabularStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, ts.AppendRows(ctx, "movements", [][]any{
		{"fecha", "concepto"},
		{"2025-03-01", "c"},
		{"2025-01-01", "a"},
		{"2025-02-01", "b"},
	}))

	require.NoError(t, ts.SortSheet(ctx, "movements", 0))

	rows, err := ts.GetValues(ctx, "movements", "")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "fecha", rows[0][0])
	assert.Equal(t, "2025-01-01", rows[1][0])
	assert.Equal(t, "2025-02-01", rows[2][0])
	assert.Equal(t, "2025-03-01", rows[3][0])
}
