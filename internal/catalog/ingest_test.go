package catalog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/storage"
)

func TestIngestRows_MapsColumnsAndDefaults(t *testing.T) {
	rows := [][]string{
		{"Codigo", "Descripción", "ALU", "Proveedor", "Temporada"},
		{"A1", "Boot", "007", "Acme", "W24"},
		{" B2 ", "", "", "Bolt"},
		{"", "orphan"},
		{strings.Repeat("x", 65), "too long"},
	}

	report, err := IngestRows(rows)
	require.NoError(t, err)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, 2, report.Skipped)

	assert.Equal(t, inventory.CatalogEntry{SKU: "A1", ALU: "007", Description: "Boot", Supplier: "Acme", Season: "W24"}, report.Entries[0])
	assert.Equal(t, "B2", report.Entries[1].SKU)
	assert.Equal(t, UnnamedLabel, report.Entries[1].Description)
	assert.Equal(t, "Bolt", report.Entries[1].Supplier)
}

func TestIngestRows_MissingIdentifierColumn(t *testing.T) {
	_, err := IngestRows([][]string{{"Name", "Price"}, {"Boot", "10"}})
	require.Error(t, err)
	assert.True(t, inventory.IsValidation(err))
	assert.Contains(t, err.Error(), "identifier")

	_, err = IngestRows(nil)
	assert.True(t, inventory.IsValidation(err))
}

func TestIngestRows_DescriptionColumnOptional(t *testing.T) {
	report, err := IngestRows([][]string{{"EAN"}, {"7751234"}})
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, UnnamedLabel, report.Entries[0].Description)
}

func TestReadSpreadsheet_FirstSheet(t *testing.T) {
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"SKU", "Nombre"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"A1", "Boot"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"B2", "Sock"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := ReadSpreadsheet(buf)
	require.NoError(t, err)
	report, err := IngestRows(rows)
	require.NoError(t, err)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, "Sock", report.Entries[1].Description)
}

func TestCache_ImportUsesLocalHash(t *testing.T) {
	store, err := storage.Open(t.TempDir(), 0)
	require.NoError(t, err)
	c := New(store, nil, Options{})

	entries := []inventory.CatalogEntry{{SKU: "A1", Description: "Boot"}}
	snap, err := c.Import(entries)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(snap.Hash(), "local-"))
	assert.Equal(t, LocalHash(entries), snap.Hash())
	assert.Same(t, snap, c.Snapshot())

	reloaded := New(store, nil, Options{})
	require.True(t, reloaded.Restore())
	assert.Equal(t, snap.Hash(), reloaded.Snapshot().Hash())

	_, err = c.Import(nil)
	assert.True(t, inventory.IsValidation(err))
}

func TestSnapshot_SearchAndFacets(t *testing.T) {
	snap := NewSnapshot(sampleEntries(), "h", time.Now())

	got := snap.Search(Query{Text: "BOO"})
	require.Len(t, got, 1)
	assert.Equal(t, "A1", got[0].SKU)

	got = snap.Search(Query{Supplier: "acme"})
	assert.Len(t, got, 2)

	got = snap.Search(Query{Supplier: "Acme", Season: "S24"})
	require.Len(t, got, 1)
	assert.Equal(t, "Cap", got[0].Description)

	got = snap.Search(Query{Limit: 1})
	assert.Len(t, got, 1)

	assert.Equal(t, []string{"Acme", "Bolt"}, snap.Suppliers())
	assert.Equal(t, []string{"S24", "W24"}, snap.Seasons())

	var nilSnap *Snapshot
	assert.Nil(t, nilSnap.Search(Query{Text: "x"}))
}

func TestEntriesFromStock(t *testing.T) {
	entries := EntriesFromStock([]inventory.StockItem{
		{ID: 1, SKU: "A1", ALU: "007", Description: "Boot", Supplier: "Acme", Expected: 4},
		{ID: 2, SKU: " "},
	})
	require.Len(t, entries, 1)
	assert.Equal(t, inventory.CatalogEntry{SKU: "A1", ALU: "007", Description: "Boot", Supplier: "Acme"}, entries[0])
}
