package invoice

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/recaops/ods-sync/internal/config"
	"github.com/recaops/ods-sync/internal/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newGeneratorFixture lays out a data dir with a live workbook and one invoice
// template per type, and returns a Generator over the given sources.
func newGeneratorFixture(t *testing.T, records *fakeRecords, rates *fakeRates) (*Generator, *config.Settings) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Settings{
		DataDir:      dir,
		ResourceDir:  dir,
		WorkbookFile: "ODS 2026.xlsx",
		QueueFile:    "pendiente.jsonl",
		InvoiceTemplates: map[string]string{
			TipoClausulada:   "clausulada.xlsx",
			TipoNoClausulada: "no_clausulada.xlsx",
		},
		SheetNames: []string{"ODS General", "ODS Filtrada"},
	}

	live := excelize.NewFile()
	require.NoError(t, live.SetSheetName("Sheet1", "ODS General"))
	require.NoError(t, live.SetCellValue("ODS General", "A1", "ID"))
	require.NoError(t, live.SaveAs(cfg.WorkbookPath()))
	require.NoError(t, live.Close())

	for tipo := range cfg.InvoiceTemplates {
		writeTemplate(t, cfg, tipo)
	}
	return NewGenerator(cfg, records, rates, testLogger()), cfg
}

// writeTemplate builds a minimal invoice template: a title in a merged range,
// a bold header band, totals labels and a wide description column.
func writeTemplate(t *testing.T, cfg *config.Settings, tipo string) {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	require.NoError(t, f.SetCellValue(sheet, "A1", "FACTURA DE SERVICIOS"))
	require.NoError(t, f.MergeCell(sheet, "A1", "F1"))
	require.NoError(t, f.SetCellValue(sheet, "A9", "Código"))
	require.NoError(t, f.SetCellValue(sheet, "F9", "Total"))
	require.NoError(t, f.SetCellValue(sheet, "E45", "Subtotal"))
	require.NoError(t, f.SetCellValue(sheet, "E46", "IVA 19%"))
	require.NoError(t, f.SetCellValue(sheet, "E47", "Total a pagar"))

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "A9", "F9", bold))
	require.NoError(t, f.SetColWidth(sheet, "C", "C", 40))
	require.NoError(t, f.SetRowHeight(sheet, 1, 30))

	path, err := cfg.InvoiceTemplatePath(tipo)
	require.NoError(t, err)
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func readInvoiceCell(t *testing.T, path, sheet, cell string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	value, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return value
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Factura Mar 2026 Claus", SheetName(3, 2026, "clausulada"))
	assert.Equal(t, "Factura Dic 2026 NoClaus", SheetName(12, 2026, "no clausulada"))
	assert.Equal(t, "Factura Mes 2026 NoClaus", SheetName(0, 2026, "no_clausulada"))
	assert.LessOrEqual(t, len(SheetName(9, 2026, "clausulada")), 31)
}

func TestGenerate_WritesItemsAndTotals(t *testing.T) {
	records := &fakeRecords{period: []schema.Record{
		order("INT-1", "R1", "Interpretación", 1.5, true),
		order("INT-1", "R1", "Interpretación", 2.5, true),
	}}
	rates := &fakeRates{rates: map[string]float64{"INT-1": 50000}}
	gen, cfg := newGeneratorFixture(t, records, rates)

	require.NoError(t, gen.Generate(t.Context(), 3, 2026, "clausulada"))

	path := cfg.WorkbookPath()
	sheet := "Factura Mar 2026 Claus"
	assert.Equal(t, "INT-1", readInvoiceCell(t, path, sheet, "A10"))
	assert.Equal(t, "R1", readInvoiceCell(t, path, sheet, "B10"))
	assert.Equal(t, "Interpretación", readInvoiceCell(t, path, sheet, "C10"))
	assert.Equal(t, "50000", readInvoiceCell(t, path, sheet, "D10"))
	assert.Equal(t, "4", readInvoiceCell(t, path, sheet, "E10"))
	assert.Equal(t, "200000", readInvoiceCell(t, path, sheet, "F10"))

	assert.Equal(t, "200000", readInvoiceCell(t, path, sheet, "F45"))
	assert.Equal(t, "38000", readInvoiceCell(t, path, sheet, "F46"))
	assert.Equal(t, "238000", readInvoiceCell(t, path, sheet, "F47"))
}

func TestGenerate_CopiesTemplateFurniture(t *testing.T) {
	records := &fakeRecords{period: []schema.Record{
		order("INT-1", "R1", "Interpretación", 2, true),
	}}
	rates := &fakeRates{rates: map[string]float64{"INT-1": 50000}}
	gen, cfg := newGeneratorFixture(t, records, rates)

	require.NoError(t, gen.Generate(t.Context(), 3, 2026, "clausulada"))

	path := cfg.WorkbookPath()
	sheet := "Factura Mar 2026 Claus"
	assert.Equal(t, "FACTURA DE SERVICIOS", readInvoiceCell(t, path, sheet, "A1"))
	assert.Equal(t, "Subtotal", readInvoiceCell(t, path, sheet, "E45"))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	merges, err := f.GetMergeCells(sheet)
	require.NoError(t, err)
	require.Len(t, merges, 1)
	assert.Equal(t, "A1", merges[0].GetStartAxis())
	assert.Equal(t, "F1", merges[0].GetEndAxis())

	width, err := f.GetColWidth(sheet, "C")
	require.NoError(t, err)
	assert.InDelta(t, 40, width, 0.5)

	// Header band style carried over as bold.
	styleID, err := f.GetCellStyle(sheet, "A9")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestGenerate_IsIdempotentPerPeriodAndType(t *testing.T) {
	records := &fakeRecords{period: []schema.Record{
		order("INT-1", "R1", "Interpretación", 2, true),
	}}
	rates := &fakeRates{rates: map[string]float64{"INT-1": 50000}}
	gen, cfg := newGeneratorFixture(t, records, rates)

	require.NoError(t, gen.Generate(t.Context(), 3, 2026, "clausulada"))

	// The second run reflects the new source data, not a stale sheet.
	records.period = []schema.Record{order("INT-1", "R1", "Interpretación", 1, true)}
	require.NoError(t, gen.Generate(t.Context(), 3, 2026, "clausulada"))

	f, err := excelize.OpenFile(cfg.WorkbookPath())
	require.NoError(t, err)
	defer f.Close()

	count := 0
	for _, name := range f.GetSheetList() {
		if name == "Factura Mar 2026 Claus" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	value, err := f.GetCellValue("Factura Mar 2026 Claus", "F45")
	require.NoError(t, err)
	assert.Equal(t, "50000", value)
}

func TestGenerate_NoDataLeavesWorkbookUntouched(t *testing.T) {
	gen, cfg := newGeneratorFixture(t, &fakeRecords{}, &fakeRates{})

	err := gen.Generate(t.Context(), 3, 2026, "clausulada")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)

	f, err := excelize.OpenFile(cfg.WorkbookPath())
	require.NoError(t, err)
	defer f.Close()
	assert.NotContains(t, f.GetSheetList(), "Factura Mar 2026 Claus")
}
