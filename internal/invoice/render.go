// =============================================================================
// ODS Sync - Invoice Sheet Rendering
// =============================================================================
//
// Clones the per-type invoice template into a deterministically named sheet
// of the live workbook, preserving styles, number formats, merged ranges, row
// heights and column widths, then writes the line items and the totals block.
// Re-running for the same period and type deletes and recreates the sheet, so
// regeneration is idempotent.
//
// =============================================================================

package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/recaops/ods-sync/internal/config"
	"github.com/recaops/ods-sync/internal/source"
	"github.com/recaops/ods-sync/internal/workbook"
)

const (
	// itemStartRow is the first line-item row of the invoice template.
	itemStartRow = 10

	// Totals block: subtotal, IVA and grand total target cells.
	subtotalCell   = "F45"
	taxCell        = "F46"
	grandTotalCell = "F47"

	// taxRate is the fixed IVA applied to the subtotal.
	taxRate = 0.19

	// maxSheetName is the platform limit on sheet name length.
	maxSheetName = 31
)

var monthAbbr = [12]string{
	"Ene", "Feb", "Mar", "Abr", "May", "Jun",
	"Jul", "Ago", "Sep", "Oct", "Nov", "Dic",
}

// Generator computes and renders invoice sheets into the live workbook.
type Generator struct {
	cfg     *config.Settings
	records source.RecordSource
	rates   source.RateSource
	log     *slog.Logger
}

// NewGenerator wires a Generator to its configuration and record sources.
func NewGenerator(cfg *config.Settings, records source.RecordSource, rates source.RateSource, log *slog.Logger) *Generator {
	return &Generator{cfg: cfg, records: records, rates: rates, log: log}
}

// SheetName derives the deterministic invoice sheet name for a period and
// type, truncated to the sheet-name length limit.
func SheetName(mes, ano int, tipo string) string {
	month := "Mes"
	if mes >= 1 && mes <= 12 {
		month = monthAbbr[mes-1]
	}
	label := "NoClaus"
	if clean, err := NormalizeTipo(tipo); err == nil && clean == TipoClausulada {
		label = "Claus"
	}
	name := fmt.Sprintf("Factura %s %d %s", month, ano, label)
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

// Items computes the line items for a period and type without rendering.
func (g *Generator) Items(ctx context.Context, mes, ano int, tipo string) ([]Item, error) {
	return CalcItems(ctx, g.records, g.rates, mes, ano, tipo)
}

// Generate computes the period's line items and renders them into the live
// workbook with one atomic save.
func (g *Generator) Generate(ctx context.Context, mes, ano int, tipo string) error {
	items, err := g.Items(ctx, mes, ano, tipo)
	if err != nil {
		return err
	}

	book, err := workbook.Open(g.cfg.WorkbookPath(), g.cfg.SheetNames, g.log)
	if err != nil {
		return err
	}
	if err := g.Render(book, mes, ano, tipo, items); err != nil {
		book.Close()
		return err
	}
	return book.Save()
}

// Render clones the type's template into the invoice sheet and writes the
// line items and totals. The caller owns the save.
func (g *Generator) Render(book *workbook.Book, mes, ano int, tipo string, items []Item) error {
	clean, err := NormalizeTipo(tipo)
	if err != nil {
		return err
	}
	templatePath, err := g.cfg.InvoiceTemplatePath(clean)
	if err != nil {
		return err
	}
	g.log.Info("rendering invoice sheet",
		"mes", mes, "ano", ano, "tipo", clean, "template", templatePath)

	name := SheetName(mes, ano, tipo)
	f := book.File()
	if slices.Contains(f.GetSheetList(), name) {
		if err := f.DeleteSheet(name); err != nil {
			return fmt.Errorf("failed to drop stale invoice sheet %s: %w", name, err)
		}
	}
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create invoice sheet %s: %w", name, err)
	}

	if err := copyTemplate(f, name, templatePath); err != nil {
		return err
	}

	subtotal := 0.0
	for i, item := range items {
		row := itemStartRow + i
		values := []any{
			item.CodigoServicio,
			item.ReferenciaServicio,
			item.DescripcionServicio,
			item.ValorBase,
			item.Cantidad,
			item.Total,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to address invoice cell: %w", err)
			}
			if err := f.SetCellValue(name, cell, value); err != nil {
				return fmt.Errorf("failed to write invoice cell %s: %w", cell, err)
			}
		}
		subtotal += item.Total
	}

	tax := round2(subtotal * taxRate)
	totals := map[string]float64{
		subtotalCell:   subtotal,
		taxCell:        tax,
		grandTotalCell: round2(subtotal + tax),
	}
	for cell, value := range totals {
		if err := f.SetCellValue(name, cell, value); err != nil {
			return fmt.Errorf("failed to write invoice total %s: %w", cell, err)
		}
	}
	return nil
}

// copyTemplate clones the template workbook's active sheet into the named
// sheet: cell values, cell styles (translated through the style catalog of
// the target file), merged ranges, row heights and column widths.
func copyTemplate(f *excelize.File, sheet, templatePath string) error {
	tpl, err := excelize.OpenFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to open invoice template %s: %w", templatePath, err)
	}
	defer tpl.Close()

	src := tpl.GetSheetName(tpl.GetActiveSheetIndex())
	if src == "" {
		return fmt.Errorf("invoice template %s has no sheets", templatePath)
	}

	rows, err := tpl.GetRows(src, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("failed to read invoice template: %w", err)
	}
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}

	// Style identifiers are file-scoped; translate each template style once.
	styleCache := make(map[int]int)
	for r := 1; r <= len(rows); r++ {
		for c := 1; c <= cols; c++ {
			cell, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				return fmt.Errorf("failed to address template cell: %w", err)
			}
			if c <= len(rows[r-1]) && rows[r-1][c-1] != "" {
				if err := f.SetCellValue(sheet, cell, rows[r-1][c-1]); err != nil {
					return fmt.Errorf("failed to copy template cell %s: %w", cell, err)
				}
			}
			srcStyle, err := tpl.GetCellStyle(src, cell)
			if err != nil || srcStyle == 0 {
				continue
			}
			dstStyle, ok := styleCache[srcStyle]
			if !ok {
				def, err := tpl.GetStyle(srcStyle)
				if err != nil {
					continue
				}
				dstStyle, err = f.NewStyle(def)
				if err != nil {
					return fmt.Errorf("failed to translate template style: %w", err)
				}
				styleCache[srcStyle] = dstStyle
			}
			if err := f.SetCellStyle(sheet, cell, cell, dstStyle); err != nil {
				return fmt.Errorf("failed to apply template style to %s: %w", cell, err)
			}
		}
	}

	merges, err := tpl.GetMergeCells(src)
	if err != nil {
		return fmt.Errorf("failed to read template merges: %w", err)
	}
	for _, merge := range merges {
		if err := f.MergeCell(sheet, merge.GetStartAxis(), merge.GetEndAxis()); err != nil {
			return fmt.Errorf("failed to merge %s:%s: %w", merge.GetStartAxis(), merge.GetEndAxis(), err)
		}
	}

	for r := 1; r <= len(rows); r++ {
		height, err := tpl.GetRowHeight(src, r)
		if err != nil {
			continue
		}
		if err := f.SetRowHeight(sheet, r, height); err != nil {
			return fmt.Errorf("failed to set row height %d: %w", r, err)
		}
	}
	for c := 1; c <= cols; c++ {
		colName, err := excelize.ColumnNumberToName(c)
		if err != nil {
			continue
		}
		width, err := tpl.GetColWidth(src, colName)
		if err != nil {
			continue
		}
		if err := f.SetColWidth(sheet, colName, colName, width); err != nil {
			return fmt.Errorf("failed to set column width %s: %w", colName, err)
		}
	}
	return nil
}

// round2 rounds to two decimal places, the precision of the totals block.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
