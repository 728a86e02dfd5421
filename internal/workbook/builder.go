package workbook

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/recaops/ods-sync/internal/schema"
)

// Cell is one positional value produced by the row builder. Write is false
// for columns the engine does not manage (manual columns and the "#" ordinal
// marker); those cells are left untouched on append and update.
type Cell struct {
	Value any
	Write bool
}

// BuildRow maps a canonical record into a positional value array sized to the
// sheet's header width. Field-specific rendering:
//   - orden_clausulada is written as the literal "Sí"/"No" convention used in
//     manually edited cells, never as a raw boolean
//   - año_servicio falls back to the ASCII spelling when the accented key is
//     absent from the record
func (s *Sheet) BuildRow(rec schema.Record) []Cell {
	cells := make([]Cell, len(s.Headers))
	for idx, header := range s.Headers {
		if header.Normalized == "#" || header.Field == "" {
			continue
		}
		value := rec[header.Field]
		switch header.Field {
		case schema.FieldYear:
			if value == nil || schema.Coerce(value) == "" {
				if y := rec.Year(); y != 0 {
					value = y
				}
			}
		case schema.FieldClausulada:
			if rec.IsClausulada() {
				value = "Sí"
			} else {
				value = "No"
			}
		}
		cells[idx] = Cell{Value: value, Write: true}
	}
	return cells
}

// WriteRow writes the built cells into a sheet row, skipping cells the
// builder marked as not managed.
func (b *Book) WriteRow(sheet *Sheet, row int, cells []Cell) error {
	for idx, cell := range cells {
		if !cell.Write {
			continue
		}
		name, err := excelize.CoordinatesToCellName(idx+1, row)
		if err != nil {
			return fmt.Errorf("failed to address cell: %w", err)
		}
		if err := b.file.SetCellValue(sheet.Name, name, cell.Value); err != nil {
			return fmt.Errorf("failed to write %s!%s: %w", sheet.Name, name, err)
		}
	}
	return nil
}

// ClearRow blanks every cell of a row across the sheet's header width. The
// row itself stays in place; rows below keep their positions and formatting.
func (b *Book) ClearRow(sheet *Sheet, row int) error {
	for col := 1; col <= len(sheet.Headers); col++ {
		name, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return fmt.Errorf("failed to address cell: %w", err)
		}
		if err := b.file.SetCellValue(sheet.Name, name, nil); err != nil {
			return fmt.Errorf("failed to clear %s!%s: %w", sheet.Name, name, err)
		}
	}
	return nil
}
