// =============================================================================
// ODS Sync - Workbook Accessor
// =============================================================================
//
// This module owns all access to the mirror workbook:
//   - Loading the file and resolving the target sheets ("ODS General" and
//     "ODS Filtrada", matched case-insensitively, falling back to the active
//     sheet when neither exists)
//   - Building the per-sheet header mapping from row 1 (raw text, normalized
//     key, canonical field) and bootstrapping a hidden identity column on
//     sheets that predate it
//   - Saving with atomic-write discipline: write to a temp file beside the
//     target, then replace via a single rename, so the original file is never
//     left half-written
//
// Headers that map to no canonical field are never touched; end users keep
// their own columns in the same sheets.
//
// =============================================================================

package workbook

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/recaops/ods-sync/internal/schema"
)

// ErrLocked reports that the workbook file is held open by another process.
// Callers divert the failed operation to the durable queue instead of
// surfacing this as a hard failure.
var ErrLocked = errors.New("workbook file is locked by another process")

// Header describes one row-1 column of a target sheet.
type Header struct {
	// Raw is the header text as entered in the sheet.
	Raw string

	// Normalized is the dictionary form of Raw (lowercase, collapsed
	// whitespace, diacritics stripped).
	Normalized string

	// Field is the canonical field the header maps to, or "" for columns
	// the engine does not manage.
	Field string
}

// Sheet is one resolved target sheet with its header mapping.
type Sheet struct {
	Name    string
	Headers []Header
}

// Book is an open workbook bound to a save target.
type Book struct {
	file     *excelize.File
	savePath string
	log      *slog.Logger

	// Sheets are the resolved target sheets, in preference order.
	Sheets []*Sheet
}

// Open loads the workbook at path and resolves the preferred target sheets.
// A missing file is fatal and reported before any mutation.
func Open(path string, prefer []string, log *slog.Logger) (*Book, error) {
	return OpenFrom(path, path, prefer, log)
}

// OpenFrom loads the workbook at source but saves to target. The rebuild
// engine uses this to load a clean template and overwrite the live file.
func OpenFrom(source, target string, prefer []string, log *slog.Logger) (*Book, error) {
	if _, err := os.Stat(source); err != nil {
		log.Error("workbook not found", "path", source)
		return nil, fmt.Errorf("workbook file not found: %s: %w", source, err)
	}

	f, err := excelize.OpenFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", source, err)
	}

	book := &Book{file: f, savePath: target, log: log}
	if err := book.resolveSheets(prefer); err != nil {
		f.Close()
		return nil, err
	}
	return book, nil
}

// File exposes the underlying excelize file for sheet-level operations.
func (b *Book) File() *excelize.File { return b.file }

// Close releases the workbook without saving.
func (b *Book) Close() error { return b.file.Close() }

// resolveSheets locates the preferred sheets case-insensitively and prepares
// the header mapping for each; with no preferred sheet present, the active
// sheet serves both the general and the filtered view.
func (b *Book) resolveSheets(prefer []string) error {
	lower := make(map[string]string)
	for _, name := range b.file.GetSheetList() {
		lower[strings.ToLower(name)] = name
	}

	for _, want := range prefer {
		actual, ok := lower[strings.ToLower(want)]
		if !ok {
			continue
		}
		sheet, err := b.prepareSheet(actual)
		if err != nil {
			return err
		}
		b.Sheets = append(b.Sheets, sheet)
	}

	if len(b.Sheets) == 0 {
		active := b.file.GetSheetName(b.file.GetActiveSheetIndex())
		if active == "" {
			return fmt.Errorf("workbook has no sheets")
		}
		sheet, err := b.prepareSheet(active)
		if err != nil {
			return err
		}
		b.Sheets = append(b.Sheets, sheet)
	}
	return nil
}

// prepareSheet reads row 1 into the header mapping and appends a hidden
// identity column when no header resolves to the identity field. Sheets
// created before the identity column existed gain one without losing any
// manual columns.
func (b *Book) prepareSheet(name string) (*Sheet, error) {
	rows, err := b.file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
	}

	var raw []string
	if len(rows) > 0 {
		raw = rows[0]
	}

	sheet := &Sheet{Name: name}
	hasID := false
	for _, text := range raw {
		normalized := schema.Normalize(text)
		field, _ := schema.FieldFor(normalized)
		if field == schema.FieldID {
			hasID = true
		}
		sheet.Headers = append(sheet.Headers, Header{Raw: text, Normalized: normalized, Field: field})
	}

	if !hasID {
		col := len(sheet.Headers) + 1
		cell, err := excelize.CoordinatesToCellName(col, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to address identity column: %w", err)
		}
		if err := b.file.SetCellValue(name, cell, schema.FieldID); err != nil {
			return nil, fmt.Errorf("failed to add identity column to %s: %w", name, err)
		}
		colName, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return nil, fmt.Errorf("failed to name identity column: %w", err)
		}
		if err := b.file.SetColVisible(name, colName, false); err != nil {
			return nil, fmt.Errorf("failed to hide identity column on %s: %w", name, err)
		}
		sheet.Headers = append(sheet.Headers, Header{
			Raw:        schema.FieldID,
			Normalized: schema.FieldID,
			Field:      schema.FieldID,
		})
		b.log.Info("identity column added", "sheet", name, "column", colName)
	}

	return sheet, nil
}

// Rows returns the used data region of a sheet as formatted strings,
// including the header row. Cells beyond a row's last value read as "".
func (b *Book) Rows(sheet *Sheet) ([][]string, error) {
	rows, err := b.file.GetRows(sheet.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet.Name, err)
	}
	return rows, nil
}

// Save writes the workbook to its save target with atomic-write discipline.
// When the write or the final rename fails because another process holds the
// file open, the returned error wraps ErrLocked.
func (b *Book) Save() error {
	tmp := b.savePath + ".tmp"
	if _, err := os.Stat(tmp); err == nil {
		if err := os.Remove(tmp); err != nil {
			return fmt.Errorf("failed to remove stale temp file %s: %w", tmp, err)
		}
	}

	if err := b.file.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return b.classifySaveError(err)
	}
	if err := b.file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close workbook: %w", err)
	}
	if err := os.Rename(tmp, b.savePath); err != nil {
		os.Remove(tmp)
		return b.classifySaveError(err)
	}

	b.log.Info("workbook saved", "path", b.savePath)
	return nil
}

// classifySaveError converts a save failure into ErrLocked when the advisory
// probe confirms the target is held elsewhere.
func (b *Book) classifySaveError(err error) error {
	if Probe(b.savePath) {
		b.log.Warn("workbook held by another process", "path", b.savePath)
		return fmt.Errorf("failed to save workbook %s: %w: %v", b.savePath, ErrLocked, err)
	}
	b.log.Error("workbook save failed", "path", b.savePath, "error", err)
	return fmt.Errorf("failed to save workbook %s: %w", b.savePath, err)
}
