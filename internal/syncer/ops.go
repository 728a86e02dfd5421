// =============================================================================
// ODS Sync - Sync Operations
// =============================================================================
//
// Append, update and delete against the mirror workbook. Each operation loads
// the whole workbook, mutates it in memory across every target sheet and
// performs one atomic save; nothing is persisted until the save succeeds.
//
// Update self-heals: when the original record's composite key is absent from
// a target sheet, the operation logs a warning and appends the new values to
// that sheet instead, repairing drift between the remote source and the file.
//
// =============================================================================

package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/recaops/ods-sync/internal/config"
	"github.com/recaops/ods-sync/internal/schema"
	"github.com/recaops/ods-sync/internal/source"
	"github.com/recaops/ods-sync/internal/workbook"
)

// ErrNotFound reports that no target sheet holds a row matching the original
// record's composite key.
var ErrNotFound = errors.New("row not found in workbook")

// Service executes sync operations against the configured workbook.
type Service struct {
	cfg *config.Settings
	log *slog.Logger
	src source.RecordSource
}

// New creates a Service. The record source may be nil when only direct
// append/update/delete operations are needed.
func New(cfg *config.Settings, src source.RecordSource, log *slog.Logger) *Service {
	return &Service{cfg: cfg, src: src, log: log}
}

func (s *Service) open() (*workbook.Book, error) {
	return workbook.Open(s.cfg.WorkbookPath(), s.cfg.SheetNames, s.log)
}

// Append writes a record into the first fully blank data row of every target
// sheet, extending past the last used row when none is blank.
func (s *Service) Append(rec schema.Record) error {
	book, err := s.open()
	if err != nil {
		return err
	}

	for _, sheet := range book.Sheets {
		if err := appendTo(book, sheet, rec); err != nil {
			book.Close()
			return err
		}
	}
	return book.Save()
}

func appendTo(book *workbook.Book, sheet *workbook.Sheet, rec schema.Record) error {
	row, err := book.FirstBlankRow(sheet)
	if err != nil {
		return err
	}
	return book.WriteRow(sheet, row, sheet.BuildRow(rec))
}

// Update locates the original record on each target sheet and overwrites the
// matched row with the new values. A sheet without a match gets the values
// appended instead. The operation fails with ErrNotFound only when no sheet
// held a matching row and nothing could be healed by appending.
func (s *Service) Update(original, rec schema.Record) error {
	book, err := s.open()
	if err != nil {
		return err
	}

	wroteAny := false
	for _, sheet := range book.Sheets {
		row, found, err := book.FindRow(sheet, original)
		if err != nil {
			book.Close()
			return err
		}
		if !found {
			s.log.Warn("row not found for update; appending instead", "sheet", sheet.Name)
			if err := appendTo(book, sheet, rec); err != nil {
				book.Close()
				return err
			}
			wroteAny = true
			continue
		}
		if err := book.WriteRow(sheet, row, sheet.BuildRow(rec)); err != nil {
			book.Close()
			return err
		}
		wroteAny = true
	}

	if !wroteAny {
		book.Close()
		return fmt.Errorf("update: %w", ErrNotFound)
	}
	return book.Save()
}

// Delete locates the original record on each target sheet and blanks every
// cell of the matched row. Rows are never shifted; positions and formatting
// below the cleared row are preserved. Fails with ErrNotFound when no sheet
// held a matching row.
func (s *Service) Delete(original schema.Record) error {
	book, err := s.open()
	if err != nil {
		return err
	}

	foundAny := false
	for _, sheet := range book.Sheets {
		row, found, err := book.FindRow(sheet, original)
		if err != nil {
			book.Close()
			return err
		}
		if !found {
			continue
		}
		if err := book.ClearRow(sheet, row); err != nil {
			book.Close()
			return err
		}
		foundAny = true
	}

	if !foundAny {
		book.Close()
		return fmt.Errorf("delete: %w", ErrNotFound)
	}
	return book.Save()
}

// RebuildFromSource fetches the full authoritative record list and rebuilds
// the workbook from it. Used by queue replay, where a fresh backup per retry
// would only accumulate noise, so backups are the caller's choice.
func (s *Service) RebuildFromSource(ctx context.Context, createBackup bool) error {
	if s.src == nil {
		return fmt.Errorf("rebuild requires a record source")
	}
	records, err := s.src.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch records for rebuild: %w", err)
	}
	_, err = s.Rebuild(records, createBackup)
	return err
}
