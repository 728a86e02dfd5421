package syncer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/recaops/ods-sync/internal/schema"
	"github.com/recaops/ods-sync/internal/workbook"
)

// RebuildResult reports what a full reconciliation produced.
type RebuildResult struct {
	Rows   int    `json:"rows"`
	Backup string `json:"backup"`
}

// Rebuild regenerates the workbook's data region from an authoritative record
// list. The workbook is reloaded from the clean template - never from the
// possibly dirty live file - so the header structure starts from a known-good
// baseline; all data rows are wiped and every record is written in sequence
// from row 2, then the live file is replaced atomically. This is the only
// operation allowed to overwrite all rows wholesale.
func (s *Service) Rebuild(records []schema.Record, createBackup bool) (RebuildResult, error) {
	var result RebuildResult
	s.log.Info("rebuild started", "rows", len(records))

	target := s.cfg.WorkbookPath()
	if createBackup {
		backup, err := s.backupWorkbook(target)
		if err != nil {
			return result, err
		}
		result.Backup = backup
	}

	book, err := workbook.OpenFrom(s.cfg.TemplatePath(), target, s.cfg.SheetNames, s.log)
	if err != nil {
		return result, err
	}

	for _, sheet := range book.Sheets {
		if err := s.rewriteSheet(book, sheet, records); err != nil {
			book.Close()
			return result, err
		}
	}

	if err := book.Save(); err != nil {
		return result, err
	}

	result.Rows = len(records)
	s.log.Info("rebuild finished", "rows", len(records), "backup", result.Backup)
	return result, nil
}

// rewriteSheet wipes the data region and writes the records from row 2.
func (s *Service) rewriteSheet(book *workbook.Book, sheet *workbook.Sheet, records []schema.Record) error {
	rows, err := book.Rows(sheet)
	if err != nil {
		return err
	}
	for row := 2; row <= len(rows); row++ {
		if err := book.ClearRow(sheet, row); err != nil {
			return err
		}
	}
	for i, rec := range records {
		if err := book.WriteRow(sheet, 2+i, sheet.BuildRow(rec)); err != nil {
			return err
		}
	}
	return nil
}

// backupWorkbook copies the live workbook beside itself with a timestamped
// name before the rebuild replaces it. A missing workbook needs no backup.
func (s *Service) backupWorkbook(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	stamp := time.Now().Format("20060102_150405")
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	backup := filepath.Join(filepath.Dir(path),
		fmt.Sprintf("%s backup %s%s", base, stamp, filepath.Ext(path)))
	if err := copyFile(path, backup); err != nil {
		return "", fmt.Errorf("failed to back up workbook: %w", err)
	}
	s.log.Info("workbook backed up", "path", backup)
	return backup, nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}
