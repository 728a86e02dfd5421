package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureDataFiles prepares the data directory for first use: it creates the
// directory tree and seeds the live workbook from the clean template when no
// workbook exists yet. Existing files are never overwritten.
func (s *Settings) EnsureDataFiles() error {
	dirs := []string{
		s.DataDir,
		filepath.Dir(s.LogPath()),
		filepath.Dir(s.QueuePath()),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	workbook := s.WorkbookPath()
	if _, err := os.Stat(workbook); err == nil {
		return nil
	}
	template := s.TemplatePath()
	if _, err := os.Stat(template); err != nil {
		// No template to seed from; the workbook accessor reports the
		// missing workbook when an operation is attempted.
		return nil
	}
	if err := copyFile(template, workbook); err != nil {
		return fmt.Errorf("failed to seed workbook from template: %w", err)
	}
	return nil
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
