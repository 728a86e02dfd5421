// =============================================================================
// ODS Sync - Durable Queue
// =============================================================================
//
// Append-only JSONL log of workbook operations that could not run, usually
// because somebody had the file open in a spreadsheet program. One line per
// entry; the line is the unit of durability and of replay ordering. Lines are
// ASCII-escaped so the log survives editors and transports that mangle UTF-8.
//
// The file is never rewritten except by the flusher (flush.go) and by Clear,
// which a successful full rebuild invokes because the rebuild supersedes all
// pending deltas.
//
// =============================================================================

package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/recaops/ods-sync/internal/schema"
	"github.com/recaops/ods-sync/internal/workbook"
)

// Queued action kinds.
const (
	ActionAppend        = "append"
	ActionUpdate        = "update"
	ActionDelete        = "delete"
	ActionRebuild       = "rebuild"
	ActionFacturaUpdate = "factura_update"
)

// Failure reasons recorded with each entry.
const (
	ReasonLocked = "archivo_abierto"
	ReasonError  = "error_guardado"
)

// Entry is one pending operation, stored as a single JSON line.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	Reason    string         `json:"reason"`
	Ods       schema.Record  `json:"ods"`
	Original  schema.Record  `json:"original"`
	Meta      map[string]any `json:"meta"`
}

// Status reports the queue depth and whether the workbook is currently held
// by another process.
type Status struct {
	Pending int  `json:"pendientes"`
	Locked  bool `json:"locked"`
}

// Queue is the durable log bound to its file and to the workbook it guards.
type Queue struct {
	path         string
	workbookPath string
	log          *slog.Logger
}

// New creates a Queue for the given log file and workbook.
func New(path, workbookPath string, log *slog.Logger) *Queue {
	return &Queue{path: path, workbookPath: workbookPath, log: log}
}

// Add appends one entry to the log. The record payload carries the values to
// apply; the original record carries the composite key for matching.
func (q *Queue) Add(action string, ods, original schema.Record, reason string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	if ods == nil {
		ods = schema.Record{}
	}
	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Action:    action,
		Reason:    reason,
		Ods:       ods,
		Original:  original,
		Meta:      meta,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode queue entry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}
	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open queue file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(escapeNonASCII(data), '\n')); err != nil {
		return fmt.Errorf("failed to append queue entry: %w", err)
	}
	q.log.Info("operation queued", "action", action, "reason", reason, "path", q.path)
	return nil
}

// Clear truncates the log. Invoked after a successful full rebuild, which
// makes every pending delta obsolete.
func (q *Queue) Clear() error {
	if _, err := os.Stat(q.path); os.IsNotExist(err) {
		return nil
	}
	if err := os.WriteFile(q.path, nil, 0o644); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// Status counts non-blank lines and probes the workbook's lock state.
func (q *Queue) Status() (Status, error) {
	lines, err := q.lines()
	if err != nil {
		return Status{}, err
	}
	return Status{Pending: len(lines), Locked: workbook.Probe(q.workbookPath)}, nil
}

// lines reads the retained, non-blank lines in file order.
func (q *Queue) lines() ([]string, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// rewrite replaces the file content with exactly the retained lines; with
// none left it becomes an empty file, not a deleted one, so status checks
// behave uniformly.
func (q *Queue) rewrite(lines []string) error {
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(q.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to rewrite queue file: %w", err)
	}
	return nil
}

// escapeNonASCII rewrites non-ASCII runes of a JSON document as \uXXXX
// escapes (surrogate pairs above the BMP), leaving the ASCII bytes alone.
func escapeNonASCII(data []byte) []byte {
	var out strings.Builder
	out.Grow(len(data))
	for _, r := range string(data) {
		if r < 0x80 {
			out.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&out, "\\u%04x\\u%04x", hi, lo)
			continue
		}
		fmt.Fprintf(&out, "\\u%04x", r)
	}
	return []byte(out.String())
}
