package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/recaops/ods-sync/internal/schema"
	"github.com/recaops/ods-sync/internal/workbook"
)

// Syncer executes workbook operations during replay.
type Syncer interface {
	Append(rec schema.Record) error
	Update(original, rec schema.Record) error
	Delete(original schema.Record) error
	RebuildFromSource(ctx context.Context, createBackup bool) error
}

// InvoiceUpdater regenerates an invoice sheet for one period and type.
type InvoiceUpdater interface {
	Generate(ctx context.Context, mes, ano int, tipo string) error
}

// FlushResult aggregates a replay run.
type FlushResult struct {
	Processed int `json:"procesados"`
	Pending   int `json:"pendientes"`
}

// Flusher replays queued entries strictly in file order.
type Flusher struct {
	queue    *Queue
	sync     Syncer
	invoices InvoiceUpdater
	log      *slog.Logger
}

// NewFlusher wires a Flusher to its queue and operation targets.
func NewFlusher(q *Queue, sync Syncer, invoices InvoiceUpdater, log *slog.Logger) *Flusher {
	return &Flusher{queue: q, sync: sync, invoices: invoices, log: log}
}

// Flush replays all queued lines FIFO and rewrites the file with what remains.
//
// Per-line policy:
//   - parse failure: the line is retained for a future flush and replay
//     continues; one malformed line never blocks the rest
//   - lock failure: replay halts immediately; the failing line and every
//     remaining line are retained in original order, because a held-open
//     file is a transient, file-wide condition
//   - any other failure: only the failing line is retained; replay continues
//
// Flush never fails an individual line upward; it returns aggregate counts.
func (f *Flusher) Flush(ctx context.Context) (FlushResult, error) {
	lines, err := f.queue.lines()
	if err != nil {
		return FlushResult{}, err
	}
	if len(lines) == 0 {
		f.log.Info("flush: queue empty", "path", f.queue.path)
		return FlushResult{}, nil
	}

	// Each run gets an identifier so interleaved log lines stay attributable.
	log := f.log.With("flush_id", uuid.NewString())

	log.Info("flush started", "total", len(lines))
	var retained []string
	processed := 0

	for i, line := range lines {
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			log.Warn("flush: malformed queue line retained", "error", err)
			retained = append(retained, line)
			continue
		}

		err := f.dispatch(ctx, entry)
		if err == nil {
			processed++
			log.Info("flush: entry processed", "action", entry.Action)
			continue
		}
		if errors.Is(err, workbook.ErrLocked) {
			log.Warn("flush halted: workbook held open", "action", entry.Action)
			retained = append(retained, lines[i:]...)
			break
		}
		log.Error("flush: entry failed", "action", entry.Action, "error", err)
		retained = append(retained, line)
	}

	if err := f.queue.rewrite(retained); err != nil {
		return FlushResult{}, err
	}
	result := FlushResult{Processed: processed, Pending: len(retained)}
	log.Info("flush finished", "processed", result.Processed, "pending", result.Pending)
	return result, nil
}

// dispatch routes one parsed entry to the operation its action kind names.
func (f *Flusher) dispatch(ctx context.Context, entry Entry) error {
	original := entry.Original
	if original == nil {
		original = entry.Ods
	}

	switch entry.Action {
	case ActionAppend:
		return f.sync.Append(entry.Ods)
	case ActionUpdate:
		return f.sync.Update(original, entry.Ods)
	case ActionDelete:
		return f.sync.Delete(original)
	case ActionRebuild:
		return f.sync.RebuildFromSource(ctx, false)
	case ActionFacturaUpdate:
		mes := schema.Int(entry.Meta["mes"])
		ano := schema.Int(entry.Meta["ano"])
		tipo, _ := entry.Meta["tipo"].(string)
		if mes == 0 || ano == 0 || tipo == "" {
			return fmt.Errorf("factura_update entry missing mes/ano/tipo metadata")
		}
		return f.invoices.Generate(ctx, mes, ano, tipo)
	default:
		return fmt.Errorf("unknown queue action: %s", entry.Action)
	}
}
