package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/recaops/ods-sync/internal/invoice"
	"github.com/recaops/ods-sync/internal/queue"
	"github.com/recaops/ods-sync/internal/schema"
	"github.com/recaops/ods-sync/internal/workbook"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "schema": schema.Version})
}

// handleStatus reports queue depth and the workbook's lock state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.queue.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": status})
}

// handleFlush replays the durable queue and reports aggregate counts.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	result, err := s.flusher.Flush(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": result})
}

// handleRebuild regenerates the workbook from the authoritative record list.
// A locked workbook is refused up front; a successful rebuild supersedes and
// clears all pending queue entries.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	status, err := s.queue.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if status.Locked {
		writeError(w, http.StatusLocked, "the workbook is open elsewhere; close it before rebuilding")
		return
	}

	records, err := s.records.FetchAll(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	result, err := s.sync.Rebuild(records, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.queue.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": result})
}

type syncRequest struct {
	Ods      schema.Record `json:"ods"`
	Original schema.Record `json:"original"`
}

// handleAppend schedules a background append of one record.
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Ods) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "body must carry an ods record")
		return
	}
	go s.appendBackground(req.Ods)
	writeJSON(w, http.StatusAccepted, map[string]string{"excel_status": "background"})
}

// handleUpdate schedules a background update; the original record carries the
// composite key for matching.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Ods) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "body must carry an ods record")
		return
	}
	original := req.Original
	if len(original) == 0 {
		original = req.Ods
	}
	go s.updateBackground(original, req.Ods)
	writeJSON(w, http.StatusAccepted, map[string]string{"excel_status": "background"})
}

// handleDelete schedules a background delete.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Original) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "body must carry the original record")
		return
	}
	go s.deleteBackground(req.Original)
	writeJSON(w, http.StatusAccepted, map[string]string{"excel_status": "background"})
}

type facturaRequest struct {
	Mes  int    `json:"mes"`
	Ano  int    `json:"ano"`
	Tipo string `json:"tipo"`
}

// handleFactura regenerates one invoice sheet synchronously.
func (s *Server) handleFactura(w http.ResponseWriter, r *http.Request) {
	var req facturaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.Mes < 1 || req.Mes > 12 || req.Ano == 0 {
		writeError(w, http.StatusUnprocessableEntity, "mes and ano are required")
		return
	}
	if _, err := invoice.NormalizeTipo(req.Tipo); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	err := s.invoices.Generate(r.Context(), req.Mes, req.Ano, req.Tipo)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]string{"sheet": invoice.SheetName(req.Mes, req.Ano, req.Tipo)},
		})
	case errors.Is(err, invoice.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, workbook.ErrLocked):
		s.queueFacturaUpdate(req.Mes, req.Ano, req.Tipo, queue.ReasonLocked)
		writeJSON(w, http.StatusAccepted, map[string]string{"excel_status": "pendiente"})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// =============================================================================
// BACKGROUND SYNC + QUEUE-ON-FAILURE POLICY
// =============================================================================

// appendBackground runs an append after the response was sent; failures
// divert to the queue under the reason the error taxonomy assigns.
func (s *Server) appendBackground(rec schema.Record) {
	if err := s.sync.Append(rec); err != nil {
		s.log.Warn("background append failed; queueing", "error", err)
		s.queueOp(queue.ActionAppend, rec, nil, err)
	}
}

func (s *Server) updateBackground(original, rec schema.Record) {
	if err := s.sync.Update(original, rec); err != nil {
		s.log.Warn("background update failed; queueing", "error", err)
		s.queueOp(queue.ActionUpdate, rec, original, err)
		s.queueFacturaFor(rec, reasonFor(err))
	}
}

func (s *Server) deleteBackground(original schema.Record) {
	if err := s.sync.Delete(original); err != nil {
		s.log.Warn("background delete failed; queueing", "error", err)
		s.queueOp(queue.ActionDelete, original, original, err)
		s.queueFacturaFor(original, reasonFor(err))
	}
}

func (s *Server) queueOp(action string, ods, original schema.Record, cause error) {
	if err := s.queue.Add(action, ods, original, reasonFor(cause), nil); err != nil {
		s.log.Error("failed to queue operation", "action", action, "error", err)
	}
}

// queueFacturaFor queues an invoice regeneration for the record's period, so
// the affected invoice sheet catches up when the queue next flushes.
func (s *Server) queueFacturaFor(rec schema.Record, reason string) {
	mes, ano := rec.Month(), rec.Year()
	if mes == 0 || ano == 0 {
		return
	}
	tipo := invoice.TipoNoClausulada
	if rec.IsClausulada() {
		tipo = invoice.TipoClausulada
	}
	s.queueFacturaUpdate(mes, ano, tipo, reason)
}

func (s *Server) queueFacturaUpdate(mes, ano int, tipo, reason string) {
	meta := map[string]any{"mes": mes, "ano": ano, "tipo": tipo}
	if err := s.queue.Add(queue.ActionFacturaUpdate, nil, nil, reason, meta); err != nil {
		s.log.Error("failed to queue invoice update", "error", err)
	}
}

// reasonFor maps an error to its queue reason code.
func reasonFor(err error) string {
	if errors.Is(err, workbook.ErrLocked) {
		return queue.ReasonLocked
	}
	return queue.ReasonError
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
