// Package web provides the HTTP facade over the sync engine. The handlers
// validate and shape input, answer quickly, and run the workbook work in the
// background; failures divert to the durable queue rather than surfacing as
// request errors, so the primary database write path never blocks on the
// spreadsheet being available.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/recaops/ods-sync/internal/config"
	"github.com/recaops/ods-sync/internal/queue"
	"github.com/recaops/ods-sync/internal/schema"
	"github.com/recaops/ods-sync/internal/syncer"
)

// SyncEngine is the slice of the sync service the handlers use.
type SyncEngine interface {
	Append(rec schema.Record) error
	Update(original, rec schema.Record) error
	Delete(original schema.Record) error
	Rebuild(records []schema.Record, createBackup bool) (syncer.RebuildResult, error)
}

// QueueLog is the slice of the durable queue the handlers use.
type QueueLog interface {
	Add(action string, ods, original schema.Record, reason string, meta map[string]any) error
	Clear() error
	Status() (queue.Status, error)
}

// QueueFlusher replays the durable queue.
type QueueFlusher interface {
	Flush(ctx context.Context) (queue.FlushResult, error)
}

// InvoiceService generates invoice sheets.
type InvoiceService interface {
	Generate(ctx context.Context, mes, ano int, tipo string) error
}

// RecordFetcher feeds the rebuild endpoint with authoritative records.
type RecordFetcher interface {
	FetchAll(ctx context.Context) ([]schema.Record, error)
}

// Server is the HTTP server for the sync engine.
type Server struct {
	cfg      *config.Settings
	log      *slog.Logger
	sync     SyncEngine
	queue    QueueLog
	flusher  QueueFlusher
	invoices InvoiceService
	records  RecordFetcher
	router   *chi.Mux
}

// NewServer wires a Server to its collaborators.
func NewServer(cfg *config.Settings, sync SyncEngine, q QueueLog, flusher QueueFlusher,
	invoices InvoiceService, records RecordFetcher, log *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		sync:     sync,
		queue:    q,
		flusher:  flusher,
		invoices: invoices,
		records:  records,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/excel", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/flush", s.handleFlush)
		r.Post("/rebuild", s.handleRebuild)
	})

	s.router.Route("/ods", func(r chi.Router) {
		r.Post("/", s.handleAppend)
		r.Put("/", s.handleUpdate)
		r.Delete("/", s.handleDelete)
	})

	s.router.Post("/facturas/generar", s.handleFactura)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe starts the server on the configured address.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second,
	}
	s.log.Info("http server listening", "addr", s.cfg.ListenAddr)
	return srv.ListenAndServe()
}
