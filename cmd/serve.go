package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/recaops/ods-sync/internal/invoice"
	"github.com/recaops/ods-sync/internal/queue"
	"github.com/recaops/ods-sync/internal/source"
	"github.com/recaops/ods-sync/internal/syncer"
	"github.com/recaops/ods-sync/internal/web"
)

// listenAddr overrides the configured bind address.
var listenAddr string

// serveCmd runs the HTTP facade over the sync engine.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP facade for the sync engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}

		ctx := context.Background()
		store, err := source.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		q := queue.New(cfg.QueuePath(), cfg.WorkbookPath(), log)
		sync := syncer.New(cfg, store, log)
		invoices := invoice.NewGenerator(cfg, store, store, log)
		flusher := queue.NewFlusher(q, sync, invoices, log)

		server := web.NewServer(cfg, sync, q, flusher, invoices, store, log)
		return server.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Bind address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
