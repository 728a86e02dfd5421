package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recaops/ods-sync/internal/invoice"
	"github.com/recaops/ods-sync/internal/queue"
	"github.com/recaops/ods-sync/internal/source"
	"github.com/recaops/ods-sync/internal/syncer"
)

// flushCmd replays the pending-operations queue in order. Rebuild and
// invoice entries read from the remote database, so a connection is required.
var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Replay the pending-operations queue against the workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
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

		result, err := queue.NewFlusher(q, sync, invoices, log).Flush(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Processed: %d\n", result.Processed)
		fmt.Printf("Pending:   %d\n", result.Pending)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)
}
