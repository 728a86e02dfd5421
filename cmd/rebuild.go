package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recaops/ods-sync/internal/queue"
	"github.com/recaops/ods-sync/internal/source"
	"github.com/recaops/ods-sync/internal/syncer"
	"github.com/recaops/ods-sync/internal/workbook"
)

// noBackup skips the timestamped backup before the rebuild.
var noBackup bool

// rebuildCmd regenerates the workbook wholesale from the remote record list.
// It refuses to start while the workbook is held open, and clears the queue
// on success because the rebuild supersedes all pending deltas.
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Regenerate the workbook from the remote source of truth",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		if workbook.Probe(cfg.WorkbookPath()) {
			return fmt.Errorf("the workbook is open elsewhere; close it before rebuilding")
		}

		ctx := context.Background()
		store, err := source.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.FetchAll(ctx)
		if err != nil {
			return err
		}

		result, err := syncer.New(cfg, store, log).Rebuild(records, !noBackup)
		if err != nil {
			return err
		}
		if err := queue.New(cfg.QueuePath(), cfg.WorkbookPath(), log).Clear(); err != nil {
			return err
		}

		fmt.Printf("Rows:   %d\n", result.Rows)
		if result.Backup != "" {
			fmt.Printf("Backup: %s\n", result.Backup)
		}
		return nil
	},
}

func init() {
	rebuildCmd.Flags().BoolVar(&noBackup, "no-backup", false,
		"Skip the timestamped backup of the current workbook")
	rootCmd.AddCommand(rebuildCmd)
}
