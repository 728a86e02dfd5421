package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recaops/ods-sync/internal/queue"
)

// statusCmd reports the queue depth and whether the workbook is held open
// by another process. It needs no database connection.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending queue entries and workbook lock state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		q := queue.New(cfg.QueuePath(), cfg.WorkbookPath(), log)
		status, err := q.Status()
		if err != nil {
			return err
		}

		fmt.Printf("Workbook:  %s\n", cfg.WorkbookPath())
		fmt.Printf("Pending:   %d\n", status.Pending)
		fmt.Printf("Locked:    %v\n", status.Locked)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
