// =============================================================================
// ODS Sync - Root Command
// =============================================================================
//
// The root command for the Cobra CLI. All engine commands attach here:
//
//   ods-sync status    - Queue depth and workbook lock state
//   ods-sync flush     - Replay the pending-operations queue
//   ods-sync rebuild   - Regenerate the workbook from the remote source
//   ods-sync factura   - Generate an invoice sheet for one period and type
//   ods-sync serve     - Run the HTTP facade
//   ods-sync version   - Display the application version
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/recaops/ods-sync/internal/config"
	"github.com/recaops/ods-sync/internal/logging"
)

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging regardless of the configured level.
var verbose bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ods-sync",
	Short: "ODS Sync - Keep the service-order workbook mirrored against the remote database",
	Long: `ODS Sync maintains the service-order workbook (ODS) as a durable mirror of
the records held in the remote database, and generates monthly invoice sheets
from aggregates of those records.

Writes that fail because someone has the workbook open in a spreadsheet
program are captured in a pending-operations queue and replayed later, in
order, by the flush command or the HTTP facade.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and runs the CLI.
// Called once from main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// bootstrap loads the configuration, prepares the data directory and builds
// the engine logger. Every subcommand starts here.
func bootstrap() (*config.Settings, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.EnsureDataFiles(); err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := logging.Setup(level, cfg.LogPath())
	return cfg, log, nil
}
