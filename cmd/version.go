package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/recaops/ods-sync/internal/schema"
)

// Version is the application version, set at build time using ldflags.
var Version = "1.2.0"

// BuildDate is the build date, set at build time using ldflags.
var BuildDate = "unknown"

// versionCmd represents the 'version' command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ODS Sync")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Schema:     %s\n", schema.Version)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Go Version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
