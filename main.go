// =============================================================================
// ODS Sync - Main Entry Point
// =============================================================================
//
// ODS Sync keeps the service-order workbook mirrored against the remote
// database and generates periodic invoice sheets. The entry point delegates
// to the cmd package, which defines the Cobra CLI.
//
// USAGE:
//   ods-sync status    - Queue depth and workbook lock state
//   ods-sync flush     - Replay the pending-operations queue
//   ods-sync rebuild   - Regenerate the workbook from the remote source
//   ods-sync factura   - Generate an invoice sheet for one period and type
//   ods-sync serve     - Run the HTTP facade
//
// ARCHITECTURE:
//   cmd/       : CLI command definitions (Cobra)
//   internal/  : Core engine (workbook accessor, sync operations, durable
//                queue, rebuild engine, invoice generation, remote source)
//
// =============================================================================

package main

import (
	"github.com/recaops/ods-sync/cmd"
)

func main() {
	cmd.Execute()
}
