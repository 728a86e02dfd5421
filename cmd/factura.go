package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recaops/ods-sync/internal/invoice"
	"github.com/recaops/ods-sync/internal/source"
)

var (
	facturaMes  int
	facturaAno  int
	facturaTipo string
)

// facturaCmd regenerates the invoice sheet for one billing period and type.
var facturaCmd = &cobra.Command{
	Use:   "factura",
	Short: "Generate the invoice sheet for a billing period",
	Example: `  ods-sync factura --mes 3 --ano 2026 --tipo clausulada
  ods-sync factura --mes 3 --ano 2026 --tipo no_clausulada`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if facturaMes < 1 || facturaMes > 12 {
			return fmt.Errorf("--mes must be between 1 and 12")
		}
		if facturaAno == 0 {
			return fmt.Errorf("--ano is required")
		}
		if _, err := invoice.NormalizeTipo(facturaTipo); err != nil {
			return err
		}

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

		gen := invoice.NewGenerator(cfg, store, store, log)
		if err := gen.Generate(ctx, facturaMes, facturaAno, facturaTipo); err != nil {
			return err
		}
		fmt.Printf("Sheet: %s\n", invoice.SheetName(facturaMes, facturaAno, facturaTipo))
		return nil
	},
}

func init() {
	facturaCmd.Flags().IntVar(&facturaMes, "mes", 0, "Billing month (1-12)")
	facturaCmd.Flags().IntVar(&facturaAno, "ano", 0, "Billing year")
	facturaCmd.Flags().StringVar(&facturaTipo, "tipo", "no_clausulada",
		"Invoice type: clausulada or no_clausulada")
	rootCmd.AddCommand(facturaCmd)
}
