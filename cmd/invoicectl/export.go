package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export an invoice overview spreadsheet",
	Example: `  invoicectl export --out invoices.xlsx --status sent`,
	Args:    cobra.NoArgs,
	RunE:    runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("out", "invoices.xlsx", "Output path")
	exportCmd.Flags().String("status", "", "Only export invoices with this status")
}

func runExport(cmd *cobra.Command, args []string) error {
	outPath, _ := cmd.Flags().GetString("out")
	status, _ := cmd.Flags().GetString("status")

	filter := port.InvoiceFilter{Status: entity.InvoiceStatus(status)}
	if status != "" && !filter.Status.IsValid() {
		return fmt.Errorf("unknown invoice status %q", status)
	}

	ctx := cmd.Context()
	c, err := openContainer(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	invoices := c.Services().Invoice
	items, err := invoices.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list invoices: %w", err)
	}

	views := make([]*entity.InvoiceView, 0, len(items))
	for _, item := range items {
		view, err := invoices.Get(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("failed to load invoice %d: %w", item.ID, err)
		}
		views = append(views, view)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	if err := c.Exporter().InvoiceOverview(out, views); err != nil {
		out.Close()
		return fmt.Errorf("failed to write overview: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "exported %d invoices to %s\n", len(views), outPath)
	return nil
}
