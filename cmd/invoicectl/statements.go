package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/garyjia/invoicing/internal/application/service"
	"github.com/garyjia/invoicing/internal/mt940"
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE...",
	Short: "Print the payment candidates found in MT-940 statements",
	Long: `Parse MT-940 statements and print every credit line that references an
invoice number as JSON. Nothing is written to the database.`,
	Example: `  invoicectl parse statements/2026-01.sta`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runParse,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile FILE...",
	Short: "Book the payments found in MT-940 statements",
	Long: `Reconcile parses MT-940 statements and books every candidate on the
matching invoice. Applying the same statement twice books the payments
twice.`,
	Example: `  # Apply and print the result
  invoicectl reconcile statements/2026-01.sta

  # Apply and write a spreadsheet for review
  invoicectl reconcile --report result.xlsx statements/*.sta`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().String("report", "", "Write the result as an xlsx report to this path")
}

func readStatements(paths []string) ([]service.StatementFile, error) {
	files := make([]service.StatementFile, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read statement %s: %w", path, err)
		}
		files = append(files, service.StatementFile{Name: filepath.Base(path), Content: content})
	}
	return files, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runParse(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	parser := mt940.NewParser(logger)

	var candidates []mt940.Candidate
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open statement %s: %w", path, err)
		}
		found, err := parser.Candidates(mt940.File{Name: filepath.Base(path), Reader: f})
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		candidates = append(candidates, found...)
	}

	if candidates == nil {
		candidates = []mt940.Candidate{}
	}
	return printJSON(cmd, candidates)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	reportPath, _ := cmd.Flags().GetString("report")

	files, err := readStatements(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := openContainer(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.Services().Reconcile.Reconcile(ctx, files)
	if err != nil {
		if result != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "batch stopped after applying %d\n", len(result.Applied))
			if perr := printJSON(cmd, result); perr != nil {
				return perr
			}
		}
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	if reportPath != "" {
		out, err := os.Create(reportPath)
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		if err := c.Exporter().ReconciliationReport(out, result); err != nil {
			out.Close()
			return fmt.Errorf("failed to write report: %w", err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "applied %d, failed %d\n", len(result.Applied), len(result.Failed))
	return printJSON(cmd, result)
}
