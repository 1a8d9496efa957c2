// Package export renders reconciliation results and invoice overviews as
// Excel workbooks for the bookkeeper.
package export

import (
	"fmt"
	"io"

	"github.com/garyjia/invoicing/internal/application/service"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/domain/money"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetApplied  = "Applied"
	sheetFailed   = "Failed"
	sheetInvoices = "Invoices"
	sheetInvoice  = "Invoice"
	sheetLines    = "Lines"
)

var (
	appliedHeader  = []interface{}{"Invoice", "Amount", "Currency", "Entry date", "Transaction", "Customer reference", "Source", "Marked paid"}
	failedHeader   = []interface{}{"Invoice", "Amount", "Currency", "Entry date", "Transaction", "Source", "Reason", "Error"}
	invoicesHeader = []interface{}{"Number", "Status", "Title", "Client", "Created", "Due", "Total excl. VAT", "VAT", "Total", "Paid", "Remaining", "Overdue"}
	linesHeader    = []interface{}{"Product", "SKU", "Quantity", "Price", "VAT %", "Subtotal"}
)

// Exporter writes workbooks
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// ReconciliationReport writes one sheet with applied and one with failed candidates
func (e *Exporter) ReconciliationReport(w io.Writer, result *service.ReconcileResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetApplied); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetFailed); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	rows := make([][]interface{}, 0, len(result.Applied))
	for _, a := range result.Applied {
		c := a.Candidate
		rows = append(rows, []interface{}{c.Invoice, c.Amount, c.Currency, c.EntryDate, c.TransactionID, c.CustomerReference, c.Source, a.MarkedPaid})
	}
	if err := writeTable(f, sheetApplied, appliedHeader, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, fc := range result.Failed {
		c := fc.Candidate
		rows = append(rows, []interface{}{c.Invoice, c.Amount, c.Currency, c.EntryDate, c.TransactionID, c.Source, fc.Reason, fc.Error})
	}
	if err := writeTable(f, sheetFailed, failedHeader, rows); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Reconciliation report written",
		zap.Int("applied", len(result.Applied)),
		zap.Int("failed", len(result.Failed)))
	return nil
}

// InvoiceOverview writes one row per invoice with its totals
func (e *Exporter) InvoiceOverview(w io.Writer, views []*entity.InvoiceView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetInvoices); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	rows := make([][]interface{}, 0, len(views))
	for _, v := range views {
		inv := v.Invoice
		client := ""
		if v.Client != nil {
			client = v.Client.Name
		}
		row := []interface{}{
			inv.SequenceNumber, string(inv.Status), inv.Title, client,
			inv.DateCreated.Format("2006-01-02"), inv.DateDue.Format("2006-01-02"),
		}
		if t := v.Totals; t != nil {
			row = append(row,
				t.TotalPriceWithoutVAT.InexactFloat64(),
				t.TotalVAT.InexactFloat64(),
				t.TotalPrice.InexactFloat64(),
				t.TotalPaid.InexactFloat64(),
				t.Remaining.InexactFloat64(),
			)
		} else {
			row = append(row, nil, nil, nil, nil, nil)
		}
		rows = append(rows, append(row, v.Overdue))
	}

	if err := writeTable(f, sheetInvoices, invoicesHeader, rows); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if len(rows) > 0 {
		if err := f.SetCellStyle(sheetInvoices, "G2", fmt.Sprintf("K%d", len(rows)+1), style); err != nil {
			return fmt.Errorf("failed to set amount style: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Invoice overview written", zap.Int("invoices", len(views)))
	return nil
}

// InvoiceDocument writes a single invoice: a summary sheet and its lines.
// It is the document attached to invoice mail.
func (e *Exporter) InvoiceDocument(w io.Writer, view *entity.InvoiceView) error {
	if view == nil || view.Invoice == nil {
		return fmt.Errorf("invoice cannot be nil")
	}
	inv := view.Invoice

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetInvoice); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetLines); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	client := ""
	if view.Client != nil {
		client = view.Client.Name
	}
	summary := [][]interface{}{
		{"Invoice", inv.SequenceNumber},
		{"Title", inv.Title},
		{"Client", client},
		{"Date", inv.DateCreated.Format("2006-01-02")},
		{"Due", inv.DateDue.Format("2006-01-02")},
	}
	if t := view.Totals; t != nil {
		summary = append(summary,
			[]interface{}{"Total excl. VAT", money.Format(t.TotalPriceWithoutVAT)},
			[]interface{}{"VAT", money.Format(t.TotalVAT)},
			[]interface{}{"Total", money.Format(t.TotalPrice)},
		)
	}
	for i := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetInvoice, cell, &summary[i]); err != nil {
			return fmt.Errorf("failed to write invoice summary: %w", err)
		}
	}

	rows := make([][]interface{}, 0, len(view.Products))
	for _, p := range view.Products {
		rows = append(rows, []interface{}{p.Name, p.SKU, p.Quantity, money.Format(p.Price), p.VATPercentage, money.Format(p.Subtotal())})
	}
	if err := writeTable(f, sheetLines, linesHeader, rows); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Invoice document written", zap.String("sequence_number", inv.SequenceNumber))
	return nil
}

func writeTable(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
