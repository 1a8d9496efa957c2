package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/garyjia/invoicing/internal/application/service"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/mt940"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExporter_ReconciliationReport(t *testing.T) {
	result := &service.ReconcileResult{
		Applied: []service.AppliedCandidate{{
			Candidate:  mt940.Candidate{Invoice: "test-2024-001", Amount: "24.20", Currency: "EUR", TransactionID: "NONREF", Source: "march.sta"},
			MarkedPaid: true,
		}},
		Failed: []service.FailedCandidate{{
			Candidate: mt940.Candidate{Invoice: "test-2024-999", Amount: "10.00", Currency: "EUR"},
			Reason:    service.ReasonInvoiceNotFound,
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, NewExporter(zap.NewNop()).ReconciliationReport(&buf, result))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	applied, err := f.GetRows(sheetApplied)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "Invoice", applied[0][0])
	assert.Equal(t, "test-2024-001", applied[1][0])
	assert.Equal(t, "TRUE", applied[1][7])

	failed, err := f.GetRows(sheetFailed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "invoice not found", failed[1][6])
}

func TestExporter_InvoiceOverview(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	views := []*entity.InvoiceView{{
		Invoice: &entity.Invoice{
			SequenceNumber: "test-2024-001", Status: entity.InvoiceStatusSent, Title: "Order 17",
			DateCreated: day, DateDue: day.AddDate(0, 0, 14),
		},
		Client: &entity.Client{Name: "Acme BV"},
		Totals: &entity.Totals{
			TotalPriceWithoutVAT: decimal.RequireFromString("20"),
			TotalVAT:             decimal.RequireFromString("4.2"),
			TotalPrice:           decimal.RequireFromString("24.2"),
			TotalPaid:            decimal.Zero,
			Remaining:            decimal.RequireFromString("24.2"),
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, NewExporter(zap.NewNop()).InvoiceOverview(&buf, views))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetInvoices)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"test-2024-001", "sent", "Order 17", "Acme BV", "2024-03-15", "2024-03-29"}, rows[1][:6])

	total, err := f.GetCellValue(sheetInvoices, "I2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "24.2", total)
}

func TestExporter_InvoiceDocument(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	view := &entity.InvoiceView{
		Invoice: &entity.Invoice{
			SequenceNumber: "ACME-NL-2024-001", Title: "Order 17",
			DateCreated: day, DateDue: day.AddDate(0, 0, 14),
		},
		Client: &entity.Client{Name: "Acme BV"},
		Products: []*entity.InvoiceProduct{
			{Name: "Widget", SKU: "W-1", Price: decimal.RequireFromString("10"), Quantity: 2, VATPercentage: 21},
		},
		Totals: &entity.Totals{
			TotalPriceWithoutVAT: decimal.RequireFromString("20"),
			TotalVAT:             decimal.RequireFromString("4.2"),
			TotalPrice:           decimal.RequireFromString("24.2"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewExporter(zap.NewNop()).InvoiceDocument(&buf, view))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	summary, err := f.GetRows(sheetInvoice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoice", "ACME-NL-2024-001"}, summary[0])
	assert.Equal(t, []string{"Total", "24.20"}, summary[len(summary)-1])

	lines, err := f.GetRows(sheetLines)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"Widget", "W-1", "2", "10.00", "21", "20.00"}, lines[1])

	assert.Error(t, NewExporter(zap.NewNop()).InvoiceDocument(&buf, nil))
}
