package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInvoice_IsOverdue(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)

	assert.True(t, (&Invoice{Status: InvoiceStatusSent, DateDue: due}).IsOverdue(now))
	assert.False(t, (&Invoice{Status: InvoiceStatusPaid, DateDue: due}).IsOverdue(now))
	assert.False(t, (&Invoice{Status: InvoiceStatusNew, DateDue: now.Add(time.Hour)}).IsOverdue(now))
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "Consulting", NormalizeTitle("  Consulting \n"))

	long := strings.Repeat("é", 100)
	got := NormalizeTitle(long)
	assert.Equal(t, MaxTitleLength, len([]rune(got)))
}

func TestInvoiceProduct_VATAmount(t *testing.T) {
	p := &InvoiceProduct{Price: decimal.NewFromInt(10), Quantity: 2, VATPercentage: 21}

	assert.True(t, decimal.NewFromInt(20).Equal(p.Subtotal()))
	assert.True(t, decimal.RequireFromString("4.2").Equal(p.VATAmount()))
}
