package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.01", "10.01"},
		{"20.05", "20.05"},
		{"9.001", "9.00"},
		{"100.006", "100.01"},
		{"0.005", "0.01"},
		{"2.345", "2.35"},
		{"-2.345", "-2.35"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Round(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, Format(got))
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("decimal point", func(t *testing.T) {
		d, err := Parse("12.50")
		require.NoError(t, err)
		assert.Equal(t, "12.50", Format(d))
	})

	t.Run("decimal comma", func(t *testing.T) {
		d, err := Parse(" 1234,5 ")
		require.NoError(t, err)
		assert.Equal(t, "1234.50", Format(d))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := Parse("twelve")
		assert.Error(t, err)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := Parse("  ")
		assert.Error(t, err)
	})
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(decimal.RequireFromString("10.00"), decimal.RequireFromString("10")))
	assert.True(t, Equal(decimal.RequireFromString("10.004"), decimal.RequireFromString("10.00")))
	assert.False(t, Equal(decimal.RequireFromString("10.01"), decimal.RequireFromString("10.00")))
}
