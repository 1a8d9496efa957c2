package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("billing@acme.test"))
	assert.NoError(t, ValidateEmail("first.last+invoices@example.co.uk"))

	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("billing@"))
	assert.Error(t, ValidateEmail("billing acme.test"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "line one\nline\ttwo", SanitizeString("line one\nline\ttwo"))
	assert.Equal(t, "beep", SanitizeString("be\x07ep\x00"))
}
