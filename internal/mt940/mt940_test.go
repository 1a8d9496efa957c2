package mt940

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/garyjia/invoicing/internal/domain/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readStatement(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/statement.sta")
	require.NoError(t, err)
	return data
}

func TestParser_Parse(t *testing.T) {
	statements, err := NewParser(nil).Parse(bytes.NewReader(readStatement(t)))
	require.NoError(t, err)
	require.Len(t, statements, 1)

	s := statements[0]
	assert.Equal(t, "940S240102", s.Reference)
	assert.Equal(t, "NL12RABO0123456789", s.Account)
	assert.Equal(t, "EUR", s.Currency)
	require.Len(t, s.Transactions, 4)

	first := s.Transactions[0]
	assert.Equal(t, "140.00", first.Amount.StringFixed(2))
	assert.Equal(t, "2024-01-02", first.EntryDate)
	assert.Equal(t, "NTRF", first.TypeCode)
	assert.Equal(t, "NONREF", first.CustomerReference)
	assert.Equal(t, "B4A02CGD0JGX", first.BankReference)
	assert.Contains(t, first.Details, "Acme BV")

	assert.Equal(t, "50.50", s.Transactions[1].Amount.StringFixed(2))
	assert.Equal(t, "EREF123", s.Transactions[1].CustomerReference)
	assert.Equal(t, "NTRF", s.Transactions[1].ID())

	assert.True(t, s.Transactions[2].Amount.IsNegative())
}

func TestParser_SkipsMalformedLines(t *testing.T) {
	input := ":20:X\n:61:garbage\n:86:/REMI/2024-001/\n:61:2401020102C1,00NTRFNONREF\n:86:/REMI/2024-002/\n"

	txs, err := NewParser(nil).Transactions(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, []string{"2024-002"}, FindReferences(txs[0].Details))
}

func TestParser_DefaultsToEUR(t *testing.T) {
	input := ":20:X\n:61:2401020102C1,00NTRFNONREF\n:86:x\n"

	txs, err := NewParser(nil).Transactions(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "EUR", txs[0].Currency)
}

func TestEntryDateAcrossYearEnd(t *testing.T) {
	tx, err := parseLine("2401020102C1,00NTRFNONREF")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", tx.EntryDate)

	tx, err = parseLine("2312311231D1,00NTRFNONREF")
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", tx.EntryDate)

	tx, err = parseLine("2401011229C1,00NTRFNONREF")
	require.NoError(t, err)
	assert.Equal(t, "2023-12-29", tx.EntryDate)
}

func TestFindReferences(t *testing.T) {
	tests := []struct {
		name    string
		details string
		want    []string
	}{
		{"plain", "Factuur 2024-001", []string{"2024-001"}},
		{"prefixed", "/REMI/test-2024-010/", []string{"test-2024-010"}},
		{"pro-forma", "ref test-PF-2024-002", []string{"test-PF-2024-002"}},
		{"pro-forma without prefix", "PF-2024-002", []string{"PF-2024-002"}},
		{"several", "test-2024-001 and test-2024-002", []string{"test-2024-001", "test-2024-002"}},
		{"wrapped", "factuur test\n-2024-001", []string{"test-2024-001"}},
		{"hyphenated prefix", "Factuur ACME-NL-2024-001", []string{"ACME-NL-2024-001"}},
		{"underscored prefix", "/REMI/acme_nl-2024-001/", []string{"acme_nl-2024-001"}},
		{"hyphenated pro-forma", "ref acme-nl-PF-2024-003.", []string{"acme-nl-PF-2024-003"}},
		{"delimiter ends prefix", "INV/NL-PF-2024-001", []string{"NL-PF-2024-001"}},
		{"after colon", "ref:acme.nl-2024-007", []string{"acme.nl-2024-007"}},
		{"adjacent references", "a-2024-001 b-2024-002", []string{"a-2024-001", "b-2024-002"}},
		{"embedded in word", "Factuur2024-001", nil},
		{"none", "Bankkosten januari", nil},
		{"short counter", "2024-01", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindReferences(tt.details))
		})
	}
}

func TestFindReferences_IssuedNumbers(t *testing.T) {
	for _, prefix := range []string{"", "test", "ACME-NL", "acme_nl", "acme.nl", "a-b-c"} {
		require.NoError(t, sequence.ValidatePrefix(prefix))
		for _, proForma := range []bool{false, true} {
			number := sequence.New(prefix, proForma, 2024).Next().String()
			assert.Equal(t, []string{number}, FindReferences("/REMI/Betaling "+number+"/"), "number %q", number)
			assert.Equal(t, []string{number}, FindReferences(number), "number %q", number)
		}
	}
}

func TestParser_Candidates(t *testing.T) {
	data := readStatement(t)
	p := NewParser(nil)

	once, err := p.Candidates(File{Name: "a.sta", Reader: bytes.NewReader(data)})
	require.NoError(t, err)
	require.Len(t, once, 4)

	assert.Equal(t, Candidate{
		Invoice:           "test-2024-001",
		Amount:            "140.00",
		Currency:          "EUR",
		CustomerReference: "NONREF",
		EntryDate:         "2024-01-02",
		TransactionID:     "B4A02CGD0JGX",
		Source:            "a.sta",
	}, once[0])
	assert.Equal(t, "test-PF-2024-002", once[1].Invoice)
	assert.Equal(t, "test-2024-003", once[2].Invoice)
	assert.Equal(t, "50.50", once[2].Amount)
	assert.Equal(t, "TEST-2024-004", once[3].Invoice)

	thrice, err := p.Candidates(
		File{Name: "a.sta", Reader: bytes.NewReader(data)},
		File{Name: "a.sta", Reader: bytes.NewReader(data)},
		File{Name: "a.sta", Reader: bytes.NewReader(data)},
	)
	require.NoError(t, err)
	require.Len(t, thrice, 12)
	for i := 0; i < 3; i++ {
		assert.Equal(t, once, thrice[i*4:(i+1)*4])
	}
}
