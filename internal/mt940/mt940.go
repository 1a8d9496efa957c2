// Package mt940 reads MT-940 bank statements and finds invoice references in
// the free-text transaction details.
package mt940

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/invoicing/internal/domain/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Transaction is one :61: statement line with its :86: details
type Transaction struct {
	Account           string          `json:"account"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ValueDate         string          `json:"value_date"`
	EntryDate         string          `json:"entry_date"`
	TypeCode          string          `json:"type_code"`
	CustomerReference string          `json:"customer_reference"`
	BankReference     string          `json:"bank_reference"`
	Details           string          `json:"transaction_details"`
}

// ID returns the bank reference, or the transaction type code when the bank
// sent none.
func (t *Transaction) ID() string {
	if t.BankReference != "" {
		return t.BankReference
	}
	return t.TypeCode
}

// Statement is one :20: ... :62: block
type Statement struct {
	Reference    string        `json:"reference"`
	Account      string        `json:"account"`
	Number       string        `json:"number"`
	Currency     string        `json:"currency"`
	Transactions []Transaction `json:"transactions"`
}

var (
	tagPattern     = regexp.MustCompile(`^:(\d{2}[A-Z]?):(.*)$`)
	balancePattern = regexp.MustCompile(`^[CD]\d{6}([A-Z]{3})`)
	linePattern    = regexp.MustCompile(`^(\d{6})(\d{4})?(R?[CD])([A-Z])?(\d+(?:,\d*)?)([NFS][A-Z0-9]{3})(.*)$`)
)

// Parser reads MT-940 files
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser. Malformed statement lines are logged and
// skipped.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

type field struct {
	tag   string
	value string
}

// fields splits the input into tagged fields. Continuation lines are kept
// with their newline; SWIFT envelope lines are dropped.
func fields(r io.Reader) ([]field, error) {
	var out []field
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r ")
		if line == "" || line == "-" || line == "-}" || strings.HasPrefix(line, "{") {
			continue
		}
		if m := tagPattern.FindStringSubmatch(line); m != nil {
			out = append(out, field{tag: m[1], value: m[2]})
			continue
		}
		if len(out) == 0 {
			continue
		}
		out[len(out)-1].value += "\n" + line
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read statement: %w", err)
	}
	return out, nil
}

// Parse reads every statement in r
func (p *Parser) Parse(r io.Reader) ([]Statement, error) {
	fs, err := fields(r)
	if err != nil {
		return nil, err
	}

	var statements []Statement
	var current *Statement
	var last *Transaction

	start := func(ref string) {
		statements = append(statements, Statement{Reference: ref, Currency: money.DefaultCurrency})
		current = &statements[len(statements)-1]
		last = nil
	}

	for _, f := range fs {
		if current == nil && f.tag != "20" {
			start("")
		}

		switch f.tag {
		case "20":
			start(strings.TrimSpace(f.value))
		case "25":
			current.Account = strings.TrimSpace(f.value)
		case "28C", "28":
			current.Number = strings.TrimSpace(f.value)
		case "60F", "60M":
			if m := balancePattern.FindStringSubmatch(f.value); m != nil {
				current.Currency = m[1]
			}
		case "61":
			tx, err := parseLine(f.value)
			if err != nil {
				p.logger.Warn("Skipping malformed statement line",
					zap.String("statement", current.Reference),
					zap.String("line", f.value),
					zap.Error(err))
				last = nil
				continue
			}
			tx.Account = current.Account
			tx.Currency = current.Currency
			current.Transactions = append(current.Transactions, tx)
			last = &current.Transactions[len(current.Transactions)-1]
		case "86":
			if last != nil {
				last.Details = strings.TrimSpace(f.value)
				last = nil
			}
		}
	}

	return statements, nil
}

// Transactions reads r and returns all transactions of all statements
func (p *Parser) Transactions(r io.Reader) ([]Transaction, error) {
	statements, err := p.Parse(r)
	if err != nil {
		return nil, err
	}
	var txs []Transaction
	for _, s := range statements {
		txs = append(txs, s.Transactions...)
	}
	return txs, nil
}

func parseLine(value string) (Transaction, error) {
	first, supplementary, _ := strings.Cut(value, "\n")
	m := linePattern.FindStringSubmatch(first)
	if m == nil {
		return Transaction{}, fmt.Errorf("unrecognised :61: line")
	}

	valueDate, err := time.Parse("060102", m[1])
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid value date %q: %w", m[1], err)
	}
	entryDate := valueDate
	if m[2] != "" {
		entryDate, err = entryDateNear(valueDate, m[2])
		if err != nil {
			return Transaction{}, err
		}
	}

	amount, err := money.Parse(m[5])
	if err != nil {
		return Transaction{}, err
	}
	// Debits and reversed credits leave the account
	if m[3] == "D" || m[3] == "RC" {
		amount = amount.Neg()
	}

	tx := Transaction{
		Amount:    amount,
		ValueDate: valueDate.Format("2006-01-02"),
		EntryDate: entryDate.Format("2006-01-02"),
		TypeCode:  m[6],
	}
	rest := m[7]
	if ref, bank, ok := strings.Cut(rest, "//"); ok {
		tx.CustomerReference = strings.TrimSpace(ref)
		tx.BankReference = strings.TrimSpace(bank)
	} else {
		tx.CustomerReference = strings.TrimSpace(rest)
	}
	if tx.BankReference == "" && strings.TrimSpace(supplementary) != "" {
		tx.BankReference = strings.TrimSpace(supplementary)
	}
	return tx, nil
}

// entryDateNear resolves an MMDD entry date to the year that puts it closest
// to the value date.
func entryDateNear(valueDate time.Time, mmdd string) (time.Time, error) {
	month, err := strconv.Atoi(mmdd[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid entry date %q", mmdd)
	}
	day, err := strconv.Atoi(mmdd[2:])
	if err != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid entry date %q", mmdd)
	}

	year := valueDate.Year()
	switch diff := month - int(valueDate.Month()); {
	case diff > 6:
		year--
	case diff < -6:
		year++
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}
