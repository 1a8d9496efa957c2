package mt940

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/garyjia/invoicing/internal/domain/money"
	"github.com/garyjia/invoicing/internal/domain/sequence"
	"go.uber.org/zap"
)

// referencePattern finds sequence-number shaped tokens. A token starts at the
// beginning of the text or after whitespace or a delimiter, so a company
// prefix with several segments is captured whole instead of being cut down to
// its tail. Group 1 holds the reference.
var referencePattern = regexp.MustCompile(
	`(?i)(?:^|[\s` + delimiters + `])` +
		`((?:[^\s` + delimiters + `]*-)?(?:pf-)?\d{4}-\d{3,})`)

var delimiters = regexp.QuoteMeta(sequence.Delimiters)

// Candidate is a possible invoice payment found in a statement
type Candidate struct {
	Invoice           string `json:"invoice"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	CustomerReference string `json:"customer_reference"`
	EntryDate         string `json:"entry_date"`
	TransactionID     string `json:"transaction_id"`
	Source            string `json:"source,omitempty"`
}

// FindReferences returns every non-overlapping invoice reference in details.
// Wrapped lines are joined first so references split by the 65 character
// line limit are still found.
func FindReferences(details string) []string {
	flat := strings.ReplaceAll(details, "\n", "")

	var refs []string
	for _, m := range referencePattern.FindAllStringSubmatch(flat, -1) {
		refs = append(refs, m[1])
	}
	return refs
}

// Match emits one candidate per reference per transaction
func Match(txs []Transaction) []Candidate {
	var out []Candidate
	for _, tx := range txs {
		for _, ref := range FindReferences(tx.Details) {
			out = append(out, Candidate{
				Invoice:           ref,
				Amount:            money.Format(tx.Amount),
				Currency:          tx.Currency,
				CustomerReference: tx.CustomerReference,
				EntryDate:         tx.EntryDate,
				TransactionID:     tx.ID(),
			})
		}
	}
	return out
}

// File is one named statement upload
type File struct {
	Name   string
	Reader io.Reader
}

// Candidates parses every file and returns their candidates in order.
// Files are independent; the same file twice yields its candidates twice.
func (p *Parser) Candidates(files ...File) ([]Candidate, error) {
	var out []Candidate
	for _, f := range files {
		txs, err := p.Transactions(f.Reader)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}

		found := Match(txs)
		for i := range found {
			found[i].Source = f.Name
		}
		p.logger.Info("Statement parsed",
			zap.String("file", f.Name),
			zap.Int("transactions", len(txs)),
			zap.Int("candidates", len(found)))
		out = append(out, found...)
	}
	return out, nil
}
