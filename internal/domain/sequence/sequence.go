// Package sequence formats and parses the human-facing invoice identifiers.
//
// Real invoices are numbered [prefix-]YEAR-NNN, pro-forma invoices
// [prefix-]PF-YEAR-NNN. The numeric part is zero-padded to three digits and
// simply grows past 999.
package sequence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/garyjia/invoicing/internal/domain/entity"
)

// ProFormaMarker identifies reservation invoices inside a sequence number.
const ProFormaMarker = "PF"

// Delimiters separate a sequence number from surrounding free text, such as
// the structured fields of a bank statement. A prefix never contains them.
const Delimiters = "/:;,()#"

var (
	numberPattern = regexp.MustCompile(`^(?:(.+?)-)?(?:(PF)-)?(\d{4})-(\d+)$`)
	prefixPattern = regexp.MustCompile(`^[^\s` + regexp.QuoteMeta(Delimiters) + `]+$`)
)

// Number is a parsed sequence number.
type Number struct {
	Prefix   string
	ProForma bool
	Year     int
	Seq      int
}

// New returns the first number of a track for the given year.
func New(prefix string, proForma bool, year int) Number {
	return Number{Prefix: prefix, ProForma: proForma, Year: year, Seq: 1}
}

// Parse splits s into its parts.
func Parse(s string) (Number, error) {
	m := numberPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Number{}, fmt.Errorf("%w: %q", entity.ErrMalformedNumber, s)
	}

	n := Number{Prefix: m[1], ProForma: m[2] == ProFormaMarker}
	// "PF-2024-001" lands the marker in the prefix group.
	if !n.ProForma && n.Prefix == ProFormaMarker {
		n.Prefix = ""
		n.ProForma = true
	}

	n.Year, _ = strconv.Atoi(m[3])
	seq, err := strconv.Atoi(m[4])
	if err != nil {
		return Number{}, fmt.Errorf("%w: %q", entity.ErrMalformedNumber, s)
	}
	n.Seq = seq
	return n, nil
}

// Next returns the number following n on the same track, prefix and year.
func (n Number) Next() Number {
	n.Seq++
	return n
}

// String formats n.
func (n Number) String() string {
	var b strings.Builder
	if n.Prefix != "" {
		b.WriteString(n.Prefix)
		b.WriteByte('-')
	}
	if n.ProForma {
		b.WriteString(ProFormaMarker)
		b.WriteByte('-')
	}
	fmt.Fprintf(&b, "%04d-%03d", n.Year, n.Seq)
	return b.String()
}

// ValidatePrefix checks that prefix yields numbers that parse back to the
// same prefix and can be found in statement text. The empty prefix is valid.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	if !prefixPattern.MatchString(prefix) {
		return entity.NewValidationError("prefix", "must not contain whitespace or any of "+Delimiters)
	}
	if strings.HasPrefix(prefix, "-") || strings.HasSuffix(prefix, "-") {
		return entity.NewValidationError("prefix", "must not start or end with a hyphen")
	}
	last := prefix[strings.LastIndex(prefix, "-")+1:]
	if strings.EqualFold(last, ProFormaMarker) {
		return entity.NewValidationError("prefix", "must not end with the pro-forma marker")
	}
	return nil
}

// IsProForma reports whether s is a well-formed pro-forma number.
func IsProForma(s string) bool {
	n, err := Parse(s)
	return err == nil && n.ProForma
}

// PrefixOf returns the company prefix of s, or "" when s is malformed or
// carries none.
func PrefixOf(s string) string {
	n, err := Parse(s)
	if err != nil {
		return ""
	}
	return n.Prefix
}

// HighestReal returns the real number with the highest numeric part among
// candidates for year. Pro-forma and malformed numbers are skipped.
func HighestReal(candidates []string, year int) (Number, bool) {
	var best Number
	found := false
	for _, c := range candidates {
		n, err := Parse(c)
		if err != nil || n.ProForma || n.Year != year {
			continue
		}
		if !found || n.Seq > best.Seq {
			best = n
			found = true
		}
	}
	return best, found
}
