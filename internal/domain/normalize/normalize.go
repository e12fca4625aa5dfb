// Package normalize canonicalizes the free-form fields of transactions and
// documents so the matcher can compare them.
//
// Identifiers (IBAN, invoice number, end-to-end id) are upper-cased with all
// whitespace removed. Text is folded to lower-case ASCII where possible
// (diacritics stripped, ß expanded) and reduced to space-separated
// alphanumeric tokens.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

// notProvided is the SEPA placeholder for a missing end-to-end id.
const notProvided = "NOTPROVIDED"

// legalForms are dropped from vendor names before comparison.
var legalForms = map[string]bool{
	"gmbh": true, "mbh": true, "ag": true, "kg": true, "ug": true, "ohg": true, "gbr": true,
	"co": true, "ek": true, "se": true, "ltd": true, "inc": true, "llc": true, "plc": true,
	"sarl": true, "bv": true, "nv": true, "haftungsbeschrankt": true, "und": true, "the": true,
}

// Fold strips diacritics and lower-cases s.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ReplaceAll(folded, "ß", "ss")
	return strings.ToLower(folded)
}

// Text folds s and collapses everything that is not a letter or digit into
// single spaces.
func Text(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Identifier canonicalizes an IBAN, invoice number or end-to-end id.
func Identifier(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

// EndToEndID canonicalizes an end-to-end id, mapping the SEPA placeholder to empty.
func EndToEndID(s string) string {
	id := Identifier(s)
	if id == notProvided {
		return ""
	}
	return id
}

// compact keeps only upper-cased letters and digits.
func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return -1
	}, Fold(s))
}

// ContainsIdentifier reports whether id appears in text, ignoring case,
// whitespace and punctuation. Identifiers shorter than three characters
// never match.
func ContainsIdentifier(text, id string) bool {
	needle := compact(id)
	if len(needle) < 3 {
		return false
	}
	return strings.Contains(compact(text), needle)
}

// Tx returns a copy of tx with canonical identifiers, currency and vendor key.
// Transactions without a vendor key get one derived from the counterparty name.
func Tx(tx model.Tx, defaultCurrency string) model.Tx {
	out := tx
	out.IBAN = Identifier(tx.IBAN)
	out.EndToEndID = EndToEndID(tx.EndToEndID)
	out.Currency = currency(tx.Currency, defaultCurrency)
	if out.VendorKey == "" {
		out.VendorKey = VendorKey(tx.CounterpartyName)
	} else {
		out.VendorKey = VendorKey(tx.VendorKey)
	}
	if out.LinkState == "" {
		out.LinkState = model.LinkUnlinked
	}
	return out
}

// Doc returns a copy of d with canonical identifiers and currency.
func Doc(d model.Doc, defaultCurrency string) model.Doc {
	out := d
	out.IBAN = Identifier(d.IBAN)
	out.InvoiceNo = Identifier(d.InvoiceNo)
	out.EndToEndID = EndToEndID(d.EndToEndID)
	out.Currency = currency(d.Currency, defaultCurrency)
	if out.LinkState == "" {
		out.LinkState = model.LinkUnlinked
	}
	if len(d.LineItems) > 0 {
		out.LineItems = append([]model.DocLineItem(nil), d.LineItems...)
	}
	return out
}

func currency(c, def string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return strings.ToUpper(def)
	}
	return c
}
