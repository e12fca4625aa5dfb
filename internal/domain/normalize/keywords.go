package normalize

import "strings"

// Keyword lists are matched against Text-normalized input. Keywords of up to
// four characters must match a whole token; longer ones match anywhere.
var (
	PartialPaymentKeywords = []string{
		"teilzahlung", "teilbetrag", "anzahlung", "abschlag", "ratenzahlung", "rate",
		"sammelzahlung", "sammeluberweisung", "sammellastschrift",
		"partial payment", "installment", "instalment", "batch payment", "collective",
	}
	TechnicalKeywords = []string{
		"umbuchung", "ubertrag", "kontoubertrag", "storno", "ruckbuchung", "ruckuberweisung",
		"internal transfer", "own account", "eigenubertrag", "reversal",
	}
	PrivateKeywords = []string{
		"privat", "private", "privatentnahme", "entnahme", "personal",
	}
	FeeKeywords = []string{
		"gebuhr", "gebuhren", "entgelt", "kontofuhrung", "kontofuhrungsentgelt",
		"fee", "fees", "charge", "zinsen", "interest", "porto",
	}
	SubscriptionKeywords = []string{
		"abo", "abonnement", "subscription", "mitgliedschaft", "membership",
		"monatlich", "monthly", "jahrlich", "yearly", "annual", "lizenz", "license",
	}
	PrepaymentKeywords = []string{
		"anzahlung", "vorauszahlung", "vorkasse", "prepayment", "advance payment", "deposit",
	}
	EigenbelegKeywords = []string{
		"kartenzahlung", "atm", "geldautomat", "bargeld", "barauszahlung", "bar",
		"cash", "card payment", "pos", "girocard", "ec karte",
	}
)

// ContainsKeyword reports whether normalized text contains keyword.
func ContainsKeyword(text, keyword string) bool {
	kw := Text(keyword)
	if kw == "" {
		return false
	}
	if len(kw) <= 4 {
		return strings.Contains(" "+text+" ", " "+kw+" ")
	}
	return strings.Contains(text, kw)
}

// MatchKeyword normalizes raw and returns the first keyword it contains.
func MatchKeyword(raw string, keywords []string) (string, bool) {
	text := Text(raw)
	if text == "" {
		return "", false
	}
	for _, kw := range keywords {
		if ContainsKeyword(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// HasPartialOrBatchPaymentHints reports whether any of the texts talks about a
// partial, instalment or batch payment.
func HasPartialOrBatchPaymentHints(texts ...string) bool {
	for _, t := range texts {
		if _, ok := MatchKeyword(t, PartialPaymentKeywords); ok {
			return true
		}
	}
	return false
}
