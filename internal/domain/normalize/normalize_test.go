package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

func TestText(t *testing.T) {
	assert.Equal(t, "muller s gebuhren strasse 5", Text("Müller's Gebühren-Straße 5"))
	assert.Equal(t, "", Text("  --  "))
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "DE89370400440532013000", Identifier("de89 3704 0044 0532 0130 00"))
	assert.Equal(t, "", EndToEndID("NOTPROVIDED"))
	assert.Equal(t, "E2E-1", EndToEndID(" e2e-1 "))
}

func TestContainsIdentifier(t *testing.T) {
	assert.True(t, ContainsIdentifier("Rechnung RE 2025-001 vielen Dank", "RE-2025-001"))
	assert.False(t, ContainsIdentifier("Rechnung RE 2025-002", "RE-2025-001"))
	assert.False(t, ContainsIdentifier("12 Stück", "12"), "too short to be meaningful")
}

func TestVendorTokens(t *testing.T) {
	assert.Equal(t, []string{"acme", "software"}, VendorTokens("ACME Software GmbH & Co. KG"))
	assert.Equal(t, "acme software", VendorKey("Acme  Software GmbH"))
}

func TestVendorMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"two shared tokens", "Acme Cloud Services GmbH", "ACME CLOUD SERVICES", true},
		{"short name substring", "Telekom", "Telekom Deutschland GmbH", true},
		{"single shared token among many", "Acme Cloud Hosting Berlin", "Acme Power Supply Hamburg", false},
		{"unknown side", "", "Telekom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VendorMatch(VendorTokens(tt.a), VendorTokens(tt.b)))
		})
	}
}

func TestVendorCompatible(t *testing.T) {
	assert.True(t, VendorCompatible(nil, VendorTokens("Anything")))
	assert.True(t, VendorCompatible(VendorTokens("Hetzner Online"), VendorTokens("HETZNER")))
	assert.True(t, VendorCompatible(VendorTokens("Vodafone"), VendorTokens("Vodafon")), "typo within similarity")
	assert.False(t, VendorCompatible(VendorTokens("Vodafone"), VendorTokens("Lidl")))
}

func TestVendorStrength(t *testing.T) {
	assert.Equal(t, 1.0, VendorStrength(VendorTokens("Hetzner Online"), VendorTokens("Hetzner Online GmbH")))
	assert.Equal(t, 0.5, VendorStrength(nil, VendorTokens("Hetzner")))
	assert.Less(t, VendorStrength(VendorTokens("Vodafone"), VendorTokens("Lidl")), 0.5)
}

func TestKeywords(t *testing.T) {
	kw, ok := MatchKeyword("VISA Kartenzahlung REWE", EigenbelegKeywords)
	assert.True(t, ok)
	assert.Equal(t, "kartenzahlung", kw)

	_, ok = MatchKeyword("ATM withdrawal", EigenbelegKeywords)
	assert.True(t, ok)

	_, ok = MatchKeyword("Treatment clinic", EigenbelegKeywords)
	assert.False(t, ok, "short keywords match whole tokens only")

	assert.True(t, HasPartialOrBatchPaymentHints("", "Teilzahlung Rechnung 42"))
	assert.False(t, HasPartialOrBatchPaymentHints("Rechnung 42"))
}

func TestTx(t *testing.T) {
	tx := Tx(model.Tx{
		ID:               "t1",
		Amount:           decimal.NewFromInt(10),
		IBAN:             "de01 2345",
		EndToEndID:       "NOTPROVIDED",
		CounterpartyName: "Hetzner Online GmbH",
	}, "EUR")

	assert.Equal(t, "DE012345", tx.IBAN)
	assert.Empty(t, tx.EndToEndID)
	assert.Equal(t, "EUR", tx.Currency)
	assert.Equal(t, "hetzner online", tx.VendorKey)
	assert.Equal(t, model.LinkUnlinked, tx.LinkState)
}

func TestDoc_CopiesLineItems(t *testing.T) {
	orig := model.Doc{ID: "d1", LineItems: []model.DocLineItem{{LineIndex: 0, Amount: decimal.NewFromInt(5)}}}
	out := Doc(orig, "EUR")
	out.LineItems[0].Amount = decimal.NewFromInt(7)

	assert.True(t, orig.LineItems[0].Amount.Equal(decimal.NewFromInt(5)))
}
