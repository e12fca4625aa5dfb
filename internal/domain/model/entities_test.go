package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDoc_Target(t *testing.T) {
	open := decimal.RequireFromString("40")
	zero := decimal.Zero

	tests := []struct {
		name       string
		amount     string
		state      LinkState
		openAmount *decimal.Decimal
		want       string
	}{
		{"unlinked without open amount", "100", LinkUnlinked, nil, "100"},
		{"credit note uses absolute amount", "-100", LinkUnlinked, nil, "100"},
		{"unlinked with open amount", "100", LinkUnlinked, &open, "40"},
		{"suggested with open amount", "100", LinkSuggested, &open, "40"},
		{"linked doc uses full amount", "100", LinkLinked, &zero, "100"},
		{"partial doc uses full amount", "100", LinkPartial, &open, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Doc{Amount: decimal.RequireFromString(tt.amount), LinkState: tt.state, OpenAmount: tt.openAmount}

			assert.True(t, decimal.RequireFromString(tt.want).Equal(d.Target()), "got %s", d.Target())
		})
	}
}
