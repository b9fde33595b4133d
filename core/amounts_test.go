package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw      string
		amount   int64
		currency string
	}{
		{"$8 million", 8_000_000, "USD"},
		{"$8M", 8_000_000, "USD"},
		{"8.5 million", 8_500_000, "USD"},
		{"$1.2 billion", 1_200_000_000, "USD"},
		{"$250k", 250_000, "USD"},
		{"€5 million", 5_500_000, "EUR"},
		{"£10 million", 12_500_000, "GBP"},
		{"$1,500,000", 1_500_000, "USD"},
		{"USD 40 million", 40_000_000, "USD"},
		{"$40mn", 40_000_000, "USD"},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			amount, currency, err := ParseAmount(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.amount, amount)
			assert.Equal(t, tc.currency, currency)
		})
	}
}

func TestParseAmountErrors(t *testing.T) {
	_, _, err := ParseAmount("no money here")
	assert.Error(t, err)

	_, _, err = ParseAmount("")
	assert.Error(t, err)

	// Above the extraction-time ceiling.
	_, _, err = ParseAmount("$90 billion")
	assert.ErrorIs(t, err, ErrAmountImplausible)
}

func TestUnitMultiplier(t *testing.T) {
	assert.Equal(t, int64(1_000_000), UnitMultiplier("$8 million"))
	assert.Equal(t, int64(1_000_000_000), UnitMultiplier("1.2bn"))
	assert.Equal(t, int64(1_000), UnitMultiplier("250k"))
	assert.Equal(t, int64(1), UnitMultiplier("$1,500,000"))
	assert.Equal(t, int64(1), UnitMultiplier(""))

	assert.True(t, HasUnitWord("$8 million"))
	assert.False(t, HasUnitWord("$8"))
}
