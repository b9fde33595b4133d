package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Monetary thresholds, in whole US dollars.
const (
	// SmallAmountThreshold marks amounts almost certainly mis-scaled: a
	// funding round below $10,000 with a unit word in its original text was
	// stored without its multiplier applied.
	SmallAmountThreshold int64 = 10_000

	// SuspiciousAmountThreshold marks amounts worth flagging for review.
	SuspiciousAmountThreshold int64 = 10_000_000_000

	// ImplausibleAmountThreshold marks amounts beyond any real funding
	// round. Rounds at or above it are deleted by the reconciler.
	ImplausibleAmountThreshold int64 = 100_000_000_000

	// ExtractionAmountCeiling is the extraction-time guard: parsed amounts
	// above it are rejected outright rather than stored.
	ExtractionAmountCeiling int64 = 50_000_000_000
)

// Exchange rates to USD. Fixed approximations, not market rates.
var currencyRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.1,
	"GBP": 1.25,
}

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

var unitMultipliers = map[string]int64{
	"k":        1_000,
	"thousand": 1_000,
	"m":        1_000_000,
	"mm":       1_000_000,
	"million":  1_000_000,
	"mn":       1_000_000,
	"b":        1_000_000_000,
	"bn":       1_000_000_000,
	"billion":  1_000_000_000,
}

var amountExpr = regexp.MustCompile(
	`(?i)([$€£]|usd|eur|gbp)?\s*([\d]+(?:[.,]\d+)*)\s*(thousand|million|billion|mm|mn|bn|[kmb])?\b`)


// ParseAmount parses a raw monetary string such as "$8 million", "€5M" or
// "250k" into a canonical whole-USD amount. Non-USD currencies are converted
// using fixed rates. Returns the amount, the detected ISO currency code
// (defaulting to USD), and an error when the string does not parse or the
// amount exceeds ExtractionAmountCeiling.
func ParseAmount(raw string) (int64, string, error) {
	m := amountExpr.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil || m[2] == "" {
		return 0, "", fmt.Errorf("unparseable amount %q", raw)
	}

	currency := "USD"
	if m[1] != "" {
		sym := strings.ToUpper(m[1])
		if code, ok := currencySymbols[m[1]]; ok {
			currency = code
		} else if _, ok := currencyRates[sym]; ok {
			currency = sym
		}
	}

	// Digit groups use commas, decimals use a point. "1,234.5" parses as
	// 1234.5; a lone "8,5" is treated as a European decimal.
	digits := m[2]
	if strings.Count(digits, ",") == 1 && !strings.Contains(digits, ".") {
		if idx := strings.Index(digits, ","); len(digits)-idx-1 != 3 {
			digits = strings.Replace(digits, ",", ".", 1)
		}
	}
	digits = strings.ReplaceAll(digits, ",", "")

	value, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, "", fmt.Errorf("unparseable amount %q: %w", raw, err)
	}

	if m[3] != "" {
		if mult, ok := unitMultipliers[strings.ToLower(m[3])]; ok {
			value *= float64(mult)
		}
	}

	value *= currencyRates[currency]

	amount := int64(value)
	if amount > ExtractionAmountCeiling {
		return 0, "", fmt.Errorf("%w: %d exceeds %d", ErrAmountImplausible, amount, ExtractionAmountCeiling)
	}
	if amount <= 0 {
		return 0, "", fmt.Errorf("unparseable amount %q: non-positive", raw)
	}

	return amount, currency, nil
}

// UnitMultiplier returns the multiplier implied by a unit word in the raw
// amount text, or 1 when no unit word is present. Used by the reconciler to
// rescale stored amounts that lost their multiplier.
func UnitMultiplier(raw string) int64 {
	m := amountExpr.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil || m[3] == "" {
		return 1
	}
	if mult, ok := unitMultipliers[strings.ToLower(m[3])]; ok {
		return mult
	}
	return 1
}

// HasUnitWord reports whether the raw amount text contains a scale word such
// as "million" or a suffix like "5M".
func HasUnitWord(raw string) bool {
	return UnitMultiplier(raw) > 1
}
