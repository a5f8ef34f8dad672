// Package amounts parses the display-string money values carried on invoice
// records. Extraction keeps amounts exactly as printed ("$1,234.56",
// "₹2,000", "EUR 45.00"); analytics needs them as numbers in one currency.
package amounts

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency codes recognized in display strings.
const (
	USD = "USD"
	INR = "INR"
	EUR = "EUR"
	GBP = "GBP"
)

// Approximate conversion rates to USD. Good enough for summary reporting;
// not an FX feed.
var usdRates = map[string]decimal.Decimal{
	INR: decimal.NewFromFloat(0.012),
	EUR: decimal.NewFromFloat(1.09),
	GBP: decimal.NewFromFloat(1.27),
	USD: decimal.NewFromInt(1),
}

var symbolStripper = strings.NewReplacer(
	"$", "", "₹", "", "€", "", "£", "",
	"INR", "", "USD", "", "EUR", "", "GBP", "",
	",", "",
)

// DetectCurrency guesses the currency of a display string from its symbol or
// code. Unrecognized strings default to USD.
func DetectCurrency(s string) string {
	switch {
	case strings.Contains(s, "INR") || strings.Contains(s, "₹"):
		return INR
	case strings.Contains(s, "EUR") || strings.Contains(s, "€"):
		return EUR
	case strings.Contains(s, "GBP") || strings.Contains(s, "£"):
		return GBP
	default:
		return USD
	}
}

// Parse extracts the numeric value from a display string, stripping currency
// symbols, codes, and thousands separators. Returns false for strings with
// no parseable number.
func Parse(s string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(symbolStripper.Replace(s))
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseUSD parses a display string and converts it to USD using the
// approximate rates. Returns false when the string has no parseable number.
func ParseUSD(s string) (decimal.Decimal, bool) {
	d, ok := Parse(s)
	if !ok {
		return decimal.Zero, false
	}
	rate := usdRates[DetectCurrency(s)]
	return d.Mul(rate).Round(2), true
}

// SumUSD totals a set of display strings in USD, skipping unparseable
// entries. Returns the sum and how many entries contributed to it.
func SumUSD(values []string) (decimal.Decimal, int) {
	total := decimal.Zero
	counted := 0
	for _, v := range values {
		d, ok := ParseUSD(v)
		if !ok {
			continue
		}
		total = total.Add(d)
		counted++
	}
	return total.Round(2), counted
}
