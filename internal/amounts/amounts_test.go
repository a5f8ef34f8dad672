package amounts

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"$1,234.56", USD},
		{"1234.56", USD},
		{"₹2,000", INR},
		{"INR 2000", INR},
		{"€45.00", EUR},
		{"EUR 45.00", EUR},
		{"£99.99", GBP},
		{"GBP 99.99", GBP},
		{"", USD},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectCurrency(tt.input))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"$1,234.56", "1234.56", true},
		{"₹2,000", "2000", true},
		{"EUR 45.00", "45", true},
		{"  $ 12.00  ", "12", true},
		{"1234.56", "1234.56", true},
		{"", "0", false},
		{"N/A", "0", false},
		{"$", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, ok := Parse(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				expected, err := decimal.NewFromString(tt.expected)
				require.NoError(t, err)
				assert.True(t, d.Equal(expected), "got %s, want %s", d, expected)
			}
		})
	}
}

func TestParseUSD(t *testing.T) {
	t.Run("usd passes through", func(t *testing.T) {
		d, ok := ParseUSD("$100.00")
		require.True(t, ok)
		assert.True(t, d.Equal(decimal.NewFromInt(100)), "got %s", d)
	})

	t.Run("inr converts", func(t *testing.T) {
		d, ok := ParseUSD("₹1,000")
		require.True(t, ok)
		assert.True(t, d.Equal(decimal.NewFromInt(12)), "got %s", d)
	})

	t.Run("gbp converts", func(t *testing.T) {
		d, ok := ParseUSD("£100")
		require.True(t, ok)
		assert.True(t, d.Equal(decimal.NewFromInt(127)), "got %s", d)
	})
}

func TestSumUSD(t *testing.T) {
	total, counted := SumUSD([]string{"$100.00", "₹1,000", "garbage", ""})
	assert.Equal(t, 2, counted)
	assert.True(t, total.Equal(decimal.NewFromInt(112)), "got %s", total)

	total, counted = SumUSD(nil)
	assert.Zero(t, counted)
	assert.True(t, total.IsZero())
}
