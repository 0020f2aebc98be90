package parsers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optionledger/src/models"
)

func TestParseOCCSymbol(t *testing.T) {
	t.Run("standard call", func(t *testing.T) {
		contract, err := ParseOCCSymbol("AAPL  231215C00150000")
		require.NoError(t, err)

		assert.Equal(t, "AAPL", contract.Ticker)
		assert.Equal(t, time.Date(2023, time.December, 15, 0, 0, 0, 0, time.UTC), contract.Expiry)
		assert.Equal(t, models.OptionTypeCall, contract.Type)
		assert.Equal(t, 150.0, contract.Strike)
	})

	t.Run("put with fractional strike", func(t *testing.T) {
		contract, err := ParseOCCSymbol("INTC  250930P00035500")
		require.NoError(t, err)

		assert.Equal(t, "INTC", contract.Ticker)
		assert.Equal(t, models.OptionTypePut, contract.Type)
		assert.Equal(t, 35.5, contract.Strike)
	})

	t.Run("short ticker is trimmed, not an error", func(t *testing.T) {
		contract, err := ParseOCCSymbol("F     240119P00012000")
		require.NoError(t, err)
		assert.Equal(t, "F", contract.Ticker)
	})

	t.Run("six character ticker", func(t *testing.T) {
		contract, err := ParseOCCSymbol("GOOGLX231215C00150000")
		require.NoError(t, err)
		assert.Equal(t, "GOOGLX", contract.Ticker)
	})

	t.Run("rejects malformed symbols", func(t *testing.T) {
		cases := map[string]string{
			"too short":           "AAPL  231215C001500",
			"too long":            "AAPL  231215C001500000",
			"empty":               "",
			"bad option type":     "AAPL  231215X00150000",
			"non-digit in date":   "AAPL  23AB15C00150000",
			"non-digit in strike": "AAPL  231215C0015000X",
			"signed strike":       "AAPL  231215C+0150000",
			"invalid calendar day": "AAPL  231345C00150000",
			"empty ticker":        "      231215C00150000",
		}
		for name, symbol := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := ParseOCCSymbol(symbol)
				require.ErrorIs(t, err, ErrInvalidSymbol)
			})
		}
	})
}

func TestFormatOCCSymbolRoundTrip(t *testing.T) {
	cases := []struct {
		ticker     string
		expiry     time.Time
		optionType string
		strike     float64
	}{
		{"AAPL", time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC), models.OptionTypeCall, 150.00},
		{"F", time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC), models.OptionTypePut, 12.00},
		{"GOOGLX", time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC), models.OptionTypePut, 35.55},
		{"TSLA", time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC), models.OptionTypeCall, 1000.50},
		{"X", time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC), models.OptionTypeCall, 0.50},
	}

	for _, tc := range cases {
		symbol := FormatOCCSymbol(tc.ticker, tc.expiry, tc.optionType, tc.strike)
		require.Len(t, symbol, occSymbolLength, "formatted symbol %q", symbol)

		contract, err := ParseOCCSymbol(symbol)
		require.NoError(t, err, "round-tripping %q", symbol)
		assert.Equal(t, tc.ticker, contract.Ticker)
		assert.Equal(t, tc.expiry, contract.Expiry)
		assert.Equal(t, tc.optionType, contract.Type)
		assert.Equal(t, tc.strike, contract.Strike)
	}
}
