package parsers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/username/optionledger/src/models"
)

// ErrInvalidSymbol is returned when a contract symbol does not match the
// fixed OCC layout. Callers treat it as "symbol not parseable" and keep the
// record; it never aborts a batch.
var ErrInvalidSymbol = errors.New("invalid option contract symbol")

// occSymbolLength is the fixed width of an OCC contract symbol:
// 6-char space-padded ticker + YYMMDD + C|P + 8-digit strike (price x 1000).
const occSymbolLength = 21

// OptionContract holds the structured terms decoded from a contract symbol.
type OptionContract struct {
	Ticker string
	Expiry time.Time
	Type   string // models.OptionTypeCall or models.OptionTypePut
	Strike float64
}

// ParseOCCSymbol decodes a fixed-width OCC option contract symbol, e.g.
// "AAPL  231215C00150000" -> {AAPL, 2023-12-15, CALL, 150.00}.
func ParseOCCSymbol(symbol string) (OptionContract, error) {
	if len(symbol) != occSymbolLength {
		return OptionContract{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidSymbol, len(symbol), occSymbolLength)
	}

	ticker := strings.TrimSpace(symbol[:6])
	if ticker == "" {
		return OptionContract{}, fmt.Errorf("%w: empty ticker", ErrInvalidSymbol)
	}

	expiry, err := time.Parse("060102", symbol[6:12])
	if err != nil {
		return OptionContract{}, fmt.Errorf("%w: bad expiry %q", ErrInvalidSymbol, symbol[6:12])
	}

	var optionType string
	switch symbol[12] {
	case 'C':
		optionType = models.OptionTypeCall
	case 'P':
		optionType = models.OptionTypePut
	default:
		return OptionContract{}, fmt.Errorf("%w: option type %q not C or P", ErrInvalidSymbol, symbol[12])
	}

	// ParseUint rejects signs and non-digits, so this also enforces the
	// character class of the strike field.
	strikeRaw, err := strconv.ParseUint(symbol[13:], 10, 64)
	if err != nil {
		return OptionContract{}, fmt.Errorf("%w: bad strike %q", ErrInvalidSymbol, symbol[13:])
	}

	return OptionContract{
		Ticker: ticker,
		Expiry: expiry,
		Type:   optionType,
		Strike: float64(strikeRaw) / 1000.0,
	}, nil
}

// FormatOCCSymbol renders contract terms back into the fixed-width symbol.
// It is the inverse of ParseOCCSymbol for valid inputs.
func FormatOCCSymbol(ticker string, expiry time.Time, optionType string, strike float64) string {
	typeChar := "P"
	if optionType == models.OptionTypeCall {
		typeChar = "C"
	}
	return fmt.Sprintf("%-6s%s%s%08d", ticker, expiry.Format("060102"), typeChar, int64(strike*1000+0.5))
}
