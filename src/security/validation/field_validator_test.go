package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTicker(t *testing.T) {
	for _, ticker := range []string{"AAPL", "F", "BRK.B", "INTC", "GOOGL"} {
		assert.NoError(t, ValidateTicker(ticker), ticker)
	}
	for _, ticker := range []string{"", "  ", "aapl", "TOOLONGX", "AAPL;DROP", "1ABC"} {
		err := ValidateTicker(ticker)
		require.Error(t, err, ticker)
		assert.ErrorIs(t, err, ErrValidationFailed)
	}
}

func TestValidateLookbackDays(t *testing.T) {
	assert.NoError(t, ValidateLookbackDays(1))
	assert.NoError(t, ValidateLookbackDays(MaxLookbackDays))
	assert.ErrorIs(t, ValidateLookbackDays(0), ErrValidationFailed)
	assert.ErrorIs(t, ValidateLookbackDays(-3), ErrValidationFailed)
	assert.ErrorIs(t, ValidateLookbackDays(MaxLookbackDays+1), ErrValidationFailed)
}
