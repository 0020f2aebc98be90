package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxTickerLength = 6
	MaxLookbackDays = 3650
)

var tickerRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,5}$`)

// ValidateTicker checks that a string is a plausible underlying ticker.
// Leading/trailing whitespace is the caller's problem; normalization to
// uppercase happens before storage, not here.
func ValidateTicker(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: ticker cannot be empty", ErrValidationFailed)
	}
	if !tickerRegex.MatchString(s) {
		return fmt.Errorf("%w: ticker ('%s') is not in the expected format (1-%d uppercase letters, digits or dots)", ErrValidationFailed, s, MaxTickerLength)
	}
	return nil
}

// ValidateLookbackDays bounds a user-supplied day window.
func ValidateLookbackDays(days int) error {
	if days <= 0 {
		return fmt.Errorf("%w: lookback days must be positive, got %d", ErrValidationFailed, days)
	}
	if days > MaxLookbackDays {
		return fmt.Errorf("%w: lookback days must be at most %d, got %d", ErrValidationFailed, MaxLookbackDays, days)
	}
	return nil
}
