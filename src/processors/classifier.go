package processors

import (
	"strings"

	"github.com/username/optionledger/src/models"
)

// assignmentTypeCodes are the transaction type codes brokers use for
// assignment and exercise events.
var assignmentTypeCodes = map[string]struct{}{
	"ASSIGNMENT":            {},
	"EXERCISE":              {},
	"EXERCISE_ASSIGNMENT":   {},
	"OPTION_ASSIGNMENT":     {},
	"AUTO_EXERCISE":         {},
	"EARLY_EXERCISE":        {},
	"EXPIRATION_ASSIGNMENT": {},
}

// Classifier decides whether a raw broker transaction represents an
// assignment-equivalent event. Broker feeds are inconsistent about which
// field carries the signal, so matching runs in three tiers: exact type
// code, type code substring, then free-text description.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classify returns the matched canonical transaction-type label and true
// when the transaction is assignment-equivalent. A false result is a normal
// no-match outcome, not an error.
func (c *Classifier) Classify(tx *models.RawTransaction) (string, bool) {
	typeCode := strings.ToUpper(tx.TypeCode())

	if typeCode != "" {
		if _, ok := assignmentTypeCodes[typeCode]; ok {
			return typeCode, true
		}
		if strings.Contains(typeCode, "ASSIGN") || strings.Contains(typeCode, "EXERCISE") {
			return typeCode, true
		}
	}

	description := strings.ToUpper(tx.Description)
	if strings.Contains(description, "ASSIGNED") || strings.Contains(description, "EXERCISED") {
		if typeCode != "" {
			return typeCode, true
		}
		if strings.Contains(description, "EXERCISED") {
			return "EXERCISE", true
		}
		return "ASSIGNMENT", true
	}

	return "", false
}
