package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/username/optionledger/src/models"
)

func TestClassify(t *testing.T) {
	classifier := NewClassifier()

	t.Run("every enumerated type code matches exactly", func(t *testing.T) {
		codes := []string{
			"ASSIGNMENT", "EXERCISE", "EXERCISE_ASSIGNMENT", "OPTION_ASSIGNMENT",
			"AUTO_EXERCISE", "EARLY_EXERCISE", "EXPIRATION_ASSIGNMENT",
		}
		for _, code := range codes {
			label, ok := classifier.Classify(&models.RawTransaction{TransactionType: code})
			assert.True(t, ok, "code %s", code)
			assert.Equal(t, code, label)
		}
	})

	t.Run("exact match is case insensitive on the code", func(t *testing.T) {
		label, ok := classifier.Classify(&models.RawTransaction{TransactionType: "exercise_assignment"})
		assert.True(t, ok)
		assert.Equal(t, "EXERCISE_ASSIGNMENT", label)
	})

	t.Run("substring match on complex type strings", func(t *testing.T) {
		for _, code := range []string{"OPTION_EXERCISE_FEE", "TRADE_ASSIGNED_SHORT", "REORG_EXERCISE"} {
			_, ok := classifier.Classify(&models.RawTransaction{TransactionType: code})
			assert.True(t, ok, "code %s", code)
		}
	})

	t.Run("description fallback", func(t *testing.T) {
		label, ok := classifier.Classify(&models.RawTransaction{
			Type:        "TRADE",
			Description: "Short put was Assigned against account",
		})
		assert.True(t, ok)
		assert.Equal(t, "TRADE", label)

		label, ok = classifier.Classify(&models.RawTransaction{
			Description: "option exercised at expiry",
		})
		assert.True(t, ok)
		assert.Equal(t, "EXERCISE", label)
	})

	t.Run("dividend with unrelated description is not an assignment", func(t *testing.T) {
		_, ok := classifier.Classify(&models.RawTransaction{
			TransactionType: "DIVIDEND",
			Description:     "Ordinary dividend payment",
		})
		assert.False(t, ok)
	})

	t.Run("empty transaction is not an assignment", func(t *testing.T) {
		_, ok := classifier.Classify(&models.RawTransaction{})
		assert.False(t, ok)
	})
}
