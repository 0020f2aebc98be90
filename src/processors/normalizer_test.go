package processors

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optionledger/src/logger"
	"github.com/username/optionledger/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func mustTx(t *testing.T, payload string) *models.RawTransaction {
	t.Helper()
	var tx models.RawTransaction
	require.NoError(t, json.Unmarshal([]byte(payload), &tx))
	return &tx
}

func TestNormalize(t *testing.T) {
	normalizer := NewNormalizer()

	t.Run("full assignment record", func(t *testing.T) {
		tx := mustTx(t, `{
			"activityId": 12345678,
			"transactionType": "EXERCISE_ASSIGNMENT",
			"symbol": "AAPL  231215C00150000",
			"quantity": 2,
			"netAmount": -30000.00,
			"transactionDate": "2023-12-15T16:00:00Z",
			"orderId": 555
		}`)

		event, err := normalizer.Normalize(tx, "acct-1")
		require.NoError(t, err)

		assert.Equal(t, "12345678", event.ID)
		assert.Equal(t, "acct-1", event.AccountID)
		assert.Equal(t, "AAPL", event.Ticker)
		assert.Equal(t, "AAPL  231215C00150000", event.OptionSymbol)
		assert.Equal(t, models.OptionTypeCall, event.OptionType)
		assert.Equal(t, int64(2), event.Contracts)
		assert.Equal(t, int64(200), event.Shares)
		require.NotNil(t, event.PricePerShare)
		assert.InDelta(t, 150.00, *event.PricePerShare, 1e-9)
		require.NotNil(t, event.TotalAmount)
		assert.InDelta(t, 30000.00, *event.TotalAmount, 1e-9)
		assert.Equal(t, time.Date(2023, 12, 15, 16, 0, 0, 0, time.UTC), event.AssignedAt)
		assert.Equal(t, "EXERCISE_ASSIGNMENT", event.TransactionType)
		assert.Equal(t, "555", event.RelatedOrderID)
		assert.NotEmpty(t, event.RawPayload)
	})

	t.Run("quantity reported in shares", func(t *testing.T) {
		tx := mustTx(t, `{
			"activityId": 1,
			"transactionType": "ASSIGNMENT",
			"symbol": "INTC  250930P00035000",
			"quantity": 200,
			"tradeDate": "2025-09-30"
		}`)

		event, err := normalizer.Normalize(tx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), event.Contracts)
		assert.Equal(t, int64(200), event.Shares)
		assert.Equal(t, models.OptionTypePut, event.OptionType)
	})

	t.Run("long and short quantity fields", func(t *testing.T) {
		tx := mustTx(t, `{
			"activityId": 2,
			"transactionType": "ASSIGNMENT",
			"symbol": "INTC  250930P00035000",
			"longQuantity": 0,
			"shortQuantity": 3,
			"tradeDate": "2025-09-30"
		}`)

		event, err := normalizer.Normalize(tx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), event.Contracts)
		assert.Equal(t, int64(300), event.Shares)
	})

	t.Run("unparseable symbol falls back to broker ticker", func(t *testing.T) {
		tx := mustTx(t, `{
			"activityId": 3,
			"transactionType": "ASSIGNMENT",
			"transactionDate": "2023-12-15T16:00:00Z",
			"quantity": 1,
			"transferItems": [{
				"instrument": {
					"assetType": "OPTION",
					"symbol": "NOT-AN-OCC-SYMBOL",
					"underlyingSymbol": "NVDA",
					"putCall": "PUT"
				}
			}]
		}`)

		event, err := normalizer.Normalize(tx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, "NVDA", event.Ticker)
		assert.Equal(t, models.OptionTypePut, event.OptionType)
		assert.Equal(t, "NOT-AN-OCC-SYMBOL", event.OptionSymbol)
	})

	t.Run("missing numeric fields stay nil", func(t *testing.T) {
		tx := mustTx(t, `{
			"activityId": 4,
			"transactionType": "ASSIGNMENT",
			"symbol": "AAPL  231215C00150000",
			"quantity": 1,
			"transactionDate": "2023-12-15"
		}`)

		event, err := normalizer.Normalize(tx, "acct-1")
		require.NoError(t, err)
		assert.Nil(t, event.PricePerShare)
		assert.Nil(t, event.TotalAmount)
	})

	t.Run("synthesized id is deterministic", func(t *testing.T) {
		payload := `{
			"transactionType": "ASSIGNMENT",
			"symbol": "AAPL  231215C00150000",
			"quantity": 2,
			"netAmount": -30000.00,
			"transactionDate": "2023-12-15T16:00:00Z"
		}`

		first, err := normalizer.Normalize(mustTx(t, payload), "acct-1")
		require.NoError(t, err)
		second, err := normalizer.Normalize(mustTx(t, payload), "acct-1")
		require.NoError(t, err)

		assert.NotEmpty(t, first.ID)
		assert.Len(t, first.ID, 16)
		assert.Equal(t, first.ID, second.ID)

		// A different amount is a different event.
		other, err := normalizer.Normalize(mustTx(t, `{
			"transactionType": "ASSIGNMENT",
			"symbol": "AAPL  231215C00150000",
			"quantity": 2,
			"netAmount": -31000.00,
			"transactionDate": "2023-12-15T16:00:00Z"
		}`), "acct-1")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, other.ID)
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		tx := mustTx(t, `{
			"activityId": 5,
			"transactionType": "ASSIGNMENT",
			"symbol": "AAPL  231215C00150000",
			"transactionDate": "2023-12-15"
		}`)
		_, err := normalizer.Normalize(tx, "acct-1")
		require.ErrorIs(t, err, ErrZeroQuantity)
	})

	t.Run("rejects missing timestamp", func(t *testing.T) {
		tx := mustTx(t, `{
			"activityId": 6,
			"transactionType": "ASSIGNMENT",
			"symbol": "AAPL  231215C00150000",
			"quantity": 1,
			"transactionDate": "not a timestamp"
		}`)
		_, err := normalizer.Normalize(tx, "acct-1")
		require.ErrorIs(t, err, ErrBadTimestamp)
	})

	t.Run("rejects record with no symbol or ticker", func(t *testing.T) {
		tx := mustTx(t, `{
			"activityId": 7,
			"transactionType": "ASSIGNMENT",
			"quantity": 1,
			"transactionDate": "2023-12-15"
		}`)
		_, err := normalizer.Normalize(tx, "acct-1")
		require.ErrorIs(t, err, ErrMissingSymbol)
	})
}
