package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawTransactionUnmarshal(t *testing.T) {
	payload := `{
		"activityId": 987654,
		"transactionType": "EXERCISE_ASSIGNMENT",
		"description": "option assignment",
		"netAmount": -30000.0,
		"tradeDate": "2023-12-15T16:00:00Z",
		"subAccount": "CASH",
		"positionId": 42,
		"transferItems": [{
			"instrument": {"assetType": "OPTION", "symbol": "AAPL  231215C00150000", "putCall": "CALL"},
			"amount": 2
		}]
	}`

	var tx RawTransaction
	require.NoError(t, json.Unmarshal([]byte(payload), &tx))

	t.Run("known fields are typed", func(t *testing.T) {
		assert.Equal(t, "987654", tx.BrokerID())
		assert.Equal(t, "EXERCISE_ASSIGNMENT", tx.TypeCode())
		require.NotNil(t, tx.NetAmount)
		assert.Equal(t, -30000.0, *tx.NetAmount)
		assert.Equal(t, "AAPL  231215C00150000", tx.OptionSymbol())
	})

	t.Run("unmodeled fields land in Extra", func(t *testing.T) {
		require.Contains(t, tx.Extra, "subAccount")
		require.Contains(t, tx.Extra, "positionId")
		assert.NotContains(t, tx.Extra, "transactionType")
	})

	t.Run("original payload is retained verbatim", func(t *testing.T) {
		assert.JSONEq(t, payload, string(tx.Raw))
	})
}

func TestFlexString(t *testing.T) {
	var s struct {
		ID FlexString `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id": 123}`), &s))
	assert.Equal(t, "123", s.ID.String())

	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc"}`), &s))
	assert.Equal(t, "abc", s.ID.String())

	require.NoError(t, json.Unmarshal([]byte(`{"id": null}`), &s))
	assert.Equal(t, "", s.ID.String())
}

func TestBasisDelta(t *testing.T) {
	price := 150.0

	t.Run("put acquires shares", func(t *testing.T) {
		event := &AssignmentEvent{Ticker: "AAPL", OptionType: OptionTypePut, Shares: 200, PricePerShare: &price}
		shares, cost, ok := event.BasisDelta()
		require.True(t, ok)
		assert.Equal(t, int64(200), shares)
		assert.Equal(t, 30000.0, cost)
	})

	t.Run("call exercise also acquires shares", func(t *testing.T) {
		event := &AssignmentEvent{Ticker: "AAPL", OptionType: OptionTypeCall, Shares: 100, PricePerShare: &price}
		shares, cost, ok := event.BasisDelta()
		require.True(t, ok)
		assert.Equal(t, int64(100), shares)
		assert.Equal(t, 15000.0, cost)
	})

	t.Run("unknown type acquires shares", func(t *testing.T) {
		event := &AssignmentEvent{Ticker: "AAPL", Shares: 100, PricePerShare: &price}
		shares, _, ok := event.BasisDelta()
		require.True(t, ok)
		assert.Equal(t, int64(100), shares)
	})

	t.Run("no price means no basis impact", func(t *testing.T) {
		event := &AssignmentEvent{Ticker: "AAPL", OptionType: OptionTypePut, Shares: 200}
		_, _, ok := event.BasisDelta()
		assert.False(t, ok)
	})
}
