package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/optionledger/src/models"
)

// SimClient is a deterministic broker simulator for development and offline
// runs (BROKER_PROVIDER=sim). Its transaction feed always contains one put
// assignment inside the last week, so the full pipeline can be exercised
// without credentials.
type SimClient struct{}

func NewSimClient() *SimClient { return &SimClient{} }

func (c *SimClient) Transactions(ctx context.Context, accountID string, start, end time.Time) ([]models.RawTransaction, error) {
	assignedAt := end.UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour).Add(20 * time.Hour)

	payloads := []string{
		fmt.Sprintf(`{
			"activityId": 90000001,
			"transactionType": "EXERCISE_ASSIGNMENT",
			"description": "Short put assigned",
			"tradeDate": %q,
			"quantity": 1,
			"netAmount": -3510.00,
			"transferItems": [{
				"instrument": {
					"assetType": "OPTION",
					"symbol": "INTC  250930P00035000",
					"underlyingSymbol": "INTC",
					"putCall": "PUT",
					"strikePrice": 35.0
				},
				"amount": 1
			}]
		}`, assignedAt.Format(time.RFC3339)),
		fmt.Sprintf(`{
			"activityId": 90000002,
			"transactionType": "DIVIDEND",
			"description": "Ordinary dividend",
			"tradeDate": %q,
			"netAmount": 52.00,
			"symbol": "AAPL"
		}`, assignedAt.Format(time.RFC3339)),
	}

	var txs []models.RawTransaction
	for _, payload := range payloads {
		var tx models.RawTransaction
		if err := json.Unmarshal([]byte(payload), &tx); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (c *SimClient) AccountSnapshot(ctx context.Context) (*models.AccountSnapshot, error) {
	now := time.Now().UTC()
	return &models.AccountSnapshot{
		GeneratedAt: now,
		AccountID:   "SIM",
		Cash:        decimal.RequireFromString("100000.00"),
		BuyingPower: decimal.RequireFromString("250000.00"),
		Stocks: []models.StockPosition{
			{Symbol: "AAPL", Qty: decimal.NewFromInt(100), AvgCost: decimal.RequireFromString("150.00"), MarketPrice: decimal.RequireFromString("180.50")},
			{Symbol: "INTC", Qty: decimal.NewFromInt(200), AvgCost: decimal.RequireFromString("30.00"), MarketPrice: decimal.RequireFromString("35.10")},
		},
		Options: []models.OptionPosition{
			{
				Symbol:         "AAPL",
				ContractSymbol: "AAPL  250930C00180000",
				Qty:            decimal.NewFromInt(-2),
				AvgCost:        decimal.RequireFromString("2.50"),
				MarketPrice:    decimal.RequireFromString("1.75"),
				Strike:         decimal.RequireFromString("180.00"),
				Expiry:         now.AddDate(0, 0, 10),
				PutCall:        "C",
			},
			{
				Symbol:         "INTC",
				ContractSymbol: "INTC  250930P00035000",
				Qty:            decimal.NewFromInt(-1),
				AvgCost:        decimal.RequireFromString("3.00"),
				MarketPrice:    decimal.RequireFromString("2.25"),
				Strike:         decimal.RequireFromString("35.00"),
				Expiry:         now.AddDate(0, 0, 10),
				PutCall:        "P",
			},
		},
	}, nil
}
