package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockPosition is an equity position from the account snapshot.
type StockPosition struct {
	Symbol      string          `json:"symbol"`
	Qty         decimal.Decimal `json:"qty"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	MarketPrice decimal.Decimal `json:"market_price"`
}

func (p StockPosition) MarketValue() decimal.Decimal {
	return p.Qty.Mul(p.MarketPrice)
}

func (p StockPosition) PNL() decimal.Decimal {
	return p.Qty.Mul(p.MarketPrice.Sub(p.AvgCost))
}

// OptionPosition is an option position from the account snapshot.
// Qty is in contracts; prices are quoted per share.
type OptionPosition struct {
	Symbol         string          `json:"symbol"` // underlying ticker
	ContractSymbol string          `json:"contract_symbol"`
	Qty            decimal.Decimal `json:"qty"`
	AvgCost        decimal.Decimal `json:"avg_cost"`
	MarketPrice    decimal.Decimal `json:"market_price"`
	Strike         decimal.Decimal `json:"strike"`
	Expiry         time.Time       `json:"expiry"`
	PutCall        string          `json:"put_call"` // "P" or "C"
}

func (p OptionPosition) MarketValue() decimal.Decimal {
	return p.Qty.Mul(p.MarketPrice)
}

// TotalPNL is the P&L for the whole position, contracts x 100 shares.
func (p OptionPosition) TotalPNL() decimal.Decimal {
	return p.Qty.Mul(p.MarketPrice.Sub(p.AvgCost)).Mul(decimal.NewFromInt(100))
}

// MutualFundPosition is a fund position. Funds price at NAV once a day, so
// MarketPrice here is the last published NAV.
type MutualFundPosition struct {
	Symbol      string          `json:"symbol"`
	Qty         decimal.Decimal `json:"qty"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	MarketPrice decimal.Decimal `json:"market_price"`
}

func (p MutualFundPosition) MarketValue() decimal.Decimal {
	return p.Qty.Mul(p.MarketPrice)
}

func (p MutualFundPosition) PNL() decimal.Decimal {
	return p.Qty.Mul(p.MarketPrice.Sub(p.AvgCost))
}

// AccountSnapshot is a point-in-time view of the brokerage account.
type AccountSnapshot struct {
	GeneratedAt      time.Time        `json:"generated_at"`
	AccountID        string           `json:"account_id"`
	Cash             decimal.Decimal  `json:"cash"`
	BuyingPower      decimal.Decimal  `json:"buying_power"`
	LiquidationValue *decimal.Decimal     `json:"liquidation_value,omitempty"`
	Stocks           []StockPosition      `json:"stocks"`
	Options          []OptionPosition     `json:"options"`
	Funds            []MutualFundPosition `json:"funds,omitempty"`
}

// TotalValue sums cash and position market values. The broker's official
// liquidation value, when present, is preferred by callers that display it.
func (s AccountSnapshot) TotalValue() decimal.Decimal {
	total := s.Cash
	for _, p := range s.Stocks {
		total = total.Add(p.MarketValue())
	}
	for _, p := range s.Options {
		total = total.Add(p.MarketValue())
	}
	for _, p := range s.Funds {
		total = total.Add(p.MarketValue())
	}
	return total
}
