package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString decodes a JSON value that brokers send inconsistently as either
// a string or a number (transaction ids, order ids).
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// Instrument describes the traded product inside a broker transaction.
type Instrument struct {
	AssetType        string   `json:"assetType"`
	Symbol           string   `json:"symbol"`
	UnderlyingSymbol string   `json:"underlyingSymbol"`
	PutCall          string   `json:"putCall"`
	StrikePrice      *float64 `json:"strikePrice"`
	ExpirationDate   string   `json:"expirationDate"`
}

// TransferItem is one leg of a multi-leg broker transaction.
type TransferItem struct {
	Instrument Instrument `json:"instrument"`
	Amount     *float64   `json:"amount"`
	Price      *float64   `json:"price"`
	Cost       *float64   `json:"cost"`
}

// RawTransaction is the broker transaction record as delivered by the feed.
// Brokers disagree on which field carries what, so every field here is
// optional; fields we do not model at all are retained in Extra, and the
// byte-exact original payload is kept in Raw for audit.
type RawTransaction struct {
	TransactionID   FlexString     `json:"transactionId"`
	ActivityID      FlexString     `json:"activityId"`
	Type            string         `json:"type"`
	TransactionType string         `json:"transactionType"`
	Description     string         `json:"description"`
	Symbol          string         `json:"symbol"`
	Instrument      *Instrument    `json:"instrument"`
	TransferItems   []TransferItem `json:"transferItems"`

	Quantity      *float64 `json:"quantity"`
	LongQuantity  *float64 `json:"longQuantity"`
	ShortQuantity *float64 `json:"shortQuantity"`

	Price          *float64 `json:"price"`
	NetAmount      *float64 `json:"netAmount"`
	ExecutionPrice *float64 `json:"executionPrice"`
	AveragePrice   *float64 `json:"averagePrice"`

	TransactionDate string `json:"transactionDate"`
	TradeDate       string `json:"tradeDate"`
	ExecutionTime   string `json:"executionTime"`
	SettlementDate  string `json:"settlementDate"`

	OrderID        FlexString `json:"orderId"`
	RelatedOrderID FlexString `json:"relatedOrderId"`

	Extra map[string]json.RawMessage `json:"-"`
	Raw   json.RawMessage            `json:"-"`
}

// knownTransactionKeys are the payload keys mapped onto typed fields above.
var knownTransactionKeys = map[string]struct{}{
	"transactionId": {}, "activityId": {}, "type": {}, "transactionType": {},
	"description": {}, "symbol": {}, "instrument": {}, "transferItems": {},
	"quantity": {}, "longQuantity": {}, "shortQuantity": {},
	"price": {}, "netAmount": {}, "executionPrice": {}, "averagePrice": {},
	"transactionDate": {}, "tradeDate": {}, "executionTime": {},
	"settlementDate": {}, "orderId": {}, "relatedOrderId": {},
}

func (t *RawTransaction) UnmarshalJSON(data []byte) error {
	type alias RawTransaction
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key := range fields {
		if _, ok := knownTransactionKeys[key]; ok {
			delete(fields, key)
		}
	}
	if len(fields) > 0 {
		a.Extra = fields
	}

	*t = RawTransaction(a)
	t.Raw = append([]byte(nil), data...)
	return nil
}

// TypeCode returns the broker's transaction type, whichever field carries it.
func (t *RawTransaction) TypeCode() string {
	if t.TransactionType != "" {
		return strings.TrimSpace(t.TransactionType)
	}
	return strings.TrimSpace(t.Type)
}

// BrokerID returns the broker-assigned transaction id, if any.
func (t *RawTransaction) BrokerID() string {
	if t.TransactionID != "" {
		return t.TransactionID.String()
	}
	return t.ActivityID.String()
}

// OptionSymbol returns the option contract symbol, preferring a dedicated
// OPTION instrument leg over the top-level symbol field.
func (t *RawTransaction) OptionSymbol() string {
	for _, item := range t.TransferItems {
		if strings.EqualFold(item.Instrument.AssetType, "OPTION") && item.Instrument.Symbol != "" {
			return item.Instrument.Symbol
		}
	}
	if t.Instrument != nil && t.Instrument.Symbol != "" {
		return t.Instrument.Symbol
	}
	return t.Symbol
}
