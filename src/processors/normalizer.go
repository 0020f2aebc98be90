package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/username/optionledger/src/logger"
	"github.com/username/optionledger/src/models"
	"github.com/username/optionledger/src/parsers"
)

// Normalization failures. These reject a single record; the surrounding
// batch keeps going and counts the record as skipped.
var (
	ErrMissingSymbol = errors.New("transaction has no option symbol or ticker")
	ErrZeroQuantity  = errors.New("transaction has zero quantity")
	ErrBadTimestamp  = errors.New("transaction has no parseable timestamp")
)

// Normalizer converts a classified broker transaction into a canonical
// AssignmentEvent.
type Normalizer struct{}

func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize builds an AssignmentEvent from a transaction already classified
// as assignment-equivalent. A contract symbol that fails to parse does not
// reject the record: the event is built from whatever ticker field the
// broker supplied directly. Unknown numeric fields stay nil so that
// "unknown" is distinguishable from a zero-value transaction.
func (n *Normalizer) Normalize(tx *models.RawTransaction, accountID string) (*models.AssignmentEvent, error) {
	symbol := tx.OptionSymbol()
	ticker := ""
	optionType := ""

	if symbol != "" {
		if contract, err := parsers.ParseOCCSymbol(symbol); err == nil {
			ticker = contract.Ticker
			optionType = contract.Type
		} else {
			logger.L.Warn("Could not parse option symbol, falling back to broker ticker field",
				"symbol", symbol, "error", err)
		}
	}
	if ticker == "" {
		ticker = brokerTicker(tx)
	}
	if ticker == "" {
		return nil, ErrMissingSymbol
	}
	if optionType == "" {
		optionType = putCallType(tx)
	}

	contracts, shares, err := quantities(tx)
	if err != nil {
		return nil, err
	}

	assignedAt, err := timestamp(tx)
	if err != nil {
		return nil, err
	}

	price := pricePerShare(tx, shares)
	var totalAmount *float64
	if price != nil {
		amount := float64(shares) * *price
		totalAmount = &amount
	}

	id := tx.BrokerID()
	if id == "" {
		id = synthesizeID(accountID, symbol, contracts, assignedAt, price)
	}

	relatedOrder := tx.OrderID.String()
	if relatedOrder == "" {
		relatedOrder = tx.RelatedOrderID.String()
	}

	return &models.AssignmentEvent{
		ID:              id,
		AccountID:       accountID,
		OptionSymbol:    symbol,
		Ticker:          ticker,
		OptionType:      optionType,
		Contracts:       contracts,
		Shares:          shares,
		PricePerShare:   price,
		TotalAmount:     totalAmount,
		AssignedAt:      assignedAt,
		TransactionType: tx.TypeCode(),
		RelatedOrderID:  relatedOrder,
		RawPayload:      tx.Raw,
	}, nil
}

// brokerTicker returns the underlying ticker as stated directly by the
// broker, used when the contract symbol is absent or unparseable.
func brokerTicker(tx *models.RawTransaction) string {
	for _, item := range tx.TransferItems {
		if u := item.Instrument.UnderlyingSymbol; u != "" {
			return strings.TrimSpace(u)
		}
	}
	if tx.Instrument != nil && tx.Instrument.UnderlyingSymbol != "" {
		return strings.TrimSpace(tx.Instrument.UnderlyingSymbol)
	}
	return strings.TrimSpace(tx.Symbol)
}

func putCallType(tx *models.RawTransaction) string {
	var putCall string
	for _, item := range tx.TransferItems {
		if strings.EqualFold(item.Instrument.AssetType, "OPTION") && item.Instrument.PutCall != "" {
			putCall = item.Instrument.PutCall
			break
		}
	}
	if putCall == "" && tx.Instrument != nil {
		putCall = tx.Instrument.PutCall
	}
	switch strings.ToUpper(putCall) {
	case "CALL", "C":
		return models.OptionTypeCall
	case "PUT", "P":
		return models.OptionTypePut
	}
	return ""
}

// quantities resolves contract and share counts. Brokers report quantity as
// either contracts or shares; a quantity that is a multiple of 100 and at
// least 100 is taken to be shares.
func quantities(tx *models.RawTransaction) (contracts, shares int64, err error) {
	var qty float64
	switch {
	case tx.Quantity != nil && *tx.Quantity != 0:
		qty = *tx.Quantity
	case tx.LongQuantity != nil || tx.ShortQuantity != nil:
		var long, short float64
		if tx.LongQuantity != nil {
			long = *tx.LongQuantity
		}
		if tx.ShortQuantity != nil {
			short = *tx.ShortQuantity
		}
		qty = long - short
	default:
		for _, item := range tx.TransferItems {
			if strings.EqualFold(item.Instrument.AssetType, "OPTION") && item.Amount != nil {
				qty = *item.Amount
				break
			}
		}
	}

	abs := int64(math.Abs(qty))
	if abs == 0 {
		return 0, 0, ErrZeroQuantity
	}
	if abs%100 == 0 && abs >= 100 {
		return abs / 100, abs, nil
	}
	return abs, abs * 100, nil
}

// pricePerShare resolves the per-share price from the first populated price
// field. netAmount is a total, so it is divided by the share count.
func pricePerShare(tx *models.RawTransaction, shares int64) *float64 {
	if tx.Price != nil {
		p := math.Abs(*tx.Price)
		return &p
	}
	if tx.NetAmount != nil && shares > 0 {
		p := math.Abs(*tx.NetAmount) / float64(shares)
		return &p
	}
	if tx.ExecutionPrice != nil {
		p := math.Abs(*tx.ExecutionPrice)
		return &p
	}
	if tx.AveragePrice != nil {
		p := math.Abs(*tx.AveragePrice)
		return &p
	}
	for _, item := range tx.TransferItems {
		if strings.EqualFold(item.Instrument.AssetType, "OPTION") && item.Price != nil {
			p := math.Abs(*item.Price)
			return &p
		}
	}
	return nil
}

// timestampFields in priority order; values are RFC3339 or bare dates.
var timestampFields = []func(*models.RawTransaction) string{
	func(tx *models.RawTransaction) string { return tx.TransactionDate },
	func(tx *models.RawTransaction) string { return tx.TradeDate },
	func(tx *models.RawTransaction) string { return tx.ExecutionTime },
	func(tx *models.RawTransaction) string { return tx.SettlementDate },
}

func timestamp(tx *models.RawTransaction) (time.Time, error) {
	for _, field := range timestampFields {
		value := strings.TrimSpace(field(tx))
		if value == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse("2006-01-02", value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrBadTimestamp
}

// synthesizeID derives a stable event id when the broker omits one, so that
// re-processing the same underlying event stays idempotent.
func synthesizeID(accountID, symbol string, contracts int64, assignedAt time.Time, price *float64) string {
	priceStr := "NULL"
	if price != nil {
		priceStr = fmt.Sprintf("%.4f", *price)
	}
	content := fmt.Sprintf("%s|%s|%d|%s|%s", accountID, symbol, contracts, assignedAt.UTC().Format(time.RFC3339), priceStr)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}
