package models

import (
	"encoding/json"
	"time"
)

// Option types as recovered from the contract symbol.
const (
	OptionTypeCall = "CALL"
	OptionTypePut  = "PUT"
)

// AssignmentEvent is the canonical record of one option assignment or
// exercise, as persisted in the assignments table. ID is the broker's
// transaction id, or a deterministic hash when the broker omits one.
type AssignmentEvent struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	OptionSymbol   string          `json:"option_symbol"`
	Ticker         string          `json:"ticker"`
	OptionType     string          `json:"option_type,omitempty"` // CALL, PUT or empty when unknown
	Contracts      int64           `json:"contracts"`
	Shares         int64           `json:"shares"`
	PricePerShare  *float64        `json:"price_per_share"` // nil means unknown, not zero
	TotalAmount    *float64        `json:"total_amount"`
	AssignedAt     time.Time       `json:"assigned_at"`
	TransactionType string         `json:"transaction_type,omitempty"`
	RelatedOrderID string          `json:"related_order_id,omitempty"`
	RawPayload     json.RawMessage `json:"raw_payload,omitempty"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// BasisDelta returns the share and cost deltas this event applies to the
// ticker's basis aggregate. Every assignment accrues shares at the event
// price; whether a call was exercised long (stock bought at strike) or
// assigned short cannot be told apart from the transaction record alone, so
// call-away decrements are not modeled. Events without a known price carry
// no basis impact and return ok=false.
func (e *AssignmentEvent) BasisDelta() (sharesDelta int64, costDelta float64, ok bool) {
	if e.PricePerShare == nil {
		return 0, 0, false
	}
	return e.Shares, float64(e.Shares) * *e.PricePerShare, true
}

// BasisAggregate is the running per-ticker cost basis derived from the
// assignment ledger. AvgBasis is always TotalCost / TotalShares while
// TotalShares > 0; it is never stored independently of a recomputation.
type BasisAggregate struct {
	Ticker          string    `json:"ticker"`
	TotalShares     int64     `json:"total_shares"`
	TotalCost       float64   `json:"total_cost"`
	AvgBasis        float64   `json:"avg_basis"`
	LastAssignment  time.Time `json:"last_assignment"`
	AssignmentCount int64     `json:"assignment_count"`
}

// TickerSummary is one row of the per-ticker breakdown in LedgerSummary.
type TickerSummary struct {
	Ticker      string `json:"ticker"`
	Count       int64  `json:"count"`
	TotalShares int64  `json:"total_shares"`
}

// LedgerSummary aggregates the whole ledger for the status view.
type LedgerSummary struct {
	TotalAssignments  int64           `json:"total_assignments"`
	RecentAssignments int64           `json:"recent_assignments_30d"`
	ByTicker          []TickerSummary `json:"assignments_by_ticker"`
}

// SyncSummary reports the outcome of one backfill or check run.
type SyncSummary struct {
	RunID     string         `json:"run_id"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	Processed int            `json:"processed"`
	New       int            `json:"new"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Tickers   map[string]int `json:"tickers"` // new events recorded per ticker
	Events    []AssignmentEvent `json:"events,omitempty"`
}
