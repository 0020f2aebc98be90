package services

import (
	"context"
	"errors"
	"time"

	"github.com/username/optionledger/src/models"
)

// Define common service errors
var (
	ErrBrokerUnavailable = errors.New("broker request failed")
	ErrNoAccount         = errors.New("no brokerage account configured")
)

// BrokerClient is the external brokerage collaborator. Implementations
// deliver raw transaction records and account snapshots; the core never
// inspects their wire protocol.
type BrokerClient interface {
	// Transactions returns all raw transaction records for the account in
	// [start, end].
	Transactions(ctx context.Context, accountID string, start, end time.Time) ([]models.RawTransaction, error)

	// AccountSnapshot returns the current positions, cash and buying power.
	AccountSnapshot(ctx context.Context) (*models.AccountSnapshot, error)
}

// SyncService drives the classify -> normalize -> record pipeline across a
// historical window. Safe to invoke repeatedly over overlapping windows;
// idempotency is guaranteed by the ledger's upsert keyed on event id.
type SyncService interface {
	// Backfill processes all broker transactions in [start, end]. A broker
	// failure is returned alongside an empty summary; per-record failures
	// only increment the summary's Skipped/Failed counts.
	Backfill(ctx context.Context, start, end time.Time) (models.SyncSummary, error)

	// CheckRecent backfills the trailing lookback window.
	CheckRecent(ctx context.Context, lookbackDays int) (models.SyncSummary, error)
}
