package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/username/optionledger/src/ledger"
	"github.com/username/optionledger/src/logger"
	"github.com/username/optionledger/src/models"
	"github.com/username/optionledger/src/processors"
)

// AssignmentSyncService implements SyncService against a broker collaborator
// and an assignment ledger.
type AssignmentSyncService struct {
	broker     BrokerClient
	ledger     ledger.Ledger
	classifier *processors.Classifier
	normalizer *processors.Normalizer
	accountID  string
	now        func() time.Time
}

func NewAssignmentSyncService(broker BrokerClient, ldg ledger.Ledger, accountID string) *AssignmentSyncService {
	return &AssignmentSyncService{
		broker:     broker,
		ledger:     ldg,
		classifier: processors.NewClassifier(),
		normalizer: processors.NewNormalizer(),
		accountID:  accountID,
		now:        time.Now,
	}
}

func (s *AssignmentSyncService) Backfill(ctx context.Context, start, end time.Time) (models.SyncSummary, error) {
	summary := models.SyncSummary{
		RunID:   uuid.NewString(),
		Start:   start,
		End:     end,
		Tickers: map[string]int{},
	}
	log := logger.FromContext(ctx).With("runID", summary.RunID)

	txs, err := s.broker.Transactions(ctx, s.accountID, start, end)
	if err != nil {
		log.Error("Failed to fetch transactions from broker",
			"start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"), "error", err)
		return summary, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}

	for i := range txs {
		tx := &txs[i]
		summary.Processed++

		label, ok := s.classifier.Classify(tx)
		if !ok {
			continue
		}

		event, err := s.normalizer.Normalize(tx, s.accountID)
		if err != nil {
			summary.Skipped++
			log.Warn("Skipping assignment-like transaction", "type", tx.TypeCode(), "error", err)
			continue
		}
		if event.TransactionType == "" {
			event.TransactionType = label
		}

		inserted, err := s.ledger.RecordAssignment(ctx, event)
		if err != nil {
			summary.Failed++
			log.Error("Failed to record assignment", "id", event.ID, "ticker", event.Ticker, "error", err)
			continue
		}
		if inserted {
			summary.New++
			summary.Tickers[event.Ticker]++
			summary.Events = append(summary.Events, *event)
			log.Info("Recorded assignment",
				"id", event.ID, "ticker", event.Ticker, "shares", event.Shares,
				"price", priceString(event.PricePerShare))
		} else {
			log.Debug("Assignment already recorded", "id", event.ID)
		}
	}

	log.Info("Assignment sync finished",
		"processed", summary.Processed, "new", summary.New,
		"skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

func (s *AssignmentSyncService) CheckRecent(ctx context.Context, lookbackDays int) (models.SyncSummary, error) {
	end := s.now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)
	return s.Backfill(ctx, start, end)
}

func priceString(price *float64) string {
	if price == nil {
		return "TBD"
	}
	return fmt.Sprintf("$%.2f", *price)
}
