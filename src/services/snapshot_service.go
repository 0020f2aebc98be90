package services

import (
	"context"

	"github.com/username/optionledger/src/logger"
	"github.com/username/optionledger/src/models"
)

// SnapshotService produces account snapshots and, when asked, piggybacks an
// assignment check on each run. The snapshot must always be published even
// when the assignment check fails, so that path only ever logs.
type SnapshotService struct {
	broker           BrokerClient
	sync             SyncService
	CheckAssignments bool
	LookbackDays     int
}

func NewSnapshotService(broker BrokerClient, sync SyncService, lookbackDays int) *SnapshotService {
	return &SnapshotService{
		broker:           broker,
		sync:             sync,
		CheckAssignments: true,
		LookbackDays:     lookbackDays,
	}
}

// Run fetches the account snapshot, optionally checking the recent window
// for new assignments first. New assignments are surfaced as warnings; an
// assignment-check failure never fails the snapshot.
func (s *SnapshotService) Run(ctx context.Context) (*models.AccountSnapshot, error) {
	if s.CheckAssignments {
		summary, err := s.sync.CheckRecent(ctx, s.LookbackDays)
		switch {
		case err != nil:
			logger.L.Warn("Assignment check failed, continuing with snapshot", "error", err)
		case summary.New > 0:
			logger.L.Warn("NEW OPTION ASSIGNMENTS DETECTED", "count", summary.New)
			for _, event := range summary.Events {
				logger.L.Warn("Assignment",
					"ticker", event.Ticker, "shares", event.Shares,
					"contract", event.OptionSymbol, "price", priceString(event.PricePerShare))
			}
		}
	}

	return s.broker.AccountSnapshot(ctx)
}
