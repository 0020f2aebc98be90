package ledger

import (
	"context"
	"time"

	"github.com/username/optionledger/src/models"
)

// Ledger is the durable assignment store. Implementations guarantee that
// RecordAssignment applies the event upsert and its basis update as one
// atomic unit: both commit or both roll back.
type Ledger interface {
	// RecordAssignment upserts the event and, when the event is new and
	// carries a known price, applies its basis delta in the same
	// transaction. Returns true when a new row was inserted.
	RecordAssignment(ctx context.Context, event *models.AssignmentEvent) (bool, error)

	// UpsertAssignment inserts the event if its id is absent; otherwise it
	// refreshes the mutable fields (price, amount, raw payload) while
	// preserving the original recorded_at. Returns true on insert.
	UpsertAssignment(ctx context.Context, event *models.AssignmentEvent) (bool, error)

	// UpdateBasis adjusts the ticker's basis aggregate by the signed share
	// and cost deltas, creating the row if absent. The average basis is
	// always recomputed as total_cost / total_shares.
	UpdateBasis(ctx context.Context, ticker string, sharesDelta int64, costDelta float64, assignedAt time.Time) error

	AssignmentsForTicker(ctx context.Context, ticker string, limit int) ([]models.AssignmentEvent, error)
	RecentAssignments(ctx context.Context, days int) ([]models.AssignmentEvent, error)
	AllAssignments(ctx context.Context) ([]models.AssignmentEvent, error)
	Basis(ctx context.Context, ticker string) (*models.BasisAggregate, error)
	Summary(ctx context.Context) (*models.LedgerSummary, error)
}
