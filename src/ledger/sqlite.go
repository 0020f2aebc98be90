package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/optionledger/src/logger"
	"github.com/username/optionledger/src/models"
)

// SQLiteLedger implements Ledger on top of a sqlite database handle. The
// handle is passed in by the caller; the ledger never opens connections of
// its own.
type SQLiteLedger struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db, now: time.Now}
}

// execer covers both *sql.DB and *sql.Tx so the upsert and basis logic can
// run standalone or inside RecordAssignment's transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l *SQLiteLedger) RecordAssignment(ctx context.Context, event *models.AssignmentEvent) (bool, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := l.upsert(ctx, tx, event)
	if err != nil {
		return false, err
	}

	if inserted {
		if sharesDelta, costDelta, ok := event.BasisDelta(); ok {
			if err := l.updateBasis(ctx, tx, event.Ticker, sharesDelta, costDelta, event.AssignedAt); err != nil {
				return false, err
			}
		} else {
			logger.L.Warn("Assignment recorded without price, basis not updated",
				"id", event.ID, "ticker", event.Ticker)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing assignment %s: %w", event.ID, err)
	}
	return inserted, nil
}

func (l *SQLiteLedger) UpsertAssignment(ctx context.Context, event *models.AssignmentEvent) (bool, error) {
	return l.upsert(ctx, l.db, event)
}

func (l *SQLiteLedger) upsert(ctx context.Context, q execer, event *models.AssignmentEvent) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM assignments WHERE id = ?)`, event.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking assignment %s: %w", event.ID, err)
	}

	if exists {
		_, err = q.ExecContext(ctx, `
			UPDATE assignments
			SET price_per_share = ?, total_amount = ?, raw_payload = ?
			WHERE id = ?`,
			nullFloat(event.PricePerShare), nullFloat(event.TotalAmount),
			string(event.RawPayload), event.ID)
		if err != nil {
			return false, fmt.Errorf("updating assignment %s: %w", event.ID, err)
		}
		return false, nil
	}

	recordedAt := event.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = l.now().UTC()
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO assignments (
			id, account_id, option_symbol, ticker, option_type, contracts, shares,
			price_per_share, total_amount, assigned_at, transaction_type,
			related_order_id, raw_payload, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.AccountID, event.OptionSymbol, event.Ticker,
		nullString(event.OptionType), event.Contracts, event.Shares,
		nullFloat(event.PricePerShare), nullFloat(event.TotalAmount),
		event.AssignedAt.UTC().Format(time.RFC3339),
		nullString(event.TransactionType), nullString(event.RelatedOrderID),
		string(event.RawPayload), recordedAt.Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("inserting assignment %s: %w", event.ID, err)
	}
	return true, nil
}

func (l *SQLiteLedger) UpdateBasis(ctx context.Context, ticker string, sharesDelta int64, costDelta float64, assignedAt time.Time) error {
	return l.updateBasis(ctx, l.db, ticker, sharesDelta, costDelta, assignedAt)
}

func (l *SQLiteLedger) updateBasis(ctx context.Context, q execer, ticker string, sharesDelta int64, costDelta float64, assignedAt time.Time) error {
	var (
		totalShares int64
		totalCost   float64
		count       int64
		last        sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT total_shares, total_cost, assignment_count, last_assignment
		FROM assigned_basis WHERE ticker = ?`, ticker).
		Scan(&totalShares, &totalCost, &count, &last)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("reading basis for %s: %w", ticker, err)
	}
	found := err == nil

	totalShares += sharesDelta
	totalCost += costDelta
	if totalShares <= 0 {
		// Position fully called away. Cost carries nothing without shares.
		totalShares = 0
		totalCost = 0
	}
	avgBasis := 0.0
	if totalShares > 0 {
		avgBasis = totalCost / float64(totalShares)
	}

	lastAssignment := assignedAt.UTC().Format(time.RFC3339)
	if last.Valid && last.String > lastAssignment {
		lastAssignment = last.String
	}

	if found {
		_, err = q.ExecContext(ctx, `
			UPDATE assigned_basis
			SET total_shares = ?, total_cost = ?, avg_basis = ?,
			    last_assignment = ?, assignment_count = ?
			WHERE ticker = ?`,
			totalShares, totalCost, avgBasis, lastAssignment, count+1, ticker)
	} else {
		_, err = q.ExecContext(ctx, `
			INSERT INTO assigned_basis
				(ticker, total_shares, total_cost, avg_basis, last_assignment, assignment_count)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ticker, totalShares, totalCost, avgBasis, lastAssignment, 1)
	}
	if err != nil {
		return fmt.Errorf("writing basis for %s: %w", ticker, err)
	}
	return nil
}

const assignmentColumns = `
	id, account_id, option_symbol, ticker, option_type, contracts, shares,
	price_per_share, total_amount, assigned_at, transaction_type,
	related_order_id, raw_payload, recorded_at`

func (l *SQLiteLedger) AssignmentsForTicker(ctx context.Context, ticker string, limit int) ([]models.AssignmentEvent, error) {
	query := `SELECT` + assignmentColumns + `
		FROM assignments WHERE ticker = ? ORDER BY assigned_at DESC`
	args := []any{ticker}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return l.queryEvents(ctx, query, args...)
}

func (l *SQLiteLedger) RecentAssignments(ctx context.Context, days int) ([]models.AssignmentEvent, error) {
	cutoff := l.now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	return l.queryEvents(ctx, `SELECT`+assignmentColumns+`
		FROM assignments WHERE assigned_at >= ? ORDER BY assigned_at DESC`, cutoff)
}

func (l *SQLiteLedger) AllAssignments(ctx context.Context) ([]models.AssignmentEvent, error) {
	return l.queryEvents(ctx, `SELECT`+assignmentColumns+`
		FROM assignments ORDER BY assigned_at DESC`)
}

func (l *SQLiteLedger) queryEvents(ctx context.Context, query string, args ...any) ([]models.AssignmentEvent, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying assignments: %w", err)
	}
	defer rows.Close()

	var events []models.AssignmentEvent
	for rows.Next() {
		var (
			e                         models.AssignmentEvent
			optionType, txType, order sql.NullString
			price, amount             sql.NullFloat64
			rawPayload                sql.NullString
			assignedAt, recordedAt    string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.OptionSymbol, &e.Ticker,
			&optionType, &e.Contracts, &e.Shares, &price, &amount,
			&assignedAt, &txType, &order, &rawPayload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning assignment row: %w", err)
		}
		e.OptionType = optionType.String
		e.TransactionType = txType.String
		e.RelatedOrderID = order.String
		if price.Valid {
			e.PricePerShare = &price.Float64
		}
		if amount.Valid {
			e.TotalAmount = &amount.Float64
		}
		if rawPayload.Valid {
			e.RawPayload = []byte(rawPayload.String)
		}
		e.AssignedAt = parseStoredTime(assignedAt)
		e.RecordedAt = parseStoredTime(recordedAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (l *SQLiteLedger) Basis(ctx context.Context, ticker string) (*models.BasisAggregate, error) {
	var (
		b    models.BasisAggregate
		last sql.NullString
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT ticker, total_shares, total_cost, avg_basis, last_assignment, assignment_count
		FROM assigned_basis WHERE ticker = ?`, ticker).
		Scan(&b.Ticker, &b.TotalShares, &b.TotalCost, &b.AvgBasis, &last, &b.AssignmentCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying basis for %s: %w", ticker, err)
	}
	if last.Valid {
		b.LastAssignment = parseStoredTime(last.String)
	}
	return &b, nil
}

func (l *SQLiteLedger) Summary(ctx context.Context) (*models.LedgerSummary, error) {
	summary := &models.LedgerSummary{}

	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments`).
		Scan(&summary.TotalAssignments); err != nil {
		return nil, fmt.Errorf("counting assignments: %w", err)
	}

	cutoff := l.now().UTC().AddDate(0, 0, -30).Format(time.RFC3339)
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assignments WHERE assigned_at >= ?`, cutoff).
		Scan(&summary.RecentAssignments); err != nil {
		return nil, fmt.Errorf("counting recent assignments: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT ticker, COUNT(*) AS count, SUM(shares) AS total_shares
		FROM assignments GROUP BY ticker ORDER BY count DESC`)
	if err != nil {
		return nil, fmt.Errorf("grouping assignments by ticker: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ts models.TickerSummary
		if err := rows.Scan(&ts.Ticker, &ts.Count, &ts.TotalShares); err != nil {
			return nil, fmt.Errorf("scanning ticker summary: %w", err)
		}
		summary.ByTicker = append(summary.ByTicker, ts)
	}
	return summary, rows.Err()
}

func parseStoredTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	// Rows written by sqlite's CURRENT_TIMESTAMP use this layout.
	if t, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
