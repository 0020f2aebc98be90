package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optionledger/src/database"
	"github.com/username/optionledger/src/ledger"
	"github.com/username/optionledger/src/logger"
	"github.com/username/optionledger/src/models"
	"github.com/username/optionledger/src/services"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

type fakeSync struct {
	summary models.SyncSummary
	err     error
}

func (f *fakeSync) Backfill(ctx context.Context, start, end time.Time) (models.SyncSummary, error) {
	return f.summary, f.err
}

func (f *fakeSync) CheckRecent(ctx context.Context, lookbackDays int) (models.SyncSummary, error) {
	return f.summary, f.err
}

func setupServer(t *testing.T, sync services.SyncService) (*httptest.Server, ledger.Ledger) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	ldg := ledger.NewSQLiteLedger(db)

	r := chi.NewRouter()
	handler := NewAssignmentHandler(ldg, sync, 3)
	r.Route("/api/assignments", handler.RegisterRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, ldg
}

func seedAssignment(t *testing.T, ldg ledger.Ledger, id, ticker string, daysAgo int) {
	t.Helper()
	price := 35.00
	_, err := ldg.RecordAssignment(context.Background(), &models.AssignmentEvent{
		ID:              id,
		AccountID:       "acct-1",
		OptionSymbol:    ticker + "  250930P00035000",
		Ticker:          ticker,
		OptionType:      models.OptionTypePut,
		Contracts:       1,
		Shares:          100,
		PricePerShare:   &price,
		AssignedAt:      time.Now().UTC().AddDate(0, 0, -daysAgo),
		TransactionType: "ASSIGNMENT",
	})
	require.NoError(t, err)
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHandleSummary(t *testing.T) {
	srv, ldg := setupServer(t, &fakeSync{})
	seedAssignment(t, ldg, "e1", "INTC", 1)
	seedAssignment(t, ldg, "e2", "INTC", 2)
	seedAssignment(t, ldg, "e3", "AAPL", 5)

	var summary models.LedgerSummary
	code := getJSON(t, srv.URL+"/api/assignments/summary", &summary)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(3), summary.TotalAssignments)
	require.Len(t, summary.ByTicker, 2)
	assert.Equal(t, "INTC", summary.ByTicker[0].Ticker)
	assert.Equal(t, int64(2), summary.ByTicker[0].Count)
}

func TestHandleRecent(t *testing.T) {
	srv, ldg := setupServer(t, &fakeSync{})
	seedAssignment(t, ldg, "e1", "INTC", 1)
	seedAssignment(t, ldg, "e2", "AAPL", 20)

	var events []models.AssignmentEvent
	code := getJSON(t, srv.URL+"/api/assignments/recent?days=7", &events)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, events, 1)
	assert.Equal(t, "INTC", events[0].Ticker)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/assignments/recent?days=abc", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/assignments/recent?days=-1", nil))
}

func TestHandleTicker(t *testing.T) {
	srv, ldg := setupServer(t, &fakeSync{})
	seedAssignment(t, ldg, "e1", "INTC", 1)

	var body struct {
		Ticker string                   `json:"ticker"`
		Basis  *models.BasisAggregate   `json:"basis"`
		Events []models.AssignmentEvent `json:"recent_assignments"`
	}
	code := getJSON(t, srv.URL+"/api/assignments/ticker/intc", &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "INTC", body.Ticker)
	require.NotNil(t, body.Basis)
	assert.Equal(t, int64(100), body.Basis.TotalShares)
	assert.Len(t, body.Events, 1)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/assignments/ticker/BAD;TICKER", nil))
}

func TestHandleCheck(t *testing.T) {
	sync := &fakeSync{summary: models.SyncSummary{New: 1, Processed: 2}}
	srv, _ := setupServer(t, sync)

	resp, err := http.Post(srv.URL+"/api/assignments/check", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary models.SyncSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 1, summary.New)
}

func TestHandleCheckBrokerDown(t *testing.T) {
	sync := &fakeSync{err: fmt.Errorf("%w: %v", services.ErrBrokerUnavailable, errors.New("timeout"))}
	srv, _ := setupServer(t, sync)

	resp, err := http.Post(srv.URL+"/api/assignments/check", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
