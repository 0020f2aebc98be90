package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/optionledger/src/ledger"
	"github.com/username/optionledger/src/logger"
	"github.com/username/optionledger/src/models"
	"github.com/username/optionledger/src/security/validation"
	"github.com/username/optionledger/src/services"
	"github.com/username/optionledger/src/utils"
)

// AssignmentHandler exposes the assignment ledger over HTTP. All routes are
// read-only projections except /check, which triggers a sync of the recent
// window.
type AssignmentHandler struct {
	ledger       ledger.Ledger
	syncService  services.SyncService
	lookbackDays int
}

func NewAssignmentHandler(ldg ledger.Ledger, syncService services.SyncService, lookbackDays int) *AssignmentHandler {
	return &AssignmentHandler{
		ledger:       ldg,
		syncService:  syncService,
		lookbackDays: lookbackDays,
	}
}

// RegisterRoutes mounts the handler under the given router.
func (h *AssignmentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/summary", h.HandleSummary)
	r.Get("/recent", h.HandleRecent)
	r.Get("/ticker/{ticker}", h.HandleTicker)
	r.Post("/check", h.HandleCheck)
}

func (h *AssignmentHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.Summary(r.Context())
	if err != nil {
		logger.L.Error("Failed to build ledger summary", "error", err)
		utils.SendJSONError(w, "failed to build summary", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}

func (h *AssignmentHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	days := 7
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil {
			utils.SendJSONError(w, "days must be an integer", http.StatusBadRequest)
			return
		}
		if err := validation.ValidateLookbackDays(parsed); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		days = parsed
	}

	events, err := h.ledger.RecentAssignments(r.Context(), days)
	if err != nil {
		logger.L.Error("Failed to query recent assignments", "days", days, "error", err)
		utils.SendJSONError(w, "failed to query recent assignments", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []models.AssignmentEvent{}
	}
	utils.SendJSON(w, events, http.StatusOK)
}

func (h *AssignmentHandler) HandleTicker(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	if err := validation.ValidateTicker(ticker); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	basis, err := h.ledger.Basis(r.Context(), ticker)
	if err != nil {
		logger.L.Error("Failed to query basis", "ticker", ticker, "error", err)
		utils.SendJSONError(w, "failed to query basis", http.StatusInternalServerError)
		return
	}
	events, err := h.ledger.AssignmentsForTicker(r.Context(), ticker, 10)
	if err != nil {
		logger.L.Error("Failed to query assignments", "ticker", ticker, "error", err)
		utils.SendJSONError(w, "failed to query assignments", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []models.AssignmentEvent{}
	}

	utils.SendJSON(w, map[string]any{
		"ticker":             ticker,
		"basis":              basis,
		"recent_assignments": events,
	}, http.StatusOK)
}

func (h *AssignmentHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	summary, err := h.syncService.CheckRecent(r.Context(), h.lookbackDays)
	if err != nil {
		if errors.Is(err, services.ErrBrokerUnavailable) {
			utils.SendJSONError(w, fmt.Sprintf("broker unavailable: %v", err), http.StatusBadGateway)
			return
		}
		utils.SendJSONError(w, "assignment check failed", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}
