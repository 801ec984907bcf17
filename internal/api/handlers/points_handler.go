package handlers

import (
	"net/http"

	"github.com/taskhall/engine/internal/api/middleware"
	"github.com/taskhall/engine/internal/api/types"
	"github.com/taskhall/engine/internal/repository"
	"github.com/taskhall/engine/internal/services"
)

type PointsHandler struct {
	ledger services.LedgerService
	users  services.UserService
}

func NewPointsHandler(ledger services.LedgerService, users services.UserService) *PointsHandler {
	return &PointsHandler{ledger: ledger, users: users}
}

// Logs lists the caller's ledger entries, newest first. type is earn, spend
// or empty for both.
func (h *PointsHandler) Logs(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())
	q := newQuery(r)
	dir := repository.Direction(q.str("type"))
	page := q.pagination()
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}

	logs, total, err := h.ledger.History(r.Context(), uid, dir, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	acct, err := h.users.Get(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page = page.Normalize()
	writeJSON(w, http.StatusOK, types.PointsLogsResponse{
		Logs:     logs,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
		User:     types.AccountResponse(acct),
	})
}

func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	acct, err := h.users.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.BalanceResponse{Points: acct.Points, ActivityPoints: acct.ActivityPoints})
}
