package handlers

import (
	"net/http"

	"github.com/taskhall/engine/internal/api/middleware"
	"github.com/taskhall/engine/internal/api/types"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/services"
	"github.com/taskhall/engine/pkg/validation"
)

type FillsHandler struct {
	fills services.FillService
}

func NewFillsHandler(fills services.FillService) *FillsHandler {
	return &FillsHandler{fills: fills}
}

func (h *FillsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	filter := services.FillFilter{Status: models.FillStatus(q.str("status")), Pagination: q.pagination()}
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := h.fills.ListForUser(r.Context(), middleware.GetUserID(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewPage(items, total, filter.Pagination))
}

func (h *FillsHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.ReviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	decision, err := services.ParseDecision(req.Verdict())
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.fills.Review(r.Context(), id, middleware.GetUserID(r.Context()), decision, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
