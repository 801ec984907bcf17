package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/taskhall/engine/internal/api/middleware"
	"github.com/taskhall/engine/internal/api/types"
	"github.com/taskhall/engine/internal/services"
	"github.com/taskhall/engine/pkg/validation"
)

type ReportsHandler struct {
	reports services.ReportService
}

func NewReportsHandler(reports services.ReportService) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.ReportRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.reports.Create(r.Context(), middleware.GetUserID(r.Context()), services.ReportInput{
		TargetType: req.TargetType,
		TargetID:   uuid.MustParse(req.TargetID),
		Reason:     req.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}
