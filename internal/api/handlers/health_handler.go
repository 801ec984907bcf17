package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/taskhall/engine/internal/api/types"
	"github.com/taskhall/engine/pkg/database"
	appErr "github.com/taskhall/engine/pkg/errors"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler { return &HealthHandler{db: db} }

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, types.NewError(appErr.CodeUnavailable, "database not configured"))
		return
	}
	if err := database.Ping(r.Context(), h.db); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, types.NewError(appErr.CodeUnavailable, "database unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
