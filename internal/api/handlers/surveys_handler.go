package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/taskhall/engine/internal/api/middleware"
	"github.com/taskhall/engine/internal/api/types"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/services"
	appErr "github.com/taskhall/engine/pkg/errors"
	"github.com/taskhall/engine/pkg/validation"
)

type SurveysHandler struct {
	surveys services.SurveyService
	fills   services.FillService
}

func NewSurveysHandler(surveys services.SurveyService, fills services.FillService) *SurveysHandler {
	return &SurveysHandler{surveys: surveys, fills: fills}
}

// List is public. mine=true restricts the listing to the caller's own
// surveys and then needs a session.
func (h *SurveysHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	filter := services.SurveyFilter{
		Status:     models.SurveyStatus(q.str("status")),
		MinReward:  int64(q.intVal("min_points")),
		MaxMinutes: q.intVal("max_minutes"),
		Keyword:    q.str("keyword"),
		Pagination: q.pagination(),
	}
	mine := q.boolVal("mine")
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}
	if mine {
		uid := middleware.GetUserID(r.Context())
		if uid == uuid.Nil {
			writeError(w, r, appErr.New(appErr.CodeUnauthenticated, "login required for mine=true"))
			return
		}
		filter.OwnerID = uid
	}

	items, total, err := h.surveys.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewPage(items, total, filter.Pagination))
}

func (h *SurveysHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.PublishSurveyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.surveys.Publish(r.Context(), middleware.GetUserID(r.Context()), services.PublishInput{
		Title:            req.Title,
		Description:      req.Description,
		Link:             req.Link,
		RewardPoints:     req.RewardPoints,
		Deadline:         req.Deadline,
		EstimatedMinutes: req.EstimatedMinutes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *SurveysHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.surveys.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SurveysHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.surveys.Close(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SurveysHandler) SubmitFill(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.SubmitFillRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.fills.Submit(r.Context(), id, middleware.GetUserID(r.Context()), req.DurationSeconds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// ListFills is restricted to the survey owner.
func (h *SurveysHandler) ListFills(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := newQuery(r)
	filter := services.FillFilter{Status: models.FillStatus(q.str("status")), Pagination: q.pagination()}
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := h.fills.ListForSurvey(r.Context(), id, middleware.GetUserID(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewPage(items, total, filter.Pagination))
}
