package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskhall/engine/internal/api/middleware"
	"github.com/taskhall/engine/internal/api/types"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/services"
	"github.com/taskhall/engine/pkg/validation"
)

const (
	defaultMatchLimit = 10
	maxMatchLimit     = 50
)

type UsersHandler struct {
	users    services.UserService
	profiles services.ProfileService
}

func NewUsersHandler(users services.UserService, profiles services.ProfileService) *UsersHandler {
	return &UsersHandler{users: users, profiles: profiles}
}

func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	acct, err := h.users.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.AccountResponse(acct))
}

func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateMeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	acct, err := h.users.UpdateNickname(r.Context(), middleware.GetUserID(r.Context()), req.Nickname)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.AccountResponse(acct))
}

func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PatchProfile changes only the fields present in the body; null clears one.
func (h *UsersHandler) PatchProfile(w http.ResponseWriter, r *http.Request) {
	h.saveProfile(w, r, h.profiles.Update)
}

// PutProfile replaces the whole profile; absent fields are cleared.
func (h *UsersHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	h.saveProfile(w, r, h.profiles.Replace)
}

func (h *UsersHandler) saveProfile(w http.ResponseWriter, r *http.Request, save func(context.Context, uuid.UUID, services.ProfilePatch) (*models.Profile, error)) {
	var patch services.ProfilePatch
	if err := decode(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := save(r.Context(), middleware.GetUserID(r.Context()), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Matches searches other users' profiles. The caller never matches
// themselves. Without a college parameter the caller's own college is used;
// an empty one matches any college.
func (h *UsersHandler) Matches(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())
	q := newQuery(r)
	criteria := services.MatchCriteria{
		College:       q.str("college"),
		Major:         q.str("major"),
		MBTI:          q.str("mbti"),
		MinCompletion: q.intVal("min_completion"),
		ExcludeUserID: uid,
	}
	if !r.URL.Query().Has("college") {
		own, err := h.profiles.Get(r.Context(), uid)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if own.College != nil {
			criteria.College = *own.College
		}
	}
	limit := q.intVal("limit")
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}
	if limit <= 0 {
		limit = defaultMatchLimit
	}
	if limit > maxMatchLimit {
		limit = maxMatchLimit
	}

	items, err := services.Collect(h.profiles.Search(r.Context(), criteria), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.MatchesResponse{Items: items, Count: len(items)})
}
