package handlers

import (
	"net/http"
	"time"

	"github.com/taskhall/engine/internal/api/middleware"
	"github.com/taskhall/engine/internal/api/types"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/services"
	"github.com/taskhall/engine/pkg/validation"
)

type AuthHandler struct {
	auth           services.AuthService
	honorThreshold int
}

func NewAuthHandler(auth services.AuthService, honorThreshold int) *AuthHandler {
	return &AuthHandler{auth: auth, honorThreshold: honorThreshold}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, user, err := h.auth.Register(r.Context(), services.RegisterInput{
		Email:    req.Email,
		Nickname: req.Nickname,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.sessionResponse(session, user))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	session, user, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(session, user))
}

// Logout revokes the presented token. It sits behind Auth, so the token is
// known to be valid here.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r)
	if err := h.auth.Revoke(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) sessionResponse(s *services.Session, u *models.User) types.SessionResponse {
	expiresIn := int64(time.Until(s.ExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return types.SessionResponse{
		AccessToken: s.Token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		User:        types.NewUserResponse(u, h.honorThreshold),
	}
}
