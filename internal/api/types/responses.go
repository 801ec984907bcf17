package types

import (
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/services"
)

type UserResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Nickname       string `json:"nickname"`
	CreditScore    int    `json:"credit_score"`
	Points         int64  `json:"points"`
	ActivityPoints int64  `json:"activity_points"`
	HasHonor       bool   `json:"has_honor"`
}

func NewUserResponse(u *models.User, honorThreshold int) UserResponse {
	return UserResponse{
		ID:             u.ID.String(),
		Email:          u.Email,
		Nickname:       u.Nickname,
		CreditScore:    u.CreditScore,
		Points:         u.Points,
		ActivityPoints: u.ActivityPoints,
		HasHonor:       u.HasHonor(honorThreshold),
	}
}

func AccountResponse(a *services.Account) UserResponse {
	r := NewUserResponse(a.User, 0)
	r.HasHonor = a.HasHonor
	return r
}

type SessionResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

// PageResponse is a page of items with the total count before paging.
type PageResponse[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func NewPage[T any](items []T, total int64, p services.Pagination) PageResponse[T] {
	if items == nil {
		items = []T{}
	}
	p = p.Normalize()
	return PageResponse[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}

type PointsLogsResponse struct {
	Logs     []models.PointsTransaction `json:"logs"`
	Total    int64                      `json:"total"`
	Page     int                        `json:"page"`
	PageSize int                        `json:"page_size"`
	User     UserResponse               `json:"user"`
}

type BalanceResponse struct {
	Points         int64 `json:"points"`
	ActivityPoints int64 `json:"activity_points"`
}

type MatchesResponse struct {
	Items []models.Profile `json:"items"`
	Count int              `json:"count"`
}
