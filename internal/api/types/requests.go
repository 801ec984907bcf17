package types

import "time"

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Nickname string `json:"nickname" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateMeRequest struct {
	Nickname string `json:"nickname" validate:"required,max=64"`
}

type PublishSurveyRequest struct {
	Title            string     `json:"title" validate:"required,max=200"`
	Description      string     `json:"description" validate:"max=5000"`
	Link             string     `json:"link" validate:"required,url,max=500"`
	RewardPoints     int64      `json:"reward_points" validate:"gte=0,lte=1000000"`
	EstimatedMinutes int        `json:"estimated_minutes" validate:"gte=0"`
	Deadline         *time.Time `json:"deadline"`
}

// SubmitFillRequest leaves range checks on duration to the fill workflow,
// which reports them as duration_out_of_range.
type SubmitFillRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

// ReviewRequest takes either a decision verb or the resulting status.
type ReviewRequest struct {
	Decision string `json:"decision"`
	Status   string `json:"status"`
	Note     string `json:"note" validate:"max=500"`
}

func (r ReviewRequest) Verdict() string {
	if r.Decision != "" {
		return r.Decision
	}
	return r.Status
}

type ReportRequest struct {
	TargetType string `json:"target_type" validate:"required,oneof=survey user"`
	TargetID   string `json:"target_id" validate:"required,uuid"`
	Reason     string `json:"reason" validate:"required,max=200"`
}
