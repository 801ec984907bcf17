package models

import (
	"time"

	"github.com/google/uuid"
	appErr "github.com/taskhall/engine/pkg/errors"
	"gorm.io/gorm"
)

// SurveyStatus is the lifecycle state of a survey.
type SurveyStatus string

const (
	SurveyDraft  SurveyStatus = "draft"
	SurveyActive SurveyStatus = "active"
	SurveyClosed SurveyStatus = "closed"
)

// Valid reports whether s is a known status.
func (s SurveyStatus) Valid() bool {
	switch s {
	case SurveyDraft, SurveyActive, SurveyClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s. Transitions only
// move forward; closed is terminal.
func (s SurveyStatus) CanTransitionTo(next SurveyStatus) bool {
	switch s {
	case SurveyDraft:
		return next == SurveyActive || next == SurveyClosed
	case SurveyActive:
		return next == SurveyClosed
	}
	return false
}

// Transition returns next when the move from s is allowed. Leaving the
// closed state fails with CodeAlreadyClosed.
func (s SurveyStatus) Transition(next SurveyStatus) (SurveyStatus, error) {
	if s.CanTransitionTo(next) {
		return next, nil
	}
	if s == SurveyClosed {
		return s, appErr.New(appErr.CodeAlreadyClosed, "survey is already closed")
	}
	return s, appErr.Newf(appErr.CodeConflict, "survey cannot move from %s to %s", s, next)
}

// AcceptsFills reports whether new fills may be submitted in this state.
func (s SurveyStatus) AcceptsFills() bool {
	return s == SurveyActive
}

// Survey is a questionnaire published by a user. RewardPoints is paid to each
// approved filler; PublishCost is what the owner was charged at creation.
type Survey struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey;index:idx_surveys_status_id,priority:2" json:"id"`
	OwnerID          uuid.UUID    `gorm:"type:uuid;index;not null" json:"owner_id"`
	Title            string       `gorm:"type:varchar(200);not null" json:"title"`
	Description      string       `gorm:"type:text" json:"description"`
	Link             string       `gorm:"type:varchar(500);not null" json:"link"`
	RewardPoints     int64        `gorm:"not null;default:0;check:chk_surveys_reward,reward_points >= 0" json:"reward_points"`
	PublishCost      int64        `gorm:"not null;default:0" json:"publish_cost"`
	Deadline         *time.Time   `gorm:"index" json:"deadline"`
	EstimatedMinutes int          `gorm:"not null;default:0" json:"estimated_minutes"`
	Status           SurveyStatus `gorm:"type:varchar(16);not null;index:idx_surveys_status_id,priority:1" json:"status"`
	ClosedAt         *time.Time   `json:"closed_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (s *Survey) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// OpenAt reports whether the survey takes submissions at time now: it must be
// active and, when it has a deadline, the deadline must not have passed.
func (s *Survey) OpenAt(now time.Time) bool {
	if !s.Status.AcceptsFills() {
		return false
	}
	return s.Deadline == nil || now.Before(*s.Deadline)
}
