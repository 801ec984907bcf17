package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FillStatus is the review state of a fill.
type FillStatus string

const (
	FillPending  FillStatus = "pending"
	FillApproved FillStatus = "approved"
	FillRejected FillStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s FillStatus) Terminal() bool {
	return s == FillApproved || s == FillRejected
}

// Fill is one user's completed submission against a survey.
type Fill struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SurveyID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_fills_survey_filler,priority:1" json:"survey_id"`
	FillerID        uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_fills_survey_filler,priority:2" json:"filler_id"`
	DurationSeconds int        `gorm:"not null" json:"duration_seconds"`
	Status          FillStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	PointsAwarded   int64      `gorm:"not null;default:0" json:"points_awarded"`
	ReviewNote      string     `gorm:"type:text" json:"review_note,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (f *Fill) BeforeCreate(tx *gorm.DB) error {
	assignID(&f.ID)
	return nil
}
