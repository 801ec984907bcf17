package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReportTargetSurvey = "survey"
	ReportTargetUser   = "user"

	ReportOpen = "open"
)

// Report is a user's complaint about a survey or another user.
type Report struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReporterID uuid.UUID `gorm:"type:uuid;index;not null" json:"reporter_id"`
	TargetType string    `gorm:"type:varchar(16);not null;index:idx_reports_target,priority:1" json:"target_type"`
	TargetID   uuid.UUID `gorm:"type:uuid;not null;index:idx_reports_target,priority:2" json:"target_id"`
	Reason     string    `gorm:"type:varchar(200);not null" json:"reason"`
	Status     string    `gorm:"type:varchar(16);not null;default:'open'" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// All lists every persisted model, in dependency order, for migrations.
func All() []any {
	return []any{
		&User{},
		&PointsTransaction{},
		&Survey{},
		&Fill{},
		&Profile{},
		&Report{},
	}
}
