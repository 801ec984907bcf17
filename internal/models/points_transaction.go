package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointsReason classifies a ledger movement.
type PointsReason string

const (
	ReasonSignupBonus PointsReason = "signup_bonus"
	ReasonPublishCost PointsReason = "publish_cost"
	ReasonFillReward  PointsReason = "fill_reward"
	ReasonAdminAdjust PointsReason = "admin_adjust"
)

// Related entity types referenced from a transaction.
const (
	RelatedSurvey = "survey"
	RelatedFill   = "fill"
	RelatedUser   = "user"
)

// PointsTransaction is an immutable ledger row. A user's balance is the sum of
// Delta over all of that user's rows; BalanceAfter records the running total.
type PointsTransaction struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey;index:idx_points_tx_user_id,priority:2" json:"id"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;index:idx_points_tx_user_id,priority:1" json:"user_id"`
	Delta        int64        `gorm:"not null;check:chk_points_tx_delta,delta <> 0" json:"delta"`
	BalanceAfter int64        `gorm:"not null" json:"balance_after"`
	Reason       PointsReason `gorm:"type:varchar(32);not null" json:"reason"`
	RelatedType  string       `gorm:"type:varchar(32)" json:"related_type,omitempty"`
	RelatedID    string       `gorm:"type:varchar(64)" json:"related_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (PointsTransaction) TableName() string { return "points_transactions" }

func (t *PointsTransaction) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// BeforeUpdate keeps ledger rows append-only.
func (t *PointsTransaction) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrInvalidData
}

// BeforeDelete keeps ledger rows append-only.
func (t *PointsTransaction) BeforeDelete(tx *gorm.DB) error {
	return gorm.ErrInvalidData
}
