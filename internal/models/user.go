package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultCreditScore = 80
	MaxCreditScore     = 100
	MinCreditScore     = 0
)

// User represents a platform user. Points is the cached ledger balance and
// is only ever changed together with a PointsTransaction row.
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email" validate:"required,email"`
	Nickname       string    `gorm:"type:varchar(64);not null" json:"nickname" validate:"required"`
	PasswordHash   string    `gorm:"not null" json:"-"`
	CreditScore    int       `gorm:"not null;default:80;check:chk_users_credit_score,credit_score >= 0 AND credit_score <= 100" json:"credit_score"`
	Points         int64     `gorm:"not null;default:0;check:chk_users_points,points >= 0" json:"points"`
	ActivityPoints int64     `gorm:"not null;default:0" json:"activity_points"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// HasHonor reports whether the credit score reaches the honor threshold.
func (u *User) HasHonor(threshold int) bool {
	return u.CreditScore >= threshold
}

// ClampCredit keeps a credit score within its 0..100 range.
func ClampCredit(score int) int {
	if score < MinCreditScore {
		return MinCreditScore
	}
	if score > MaxCreditScore {
		return MaxCreditScore
	}
	return score
}

// assignID gives a new row a time-ordered UUIDv7 unless one was set. Ordering
// by id is therefore ordering by creation.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.Must(uuid.NewV7())
	}
}
