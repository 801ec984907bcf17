package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// profileFieldCount is the number of fields that count towards completion.
const profileFieldCount = 12

// Profile holds the searchable attributes a user reports about themselves.
// Completion is derived from the other fields on every write.
type Profile struct {
	UserID                 uuid.UUID                   `gorm:"type:uuid;primaryKey;index:idx_profiles_rank,priority:2" json:"user_id"`
	Gender                 *string                     `gorm:"type:varchar(16)" json:"gender" validate:"omitempty,oneof=male female other secret 男 女 其他 保密"`
	Age                    *int                        `json:"age" validate:"omitempty,min=0,max=120"`
	Grade                  *string                     `gorm:"type:varchar(10)" json:"grade" validate:"omitempty,max=10"`
	College                *string                     `gorm:"type:varchar(50);index" json:"college" validate:"omitempty,max=50"`
	Major                  *string                     `gorm:"type:varchar(50);index" json:"major" validate:"omitempty,max=50"`
	MBTI                   *string                     `gorm:"column:mbti;type:varchar(4);index" json:"mbti" validate:"omitempty,oneof=INTJ INTP ENTJ ENTP INFJ INFP ENFJ ENFP ISTJ ISFJ ESTJ ESFJ ISTP ISFP ESTP ESFP"`
	CurrentStatus          *string                     `gorm:"type:varchar(100)" json:"current_status" validate:"omitempty,max=100"`
	Interests              datatypes.JSONSlice[string] `json:"interests" validate:"max=20,dive,max=20"`
	Organizations          datatypes.JSONSlice[string] `json:"organizations" validate:"max=20,dive,max=20"`
	ConsumptionPreferences datatypes.JSONSlice[string] `json:"consumption_preferences" validate:"max=20,dive,max=20"`
	CareerIntention        datatypes.JSONSlice[string] `json:"career_intention" validate:"max=20,dive,max=20"`
	Skills                 datatypes.JSONSlice[string] `json:"skills" validate:"max=20,dive,max=20"`
	Completion             int                         `gorm:"not null;default:0;index:idx_profiles_rank,priority:1,sort:desc" json:"profile_completion"`
	UpdatedAt              time.Time                   `json:"updated_at"`
}

// ComputeCompletion returns the percentage (0..100) of filled fields.
func (p *Profile) ComputeCompletion() int {
	filled := 0
	for _, s := range []*string{p.Gender, p.Grade, p.College, p.Major, p.MBTI, p.CurrentStatus} {
		if s != nil && *s != "" {
			filled++
		}
	}
	if p.Age != nil && *p.Age != 0 {
		filled++
	}
	for _, list := range [][]string{p.Interests, p.Organizations, p.ConsumptionPreferences, p.CareerIntention, p.Skills} {
		if len(list) > 0 {
			filled++
		}
	}
	return filled * 100 / profileFieldCount
}

// Normalize replaces nil lists with empty ones and refreshes Completion.
func (p *Profile) Normalize() {
	for _, list := range []*datatypes.JSONSlice[string]{&p.Interests, &p.Organizations, &p.ConsumptionPreferences, &p.CareerIntention, &p.Skills} {
		if *list == nil {
			*list = datatypes.JSONSlice[string]{}
		}
	}
	p.Completion = p.ComputeCompletion()
}
