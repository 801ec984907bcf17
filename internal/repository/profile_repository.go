package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	appErr "github.com/taskhall/engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileQuery holds conjunctive match criteria. Empty strings match anything.
type ProfileQuery struct {
	College       string
	Major         string
	MBTI          string
	MinCompletion int
	ExcludeUserID uuid.UUID
}

// ProfileCursor marks the last row of a page in (completion DESC, user_id ASC) order.
type ProfileCursor struct {
	Completion int
	UserID     uuid.UUID
}

type ProfileRepository interface {
	Get(ctx context.Context, userID uuid.UUID, dest *models.Profile) error
	// Save inserts or fully overwrites the profile row.
	Save(ctx context.Context, p *models.Profile) error
	// SearchAfter returns up to limit matches following cursor (from the
	// start when cursor is nil).
	SearchAfter(ctx context.Context, q ProfileQuery, cursor *ProfileCursor, limit int) ([]models.Profile, error)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Get(ctx context.Context, userID uuid.UUID, dest *models.Profile) error {
	if err := r.db.WithContext(ctx).First(dest, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.New(appErr.CodeNotFound, "profile not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get profile failed")
	}
	return nil
}

func (r *profileRepository) Save(ctx context.Context, p *models.Profile) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, UpdateAll: true}).
		Create(p).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "save profile failed")
	}
	return nil
}

func (r *profileRepository) SearchAfter(ctx context.Context, q ProfileQuery, cursor *ProfileCursor, limit int) ([]models.Profile, error) {
	db := r.db.WithContext(ctx).Model(&models.Profile{})
	if q.College != "" {
		db = db.Where(`LOWER(college) LIKE ? ESCAPE '\'`, containsPattern(q.College))
	}
	if q.Major != "" {
		db = db.Where(`LOWER(major) LIKE ? ESCAPE '\'`, containsPattern(q.Major))
	}
	if q.MBTI != "" {
		db = db.Where("mbti = ?", q.MBTI)
	}
	if q.MinCompletion > 0 {
		db = db.Where("completion >= ?", q.MinCompletion)
	}
	if q.ExcludeUserID != uuid.Nil {
		db = db.Where("user_id <> ?", q.ExcludeUserID)
	}
	if cursor != nil {
		db = db.Where("completion < ? OR (completion = ? AND user_id > ?)", cursor.Completion, cursor.Completion, cursor.UserID)
	}

	var out []models.Profile
	if err := db.Order("completion DESC").Order("user_id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "search profiles failed")
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
