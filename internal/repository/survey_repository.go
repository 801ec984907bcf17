package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	appErr "github.com/taskhall/engine/pkg/errors"
	"gorm.io/gorm"
)

// SurveyQuery filters survey listings. Zero values mean no constraint.
type SurveyQuery struct {
	Status     models.SurveyStatus
	OwnerID    uuid.UUID
	MinReward  int64
	MaxMinutes int
	// Keyword matches title or description, case-insensitively.
	Keyword string
}

type SurveyRepository interface {
	BaseRepository[models.Survey]
	WithTx(tx *gorm.DB) SurveyRepository
	List(ctx context.Context, q SurveyQuery, page Page) ([]models.Survey, int64, error)
	// Close moves a survey to closed unless it already is. It reports whether
	// this call performed the transition.
	Close(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Survey, error)
}

type surveyRepository struct {
	BaseRepository[models.Survey]
	db *gorm.DB
}

func NewSurveyRepository(db *gorm.DB) SurveyRepository {
	return &surveyRepository{BaseRepository: NewBaseRepository[models.Survey](db, "survey"), db: db}
}

func (r *surveyRepository) WithTx(tx *gorm.DB) SurveyRepository {
	return NewSurveyRepository(tx)
}

func (r *surveyRepository) filtered(ctx context.Context, q SurveyQuery) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&models.Survey{})
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.OwnerID != uuid.Nil {
		db = db.Where("owner_id = ?", q.OwnerID)
	}
	if q.MinReward > 0 {
		db = db.Where("reward_points >= ?", q.MinReward)
	}
	if q.MaxMinutes > 0 {
		db = db.Where("estimated_minutes <= ?", q.MaxMinutes)
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		pattern := containsPattern(kw)
		db = db.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return db
}

func (r *surveyRepository) List(ctx context.Context, q SurveyQuery, page Page) ([]models.Survey, int64, error) {
	var total int64
	if err := r.filtered(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "count surveys failed")
	}
	var out []models.Survey
	if err := page.apply(r.filtered(ctx, q)).Order("id DESC").Find(&out).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "list surveys failed")
	}
	return out, total, nil
}

func (r *surveyRepository) Close(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Survey{}).
		Where("id = ? AND status <> ?", id, models.SurveyClosed).
		Updates(map[string]any{"status": models.SurveyClosed, "closed_at": at})
	if res.Error != nil {
		return false, appErr.Wrap(res.Error, appErr.CodeInternal, "close survey failed")
	}
	return res.RowsAffected == 1, nil
}

func (r *surveyRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Survey, error) {
	var out []models.Survey
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline <= ?", models.SurveyActive, now).
		Order("deadline").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list overdue surveys failed")
	}
	return out, nil
}
