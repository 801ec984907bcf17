package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	appErr "github.com/taskhall/engine/pkg/errors"
	"gorm.io/gorm"
)

// FillReview is the outcome written when a pending fill is decided.
type FillReview struct {
	Status        models.FillStatus
	PointsAwarded int64
	Note          string
	ReviewedAt    time.Time
}

type FillRepository interface {
	BaseRepository[models.Fill]
	WithTx(tx *gorm.DB) FillRepository
	Exists(ctx context.Context, surveyID, fillerID uuid.UUID) (bool, error)
	// Decide applies review to the fill only while it is still pending and
	// reports whether it did.
	Decide(ctx context.Context, id uuid.UUID, review FillReview) (bool, error)
	ListByFiller(ctx context.Context, fillerID uuid.UUID, status models.FillStatus, page Page) ([]models.Fill, int64, error)
	ListBySurvey(ctx context.Context, surveyID uuid.UUID, status models.FillStatus, page Page) ([]models.Fill, int64, error)
}

type fillRepository struct {
	BaseRepository[models.Fill]
	db *gorm.DB
}

func NewFillRepository(db *gorm.DB) FillRepository {
	return &fillRepository{BaseRepository: NewBaseRepository[models.Fill](db, "fill"), db: db}
}

func (r *fillRepository) WithTx(tx *gorm.DB) FillRepository {
	return NewFillRepository(tx)
}

func (r *fillRepository) Create(ctx context.Context, f *models.Fill) error {
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return appErr.Wrap(err, appErr.CodeAlreadyFilled, "survey already filled by this user")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "create fill failed")
	}
	return nil
}

func (r *fillRepository) Exists(ctx context.Context, surveyID, fillerID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Fill{}).
		Where("survey_id = ? AND filler_id = ?", surveyID, fillerID).
		Count(&n).Error
	if err != nil {
		return false, appErr.Wrap(err, appErr.CodeInternal, "check fill failed")
	}
	return n > 0, nil
}

func (r *fillRepository) Decide(ctx context.Context, id uuid.UUID, review FillReview) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Fill{}).
		Where("id = ? AND status = ?", id, models.FillPending).
		Updates(map[string]any{
			"status":         review.Status,
			"points_awarded": review.PointsAwarded,
			"review_note":    review.Note,
			"reviewed_at":    review.ReviewedAt,
		})
	if res.Error != nil {
		return false, appErr.Wrap(res.Error, appErr.CodeInternal, "review fill failed")
	}
	return res.RowsAffected == 1, nil
}

func (r *fillRepository) list(ctx context.Context, column string, id uuid.UUID, status models.FillStatus, page Page) ([]models.Fill, int64, error) {
	scope := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Fill{}).Where(column+" = ?", id)
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}
	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "count fills failed")
	}
	var out []models.Fill
	if err := page.apply(scope()).Order("id DESC").Find(&out).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "list fills failed")
	}
	return out, total, nil
}

func (r *fillRepository) ListByFiller(ctx context.Context, fillerID uuid.UUID, status models.FillStatus, page Page) ([]models.Fill, int64, error) {
	return r.list(ctx, "filler_id", fillerID, status, page)
}

func (r *fillRepository) ListBySurvey(ctx context.Context, surveyID uuid.UUID, status models.FillStatus, page Page) ([]models.Fill, int64, error) {
	return r.list(ctx, "survey_id", surveyID, status, page)
}
