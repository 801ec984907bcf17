package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	appErr "github.com/taskhall/engine/pkg/errors"
	"gorm.io/gorm"
)

type ReportRepository interface {
	BaseRepository[models.Report]
	CountByTarget(ctx context.Context, targetType string, targetID uuid.UUID) (int64, error)
}

type reportRepository struct {
	BaseRepository[models.Report]
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{BaseRepository: NewBaseRepository[models.Report](db, "report"), db: db}
}

func (r *reportRepository) CountByTarget(ctx context.Context, targetType string, targetID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Count(&n).Error
	if err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "count reports failed")
	}
	return n, nil
}
