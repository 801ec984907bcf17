package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	appErr "github.com/taskhall/engine/pkg/errors"
	"gorm.io/gorm"
)

// Direction selects ledger rows by the sign of their delta.
type Direction string

const (
	DirectionAll   Direction = "all"
	DirectionEarn  Direction = "earn"
	DirectionSpend Direction = "spend"
)

// Valid reports whether d is a known direction; empty means all.
func (d Direction) Valid() bool {
	switch d {
	case "", DirectionAll, DirectionEarn, DirectionSpend:
		return true
	}
	return false
}

// LedgerRepository stores the append-only points log. It has no update or
// delete path.
type LedgerRepository interface {
	WithTx(tx *gorm.DB) LedgerRepository
	Append(ctx context.Context, entry *models.PointsTransaction) error
	// After returns up to limit rows older than cursor (all rows when cursor
	// is uuid.Nil), newest first.
	After(ctx context.Context, userID uuid.UUID, dir Direction, cursor uuid.UUID, limit int) ([]models.PointsTransaction, error)
	List(ctx context.Context, userID uuid.UUID, dir Direction, page Page) ([]models.PointsTransaction, int64, error)
	Sum(ctx context.Context, userID uuid.UUID) (int64, error)
	UserIDs(ctx context.Context) ([]uuid.UUID, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	return NewLedgerRepository(tx)
}

func (r *ledgerRepository) Append(ctx context.Context, entry *models.PointsTransaction) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "append points transaction failed")
	}
	return nil
}

func (r *ledgerRepository) scope(ctx context.Context, userID uuid.UUID, dir Direction) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.PointsTransaction{}).Where("user_id = ?", userID)
	switch dir {
	case DirectionEarn:
		q = q.Where("delta > 0")
	case DirectionSpend:
		q = q.Where("delta < 0")
	}
	return q
}

func (r *ledgerRepository) After(ctx context.Context, userID uuid.UUID, dir Direction, cursor uuid.UUID, limit int) ([]models.PointsTransaction, error) {
	q := r.scope(ctx, userID, dir)
	if cursor != uuid.Nil {
		q = q.Where("id < ?", cursor)
	}
	var out []models.PointsTransaction
	if err := q.Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list points transactions failed")
	}
	return out, nil
}

func (r *ledgerRepository) List(ctx context.Context, userID uuid.UUID, dir Direction, page Page) ([]models.PointsTransaction, int64, error) {
	var total int64
	if err := r.scope(ctx, userID, dir).Count(&total).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "count points transactions failed")
	}
	var out []models.PointsTransaction
	if err := page.apply(r.scope(ctx, userID, dir)).Order("id DESC").Find(&out).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "list points transactions failed")
	}
	return out, total, nil
}

func (r *ledgerRepository) Sum(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&models.PointsTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "sum points transactions failed")
	}
	return sum, nil
}

func (r *ledgerRepository) UserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.User{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list user ids failed")
	}
	return ids, nil
}
