package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	appErr "github.com/taskhall/engine/pkg/errors"
	"gorm.io/gorm"
)

type UserRepository interface {
	BaseRepository[models.User]
	WithTx(tx *gorm.DB) UserRepository
	GetByEmail(ctx context.Context, email string, dest *models.User) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// AddPoints moves the cached balance by delta and returns the new value.
	// The row is left untouched when the result would be negative.
	AddPoints(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
	AddActivity(ctx context.Context, id uuid.UUID, amount int64) error
	// AdjustCredit moves the credit score by delta, clamped to 0..100.
	AdjustCredit(ctx context.Context, id uuid.UUID, delta int) error
	UpdateNickname(ctx context.Context, id uuid.UUID, nickname string) error
}

type userRepository struct {
	BaseRepository[models.User]
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository[models.User](db, "user"), db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return NewUserRepository(tx)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string, dest *models.User) error {
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.New(appErr.CodeNotFound, "user not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get user by email failed")
	}
	return nil
}

func (r *userRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, appErr.Wrap(err, appErr.CodeInternal, "check user failed")
	}
	return n > 0, nil
}

func (r *userRepository) AddPoints(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.User{}).
		Where("id = ? AND points + ? >= 0", id, delta).
		Update("points", gorm.Expr("points + ?", delta))
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "update balance failed")
	}
	if res.RowsAffected == 0 {
		ok, err := r.Exists(ctx, id)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, appErr.New(appErr.CodeUnknownUser, "user does not exist")
		}
		return 0, appErr.New(appErr.CodeInsufficientBalance, "insufficient points")
	}

	var balance int64
	if err := db.Model(&models.User{}).Where("id = ?", id).Pluck("points", &balance).Error; err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "read balance failed")
	}
	return balance, nil
}

func (r *userRepository) AddActivity(ctx context.Context, id uuid.UUID, amount int64) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("activity_points", gorm.Expr("activity_points + ?", amount))
	return rowsOrNotFound(res, "update activity points failed", "user")
}

func (r *userRepository) AdjustCredit(ctx context.Context, id uuid.UUID, delta int) error {
	expr := gorm.Expr(
		"CASE WHEN credit_score + ? > ? THEN ? WHEN credit_score + ? < ? THEN ? ELSE credit_score + ? END",
		delta, models.MaxCreditScore, models.MaxCreditScore,
		delta, models.MinCreditScore, models.MinCreditScore,
		delta,
	)
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("credit_score", expr)
	return rowsOrNotFound(res, "update credit score failed", "user")
}

func (r *userRepository) UpdateNickname(ctx context.Context, id uuid.UUID, nickname string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("nickname", nickname)
	return rowsOrNotFound(res, "update nickname failed", "user")
}

func rowsOrNotFound(res *gorm.DB, failure, entity string) error {
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, failure)
	}
	if res.RowsAffected == 0 {
		return appErr.Newf(appErr.CodeNotFound, "%s not found", entity)
	}
	return nil
}
