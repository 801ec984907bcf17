package repository

import (
	"context"
	"errors"
	"fmt"

	appErr "github.com/taskhall/engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BaseRepository defines common CRUD operations.
type BaseRepository[T any] interface {
	Create(ctx context.Context, obj *T) error
	GetByID(ctx context.Context, id any, dest *T) error
	GetForUpdate(ctx context.Context, id any, dest *T) error
	Update(ctx context.Context, obj *T) error
}

type baseRepository[T any] struct {
	db   *gorm.DB
	name string
}

func NewBaseRepository[T any](db *gorm.DB, name string) BaseRepository[T] {
	return &baseRepository[T]{db: db, name: name}
}

func (r *baseRepository[T]) Create(ctx context.Context, obj *T) error {
	if err := r.db.WithContext(ctx).Create(obj).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return appErr.Wrap(err, appErr.CodeAlreadyExists, r.name+" already exists")
		}
		return appErr.Wrap(err, appErr.CodeInternal, fmt.Sprintf("create %s failed", r.name))
	}
	return nil
}

func (r *baseRepository[T]) GetByID(ctx context.Context, id any, dest *T) error {
	return r.first(r.db.WithContext(ctx), id, dest)
}

// GetForUpdate reads the row under a FOR UPDATE lock; only meaningful inside
// a transaction. Drivers without row locks ignore the clause.
func (r *baseRepository[T]) GetForUpdate(ctx context.Context, id any, dest *T) error {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id, dest)
}

func (r *baseRepository[T]) first(q *gorm.DB, id any, dest *T) error {
	if err := q.First(dest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.Newf(appErr.CodeNotFound, "%s not found", r.name)
		}
		return appErr.Wrap(err, appErr.CodeInternal, fmt.Sprintf("get %s failed", r.name))
	}
	return nil
}

func (r *baseRepository[T]) Update(ctx context.Context, obj *T) error {
	if err := r.db.WithContext(ctx).Save(obj).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, fmt.Sprintf("update %s failed", r.name))
	}
	return nil
}

// Page is an offset window over a result set.
type Page struct {
	Offset int
	Limit  int
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}
