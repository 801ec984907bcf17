package services

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	appErr "github.com/taskhall/engine/pkg/errors"
	"github.com/taskhall/engine/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ledgerBatchSize = 50

// Entry is a requested points movement.
type Entry struct {
	UserID      uuid.UUID
	Delta       int64
	Reason      models.PointsReason
	RelatedType string
	RelatedID   string
}

// Reconciliation compares the cached balance with the sum of the log.
type Reconciliation struct {
	UserID  uuid.UUID `json:"user_id"`
	Cached  int64     `json:"cached"`
	Derived int64     `json:"derived"`
}

func (r Reconciliation) Consistent() bool { return r.Cached == r.Derived }

// LedgerService is the only writer of point balances. Every balance change is
// paired with exactly one appended transaction in the same database
// transaction.
type LedgerService interface {
	Apply(ctx context.Context, e Entry) (*models.PointsTransaction, error)
	// ApplyTx is Apply joined to a caller's transaction.
	ApplyTx(ctx context.Context, tx *gorm.DB, e Entry) (*models.PointsTransaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	// Transactions yields the user's rows newest first. The sequence is
	// fetched lazily in batches and may be ranged over again.
	Transactions(ctx context.Context, userID uuid.UUID, dir repository.Direction) iter.Seq2[models.PointsTransaction, error]
	History(ctx context.Context, userID uuid.UUID, dir repository.Direction, p Pagination) ([]models.PointsTransaction, int64, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (Reconciliation, error)
	ReconcileAll(ctx context.Context) ([]Reconciliation, error)
}

type ledgerService struct {
	db     *gorm.DB
	users  repository.UserRepository
	ledger repository.LedgerRepository
}

func NewLedgerService(db *gorm.DB, users repository.UserRepository, ledger repository.LedgerRepository) LedgerService {
	return &ledgerService{db: db, users: users, ledger: ledger}
}

var _ LedgerService = (*ledgerService)(nil)

func (s *ledgerService) Apply(ctx context.Context, e Entry) (*models.PointsTransaction, error) {
	var out *models.PointsTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.ApplyTx(ctx, tx, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ledgerService) ApplyTx(ctx context.Context, tx *gorm.DB, e Entry) (*models.PointsTransaction, error) {
	if err := validateEntry(e); err != nil {
		return nil, err
	}

	balance, err := s.users.WithTx(tx).AddPoints(ctx, e.UserID, e.Delta)
	if err != nil {
		return nil, err
	}

	row := &models.PointsTransaction{
		UserID:       e.UserID,
		Delta:        e.Delta,
		BalanceAfter: balance,
		Reason:       e.Reason,
		RelatedType:  e.RelatedType,
		RelatedID:    e.RelatedID,
	}
	if err := s.ledger.WithTx(tx).Append(ctx, row); err != nil {
		return nil, err
	}

	logger.L().Info("points applied",
		zap.String("user_id", e.UserID.String()),
		zap.Int64("delta", e.Delta),
		zap.String("reason", string(e.Reason)),
		zap.Int64("balance", balance),
	)
	return row, nil
}

func validateEntry(e Entry) error {
	fields := map[string]string{}
	if e.UserID == uuid.Nil {
		fields["user_id"] = "is required"
	}
	if e.Delta == 0 {
		fields["delta"] = "must not be zero"
	}
	if e.Reason == "" {
		fields["reason"] = "is required"
	}
	if len(fields) > 0 {
		return appErr.Invalid("invalid points entry", fields)
	}
	return nil
}

func (s *ledgerService) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var u models.User
	if err := s.users.GetByID(ctx, userID, &u); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return 0, appErr.New(appErr.CodeUnknownUser, "user does not exist")
		}
		return 0, err
	}
	return u.Points, nil
}

func (s *ledgerService) Transactions(ctx context.Context, userID uuid.UUID, dir repository.Direction) iter.Seq2[models.PointsTransaction, error] {
	return func(yield func(models.PointsTransaction, error) bool) {
		cursor := uuid.Nil
		for {
			batch, err := s.ledger.After(ctx, userID, dir, cursor, ledgerBatchSize)
			if err != nil {
				yield(models.PointsTransaction{}, err)
				return
			}
			for _, row := range batch {
				if !yield(row, nil) {
					return
				}
			}
			if len(batch) < ledgerBatchSize {
				return
			}
			cursor = batch[len(batch)-1].ID
		}
	}
}

func (s *ledgerService) History(ctx context.Context, userID uuid.UUID, dir repository.Direction, p Pagination) ([]models.PointsTransaction, int64, error) {
	if !dir.Valid() {
		return nil, 0, appErr.Invalid("invalid direction", map[string]string{"type": "must be earn or spend"})
	}
	return s.ledger.List(ctx, userID, dir, p.window())
}

func (s *ledgerService) Reconcile(ctx context.Context, userID uuid.UUID) (Reconciliation, error) {
	rec := Reconciliation{UserID: userID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := s.users.WithTx(tx).GetByID(ctx, userID, &u); err != nil {
			return err
		}
		sum, err := s.ledger.WithTx(tx).Sum(ctx, userID)
		if err != nil {
			return err
		}
		rec.Cached, rec.Derived = u.Points, sum
		return nil
	})
	if err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *ledgerService) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	ids, err := s.ledger.UserIDs(ctx)
	if err != nil {
		return nil, err
	}
	var drift []Reconciliation
	for _, id := range ids {
		rec, err := s.Reconcile(ctx, id)
		if err != nil {
			return drift, err
		}
		if !rec.Consistent() {
			logger.L().Error("ledger drift detected",
				zap.String("user_id", id.String()),
				zap.Int64("cached", rec.Cached),
				zap.Int64("derived", rec.Derived),
			)
			drift = append(drift, rec)
		}
	}
	return drift, nil
}
