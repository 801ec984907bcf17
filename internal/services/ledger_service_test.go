package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	"github.com/taskhall/engine/internal/testutil"
	appErr "github.com/taskhall/engine/pkg/errors"
)

func newLedger(t *testing.T) (*gorm.DB, LedgerService) {
	t.Helper()
	db := testutil.NewDB(t)
	return db, NewLedgerService(db, repository.NewUserRepository(db), repository.NewLedgerRepository(db))
}

func TestLedgerApplyRecordsTransaction(t *testing.T) {
	ctx := context.Background()
	db, ledger := newLedger(t)
	u := testutil.CreateUser(t, db, "ann", 100)

	row, err := ledger.Apply(ctx, Entry{UserID: u.ID, Delta: -40, Reason: models.ReasonPublishCost})
	require.NoError(t, err)
	assert.Equal(t, int64(60), row.BalanceAfter)

	balance, err := ledger.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)
	assert.Equal(t, balance, testutil.LedgerSum(t, db, u.ID))
}

func TestLedgerRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	db, ledger := newLedger(t)
	b := testutil.CreateUser(t, db, "ben", 0)

	_, err := ledger.Apply(ctx, Entry{UserID: b.ID, Delta: -10, Reason: models.ReasonAdminAdjust})
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeInsufficientBalance))

	balance, err := ledger.Balance(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Equal(t, int64(0), testutil.LedgerSum(t, db, b.ID))
}

func TestLedgerValidation(t *testing.T) {
	ctx := context.Background()
	db, ledger := newLedger(t)
	u := testutil.CreateUser(t, db, "cat", 5)

	_, err := ledger.Apply(ctx, Entry{UserID: u.ID, Delta: 0, Reason: models.ReasonAdminAdjust})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	_, err = ledger.Apply(ctx, Entry{UserID: u.ID, Delta: 3})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	_, err = ledger.Apply(ctx, Entry{UserID: uuid.New(), Delta: 3, Reason: models.ReasonAdminAdjust})
	assert.True(t, appErr.IsCode(err, appErr.CodeUnknownUser))

	_, err = ledger.Balance(ctx, uuid.New())
	assert.True(t, appErr.IsCode(err, appErr.CodeUnknownUser))
}

func TestLedgerConcurrentSpendsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	db, ledger := newLedger(t)
	u := testutil.CreateUser(t, db, "dan", 100)

	var wg sync.WaitGroup
	var ok, insufficient atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Apply(ctx, Entry{UserID: u.ID, Delta: -30, Reason: models.ReasonAdminAdjust})
			switch {
			case err == nil:
				ok.Add(1)
			case appErr.IsCode(err, appErr.CodeInsufficientBalance):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), ok.Load())
	assert.Equal(t, int32(7), insufficient.Load())
	assert.Equal(t, int64(10), testutil.ReloadUser(t, db, u.ID).Points)
	assert.Equal(t, int64(10), testutil.LedgerSum(t, db, u.ID))
}

func TestLedgerTransactionsSequence(t *testing.T) {
	ctx := context.Background()
	db, ledger := newLedger(t)
	u := testutil.CreateUser(t, db, "eve", 0)

	// 70 credits of 2, then 50 debits of 1.
	for i := 0; i < 70; i++ {
		_, err := ledger.Apply(ctx, Entry{UserID: u.ID, Delta: 2, Reason: models.ReasonAdminAdjust})
		require.NoError(t, err)
	}
	for i := 0; i < 50; i++ {
		_, err := ledger.Apply(ctx, Entry{UserID: u.ID, Delta: -1, Reason: models.ReasonAdminAdjust})
		require.NoError(t, err)
	}

	collect := func(dir repository.Direction) []models.PointsTransaction {
		var out []models.PointsTransaction
		for row, err := range ledger.Transactions(ctx, u.ID, dir) {
			require.NoError(t, err)
			out = append(out, row)
		}
		return out
	}

	all := collect(repository.DirectionAll)
	require.Len(t, all, 120)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1].ID.String(), all[i].ID.String(), "newest first")
	}
	assert.Equal(t, int64(90), all[0].BalanceAfter)

	assert.Len(t, collect(repository.DirectionEarn), 70)
	assert.Len(t, collect(repository.DirectionSpend), 50)

	// Restartable: a second pass yields the same rows.
	again := collect(repository.DirectionAll)
	assert.Equal(t, all[0].ID, again[0].ID)
	assert.Equal(t, all[119].ID, again[119].ID)

	first, err := Collect(ledger.Transactions(ctx, u.ID, repository.DirectionAll), 5)
	require.NoError(t, err)
	assert.Len(t, first, 5)
}

func TestLedgerHistoryPaging(t *testing.T) {
	ctx := context.Background()
	db, ledger := newLedger(t)
	u := testutil.CreateUser(t, db, "fay", 10)
	for i := 0; i < 4; i++ {
		_, err := ledger.Apply(ctx, Entry{UserID: u.ID, Delta: -1, Reason: models.ReasonAdminAdjust})
		require.NoError(t, err)
	}

	rows, total, err := ledger.History(ctx, u.ID, repository.DirectionSpend, Pagination{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, rows, 1)

	_, _, err = ledger.History(ctx, u.ID, "sideways", Pagination{})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

func TestLedgerReconcile(t *testing.T) {
	ctx := context.Background()
	db, ledger := newLedger(t)
	u := testutil.CreateUser(t, db, "gus", 30)
	_, err := ledger.Apply(ctx, Entry{UserID: u.ID, Delta: 5, Reason: models.ReasonAdminAdjust})
	require.NoError(t, err)

	rec, err := ledger.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())
	assert.Equal(t, int64(35), rec.Derived)

	// Corrupt the cache behind the ledger's back.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).Update("points", 99).Error)

	drift, err := ledger.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, u.ID, drift[0].UserID)
	assert.Equal(t, int64(99), drift[0].Cached)
	assert.Equal(t, int64(35), drift[0].Derived)
}

func TestLedgerRowsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	db, ledger := newLedger(t)
	u := testutil.CreateUser(t, db, "hal", 0)
	row, err := ledger.Apply(ctx, Entry{UserID: u.ID, Delta: 7, Reason: models.ReasonAdminAdjust})
	require.NoError(t, err)

	row.Delta = 700
	assert.Error(t, db.Save(row).Error)
	assert.Error(t, db.Delete(row).Error)
	assert.Equal(t, int64(7), testutil.LedgerSum(t, db, u.ID))
}
