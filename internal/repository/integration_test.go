//go:build integration

package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	"github.com/taskhall/engine/internal/testutil"
	"github.com/taskhall/engine/pkg/database"
	appErr "github.com/taskhall/engine/pkg/errors"
)

func newPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("market"),
		tcpostgres.WithUsername("market"),
		tcpostgres.WithPassword("market"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.OpenPostgres(ctx, dsn, database.Options{MaxRetries: 10})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(ctx, db))
	require.NoError(t, repository.Migrate(ctx, db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestPostgresRepositories(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db)

	t.Run("concurrent spends never overdraw", func(t *testing.T) {
		u := testutil.CreateUser(t, db, "pg-spender", 100)
		var ok atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := users.AddPoints(ctx, u.ID, -30); err == nil {
					ok.Add(1)
				} else {
					assert.True(t, appErr.IsCode(err, appErr.CodeInsufficientBalance))
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(3), ok.Load())
		assert.Equal(t, int64(10), testutil.ReloadUser(t, db, u.ID).Points)
	})

	t.Run("credit clamp expression", func(t *testing.T) {
		u := testutil.CreateUser(t, db, "pg-credit", 0)
		require.NoError(t, users.AdjustCredit(ctx, u.ID, 500))
		assert.Equal(t, models.MaxCreditScore, testutil.ReloadUser(t, db, u.ID).CreditScore)
		require.NoError(t, users.AdjustCredit(ctx, u.ID, -2))
		assert.Equal(t, models.MaxCreditScore-2, testutil.ReloadUser(t, db, u.ID).CreditScore)
	})

	t.Run("duplicate fill maps to already_filled", func(t *testing.T) {
		fills := repository.NewFillRepository(db)
		owner := testutil.CreateUser(t, db, "pg-owner", 0)
		filler := testutil.CreateUser(t, db, "pg-filler", 0)
		s := testutil.CreateSurvey(t, db, owner.ID, 5, models.SurveyActive)

		require.NoError(t, fills.Create(ctx, &models.Fill{SurveyID: s.ID, FillerID: filler.ID, DurationSeconds: 30, Status: models.FillPending}))
		err := fills.Create(ctx, &models.Fill{SurveyID: s.ID, FillerID: filler.ID, DurationSeconds: 30, Status: models.FillPending})
		assert.True(t, appErr.IsCode(err, appErr.CodeAlreadyFilled))
	})

	t.Run("locked decide admits one reviewer", func(t *testing.T) {
		owner := testutil.CreateUser(t, db, "pg-rev-owner", 0)
		filler := testutil.CreateUser(t, db, "pg-rev-filler", 0)
		s := testutil.CreateSurvey(t, db, owner.ID, 5, models.SurveyActive)
		f := &models.Fill{SurveyID: s.ID, FillerID: filler.ID, DurationSeconds: 30, Status: models.FillPending}
		require.NoError(t, db.Create(f).Error)

		var won atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = db.Transaction(func(tx *gorm.DB) error {
					fills := repository.NewFillRepository(tx)
					var locked models.Fill
					if err := fills.GetForUpdate(ctx, f.ID, &locked); err != nil {
						return err
					}
					ok, err := fills.Decide(ctx, f.ID, repository.FillReview{
						Status: models.FillApproved, PointsAwarded: 5, ReviewedAt: time.Now().UTC(),
					})
					if ok {
						won.Add(1)
					}
					return err
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), won.Load())
	})

	t.Run("profile search escapes wildcards", func(t *testing.T) {
		profiles := repository.NewProfileRepository(db)
		u := testutil.CreateUser(t, db, "pg-profile", 0)
		college := "50%_Campus"
		p := &models.Profile{UserID: u.ID, College: &college}
		p.Normalize()
		require.NoError(t, profiles.Save(ctx, p))

		got, err := profiles.SearchAfter(ctx, repository.ProfileQuery{College: "%_c"}, nil, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, u.ID, got[0].UserID)

		got, err = profiles.SearchAfter(ctx, repository.ProfileQuery{College: "0_%"}, nil, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
