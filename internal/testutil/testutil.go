// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	"github.com/taskhall/engine/pkg/database"
)

// NewDB opens a private, migrated in-memory SQLite database that lives for
// the duration of the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := database.OpenSQLite(context.Background(), dsn, database.Options{})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user holding points, recorded as one admin adjustment
// so the balance matches the ledger.
func CreateUser(t testing.TB, db *gorm.DB, nickname string, points int64) *models.User {
	t.Helper()
	u := &models.User{
		Email:        nickname + "-" + uuid.NewString()[:8] + "@campus.test",
		Nickname:     nickname,
		PasswordHash: "x",
		CreditScore:  models.DefaultCreditScore,
		Points:       points,
	}
	require.NoError(t, db.Create(u).Error)
	if points != 0 {
		require.NoError(t, db.Create(&models.PointsTransaction{
			UserID:       u.ID,
			Delta:        points,
			BalanceAfter: points,
			Reason:       models.ReasonAdminAdjust,
			RelatedType:  models.RelatedUser,
			RelatedID:    u.ID.String(),
		}).Error)
	}
	return u
}

// CreateSurvey inserts a survey directly, bypassing the publishing cost.
func CreateSurvey(t testing.TB, db *gorm.DB, owner uuid.UUID, reward int64, status models.SurveyStatus) *models.Survey {
	t.Helper()
	s := &models.Survey{
		OwnerID:      owner,
		Title:        "Campus dining survey",
		Link:         "https://forms.campus.test/dining",
		RewardPoints: reward,
		Status:       status,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

// ReloadUser reads the current row for id.
func ReloadUser(t testing.TB, db *gorm.DB, id uuid.UUID) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return u
}

// LedgerSum returns SUM(delta) for the user.
func LedgerSum(t testing.TB, db *gorm.DB, id uuid.UUID) int64 {
	t.Helper()
	var sum int64
	require.NoError(t, db.Model(&models.PointsTransaction{}).
		Where("user_id = ?", id).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error)
	return sum
}
