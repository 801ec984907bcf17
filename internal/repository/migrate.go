package repository

import (
	"context"
	"fmt"

	"github.com/taskhall/engine/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table, then applies the schema changes
// AutoMigrate cannot express.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, m := range customMigrations {
		if err := db.Exec(m.sql).Error; err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}

// Partial indexes are supported by both PostgreSQL and SQLite.
var customMigrations = []struct {
	name string
	sql  string
}{
	{
		name: "idx_surveys_active_deadline",
		sql: `CREATE INDEX IF NOT EXISTS idx_surveys_active_deadline
			ON surveys (deadline) WHERE status = 'active' AND deadline IS NOT NULL`,
	},
	{
		name: "idx_fills_pending_survey",
		sql: `CREATE INDEX IF NOT EXISTS idx_fills_pending_survey
			ON fills (survey_id) WHERE status = 'pending'`,
	},
}
