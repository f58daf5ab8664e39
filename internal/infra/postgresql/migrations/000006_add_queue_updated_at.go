package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addQueueUpdatedAt() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000006_add_queue_updated_at",
		Migrate: func(tx *gorm.DB) error {
			statements := []string{
				`ALTER TABLE email_queue ADD COLUMN IF NOT EXISTS updated_at timestamptz NOT NULL DEFAULT NOW()`,
				`CREATE INDEX IF NOT EXISTS idx_email_queue_status_updated ON email_queue (status, updated_at)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			if err := tx.Exec(`DROP INDEX IF EXISTS idx_email_queue_status_updated`).Error; err != nil {
				return err
			}
			return tx.Exec(`ALTER TABLE email_queue DROP COLUMN IF EXISTS updated_at`).Error
		},
	}
}
