package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"mailroom/internal/repository"
)

func createEmailQueueTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_email_queue",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EmailQueueModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_email_queue_status_created ON email_queue (status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_email_queue_store_id ON email_queue (store_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EmailQueueModel{})
		},
	}
}
