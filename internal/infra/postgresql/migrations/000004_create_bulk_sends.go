package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"mailroom/internal/repository"
)

func createBulkSendsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_bulk_sends",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BulkSendModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_bulk_sends_provider_message_id ON bulk_sends (provider_message_id)`,
				`CREATE INDEX IF NOT EXISTS idx_bulk_sends_campaign_id ON bulk_sends (campaign_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BulkSendModel{})
		},
	}
}
