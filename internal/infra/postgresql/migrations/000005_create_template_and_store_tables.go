package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"mailroom/internal/repository"
)

func createTemplateAndStoreTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_template_and_store_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(
				&repository.EmailTemplateModel{},
				&repository.StoreModel{},
				&repository.StoreEmailSettingsModel{},
			); err != nil {
				return err
			}
			return tx.Exec(
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_email_templates_slug_store ON email_templates (slug, COALESCE(store_id::text, 'global')) WHERE active`,
			).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.EmailTemplateModel{},
				&repository.StoreModel{},
				&repository.StoreEmailSettingsModel{},
			)
		},
	}
}
