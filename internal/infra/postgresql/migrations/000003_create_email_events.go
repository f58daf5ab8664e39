package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"mailroom/internal/repository"
)

func createEmailEventsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_email_events",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EmailEventModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_email_events_ledger_id ON email_events (ledger_id)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EmailEventModel{})
		},
	}
}
