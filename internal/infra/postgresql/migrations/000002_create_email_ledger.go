package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"mailroom/internal/repository"
)

func createEmailLedgerTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_email_ledger",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EmailLedgerModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_email_ledger_provider_message_id ON email_ledger (provider_message_id)`,
				`CREATE INDEX IF NOT EXISTS idx_email_ledger_store_created ON email_ledger (store_id, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_email_ledger_order_id ON email_ledger (order_id) WHERE order_id IS NOT NULL`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EmailLedgerModel{})
		},
	}
}
