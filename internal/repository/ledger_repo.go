package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"mailroom/internal/domain"
)

// LedgerRepository is the persistence port for the send ledger. Status
// and timestamp writes are conditional updates so concurrent webhook
// deliveries can never regress a record or overwrite a first-occurrence
// timestamp.
type LedgerRepository interface {
	Create(ctx context.Context, record *domain.LedgerRecord) error
	FindByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.LedgerRecord, error)
	AdvanceStatus(ctx context.Context, id string, status domain.LedgerStatus) (bool, error)
	SetEventTimestamp(ctx context.Context, id string, event domain.EventType, at time.Time) error
}

type GormLedgerRepo struct {
	db *gorm.DB
}

func NewGormLedgerRepo(db *gorm.DB) *GormLedgerRepo {
	return &GormLedgerRepo{db: db}
}

func (r *GormLedgerRepo) Create(ctx context.Context, record *domain.LedgerRecord) error {
	model := ledgerModelFromDomain(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if record != nil {
		*record = *ledgerModelToDomain(model)
	}
	return nil
}

func (r *GormLedgerRepo) FindByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.LedgerRecord, error) {
	var model EmailLedgerModel
	err := r.db.WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ledgerModelToDomain(&model), nil
}

// AdvanceStatus escalates a record's status only when the target is
// strictly ahead in the lifecycle order. The guard is part of the
// UPDATE itself, so a stale or duplicate webhook can never move a
// record backwards. Returns whether the row advanced.
func (r *GormLedgerRepo) AdvanceStatus(ctx context.Context, id string, status domain.LedgerStatus) (bool, error) {
	below := domain.StatusesBelow(status)
	if len(below) == 0 {
		return false, nil
	}

	result := r.db.WithContext(ctx).
		Model(&EmailLedgerModel{}).
		Where("id = ? AND status IN ?", id, below).
		Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetEventTimestamp writes the lifecycle timestamp for an event. Opens
// and clicks keep their first observation; the condition lives in the
// WHERE clause rather than application code.
func (r *GormLedgerRepo) SetEventTimestamp(ctx context.Context, id string, event domain.EventType, at time.Time) error {
	column := event.TimestampColumn()
	if column == "" {
		return nil
	}

	query := r.db.WithContext(ctx).
		Model(&EmailLedgerModel{}).
		Where("id = ?", id)
	if event.FirstOccurrenceOnly() {
		query = query.Where(column + " IS NULL")
	}

	return query.Update(column, at).Error
}
