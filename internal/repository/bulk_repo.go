package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"mailroom/internal/domain"
)

// BulkSendRepository is the persistence port for campaign-originated
// sends. Same monotonic status law as the single-send ledger, plus an
// atomic click counter.
type BulkSendRepository interface {
	FindByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.BulkSendRecord, error)
	AdvanceStatus(ctx context.Context, id string, status domain.LedgerStatus) (bool, error)
	SetEventTimestamp(ctx context.Context, id string, event domain.EventType, at time.Time) error
	IncrementClicks(ctx context.Context, id string, at time.Time) error
}

type GormBulkSendRepo struct {
	db *gorm.DB
}

func NewGormBulkSendRepo(db *gorm.DB) *GormBulkSendRepo {
	return &GormBulkSendRepo{db: db}
}

func (r *GormBulkSendRepo) FindByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.BulkSendRecord, error) {
	var model BulkSendModel
	err := r.db.WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bulkModelToDomain(&model), nil
}

func (r *GormBulkSendRepo) AdvanceStatus(ctx context.Context, id string, status domain.LedgerStatus) (bool, error) {
	below := domain.StatusesBelow(status)
	if len(below) == 0 {
		return false, nil
	}

	result := r.db.WithContext(ctx).
		Model(&BulkSendModel{}).
		Where("id = ? AND status IN ?", id, below).
		Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormBulkSendRepo) SetEventTimestamp(ctx context.Context, id string, event domain.EventType, at time.Time) error {
	column := event.TimestampColumn()
	if column == "" {
		return nil
	}

	query := r.db.WithContext(ctx).
		Model(&BulkSendModel{}).
		Where("id = ?", id)
	if event.FirstOccurrenceOnly() {
		query = query.Where(column + " IS NULL")
	}

	return query.Update(column, at).Error
}

// IncrementClicks bumps the click counter in the database rather than
// through a read-modify-write, since concurrent clicks on a popular
// campaign link are expected. The clicked_at timestamp keeps its first
// value via COALESCE.
func (r *GormBulkSendRepo) IncrementClicks(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&BulkSendModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"click_count": gorm.Expr("click_count + 1"),
			"clicked_at":  gorm.Expr("COALESCE(clicked_at, ?)", at),
		}).Error
}
