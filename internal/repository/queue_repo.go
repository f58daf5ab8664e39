package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"mailroom/internal/domain"
)

// QueueRepository is the persistence port for the outbound email queue.
// Claiming and failure accounting are single atomic statements; the
// dispatch loop never does read-then-write against this table.
type QueueRepository interface {
	Create(ctx context.Context, item *domain.QueueItem) error
	GetByID(ctx context.Context, id string) (*domain.QueueItem, error)
	ClaimPending(ctx context.Context, limit int) ([]domain.QueueItem, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id string, sendErr string, at time.Time) (domain.QueueStatus, int, error)
	Release(ctx context.Context, id string) error
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormQueueRepo struct {
	db *gorm.DB
}

func NewGormQueueRepo(db *gorm.DB) *GormQueueRepo {
	return &GormQueueRepo{db: db}
}

func (r *GormQueueRepo) Create(ctx context.Context, item *domain.QueueItem) error {
	model := queueModelFromDomain(item)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if item != nil {
		*item = *queueModelToDomain(model)
	}
	return nil
}

func (r *GormQueueRepo) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	var model EmailQueueModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return queueModelToDomain(&model), nil
}

// ClaimPending atomically reserves up to limit pending rows for this
// invocation. SKIP LOCKED keeps overlapping invocations from blocking
// on or double-claiming the same rows; the surrounding UPDATE makes
// select-and-mark a single statement.
func (r *GormQueueRepo) ClaimPending(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	if limit < 1 {
		return nil, nil
	}

	var models []EmailQueueModel
	err := r.db.WithContext(ctx).Raw(`
		UPDATE email_queue
		SET status = ?, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM email_queue
			WHERE status = ?
			ORDER BY created_at
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		domain.QueueStatusProcessing, domain.QueueStatusPending, limit,
	).Scan(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.QueueItem, 0, len(models))
	for i := range models {
		items = append(items, *queueModelToDomain(&models[i]))
	}
	return items, nil
}

func (r *GormQueueRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&EmailQueueModel{}).
		Where("id = ? AND status = ?", id, domain.QueueStatusProcessing).
		Updates(map[string]any{
			"status":       domain.QueueStatusSent,
			"processed_at": at,
			"last_error":   nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// RecordFailure applies the retry state machine in one statement: the
// attempt counter increments and the row either returns to pending or,
// at the attempt ceiling, terminally fails. Returns the resulting
// status and attempt count.
func (r *GormQueueRepo) RecordFailure(ctx context.Context, id string, sendErr string, at time.Time) (domain.QueueStatus, int, error) {
	var outcome struct {
		Status   domain.QueueStatus `gorm:"column:status"`
		Attempts int                `gorm:"column:attempts"`
	}

	err := r.db.WithContext(ctx).Raw(`
		UPDATE email_queue
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= max_attempts THEN ? ELSE ? END,
		    last_error = ?,
		    updated_at = NOW(),
		    processed_at = CASE WHEN attempts + 1 >= max_attempts THEN ?::timestamptz ELSE processed_at END
		WHERE id = ? AND status = ?
		RETURNING status, attempts`,
		domain.QueueStatusFailed, domain.QueueStatusPending,
		sendErr, at, id, domain.QueueStatusProcessing,
	).Scan(&outcome).Error
	if err != nil {
		return "", 0, err
	}
	if outcome.Status == "" {
		return "", 0, domain.ErrConflict
	}

	return outcome.Status, outcome.Attempts, nil
}

// Release returns a claimed row to pending without touching the
// attempt counter. Used when an invocation gives a claim back untried.
func (r *GormQueueRepo) Release(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&EmailQueueModel{}).
		Where("id = ? AND status = ?", id, domain.QueueStatusProcessing).
		Update("status", domain.QueueStatusPending)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// RequeueStale returns rows stranded in processing by a crashed
// invocation to pending. The cutoff bounds how long a live claim may
// hold a row; claims always bump updated_at.
func (r *GormQueueRepo) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&EmailQueueModel{}).
		Where("status = ? AND updated_at < ?", domain.QueueStatusProcessing, cutoff).
		Update("status", domain.QueueStatusPending)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
