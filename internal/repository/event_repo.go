package repository

import (
	"context"

	"gorm.io/gorm"

	"mailroom/internal/domain"
)

// EventRepository appends rows to the immutable email_events audit log.
// There is deliberately no update or delete surface.
type EventRepository interface {
	Append(ctx context.Context, event *domain.EmailEvent) error
}

type GormEventRepo struct {
	db *gorm.DB
}

func NewGormEventRepo(db *gorm.DB) *GormEventRepo {
	return &GormEventRepo{db: db}
}

func (r *GormEventRepo) Append(ctx context.Context, event *domain.EmailEvent) error {
	return r.db.WithContext(ctx).Create(eventModelFromDomain(event)).Error
}
