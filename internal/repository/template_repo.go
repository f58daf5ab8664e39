package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"mailroom/internal/domain"
)

// TemplateRepository reads template definitions. The pipeline never
// writes templates; editing belongs to the management surface.
type TemplateRepository interface {
	FindActiveForStore(ctx context.Context, slug string, storeID string) (*domain.EmailTemplate, error)
	FindActiveGlobal(ctx context.Context, slug string) (*domain.EmailTemplate, error)
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) FindActiveForStore(ctx context.Context, slug string, storeID string) (*domain.EmailTemplate, error) {
	var model EmailTemplateModel
	err := r.db.WithContext(ctx).
		Where("slug = ? AND store_id = ? AND active", slug, storeID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}

func (r *GormTemplateRepo) FindActiveGlobal(ctx context.Context, slug string) (*domain.EmailTemplate, error) {
	var model EmailTemplateModel
	err := r.db.WithContext(ctx).
		Where("slug = ? AND store_id IS NULL AND active", slug).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}
