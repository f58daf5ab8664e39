package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"mailroom/internal/domain"
)

// StoreRepository reads the two sender-identity sources: the dedicated
// email settings record and the generic store record it falls back to.
type StoreRepository interface {
	GetEmailSettings(ctx context.Context, storeID string) (*domain.StoreEmailSettings, error)
	GetStore(ctx context.Context, storeID string) (*domain.Store, error)
}

type GormStoreRepo struct {
	db *gorm.DB
}

func NewGormStoreRepo(db *gorm.DB) *GormStoreRepo {
	return &GormStoreRepo{db: db}
}

func (r *GormStoreRepo) GetEmailSettings(ctx context.Context, storeID string) (*domain.StoreEmailSettings, error) {
	var model StoreEmailSettingsModel
	err := r.db.WithContext(ctx).First(&model, "store_id = ?", storeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &domain.StoreEmailSettings{
		StoreID:   model.StoreID,
		FromName:  model.FromName,
		FromEmail: model.FromEmail,
		ReplyTo:   model.ReplyTo,
	}, nil
}

func (r *GormStoreRepo) GetStore(ctx context.Context, storeID string) (*domain.Store, error) {
	var model StoreModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", storeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &domain.Store{
		ID:           model.ID,
		Name:         model.Name,
		ContactEmail: model.ContactEmail,
	}, nil
}
