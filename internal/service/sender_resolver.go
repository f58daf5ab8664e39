package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mailroom/internal/domain"
	"mailroom/internal/repository"
)

// SenderIdentity is the resolved "from" identity for one store.
type SenderIdentity struct {
	FromName  string
	FromEmail string
	ReplyTo   string
}

// SenderResolver determines the sender identity for a store. The
// dedicated email-settings record wins per field; anything absent there
// falls back to the store's generic name and contact email.
type SenderResolver struct {
	stores repository.StoreRepository
}

func NewSenderResolver(stores repository.StoreRepository) *SenderResolver {
	return &SenderResolver{stores: stores}
}

func (r *SenderResolver) ResolveSender(ctx context.Context, storeID string) (*SenderIdentity, error) {
	settings, err := r.stores.GetEmailSettings(ctx, storeID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	identity := &SenderIdentity{}
	if settings != nil {
		identity.FromName = strings.TrimSpace(settings.FromName)
		identity.FromEmail = strings.TrimSpace(settings.FromEmail)
		identity.ReplyTo = strings.TrimSpace(settings.ReplyTo)
	}

	if identity.FromName == "" || identity.FromEmail == "" {
		store, err := r.stores.GetStore(ctx, storeID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if store != nil {
			if identity.FromName == "" {
				identity.FromName = strings.TrimSpace(store.Name)
			}
			if identity.FromEmail == "" {
				identity.FromEmail = strings.TrimSpace(store.ContactEmail)
			}
		}
	}

	if identity.FromEmail == "" {
		return nil, fmt.Errorf("%w: no sender email for store %s", domain.ErrMissingSenderConfig, storeID)
	}

	return identity, nil
}
