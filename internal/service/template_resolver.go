package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mailroom/internal/domain"
	"mailroom/internal/repository"
)

// ResolvedContent is the rendered message body for one queue item.
type ResolvedContent struct {
	Subject string
	HTML    string
	Text    string
}

// TemplateResolver turns a queue item's template reference into
// concrete subject and body content. Store-scoped templates shadow
// global ones sharing the same slug.
type TemplateResolver struct {
	templates repository.TemplateRepository
	logger    *zap.Logger
}

func NewTemplateResolver(templates repository.TemplateRepository, logger *zap.Logger) *TemplateResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateResolver{templates: templates, logger: logger}
}

func (r *TemplateResolver) Resolve(ctx context.Context, item *domain.QueueItem) (*ResolvedContent, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: queue item is required", domain.ErrValidation)
	}

	slug := ""
	if item.TemplateSlug != nil {
		slug = strings.TrimSpace(*item.TemplateSlug)
	}

	if slug != "" {
		template, err := r.findTemplate(ctx, slug, item.StoreID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if template != nil {
			return &ResolvedContent{
				Subject: renderPlaceholders(template.Subject, item.Data),
				HTML:    renderPlaceholders(template.HTMLBody, item.Data),
				Text:    renderPlaceholders(template.TextBody, item.Data),
			}, nil
		}

		r.logger.Warn("template not found, falling back to inline subject",
			zap.String("slug", slug),
			zap.String("storeId", item.StoreID),
		)
	}

	if item.Subject != nil && strings.TrimSpace(*item.Subject) != "" {
		return &ResolvedContent{
			Subject: renderPlaceholders(*item.Subject, item.Data),
		}, nil
	}

	return nil, fmt.Errorf("%w: no template or inline subject for item %s", domain.ErrMissingContent, item.ID)
}

func (r *TemplateResolver) findTemplate(ctx context.Context, slug string, storeID string) (*domain.EmailTemplate, error) {
	template, err := r.templates.FindActiveForStore(ctx, slug, storeID)
	if err == nil {
		return template, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	return r.templates.FindActiveGlobal(ctx, slug)
}

// renderPlaceholders substitutes {{key}} tokens with render data.
// Tokens without a matching key stay intact; no escaping is applied,
// callers supply pre-sanitized data.
func renderPlaceholders(content string, data map[string]string) string {
	if content == "" || len(data) == 0 {
		return content
	}

	replacements := make([]string, 0, len(data)*2)
	for key, value := range data {
		replacements = append(replacements, "{{"+key+"}}", value)
	}

	return strings.NewReplacer(replacements...).Replace(content)
}
