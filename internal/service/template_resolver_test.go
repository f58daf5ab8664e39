package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"mailroom/internal/domain"
)

func TestTemplateResolverStoreScopedWins(t *testing.T) {
	t.Parallel()

	repo := &fakeTemplateRepo{
		storeFn: func(ctx context.Context, slug string, storeID string) (*domain.EmailTemplate, error) {
			return &domain.EmailTemplate{
				Slug:     slug,
				Subject:  "Store subject for {{name}}",
				HTMLBody: "<p>Hi {{name}}</p>",
				TextBody: "Hi {{name}}",
			}, nil
		},
		globalFn: func(ctx context.Context, slug string) (*domain.EmailTemplate, error) {
			t.Fatal("global lookup should not run when a store template exists")
			return nil, nil
		},
	}

	resolver := NewTemplateResolver(repo, zap.NewNop())
	content, err := resolver.Resolve(context.Background(), &domain.QueueItem{
		ID:           "q1",
		StoreID:      "store-1",
		TemplateSlug: strPtr("order-shipped"),
		Data:         map[string]string{"name": "Ada"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if content.Subject != "Store subject for Ada" {
		t.Fatalf("subject = %q, want rendered store subject", content.Subject)
	}
	if content.HTML != "<p>Hi Ada</p>" {
		t.Fatalf("html = %q, want rendered body", content.HTML)
	}
}

func TestTemplateResolverGlobalFallback(t *testing.T) {
	t.Parallel()

	repo := &fakeTemplateRepo{
		globalFn: func(ctx context.Context, slug string) (*domain.EmailTemplate, error) {
			return &domain.EmailTemplate{
				Slug:    slug,
				Subject: "Global subject",
			}, nil
		},
	}

	resolver := NewTemplateResolver(repo, zap.NewNop())
	content, err := resolver.Resolve(context.Background(), &domain.QueueItem{
		ID:           "q1",
		StoreID:      "store-1",
		TemplateSlug: strPtr("order-shipped"),
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if content.Subject != "Global subject" {
		t.Fatalf("subject = %q, want global template subject", content.Subject)
	}
}

func TestTemplateResolverInlineSubjectFallback(t *testing.T) {
	t.Parallel()

	resolver := NewTemplateResolver(&fakeTemplateRepo{}, zap.NewNop())
	content, err := resolver.Resolve(context.Background(), &domain.QueueItem{
		ID:           "q1",
		StoreID:      "store-1",
		TemplateSlug: strPtr("missing-template"),
		Subject:      strPtr("Inline {{code}}"),
		Data:         map[string]string{"code": "A1"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if content.Subject != "Inline A1" {
		t.Fatalf("subject = %q, want rendered inline subject", content.Subject)
	}
	if content.HTML != "" || content.Text != "" {
		t.Fatalf("content = %+v, want subject-only", *content)
	}
}

func TestTemplateResolverMissingContent(t *testing.T) {
	t.Parallel()

	resolver := NewTemplateResolver(&fakeTemplateRepo{}, zap.NewNop())
	_, err := resolver.Resolve(context.Background(), &domain.QueueItem{
		ID:           "q1",
		StoreID:      "store-1",
		TemplateSlug: strPtr("missing-template"),
	})
	if !errors.Is(err, domain.ErrMissingContent) {
		t.Fatalf("Resolve() error = %v, want %v", err, domain.ErrMissingContent)
	}
}

func TestRenderPlaceholders(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
		data    map[string]string
		want    string
	}{
		{
			name:    "simple substitution",
			content: "Hello {{name}}",
			data:    map[string]string{"name": "Ada"},
			want:    "Hello Ada",
		},
		{
			name:    "absent key stays intact",
			content: "Hello {{name}}, order {{orderNumber}}",
			data:    map[string]string{"name": "Ada"},
			want:    "Hello Ada, order {{orderNumber}}",
		},
		{
			name:    "no data",
			content: "Hello {{name}}",
			want:    "Hello {{name}}",
		},
		{
			name:    "value is not re-expanded",
			content: "{{a}}",
			data:    map[string]string{"a": "{{b}}", "b": "x"},
			want:    "{{b}}",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := renderPlaceholders(tc.content, tc.data)
			if got != tc.want {
				t.Fatalf("renderPlaceholders() = %q, want %q", got, tc.want)
			}
		})
	}
}
