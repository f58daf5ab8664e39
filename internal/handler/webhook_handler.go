package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"mailroom/internal/domain"
	"mailroom/internal/observability"
	"mailroom/internal/provider"
	"mailroom/internal/service"
)

// Reconciler applies one authenticated provider event to the ledgers.
type Reconciler interface {
	Reconcile(ctx context.Context, event service.WebhookEvent) (service.Outcome, error)
}

// WebhookVerifier authenticates the raw callback before any state is
// touched.
type WebhookVerifier interface {
	Verify(headers provider.WebhookHeaders, payload []byte) error
	Enabled() bool
}

type WebhookHandler struct {
	reconciler Reconciler
	verifier   WebhookVerifier
	logger     *zap.Logger
}

func NewWebhookHandler(reconciler Reconciler, verifier WebhookVerifier, logger *zap.Logger) (*WebhookHandler, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("webhook verifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{reconciler: reconciler, verifier: verifier, logger: logger}, nil
}

func RegisterWebhookRoutes(router fiber.Router, reconciler Reconciler, verifier WebhookVerifier, logger *zap.Logger) error {
	h, err := NewWebhookHandler(reconciler, verifier, logger)
	if err != nil {
		return err
	}

	if !verifier.Enabled() {
		logger.Warn("webhook signature verification is disabled, all payloads will be accepted")
	}

	router.Post("/webhooks/email", h.Receive)

	return nil
}

// webhookPayload is the provider's callback body. Unknown fields are
// ignored so taxonomy additions never break parsing.
type webhookPayload struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		EmailID string `json:"email_id"`
		Click   *struct {
			Link      string `json:"link"`
			UserAgent string `json:"userAgent"`
			IPAddress string `json:"ipAddress"`
		} `json:"click"`
	} `json:"data"`
}

// Receive processes one provider callback. Only an authentication
// failure is surfaced as non-200; everything else, malformed bodies and
// internal errors included, is answered with success so the provider
// never retry-storms a degraded pipeline.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	logger := observability.WithContextLogger(h.logger, c.UserContext())
	body := c.Body()

	headers := provider.WebhookHeaders{
		ID:        c.Get("svix-id"),
		Timestamp: c.Get("svix-timestamp"),
		Signature: c.Get("svix-signature"),
	}

	if err := h.verifier.Verify(headers, body); err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			logger.Warn("rejected webhook with invalid signature", zap.Error(err))
			return fiber.NewError(fiber.StatusUnauthorized, "invalid signature")
		}
		logger.Error("webhook verification failed", zap.Error(err))
		return fiber.NewError(fiber.StatusUnauthorized, "invalid signature")
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Warn("acknowledging malformed webhook body", zap.Error(err))
		return acknowledge(c)
	}

	event := service.WebhookEvent{
		Type:              strings.TrimSpace(payload.Type),
		ProviderMessageID: strings.TrimSpace(payload.Data.EmailID),
		OccurredAt:        parseEventTime(payload.CreatedAt),
		RawPayload:        append([]byte(nil), body...),
	}
	if payload.Data.Click != nil {
		event.Click = &service.ClickInfo{
			URL:       payload.Data.Click.Link,
			UserAgent: payload.Data.Click.UserAgent,
			IPAddress: payload.Data.Click.IPAddress,
		}
	}

	outcome, err := h.reconciler.Reconcile(c.UserContext(), event)
	if err != nil {
		logger.Error("webhook reconciliation failed",
			zap.String("eventType", event.Type),
			zap.String("providerMessageId", event.ProviderMessageID),
			zap.Error(err),
		)
		return acknowledge(c)
	}

	logger.Info("webhook event processed",
		zap.String("eventType", event.Type),
		zap.String("providerMessageId", event.ProviderMessageID),
		zap.String("outcome", string(outcome)),
	)

	return acknowledge(c)
}

func acknowledge(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

func parseEventTime(value string) time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return time.Time{}
	}
	return t
}
