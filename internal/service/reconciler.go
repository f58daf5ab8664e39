package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailroom/internal/domain"
	"mailroom/internal/observability"
	"mailroom/internal/queue"
	"mailroom/internal/repository"
)

// Outcome classifies what one webhook event did to pipeline state.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnmatched Outcome = "unmatched"
)

// ClickInfo carries client metadata attached to click events.
type ClickInfo struct {
	URL       string
	UserAgent string
	IPAddress string
}

// WebhookEvent is one authenticated provider callback, parsed by the
// transport layer.
type WebhookEvent struct {
	Type              string
	ProviderMessageID string
	OccurredAt        time.Time
	RawPayload        []byte
	Click             *ClickInfo
}

// ReconcileService maps provider delivery events onto ledger state.
// All mutations are conditional at the repository level, so duplicate
// or out-of-order deliveries can only ever move records forward.
type ReconcileService struct {
	ledger    repository.LedgerRepository
	bulkSends repository.BulkSendRepository
	events    repository.EventRepository
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewReconcileService(
	ledger repository.LedgerRepository,
	bulkSends repository.BulkSendRepository,
	events repository.EventRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*ReconcileService, error) {
	if ledger == nil || bulkSends == nil || events == nil {
		return nil, fmt.Errorf("ledger, bulk send and event repositories are required")
	}
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReconcileService{
		ledger:    ledger,
		bulkSends: bulkSends,
		events:    events,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *ReconcileService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Reconcile applies one provider event. Unknown event types and
// unmatched message ids are acknowledged and dropped; the provider
// must never be given a reason to retry.
func (s *ReconcileService) Reconcile(ctx context.Context, event WebhookEvent) (Outcome, error) {
	eventType, known := domain.ParseEventType(event.Type)
	if !known {
		s.logger.Info("ignoring unrecognized webhook event type",
			zap.String("eventType", event.Type),
		)
		s.countEvent(event.Type, OutcomeIgnored)
		return OutcomeIgnored, nil
	}

	if strings.TrimSpace(event.ProviderMessageID) == "" {
		s.logger.Warn("webhook event carries no provider message id",
			zap.String("eventType", event.Type),
		)
		s.countEvent(event.Type, OutcomeIgnored)
		return OutcomeIgnored, nil
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	occurredAt = occurredAt.UTC()

	record, err := s.ledger.FindByProviderMessageID(ctx, event.ProviderMessageID)
	if err == nil {
		if err := s.applyToLedger(ctx, record, eventType, event, occurredAt); err != nil {
			s.countEvent(event.Type, OutcomeIgnored)
			return OutcomeIgnored, err
		}
		s.countEvent(event.Type, OutcomeApplied)
		s.publishEvent(ctx, queue.EmailEventMessage{
			LedgerID:          record.ID,
			ProviderMessageID: event.ProviderMessageID,
			StoreID:           record.StoreID,
			Type:              eventType,
			Status:            eventType.TargetStatus(),
			OccurredAt:        occurredAt,
		})
		return OutcomeApplied, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.countEvent(event.Type, OutcomeIgnored)
		return OutcomeIgnored, fmt.Errorf("failed to look up ledger record: %w", err)
	}

	bulkRecord, err := s.bulkSends.FindByProviderMessageID(ctx, event.ProviderMessageID)
	if err == nil {
		if err := s.applyToBulkSend(ctx, bulkRecord, eventType, occurredAt); err != nil {
			s.countEvent(event.Type, OutcomeIgnored)
			return OutcomeIgnored, err
		}
		s.countEvent(event.Type, OutcomeApplied)
		s.publishEvent(ctx, queue.EmailEventMessage{
			BulkSendID:        bulkRecord.ID,
			ProviderMessageID: event.ProviderMessageID,
			Type:              eventType,
			Status:            eventType.TargetStatus(),
			OccurredAt:        occurredAt,
		})
		return OutcomeApplied, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.countEvent(event.Type, OutcomeIgnored)
		return OutcomeIgnored, fmt.Errorf("failed to look up bulk send record: %w", err)
	}

	s.logger.Warn("webhook event matches no ledger or bulk send record",
		zap.String("eventType", event.Type),
		zap.String("providerMessageId", event.ProviderMessageID),
	)
	s.countEvent(event.Type, OutcomeUnmatched)
	return OutcomeUnmatched, nil
}

func (s *ReconcileService) applyToLedger(
	ctx context.Context,
	record *domain.LedgerRecord,
	eventType domain.EventType,
	event WebhookEvent,
	occurredAt time.Time,
) error {
	auditRow := &domain.EmailEvent{
		ID:         uuid.NewString(),
		LedgerID:   record.ID,
		Type:       eventType,
		RawPayload: event.RawPayload,
		CreatedAt:  occurredAt,
	}
	if event.Click != nil {
		auditRow.ClickedURL = optionalString(event.Click.URL)
		auditRow.UserAgent = optionalString(event.Click.UserAgent)
		auditRow.IPAddress = optionalString(event.Click.IPAddress)
	}
	if err := s.events.Append(ctx, auditRow); err != nil {
		return fmt.Errorf("failed to append email event: %w", err)
	}

	advanced, err := s.ledger.AdvanceStatus(ctx, record.ID, eventType.TargetStatus())
	if err != nil {
		return fmt.Errorf("failed to advance ledger status: %w", err)
	}
	if !advanced {
		s.logger.Debug("ledger status already at or past event target",
			zap.String("ledgerId", record.ID),
			zap.String("eventType", eventType.String()),
		)
	}

	if err := s.ledger.SetEventTimestamp(ctx, record.ID, eventType, occurredAt); err != nil {
		return fmt.Errorf("failed to set ledger timestamp: %w", err)
	}

	return nil
}

func (s *ReconcileService) applyToBulkSend(
	ctx context.Context,
	record *domain.BulkSendRecord,
	eventType domain.EventType,
	occurredAt time.Time,
) error {
	if _, err := s.bulkSends.AdvanceStatus(ctx, record.ID, eventType.TargetStatus()); err != nil {
		return fmt.Errorf("failed to advance bulk send status: %w", err)
	}

	if eventType == domain.EventClicked {
		if err := s.bulkSends.IncrementClicks(ctx, record.ID, occurredAt); err != nil {
			return fmt.Errorf("failed to increment bulk send clicks: %w", err)
		}
		return nil
	}

	if err := s.bulkSends.SetEventTimestamp(ctx, record.ID, eventType, occurredAt); err != nil {
		return fmt.Errorf("failed to set bulk send timestamp: %w", err)
	}

	return nil
}

// publishEvent is best effort: the ledger already holds the truth and
// a broker outage must not surface to the provider.
func (s *ReconcileService) publishEvent(ctx context.Context, msg queue.EmailEventMessage) {
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Warn("failed to publish email event",
			zap.String("providerMessageId", msg.ProviderMessageID),
			zap.String("eventType", msg.Type.String()),
			zap.Error(err),
		)
	}
}

func (s *ReconcileService) countEvent(eventType string, outcome Outcome) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncWebhookEvent(eventType, string(outcome))
}

func optionalString(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
