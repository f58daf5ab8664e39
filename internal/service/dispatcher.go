package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailroom/internal/domain"
	"mailroom/internal/observability"
	"mailroom/internal/provider"
	"mailroom/internal/ratelimit"
	"mailroom/internal/repository"
)

const (
	defaultBatchLimit  = 25
	defaultRatePerSec  = 2
	providerLimitScope = "resend"
	// staleClaimAge bounds how long a crashed invocation can strand
	// rows in processing before they are requeued.
	staleClaimAge = 15 * time.Minute
)

// DispatchResult aggregates the outcome of one dispatch invocation.
// Released counts claimed items given back untried on cancellation.
type DispatchResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Released  int `json:"released"`
}

// DispatchService drains the email queue. Each invocation claims one
// batch, paces sends below the provider rate ceiling, and records every
// outcome on the queue row; successful sends additionally open a ledger
// record keyed by the provider message id.
type DispatchService struct {
	queue        repository.QueueRepository
	ledger       repository.LedgerRepository
	templates    *TemplateResolver
	senders      *SenderResolver
	provider     provider.Provider
	rateLimiter  ratelimit.RateLimiter
	logger       *zap.Logger
	metrics      *observability.Metrics
	batchLimit   int
	sendInterval time.Duration
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewDispatchService(
	queue repository.QueueRepository,
	ledger repository.LedgerRepository,
	templates *TemplateResolver,
	senders *SenderResolver,
	emailProvider provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	batchLimit int,
	ratePerSec int,
	logger *zap.Logger,
) (*DispatchService, error) {
	if queue == nil || ledger == nil || templates == nil || senders == nil || emailProvider == nil {
		return nil, fmt.Errorf("queue, ledger, resolvers and provider are required")
	}
	if batchLimit < 1 {
		batchLimit = defaultBatchLimit
	}
	if ratePerSec < 1 {
		ratePerSec = defaultRatePerSec
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		queue:        queue,
		ledger:       ledger,
		templates:    templates,
		senders:      senders,
		provider:     emailProvider,
		rateLimiter:  rateLimiter,
		logger:       logger,
		batchLimit:   batchLimit,
		sendInterval: time.Second / time.Duration(ratePerSec),
		now:          time.Now,
		sleep:        sleepWithContext,
	}, nil
}

func (s *DispatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Run executes one dispatch invocation. Per-item failures are contained
// to that item; the batch always runs to completion.
func (s *DispatchService) Run(ctx context.Context) (*DispatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	requeued, err := s.queue.RequeueStale(ctx, s.now().UTC().Add(-staleClaimAge))
	if err != nil {
		s.logger.Warn("failed to requeue stale claims", zap.Error(err))
	} else if requeued > 0 {
		s.logger.Info("requeued stale claims", zap.Int64("count", requeued))
	}

	items, err := s.queue.ClaimPending(ctx, s.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending emails: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveDispatchBatchSize(len(items))
	}

	result := &DispatchResult{Processed: len(items)}
	if len(items) == 0 {
		return result, nil
	}

	for i := range items {
		if i > 0 {
			if err := s.sleep(ctx, s.sendInterval); err != nil {
				// Cancellation mid-batch: remaining claimed items were
				// never tried, so they go back to pending without
				// burning an attempt.
				for j := i; j < len(items); j++ {
					s.releaseItem(&items[j])
					result.Released++
				}
				return result, nil
			}
		}

		if err := s.processItem(ctx, &items[i]); err != nil {
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	s.logger.Info("dispatch invocation finished",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

func (s *DispatchService) processItem(ctx context.Context, item *domain.QueueItem) error {
	sender, err := s.senders.ResolveSender(ctx, item.StoreID)
	if err != nil {
		s.failItem(ctx, item, err)
		return err
	}

	content, err := s.templates.Resolve(ctx, item)
	if err != nil {
		s.failItem(ctx, item, err)
		return err
	}
	if content.HTML == "" && content.Text == "" {
		content.Text = content.Subject
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, providerLimitScope); err != nil {
			s.failItem(ctx, item, fmt.Errorf("rate limiter wait failed: %w", err))
			return err
		}
	}

	msg := provider.Message{
		FromName:  sender.FromName,
		FromEmail: sender.FromEmail,
		ReplyTo:   sender.ReplyTo,
		To:        item.ToEmail,
		Subject:   content.Subject,
		HTML:      content.HTML,
		Text:      content.Text,
	}

	sendStart := s.now()
	sendResult, sendErr := s.provider.Send(ctx, msg)
	if s.metrics != nil {
		s.metrics.ObserveEmailSendDuration(item.Category, s.now().Sub(sendStart))
	}

	if sendErr != nil {
		s.failItem(ctx, item, sendErr)
		return sendErr
	}

	sentAt := s.now().UTC()
	if err := s.queue.MarkSent(ctx, item.ID, sentAt); err != nil {
		s.logger.Error("failed to mark queue item sent",
			zap.String("queueItemId", item.ID),
			zap.Error(err),
		)
		return err
	}

	record := &domain.LedgerRecord{
		ID:                uuid.NewString(),
		StoreID:           item.StoreID,
		CustomerID:        item.CustomerID,
		OrderID:           item.OrderID,
		Recipient:         item.ToEmail,
		FromEmail:         sender.FromEmail,
		Subject:           content.Subject,
		Category:          item.Category,
		Status:            domain.LedgerStatusSent,
		ProviderMessageID: sendResult.MessageID,
		SentAt:            &sentAt,
		Metadata:          item.Data,
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		// The email went out; a ledger insert failure only loses
		// lifecycle tracking for this send.
		s.logger.Error("failed to create ledger record",
			zap.String("queueItemId", item.ID),
			zap.String("providerMessageId", sendResult.MessageID),
			zap.Error(err),
		)
	}

	if s.metrics != nil {
		s.metrics.IncEmailSent(item.Category)
	}

	s.logger.Info("email sent",
		zap.String("queueItemId", item.ID),
		zap.String("providerMessageId", sendResult.MessageID),
		zap.String("category", item.Category),
	)

	return nil
}

// releaseItem gives a claimed row back untried. Runs on a fresh
// context since the invocation context is already canceled.
func (s *DispatchService) releaseItem(item *domain.QueueItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.Release(ctx, item.ID); err != nil {
		// A failed release leaves the row for the stale-claim sweep.
		s.logger.Error("failed to release claimed queue item",
			zap.String("queueItemId", item.ID),
			zap.Error(err),
		)
	}
}

// failItem applies the retry state machine for one failed send: the
// attempt counter increments and the row either returns to pending or
// terminally fails at the attempt ceiling.
func (s *DispatchService) failItem(ctx context.Context, item *domain.QueueItem, sendErr error) {
	status, attempts, err := s.queue.RecordFailure(ctx, item.ID, sendErr.Error(), s.now().UTC())
	if err != nil {
		s.logger.Error("failed to record send failure",
			zap.String("queueItemId", item.ID),
			zap.NamedError("sendError", sendErr),
			zap.Error(err),
		)
		return
	}

	if status == domain.QueueStatusFailed {
		if s.metrics != nil {
			s.metrics.IncEmailFailed(item.Category, failureReason(sendErr))
		}
		s.logger.Warn("email terminally failed",
			zap.String("queueItemId", item.ID),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
		return
	}

	if s.metrics != nil {
		s.metrics.IncRetryScheduled(item.Category)
	}
	s.logger.Info("email send failed, retry scheduled",
		zap.String("queueItemId", item.ID),
		zap.Int("attempts", attempts),
		zap.Error(sendErr),
	)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingContent):
		return "missing_content"
	case errors.Is(err, domain.ErrMissingSenderConfig):
		return "missing_sender_config"
	default:
		var providerErr *provider.ProviderError
		if errors.As(err, &providerErr) {
			if provider.IsTransient(err) {
				return "provider_transient"
			}
			return "provider_permanent"
		}
		return "internal_error"
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
