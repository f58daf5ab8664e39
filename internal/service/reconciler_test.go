package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"mailroom/internal/domain"
	"mailroom/internal/queue"
)

type fakeBulkRepo struct {
	findFn         func(ctx context.Context, providerMessageID string) (*domain.BulkSendRecord, error)
	advanceFn      func(ctx context.Context, id string, status domain.LedgerStatus) (bool, error)
	setTimestampFn func(ctx context.Context, id string, event domain.EventType, at time.Time) error
	incrementFn    func(ctx context.Context, id string, at time.Time) error
}

func (f *fakeBulkRepo) FindByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.BulkSendRecord, error) {
	if f.findFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.findFn(ctx, providerMessageID)
}

func (f *fakeBulkRepo) AdvanceStatus(ctx context.Context, id string, status domain.LedgerStatus) (bool, error) {
	if f.advanceFn == nil {
		return true, nil
	}
	return f.advanceFn(ctx, id, status)
}

func (f *fakeBulkRepo) SetEventTimestamp(ctx context.Context, id string, event domain.EventType, at time.Time) error {
	if f.setTimestampFn == nil {
		return nil
	}
	return f.setTimestampFn(ctx, id, event, at)
}

func (f *fakeBulkRepo) IncrementClicks(ctx context.Context, id string, at time.Time) error {
	if f.incrementFn == nil {
		return nil
	}
	return f.incrementFn(ctx, id, at)
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []domain.EmailEvent
}

func (f *fakeEventRepo) Append(ctx context.Context, event *domain.EmailEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeEventRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []queue.EmailEventMessage
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.EmailEventMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

// memLedgerRepo mirrors the conditional-update semantics of the real
// ledger repository so event-ordering scenarios behave as they would
// against the database.
type memLedgerRepo struct {
	mu      sync.Mutex
	records map[string]*domain.LedgerRecord
	byMsgID map[string]string
}

func newMemLedgerRepo(records ...domain.LedgerRecord) *memLedgerRepo {
	repo := &memLedgerRepo{
		records: make(map[string]*domain.LedgerRecord, len(records)),
		byMsgID: make(map[string]string, len(records)),
	}
	for i := range records {
		record := records[i]
		repo.records[record.ID] = &record
		repo.byMsgID[record.ProviderMessageID] = record.ID
	}
	return repo
}

func (m *memLedgerRepo) Create(ctx context.Context, record *domain.LedgerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	m.records[record.ID] = &copied
	m.byMsgID[record.ProviderMessageID] = record.ID
	return nil
}

func (m *memLedgerRepo) FindByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.LedgerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byMsgID[providerMessageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *m.records[id]
	return &copied, nil
}

func (m *memLedgerRepo) AdvanceStatus(ctx context.Context, id string, status domain.LedgerStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return false, nil
	}
	if record.Status.Rank() >= status.Rank() {
		return false, nil
	}
	record.Status = status
	return true, nil
}

func (m *memLedgerRepo) SetEventTimestamp(ctx context.Context, id string, event domain.EventType, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil
	}

	field := ledgerTimestampField(record, event)
	if field == nil {
		return nil
	}
	if event.FirstOccurrenceOnly() && *field != nil {
		return nil
	}
	stamped := at
	*field = &stamped
	return nil
}

func ledgerTimestampField(record *domain.LedgerRecord, event domain.EventType) **time.Time {
	switch event {
	case domain.EventSent:
		return &record.SentAt
	case domain.EventDelivered:
		return &record.DeliveredAt
	case domain.EventOpened:
		return &record.OpenedAt
	case domain.EventClicked:
		return &record.ClickedAt
	case domain.EventBounced:
		return &record.BouncedAt
	case domain.EventComplained:
		return &record.ComplainedAt
	}
	return nil
}

func newTestReconciler(t *testing.T, ledger *memLedgerRepo, bulk *fakeBulkRepo, events *fakeEventRepo, publisher queue.Publisher) *ReconcileService {
	t.Helper()

	reconciler, err := NewReconcileService(ledger, bulk, events, publisher, zap.NewNop())
	if err != nil {
		t.Fatalf("NewReconcileService() error = %v", err)
	}
	reconciler.now = func() time.Time { return time.Unix(1_700_000_500, 0) }
	return reconciler
}

func sentLedgerRecord(id string, providerMessageID string) domain.LedgerRecord {
	sentAt := time.Unix(1_700_000_000, 0).UTC()
	return domain.LedgerRecord{
		ID:                id,
		StoreID:           "store-1",
		Recipient:         "customer@example.com",
		Status:            domain.LedgerStatusSent,
		ProviderMessageID: providerMessageID,
		SentAt:            &sentAt,
	}
}

func TestReconcileUnknownEventTypeIgnored(t *testing.T) {
	t.Parallel()

	reconciler := newTestReconciler(t, newMemLedgerRepo(), &fakeBulkRepo{}, &fakeEventRepo{}, &fakePublisher{})

	outcome, err := reconciler.Reconcile(context.Background(), WebhookEvent{
		Type:              "email.delivery_delayed",
		ProviderMessageID: "re_msg_1",
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s, want ignored", outcome)
	}
}

func TestReconcileUnmatchedMessageAcknowledged(t *testing.T) {
	t.Parallel()

	reconciler := newTestReconciler(t, newMemLedgerRepo(), &fakeBulkRepo{}, &fakeEventRepo{}, &fakePublisher{})

	outcome, err := reconciler.Reconcile(context.Background(), WebhookEvent{
		Type:              "email.delivered",
		ProviderMessageID: "re_msg_unknown",
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if outcome != OutcomeUnmatched {
		t.Fatalf("outcome = %s, want unmatched", outcome)
	}
}

func TestReconcileDuplicateDelivered(t *testing.T) {
	t.Parallel()

	ledger := newMemLedgerRepo(sentLedgerRecord("l1", "re_msg_1"))
	events := &fakeEventRepo{}
	publisher := &fakePublisher{}
	reconciler := newTestReconciler(t, ledger, &fakeBulkRepo{}, events, publisher)

	deliveredAt := time.Unix(1_700_000_100, 0).UTC()
	event := WebhookEvent{
		Type:              "email.delivered",
		ProviderMessageID: "re_msg_1",
		OccurredAt:        deliveredAt,
	}

	for i := 0; i < 2; i++ {
		outcome, err := reconciler.Reconcile(context.Background(), event)
		if err != nil {
			t.Fatalf("Reconcile() delivery %d error = %v", i+1, err)
		}
		if outcome != OutcomeApplied {
			t.Fatalf("outcome %d = %s, want applied", i+1, outcome)
		}
	}

	record, err := ledger.FindByProviderMessageID(context.Background(), "re_msg_1")
	if err != nil {
		t.Fatalf("FindByProviderMessageID() error = %v", err)
	}
	if record.Status != domain.LedgerStatusDelivered {
		t.Fatalf("status = %s, want delivered", record.Status)
	}
	if record.DeliveredAt == nil || !record.DeliveredAt.Equal(deliveredAt) {
		t.Fatalf("delivered_at = %v, want %v", record.DeliveredAt, deliveredAt)
	}

	// Audit trail keeps every delivery, duplicates included.
	if events.count() != 2 {
		t.Fatalf("event rows = %d, want 2", events.count())
	}
	if len(publisher.messages) != 2 {
		t.Fatalf("published messages = %d, want 2", len(publisher.messages))
	}
}

func TestReconcileClickedBeforeDelivered(t *testing.T) {
	t.Parallel()

	ledger := newMemLedgerRepo(sentLedgerRecord("l1", "re_msg_1"))
	reconciler := newTestReconciler(t, ledger, &fakeBulkRepo{}, &fakeEventRepo{}, &fakePublisher{})

	clickedAt := time.Unix(1_700_000_100, 0).UTC()
	if _, err := reconciler.Reconcile(context.Background(), WebhookEvent{
		Type:              "email.clicked",
		ProviderMessageID: "re_msg_1",
		OccurredAt:        clickedAt,
		Click:             &ClickInfo{URL: "https://acme.example/order/1042"},
	}); err != nil {
		t.Fatalf("Reconcile(clicked) error = %v", err)
	}

	record, err := ledger.FindByProviderMessageID(context.Background(), "re_msg_1")
	if err != nil {
		t.Fatalf("FindByProviderMessageID() error = %v", err)
	}
	if record.Status != domain.LedgerStatusDelivered {
		t.Fatalf("status after click = %s, want delivered", record.Status)
	}
	if record.ClickedAt == nil || !record.ClickedAt.Equal(clickedAt) {
		t.Fatalf("clicked_at = %v, want %v", record.ClickedAt, clickedAt)
	}

	// The late delivered event must not regress anything.
	if _, err := reconciler.Reconcile(context.Background(), WebhookEvent{
		Type:              "email.delivered",
		ProviderMessageID: "re_msg_1",
		OccurredAt:        clickedAt.Add(time.Minute),
	}); err != nil {
		t.Fatalf("Reconcile(delivered) error = %v", err)
	}

	record, err = ledger.FindByProviderMessageID(context.Background(), "re_msg_1")
	if err != nil {
		t.Fatalf("FindByProviderMessageID() error = %v", err)
	}
	if record.Status != domain.LedgerStatusDelivered {
		t.Fatalf("status after late delivered = %s, want delivered", record.Status)
	}
	if record.DeliveredAt == nil {
		t.Fatal("delivered_at should be set by the late delivered event")
	}
}

func TestReconcileFirstOccurrenceOpenedTimestamp(t *testing.T) {
	t.Parallel()

	ledger := newMemLedgerRepo(sentLedgerRecord("l1", "re_msg_1"))
	reconciler := newTestReconciler(t, ledger, &fakeBulkRepo{}, &fakeEventRepo{}, &fakePublisher{})

	firstOpen := time.Unix(1_700_000_100, 0).UTC()
	secondOpen := firstOpen.Add(time.Hour)

	for _, openedAt := range []time.Time{firstOpen, secondOpen} {
		if _, err := reconciler.Reconcile(context.Background(), WebhookEvent{
			Type:              "email.opened",
			ProviderMessageID: "re_msg_1",
			OccurredAt:        openedAt,
		}); err != nil {
			t.Fatalf("Reconcile(opened at %v) error = %v", openedAt, err)
		}
	}

	record, err := ledger.FindByProviderMessageID(context.Background(), "re_msg_1")
	if err != nil {
		t.Fatalf("FindByProviderMessageID() error = %v", err)
	}
	if record.OpenedAt == nil || !record.OpenedAt.Equal(firstOpen) {
		t.Fatalf("opened_at = %v, want first observation %v", record.OpenedAt, firstOpen)
	}
}

func TestReconcileBouncedNeverRegresses(t *testing.T) {
	t.Parallel()

	ledger := newMemLedgerRepo(sentLedgerRecord("l1", "re_msg_1"))
	reconciler := newTestReconciler(t, ledger, &fakeBulkRepo{}, &fakeEventRepo{}, &fakePublisher{})

	bouncedAt := time.Unix(1_700_000_100, 0).UTC()
	if _, err := reconciler.Reconcile(context.Background(), WebhookEvent{
		Type:              "email.bounced",
		ProviderMessageID: "re_msg_1",
		OccurredAt:        bouncedAt,
	}); err != nil {
		t.Fatalf("Reconcile(bounced) error = %v", err)
	}

	if _, err := reconciler.Reconcile(context.Background(), WebhookEvent{
		Type:              "email.delivered",
		ProviderMessageID: "re_msg_1",
		OccurredAt:        bouncedAt.Add(time.Minute),
	}); err != nil {
		t.Fatalf("Reconcile(delivered) error = %v", err)
	}

	record, err := ledger.FindByProviderMessageID(context.Background(), "re_msg_1")
	if err != nil {
		t.Fatalf("FindByProviderMessageID() error = %v", err)
	}
	if record.Status != domain.LedgerStatusBounced {
		t.Fatalf("status = %s, want bounced to stick", record.Status)
	}
}

func TestReconcileBulkSendClicks(t *testing.T) {
	t.Parallel()

	var incrementCalls int
	var advancedTo domain.LedgerStatus

	bulk := &fakeBulkRepo{
		findFn: func(ctx context.Context, providerMessageID string) (*domain.BulkSendRecord, error) {
			return &domain.BulkSendRecord{
				ID:                "b1",
				CampaignID:        "camp-1",
				Status:            domain.LedgerStatusSent,
				ProviderMessageID: providerMessageID,
			}, nil
		},
		advanceFn: func(ctx context.Context, id string, status domain.LedgerStatus) (bool, error) {
			advancedTo = status
			return true, nil
		},
		incrementFn: func(ctx context.Context, id string, at time.Time) error {
			incrementCalls++
			return nil
		},
	}
	publisher := &fakePublisher{}
	reconciler := newTestReconciler(t, newMemLedgerRepo(), bulk, &fakeEventRepo{}, publisher)

	for i := 0; i < 2; i++ {
		outcome, err := reconciler.Reconcile(context.Background(), WebhookEvent{
			Type:              "email.clicked",
			ProviderMessageID: "re_bulk_1",
			OccurredAt:        time.Unix(1_700_000_100, 0).UTC(),
		})
		if err != nil {
			t.Fatalf("Reconcile() click %d error = %v", i+1, err)
		}
		if outcome != OutcomeApplied {
			t.Fatalf("outcome = %s, want applied", outcome)
		}
	}

	if incrementCalls != 2 {
		t.Fatalf("IncrementClicks calls = %d, want 2", incrementCalls)
	}
	if advancedTo != domain.LedgerStatusDelivered {
		t.Fatalf("advanced status = %s, want delivered", advancedTo)
	}
	if len(publisher.messages) != 2 {
		t.Fatalf("published messages = %d, want 2", len(publisher.messages))
	}
	if publisher.messages[0].BulkSendID != "b1" {
		t.Fatalf("published bulkSendId = %q, want b1", publisher.messages[0].BulkSendID)
	}
}
