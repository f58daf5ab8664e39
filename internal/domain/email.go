package domain

import (
	"fmt"
	"strings"
	"time"
)

// QueueStatus represents the lifecycle state of a queued email.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

func (s QueueStatus) String() string { return string(s) }

func (s QueueStatus) IsValid() bool {
	switch s {
	case QueueStatusPending, QueueStatusProcessing, QueueStatusSent, QueueStatusFailed:
		return true
	}
	return false
}

// LedgerStatus represents the delivery state of a sent email. Statuses
// form a fixed order and a ledger row only ever moves forward in it.
type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusSent      LedgerStatus = "sent"
	LedgerStatusDelivered LedgerStatus = "delivered"
	LedgerStatusBounced   LedgerStatus = "bounced"
)

func (s LedgerStatus) String() string { return string(s) }

func (s LedgerStatus) IsValid() bool {
	switch s {
	case LedgerStatusPending, LedgerStatusSent, LedgerStatusDelivered, LedgerStatusBounced:
		return true
	}
	return false
}

// Rank positions a status in the escalation order. Unknown statuses
// rank below pending so a conditional update can never be satisfied by
// garbage data.
func (s LedgerStatus) Rank() int {
	switch s {
	case LedgerStatusPending:
		return 0
	case LedgerStatusSent:
		return 1
	case LedgerStatusDelivered:
		return 2
	case LedgerStatusBounced:
		return 3
	}
	return -1
}

// StatusesBelow returns every valid status strictly below s in the
// escalation order. A conditional UPDATE restricted to this set can
// only ever advance a row.
func StatusesBelow(s LedgerStatus) []LedgerStatus {
	all := []LedgerStatus{LedgerStatusPending, LedgerStatusSent, LedgerStatusDelivered, LedgerStatusBounced}
	below := make([]LedgerStatus, 0, len(all))
	for _, candidate := range all {
		if candidate.Rank() < s.Rank() {
			below = append(below, candidate)
		}
	}
	return below
}

func ParseLedgerStatusFromString(s string) (LedgerStatus, error) {
	st := LedgerStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid ledger status %q", ErrValidation, s)
	}
	return st, nil
}

// QueueItem is one pending outbound email awaiting dispatch.
type QueueItem struct {
	ID           string
	ToEmail      string
	ToName       string
	TemplateSlug *string
	Subject      *string
	Data         map[string]string
	StoreID      string
	CustomerID   *string
	OrderID      *string
	Category     string
	Attempts     int
	MaxAttempts  int
	Status       QueueStatus
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProcessedAt  *time.Time
}

func (q *QueueItem) Validate() error {
	if strings.TrimSpace(q.ToEmail) == "" {
		return fmt.Errorf("%w: recipient email is required", ErrValidation)
	}
	if strings.TrimSpace(q.StoreID) == "" {
		return fmt.Errorf("%w: store id is required", ErrValidation)
	}
	if q.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1", ErrValidation)
	}
	return nil
}

// LedgerRecord is the durable record of one dispatched email. It is
// created once at successful send and afterwards only mutated by the
// webhook reconciler, always in the forward direction of the status
// order.
type LedgerRecord struct {
	ID                string
	StoreID           string
	CustomerID        *string
	OrderID           *string
	Recipient         string
	FromEmail         string
	Subject           string
	Category          string
	Status            LedgerStatus
	ProviderMessageID string
	SentAt            *time.Time
	DeliveredAt       *time.Time
	OpenedAt          *time.Time
	ClickedAt         *time.Time
	BouncedAt         *time.Time
	ComplainedAt      *time.Time
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BulkSendRecord is the campaign-scoped counterpart of a ledger record.
// ClickCount accumulates through atomic increments only.
type BulkSendRecord struct {
	ID                string
	CampaignID        string
	Recipient         string
	Status            LedgerStatus
	ProviderMessageID string
	ClickCount        int
	SentAt            *time.Time
	DeliveredAt       *time.Time
	OpenedAt          *time.Time
	ClickedAt         *time.Time
	BouncedAt         *time.Time
	ComplainedAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EmailEvent is an append-only audit row for one webhook delivery.
type EmailEvent struct {
	ID         string
	LedgerID   string
	Type       EventType
	RawPayload []byte
	UserAgent  *string
	IPAddress  *string
	ClickedURL *string
	CreatedAt  time.Time
}

// EmailTemplate is a named template definition. StoreID nil means the
// template is global; store-scoped definitions shadow global ones.
type EmailTemplate struct {
	ID       string
	Slug     string
	StoreID  *string
	Active   bool
	Subject  string
	HTMLBody string
	TextBody string
}

// Store carries the generic store fields the sender resolver falls
// back to.
type Store struct {
	ID           string
	Name         string
	ContactEmail string
}

// StoreEmailSettings is the dedicated per-store sender identity record.
// Empty fields fall back to the generic store record.
type StoreEmailSettings struct {
	StoreID   string
	FromName  string
	FromEmail string
	ReplyTo   string
}
