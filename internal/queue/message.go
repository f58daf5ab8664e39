package queue

import (
	"fmt"
	"strings"
	"time"

	"mailroom/internal/domain"
)

// EmailEventMessage is the broker payload announcing a reconciled
// delivery event to downstream consumers.
type EmailEventMessage struct {
	LedgerID          string              `json:"ledgerId,omitempty"`
	BulkSendID        string              `json:"bulkSendId,omitempty"`
	ProviderMessageID string              `json:"providerMessageId"`
	StoreID           string              `json:"storeId,omitempty"`
	Type              domain.EventType    `json:"type"`
	Status            domain.LedgerStatus `json:"status"`
	OccurredAt        time.Time           `json:"occurredAt"`
}

func (m EmailEventMessage) Validate() error {
	if strings.TrimSpace(m.ProviderMessageID) == "" {
		return fmt.Errorf("providerMessageId is required")
	}
	if strings.TrimSpace(m.LedgerID) == "" && strings.TrimSpace(m.BulkSendID) == "" {
		return fmt.Errorf("ledgerId or bulkSendId is required")
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid event type %q", m.Type)
	}
	return nil
}
