package domain

// EventType is the internal normalization of a provider webhook event.
type EventType string

const (
	EventSent       EventType = "sent"
	EventDelivered  EventType = "delivered"
	EventOpened     EventType = "opened"
	EventClicked    EventType = "clicked"
	EventBounced    EventType = "bounced"
	EventComplained EventType = "complained"
)

func (e EventType) String() string { return string(e) }

func (e EventType) IsValid() bool {
	switch e {
	case EventSent, EventDelivered, EventOpened, EventClicked, EventBounced, EventComplained:
		return true
	}
	return false
}

// providerEventTypes maps the provider's event taxonomy onto internal
// event types. The provider adds types over time; anything absent here
// is acknowledged and dropped rather than treated as an error.
var providerEventTypes = map[string]EventType{
	"email.sent":       EventSent,
	"email.delivered":  EventDelivered,
	"email.opened":     EventOpened,
	"email.clicked":    EventClicked,
	"email.bounced":    EventBounced,
	"email.complained": EventComplained,
}

// ParseEventType resolves a provider event-type string. The second
// return is false for unrecognized types.
func ParseEventType(providerType string) (EventType, bool) {
	evt, ok := providerEventTypes[providerType]
	return evt, ok
}

// TargetStatus returns the ledger status an event escalates a record
// toward. Opens and clicks imply delivery even when the delivered
// event raced behind them.
func (e EventType) TargetStatus() LedgerStatus {
	switch e {
	case EventSent:
		return LedgerStatusSent
	case EventDelivered, EventOpened, EventClicked:
		return LedgerStatusDelivered
	case EventBounced, EventComplained:
		return LedgerStatusBounced
	}
	return LedgerStatusPending
}

// TimestampColumn names the ledger timestamp an event writes.
// FirstOccurrenceOnly reports whether that write applies only when the
// column is still unset: opens and clicks repeat at high frequency and
// keep their first observation, the rest record the latest arrival.
func (e EventType) TimestampColumn() string {
	switch e {
	case EventSent:
		return "sent_at"
	case EventDelivered:
		return "delivered_at"
	case EventOpened:
		return "opened_at"
	case EventClicked:
		return "clicked_at"
	case EventBounced:
		return "bounced_at"
	case EventComplained:
		return "complained_at"
	}
	return ""
}

func (e EventType) FirstOccurrenceOnly() bool {
	return e == EventOpened || e == EventClicked
}
