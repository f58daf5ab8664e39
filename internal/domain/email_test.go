package domain

import (
	"errors"
	"testing"
)

func TestParseLedgerStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    LedgerStatus
		wantErr bool
	}{
		{name: "valid lowercase", input: "delivered", want: LedgerStatusDelivered},
		{name: "valid with spaces and case", input: " Bounced ", want: LedgerStatusBounced},
		{name: "invalid", input: "opened", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLedgerStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseLedgerStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseLedgerStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseLedgerStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLedgerStatusOrdering(t *testing.T) {
	t.Parallel()

	order := []LedgerStatus{LedgerStatusPending, LedgerStatusSent, LedgerStatusDelivered, LedgerStatusBounced}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("rank(%s)=%d should exceed rank(%s)=%d", order[i], order[i].Rank(), order[i-1], order[i-1].Rank())
		}
	}

	if got := LedgerStatus("unknown").Rank(); got != -1 {
		t.Fatalf("unknown status rank = %d, want -1", got)
	}
}

func TestStatusesBelow(t *testing.T) {
	t.Parallel()

	below := StatusesBelow(LedgerStatusDelivered)
	if len(below) != 2 {
		t.Fatalf("StatusesBelow(delivered) = %v, want 2 entries", below)
	}
	for _, s := range below {
		if s.Rank() >= LedgerStatusDelivered.Rank() {
			t.Fatalf("StatusesBelow(delivered) contains %s", s)
		}
	}

	if got := StatusesBelow(LedgerStatusPending); len(got) != 0 {
		t.Fatalf("StatusesBelow(pending) = %v, want empty", got)
	}

	if got := StatusesBelow(LedgerStatusBounced); len(got) != 3 {
		t.Fatalf("StatusesBelow(bounced) = %v, want 3 entries", got)
	}
}

func TestParseEventType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		want   EventType
		wantOk bool
	}{
		{input: "email.sent", want: EventSent, wantOk: true},
		{input: "email.delivered", want: EventDelivered, wantOk: true},
		{input: "email.opened", want: EventOpened, wantOk: true},
		{input: "email.clicked", want: EventClicked, wantOk: true},
		{input: "email.bounced", want: EventBounced, wantOk: true},
		{input: "email.complained", want: EventComplained, wantOk: true},
		{input: "email.delivery_delayed", wantOk: false},
		{input: "contact.created", wantOk: false},
		{input: "", wantOk: false},
	}

	for _, tt := range tests {
		got, ok := ParseEventType(tt.input)
		if ok != tt.wantOk {
			t.Fatalf("ParseEventType(%q) ok = %v, want %v", tt.input, ok, tt.wantOk)
		}
		if ok && got != tt.want {
			t.Fatalf("ParseEventType(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestEventTypeTargetStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		event EventType
		want  LedgerStatus
	}{
		{event: EventSent, want: LedgerStatusSent},
		{event: EventDelivered, want: LedgerStatusDelivered},
		{event: EventOpened, want: LedgerStatusDelivered},
		{event: EventClicked, want: LedgerStatusDelivered},
		{event: EventBounced, want: LedgerStatusBounced},
		{event: EventComplained, want: LedgerStatusBounced},
	}

	for _, tt := range tests {
		if got := tt.event.TargetStatus(); got != tt.want {
			t.Fatalf("%s.TargetStatus() = %s, want %s", tt.event, got, tt.want)
		}
	}
}

func TestEventTypeTimestampSemantics(t *testing.T) {
	t.Parallel()

	firstOnly := map[EventType]bool{
		EventSent:       false,
		EventDelivered:  false,
		EventOpened:     true,
		EventClicked:    true,
		EventBounced:    false,
		EventComplained: false,
	}

	for event, want := range firstOnly {
		if got := event.FirstOccurrenceOnly(); got != want {
			t.Fatalf("%s.FirstOccurrenceOnly() = %v, want %v", event, got, want)
		}
		if event.TimestampColumn() == "" {
			t.Fatalf("%s.TimestampColumn() is empty", event)
		}
	}
}

func TestQueueItemValidate(t *testing.T) {
	t.Parallel()

	valid := QueueItem{
		ToEmail:     "customer@example.com",
		StoreID:     "store-1",
		MaxAttempts: 3,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*QueueItem)
	}{
		{name: "missing recipient", mutate: func(q *QueueItem) { q.ToEmail = " " }},
		{name: "missing store", mutate: func(q *QueueItem) { q.StoreID = "" }},
		{name: "zero max attempts", mutate: func(q *QueueItem) { q.MaxAttempts = 0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			item := valid
			tt.mutate(&item)
			if err := item.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}
