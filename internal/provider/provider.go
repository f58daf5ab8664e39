package provider

import "context"

// Message is one concrete outbound email, fully resolved: sender
// identity applied, template rendered.
type Message struct {
	FromName  string
	FromEmail string
	ReplyTo   string
	To        string
	Subject   string
	HTML      string
	Text      string
}

// Provider is the outbound email delivery port. One call issues
// exactly one send; pacing and retries belong to the dispatch loop.
type Provider interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
}

// SendResult stores provider call metadata for audit and persistence.
// MessageID is the join key webhook events reconcile against.
type SendResult struct {
	StatusCode int
	Body       string
	MessageID  string
}
