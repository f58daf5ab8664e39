package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultResendBaseURL = "https://api.resend.com"
	defaultSendTimeout   = 10 * time.Second
)

type resendSendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type resendSendResponse struct {
	ID string `json:"id"`
}

// ResendProvider delivers email through the Resend REST API.
type ResendProvider struct {
	client  *resty.Client
	baseURL string
}

func NewResendProvider(apiKey, baseURL string) (*ResendProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewResendProviderWithClient(apiKey, baseURL, client)
}

func NewResendProviderWithClient(apiKey, baseURL string, client *resty.Client) (*ResendProvider, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	trimmedBaseURL := strings.TrimSpace(baseURL)
	if trimmedBaseURL == "" {
		trimmedBaseURL = defaultResendBaseURL
	}
	if _, err := url.ParseRequestURI(trimmedBaseURL); err != nil {
		return nil, fmt.Errorf("invalid resend base url: %w", err)
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)
	client.SetAuthToken(trimmedKey)

	return &ResendProvider{
		client:  client,
		baseURL: strings.TrimRight(trimmedBaseURL, "/"),
	}, nil
}

func (p *ResendProvider) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(msg.FromEmail) == "" {
		return nil, fmt.Errorf("sender email is required")
	}

	reqBody := resendSendRequest{
		From:    formatSender(msg.FromName, msg.FromEmail),
		To:      []string{msg.To},
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(p.baseURL + "/emails")
	if err != nil {
		return nil, &ProviderError{
			Message:   "provider request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "provider returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  providerMessageID(response.Body()),
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

// formatSender renders "Name <addr>" when a display name is set.
func formatSender(name, email string) string {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", trimmedName, email)
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func providerMessageID(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var parsed resendSendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}

	return strings.TrimSpace(parsed.ID)
}
