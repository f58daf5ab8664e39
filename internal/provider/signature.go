package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mailroom/internal/domain"
)

const defaultToleranceSec = 300

// WebhookHeaders carries the svix-style signature headers attached to
// a provider webhook delivery.
type WebhookHeaders struct {
	ID        string
	Timestamp string
	Signature string
}

// WebhookVerifier authenticates inbound webhook payloads using the
// svix HMAC-SHA256 scheme: the signed content is "{id}.{timestamp}.{body}"
// and the signature header carries space-separated "v1,<base64>" candidates.
//
// An empty secret disables verification; Enabled reports that state so
// callers can log the degraded mode once at startup.
type WebhookVerifier struct {
	secret       []byte
	toleranceSec int64
	now          func() time.Time
}

func NewWebhookVerifier(secret string, toleranceSec int) (*WebhookVerifier, error) {
	return newWebhookVerifier(secret, int64(toleranceSec), time.Now)
}

func newWebhookVerifier(secret string, toleranceSec int64, nowFn func() time.Time) (*WebhookVerifier, error) {
	if toleranceSec <= 0 {
		toleranceSec = defaultToleranceSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return &WebhookVerifier{toleranceSec: toleranceSec, now: nowFn}, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(trimmed, "whsec_"))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}

	return &WebhookVerifier{
		secret:       decoded,
		toleranceSec: toleranceSec,
		now:          nowFn,
	}, nil
}

// Enabled reports whether a signing secret is configured.
func (v *WebhookVerifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Verify authenticates a payload against its signature headers. When no
// secret is configured all payloads pass.
func (v *WebhookVerifier) Verify(headers WebhookHeaders, payload []byte) error {
	if !v.Enabled() {
		return nil
	}

	msgID := strings.TrimSpace(headers.ID)
	timestamp := strings.TrimSpace(headers.Timestamp)
	signature := strings.TrimSpace(headers.Signature)
	if msgID == "" || timestamp == "" || signature == "" {
		return fmt.Errorf("%w: missing signature headers", domain.ErrSignatureInvalid)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", domain.ErrSignatureInvalid)
	}

	nowUnix := v.now().UTC().Unix()
	if ts < nowUnix-v.toleranceSec || ts > nowUnix+v.toleranceSec {
		return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s.%s.", msgID, timestamp)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, candidate := range strings.Fields(signature) {
		parts := strings.SplitN(candidate, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		if hmac.Equal([]byte(parts[1]), []byte(expected)) {
			return nil
		}
	}

	return fmt.Errorf("%w: no matching signature", domain.ErrSignatureInvalid)
}
