package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"giftcard-service/internal/domain/ports/adapter"
	"giftcard-service/internal/infra/i18n"
)

var _ adapter.GiftCardNotifier = (*WebhookNotifier)(nil)

// WebhookNotifier posts rendered messages as JSON to a mail relay.
type WebhookNotifier struct {
	url    string
	tr     *i18n.Translator
	client *http.Client
	logger *zerolog.Logger
}

type webhookPayload struct {
	Message
	Code          string    `json:"code"`
	PlanName      string    `json:"plan_name"`
	ExpiresAt     time.Time `json:"expires_at"`
	Manual        bool      `json:"manual"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Locale        string    `json:"locale"`
}

func NewWebhookNotifier(url string, timeout time.Duration, tr *i18n.Translator, logger *zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "WebhookNotifier").Logger()
	return &WebhookNotifier{url: url, tr: tr, client: &http.Client{Timeout: timeout}, logger: &l}
}

func (n *WebhookNotifier) Deliver(ctx context.Context, d adapter.GiftCardDelivery) error {
	body, err := json.Marshal(webhookPayload{
		Message:       render(n.tr, d),
		Code:          d.Code,
		PlanName:      d.PlanName,
		ExpiresAt:     d.ExpiresAt.UTC(),
		Manual:        d.Manual,
		TransactionID: d.Transaction,
		Locale:        n.tr.Locale(),
	})
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, n.post(ctx, body)
	},
		backoff.WithMaxTries(3),
		backoff.WithNotify(func(err error, next time.Duration) {
			n.logger.Warn().Err(err).Dur("retry_in", next).Msg("delivery webhook failed, retrying")
		}),
	)
	return err
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("delivery webhook http %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("delivery webhook http %d", resp.StatusCode))
	}
}
