package notifier

import (
	"context"

	"github.com/rs/zerolog"

	"giftcard-service/internal/domain/ports/adapter"
	"giftcard-service/internal/infra/i18n"
	"giftcard-service/internal/infra/logging"
)

var _ adapter.GiftCardNotifier = (*LogNotifier)(nil)

// LogNotifier only logs deliveries. Used when no delivery webhook is
// configured; codes are redacted unless dev is set.
type LogNotifier struct {
	tr     *i18n.Translator
	dev    bool
	logger *zerolog.Logger
}

func NewLogNotifier(tr *i18n.Translator, dev bool, logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "LogNotifier").Logger()
	return &LogNotifier{tr: tr, dev: dev, logger: &l}
}

func (n *LogNotifier) Deliver(ctx context.Context, d adapter.GiftCardDelivery) error {
	msg := render(n.tr, d)
	logging.With(ctx, n.logger).Info().
		Str("to", logging.Redact(msg.To, n.dev)).
		Str("subject", msg.Subject).
		Str("code", logging.Redact(d.Code, n.dev)).
		Str("transaction_id", d.Transaction).
		Bool("manual", d.Manual).
		Msg("gift card delivery")
	return nil
}
