package notifier

import (
	"giftcard-service/internal/domain/ports/adapter"
	"giftcard-service/internal/infra/i18n"
)

// Message is a rendered gift card e-mail.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func render(tr *i18n.Translator, d adapter.GiftCardDelivery) Message {
	bodyKey := "giftcard_body"
	if d.Manual {
		bodyKey = "giftcard_body_manual"
	}
	expires := d.ExpiresAt.Format(tr.T("date_layout"))
	return Message{
		To:      d.Email,
		Subject: tr.T("giftcard_subject", d.PlanName),
		Body:    tr.T(bodyKey, d.PlanName, d.Code, expires),
	}
}
