package adapter

import (
	"context"
	"time"
)

// GiftCardDelivery carries what the recipient needs to redeem a card.
type GiftCardDelivery struct {
	Email       string
	Code        string // display form
	PlanName    string
	ExpiresAt   time.Time
	Manual      bool
	Transaction string // empty for manual issuance
}

// GiftCardNotifier hands a freshly minted code to the delivery channel.
type GiftCardNotifier interface {
	Deliver(ctx context.Context, d GiftCardDelivery) error
}
