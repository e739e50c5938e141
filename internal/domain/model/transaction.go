package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"giftcard-service/internal/domain"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionApproved  TransactionStatus = "approved"
	TransactionRejected  TransactionStatus = "rejected"
	TransactionCancelled TransactionStatus = "cancelled"
)

// ParseTransactionStatus accepts only the four ledger states.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case TransactionPending, TransactionApproved, TransactionRejected, TransactionCancelled:
		return st, nil
	default:
		return "", domain.Validationf("unknown transaction status %q", s)
	}
}

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionApproved || s == TransactionRejected || s == TransactionCancelled
}

// CanTransitionTo encodes pending -> {approved, rejected, cancelled}.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == TransactionPending && next.IsTerminal()
}

// PaymentTransaction records one purchase attempt. Amount is copied from the
// plan at creation and never changes afterwards.
type PaymentTransaction struct {
	ID          string            `json:"id"`
	PlanID      string            `json:"plan_id"`
	Email       string            `json:"email"`
	Amount      decimal.Decimal   `json:"amount"`
	ExternalRef *string           `json:"external_ref,omitempty"`
	GiftCardID  *string           `json:"gift_card_id,omitempty"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// GatewayOutcome is the internal reading of a gateway-reported status.
type GatewayOutcome int

const (
	OutcomeUnknown GatewayOutcome = iota // leave the transaction pending
	OutcomeApproved
	OutcomeRejected
	OutcomeCancelled
)

// MapGatewayStatus translates gateway vocabulary. Anything not clearly final
// maps to OutcomeUnknown rather than being guessed.
func MapGatewayStatus(status string) GatewayOutcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return OutcomeApproved
	case "rejected":
		return OutcomeRejected
	case "cancelled", "canceled":
		return OutcomeCancelled
	default:
		return OutcomeUnknown
	}
}

// Status returns the ledger status for a final outcome.
func (o GatewayOutcome) Status() (TransactionStatus, bool) {
	switch o {
	case OutcomeApproved:
		return TransactionApproved, true
	case OutcomeRejected:
		return TransactionRejected, true
	case OutcomeCancelled:
		return TransactionCancelled, true
	default:
		return "", false
	}
}

func (o GatewayOutcome) String() string {
	if st, ok := o.Status(); ok {
		return string(st)
	}
	return "unknown"
}

// Notification is a gateway status report after payload parsing.
// At least one of ExternalRef and TransactionID is set.
type Notification struct {
	ExternalRef   string
	TransactionID string
	PaymentID     string
	Status        string
}
