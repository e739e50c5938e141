package adapter

import (
	"context"

	"github.com/shopspring/decimal"
)

type CheckoutItem struct {
	Title      string
	Quantity   int
	UnitPrice  decimal.Decimal
	CurrencyID string
}

type BackURLs struct {
	Success string
	Failure string
	Pending string
}

// CheckoutRequest describes a hosted-checkout payment intent.
type CheckoutRequest struct {
	ExternalReference string // our transaction ID
	Items             []CheckoutItem
	PayerEmail        string
	BackURLs          BackURLs
	AutoReturn        string
	NotificationURL   string
}

// CheckoutPreference is the gateway's answer to a CheckoutRequest.
type CheckoutPreference struct {
	ID               string
	InitPoint        string
	SandboxInitPoint string
}

// PaymentInfo is a gateway-side payment as seen by a status lookup.
type PaymentInfo struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
}

// PaymentGateway is the hex port for the hosted-checkout provider. The access
// token is passed per call because it lives in the settings store and may be
// rotated while the process runs.
type PaymentGateway interface {
	Name() string
	CreatePreference(ctx context.Context, accessToken string, req CheckoutRequest) (*CheckoutPreference, error)
	LookupPayment(ctx context.Context, accessToken, paymentID string) (*PaymentInfo, error)
	SearchByExternalRef(ctx context.Context, accessToken, externalRef string) ([]PaymentInfo, error)
}
