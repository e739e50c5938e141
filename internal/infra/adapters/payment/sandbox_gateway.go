package payment

import (
	"context"
	"fmt"
	"sync"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SandboxGateway)(nil)

// SandboxGateway is an in-memory gateway for local runs and tests. Payments
// are settled with Settle and then visible to lookups and searches.
type SandboxGateway struct {
	mu       sync.Mutex
	seq      int64
	prefs    map[string]adapter.CheckoutRequest // preference id -> request
	payments map[string]adapter.PaymentInfo
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		prefs:    make(map[string]adapter.CheckoutRequest),
		payments: make(map[string]adapter.PaymentInfo),
	}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *SandboxGateway) CreatePreference(ctx context.Context, accessToken string, req adapter.CheckoutRequest) (*adapter.CheckoutPreference, error) {
	if req.ExternalReference == "" {
		return nil, domain.Validationf("external reference is required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("pref")
	g.prefs[id] = req
	return &adapter.CheckoutPreference{
		ID:               id,
		InitPoint:        "https://sandbox.example.test/checkout/" + id,
		SandboxInitPoint: "https://sandbox.example.test/checkout/" + id,
	}, nil
}

// Settle records a payment with status for the transaction behind the
// preference and returns the payment ID a webhook would carry.
func (g *SandboxGateway) Settle(preferenceID, status string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.prefs[preferenceID]
	if !ok {
		return "", fmt.Errorf("%w: preference %s", domain.ErrNotFound, preferenceID)
	}
	id := g.next("pay")
	g.payments[id] = adapter.PaymentInfo{ID: id, Status: status, ExternalReference: req.ExternalReference}
	return id, nil
}

func (g *SandboxGateway) LookupPayment(ctx context.Context, accessToken, paymentID string) (*adapter.PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, paymentID)
	}
	return &p, nil
}

func (g *SandboxGateway) SearchByExternalRef(ctx context.Context, accessToken, externalRef string) ([]adapter.PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []adapter.PaymentInfo
	for _, p := range g.payments {
		if p.ExternalReference == externalRef {
			out = append(out, p)
		}
	}
	return out, nil
}
