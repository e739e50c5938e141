//go:build !integration

package api_test

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/repository"
	"giftcard-service/internal/usecase"
)

var errNotConfigured = errors.New("not configured")

type mockPlanUC struct {
	ListActiveFunc func(ctx context.Context) ([]*model.SubscriptionPlan, error)
	ListAllFunc    func(ctx context.Context) ([]*model.SubscriptionPlan, error)
	CreateFunc     func(ctx context.Context, name string, dt model.DurationType, dv int, price decimal.Decimal) (*model.SubscriptionPlan, error)
	UpdateFunc     func(ctx context.Context, id string, upd usecase.PlanUpdate) (*model.SubscriptionPlan, error)
}

func (m *mockPlanUC) ListActive(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx)
	}
	return nil, nil
}
func (m *mockPlanUC) ListAll(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return nil, nil
}
func (m *mockPlanUC) Get(ctx context.Context, id string) (*model.SubscriptionPlan, error) {
	return nil, errNotConfigured
}
func (m *mockPlanUC) Create(ctx context.Context, name string, dt model.DurationType, dv int, price decimal.Decimal) (*model.SubscriptionPlan, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, name, dt, dv, price)
	}
	return nil, errNotConfigured
}
func (m *mockPlanUC) Update(ctx context.Context, id string, upd usecase.PlanUpdate) (*model.SubscriptionPlan, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, upd)
	}
	return nil, errNotConfigured
}

type mockSettingsUC struct {
	values  map[string]string
	SetFunc func(ctx context.Context, key string, value *string) error
}

func (m *mockSettingsUC) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok && v != "", nil
}
func (m *mockSettingsUC) Set(ctx context.Context, key string, value *string) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value)
	}
	return nil
}

type mockGiftCardUC struct {
	IssueManualFunc func(ctx context.Context, req usecase.MintRequest) (*model.GiftCard, error)
}

func (m *mockGiftCardUC) Mint(ctx context.Context, tx repository.Tx, req usecase.MintRequest) (*model.GiftCard, error) {
	return nil, errNotConfigured
}
func (m *mockGiftCardUC) IssueManual(ctx context.Context, req usecase.MintRequest) (*model.GiftCard, error) {
	if m.IssueManualFunc != nil {
		return m.IssueManualFunc(ctx, req)
	}
	return nil, errNotConfigured
}
func (m *mockGiftCardUC) QueueDelivery(card *model.GiftCard, transactionID string) {}

type mockRedemptionUC struct {
	RedeemFunc func(ctx context.Context, code string) (*model.EntitlementGrant, error)
}

func (m *mockRedemptionUC) Redeem(ctx context.Context, code string) (*model.EntitlementGrant, error) {
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, code)
	}
	return nil, errNotConfigured
}

type mockLedgerUC struct {
	usecase.LedgerUseCase
	GetFunc func(ctx context.Context, id string) (*model.PaymentTransaction, error)
}

func (m *mockLedgerUC) Get(ctx context.Context, id string) (*model.PaymentTransaction, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, errNotConfigured
}

type mockPaymentUC struct {
	StartPurchaseFunc func(ctx context.Context, planID, email, origin string) (*usecase.Checkout, error)
	ReconcileFunc     func(ctx context.Context, n model.Notification) (*usecase.ReconcileResult, error)
}

func (m *mockPaymentUC) StartPurchase(ctx context.Context, planID, email, origin string) (*usecase.Checkout, error) {
	if m.StartPurchaseFunc != nil {
		return m.StartPurchaseFunc(ctx, planID, email, origin)
	}
	return nil, errNotConfigured
}
func (m *mockPaymentUC) Initiate(ctx context.Context, t *model.PaymentTransaction, origin string) (*usecase.Checkout, error) {
	return nil, errNotConfigured
}
func (m *mockPaymentUC) Reconcile(ctx context.Context, n model.Notification) (*usecase.ReconcileResult, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, n)
	}
	return nil, errNotConfigured
}
func (m *mockPaymentUC) SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	return 0, nil
}

type mockStatsUC struct {
	TotalsFunc func(ctx context.Context) (*usecase.Stats, error)
}

func (m *mockStatsUC) Totals(ctx context.Context) (*usecase.Stats, error) {
	if m.TotalsFunc != nil {
		return m.TotalsFunc(ctx)
	}
	return nil, errNotConfigured
}

// mockLimiter allows the first n calls per key.
type mockLimiter struct {
	n      int
	counts map[string]int
	err    error
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[key]++
	return m.counts[key] <= m.n, nil
}
