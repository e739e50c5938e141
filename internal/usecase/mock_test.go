//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/adapter"
	"giftcard-service/internal/domain/ports/repository"
	"giftcard-service/internal/infra/worker"
)

// =============================
// Transactions
// =============================

// snapshotter is implemented by in-memory repos so MockTxManager can emulate
// rollback.
type snapshotter interface {
	snapshot() func()
}

// MockTxManager serializes transactions behind one mutex, which stands in for
// row locks, and restores every participant's state when fn fails.
type MockTxManager struct {
	mu           sync.Mutex
	participants []snapshotter

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(participants ...snapshotter) *MockTxManager {
	return &MockTxManager{participants: participants}
}

type mockTx struct{}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	restores := make([]func(), 0, len(m.participants))
	for _, p := range m.participants {
		restores = append(restores, p.snapshot())
	}
	if err := fn(ctx, mockTx{}); err != nil {
		for _, r := range restores {
			r()
		}
		return err
	}
	return nil
}

// =============================
// Repositories
// =============================

// ---- Mock SubscriptionPlanRepository ----

type MockPlanRepo struct {
	mu   sync.Mutex
	data map[string]*model.SubscriptionPlan

	SaveFunc     func(ctx context.Context, p *model.SubscriptionPlan) error
	FindByIDFunc func(ctx context.Context, id string) (*model.SubscriptionPlan, error)
	ListAllFunc  func(ctx context.Context) ([]*model.SubscriptionPlan, error)
}

var _ repository.SubscriptionPlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{data: map[string]*model.SubscriptionPlan{}}
}

func (r *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	if r.ListAllFunc != nil {
		return r.ListAllFunc(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.SubscriptionPlan, 0, len(r.data))
	for _, p := range r.data {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- Mock GiftCardRepository ----

type MockGiftCardRepo struct {
	mu     sync.Mutex
	byID   map[string]*model.GiftCard
	byCode map[string]string

	InsertFunc   func(ctx context.Context, tx repository.Tx, g *model.GiftCard) (bool, error)
	MarkUsedFunc func(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error)
}

var _ repository.GiftCardRepository = (*MockGiftCardRepo)(nil)

func NewMockGiftCardRepo() *MockGiftCardRepo {
	return &MockGiftCardRepo{byID: map[string]*model.GiftCard{}, byCode: map[string]string{}}
}

func (r *MockGiftCardRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[string]*model.GiftCard, len(r.byID))
	for k, v := range r.byID {
		cp := *v
		ids[k] = &cp
	}
	codes := make(map[string]string, len(r.byCode))
	for k, v := range r.byCode {
		codes[k] = v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.byID, r.byCode = ids, codes
	}
}

func (r *MockGiftCardRepo) Insert(ctx context.Context, tx repository.Tx, g *model.GiftCard) (bool, error) {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, tx, g)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byCode[g.Code]; taken {
		return false, nil
	}
	cp := *g
	r.byID[g.ID] = &cp
	r.byCode[g.Code] = g.ID
	return true, nil
}

func (r *MockGiftCardRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GiftCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.byID[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockGiftCardRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.GiftCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

// MarkUsed mirrors the conditional UPDATE: unused and unexpired only.
func (r *MockGiftCardRepo) MarkUsed(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	if r.MarkUsedFunc != nil {
		return r.MarkUsedFunc(ctx, tx, id, at)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byID[id]
	if !ok || g.Used || !g.ExpiresAt.After(at) {
		return false, nil
	}
	g.Used = true
	t := at
	g.UsedAt = &t
	return true, nil
}

func (r *MockGiftCardRepo) CountByState(ctx context.Context, tx repository.Tx, at time.Time) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, g := range r.byID {
		switch {
		case g.Used:
			out["used"]++
		case g.ExpiredAt(at):
			out["expired"]++
		default:
			out["unused"]++
		}
	}
	return out, nil
}

func (r *MockGiftCardRepo) All() []*model.GiftCard {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.GiftCard, 0, len(r.byID))
	for _, g := range r.byID {
		cp := *g
		out = append(out, &cp)
	}
	return out
}

// put stores a card directly, bypassing Mint.
func (r *MockGiftCardRepo) put(g *model.GiftCard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	r.byID[g.ID] = &cp
	r.byCode[g.Code] = g.ID
}

// ---- Mock PaymentTransactionRepository ----

type MockTransactionRepo struct {
	mu   sync.Mutex
	data map[string]*model.PaymentTransaction

	InsertFunc     func(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error
	TransitionFunc func(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus, externalRef, giftCardID *string) (*model.PaymentTransaction, bool, error)
}

var _ repository.PaymentTransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{data: map[string]*model.PaymentTransaction{}}
}

func (r *MockTransactionRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[string]*model.PaymentTransaction, len(r.data))
	for k, v := range r.data {
		cp := *v
		saved[k] = &cp
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.data = saved
	}
}

func (r *MockTransactionRepo) Insert(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, tx, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.data[t.ID] = &cp
	return nil
}

func (r *MockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string, forUpdate bool) (*model.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.data[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockTransactionRepo) FindByExternalRef(ctx context.Context, tx repository.Tx, ref string, forUpdate bool) (*model.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.data {
		if t.ExternalRef != nil && *t.ExternalRef == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockTransactionRepo) SetExternalRef(ctx context.Context, tx repository.Tx, id, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok || t.Status != model.TransactionPending {
		return false, nil
	}
	v := ref
	t.ExternalRef = &v
	return true, nil
}

func (r *MockTransactionRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus, externalRef, giftCardID *string) (*model.PaymentTransaction, bool, error) {
	if r.TransitionFunc != nil {
		return r.TransitionFunc(ctx, tx, id, status, externalRef, giftCardID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok || t.Status != model.TransactionPending {
		return nil, false, nil
	}
	t.Status = status
	if externalRef != nil {
		v := *externalRef
		t.ExternalRef = &v
	}
	if giftCardID != nil {
		v := *giftCardID
		t.GiftCardID = &v
	}
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, true, nil
}

func (r *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentTransaction
	for _, t := range r.data {
		if t.Status == model.TransactionPending && t.CreatedAt.Before(olderThan) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockTransactionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.TransactionStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.TransactionStatus]int{}
	for _, t := range r.data {
		out[t.Status]++
	}
	return out, nil
}

func (r *MockTransactionRepo) get(id string) *model.PaymentTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.data[id]
	return &cp
}

// ---- Mock SettingsRepository ----

type MockSettingsRepo struct {
	mu   sync.Mutex
	data map[string]*string

	GetErr error
}

var _ repository.SettingsRepository = (*MockSettingsRepo)(nil)

func NewMockSettingsRepo(kv map[string]string) *MockSettingsRepo {
	r := &MockSettingsRepo{data: map[string]*string{}}
	for k, v := range kv {
		val := v
		r.data[k] = &val
	}
	return r
}

func (r *MockSettingsRepo) Get(ctx context.Context, tx repository.Tx, key string) (*model.Setting, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &model.Setting{Key: key, Value: v, UpdatedAt: time.Now()}, nil
}

func (r *MockSettingsRepo) Upsert(ctx context.Context, tx repository.Tx, key string, value *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = value
	return nil
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu       sync.Mutex
	Requests []adapter.CheckoutRequest
	Tokens   []string

	CreatePreferenceFunc    func(ctx context.Context, token string, req adapter.CheckoutRequest) (*adapter.CheckoutPreference, error)
	LookupPaymentFunc       func(ctx context.Context, token, paymentID string) (*adapter.PaymentInfo, error)
	SearchByExternalRefFunc func(ctx context.Context, token, ref string) ([]adapter.PaymentInfo, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mockpay" }

func (m *MockPaymentGateway) CreatePreference(ctx context.Context, token string, req adapter.CheckoutRequest) (*adapter.CheckoutPreference, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.Tokens = append(m.Tokens, token)
	m.mu.Unlock()
	if m.CreatePreferenceFunc != nil {
		return m.CreatePreferenceFunc(ctx, token, req)
	}
	id := "PREF-" + req.ExternalReference
	return &adapter.CheckoutPreference{
		ID:               id,
		InitPoint:        "https://pay.example/checkout?pref_id=" + id,
		SandboxInitPoint: "https://sandbox.pay.example/checkout?pref_id=" + id,
	}, nil
}

func (m *MockPaymentGateway) LookupPayment(ctx context.Context, token, paymentID string) (*adapter.PaymentInfo, error) {
	if m.LookupPaymentFunc != nil {
		return m.LookupPaymentFunc(ctx, token, paymentID)
	}
	return nil, errors.New("lookup not configured")
}

func (m *MockPaymentGateway) SearchByExternalRef(ctx context.Context, token, ref string) ([]adapter.PaymentInfo, error) {
	if m.SearchByExternalRefFunc != nil {
		return m.SearchByExternalRefFunc(ctx, token, ref)
	}
	return nil, nil
}

// ---- Mock GiftCardNotifier ----

type MockNotifier struct {
	mu        sync.Mutex
	Delivered []adapter.GiftCardDelivery
	Err       error
}

var _ adapter.GiftCardNotifier = (*MockNotifier)(nil)

func (m *MockNotifier) Deliver(ctx context.Context, d adapter.GiftCardDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Delivered = append(m.Delivered, d)
	return m.Err
}

func (m *MockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Delivered)
}

// syncSubmitter runs tasks inline so tests can assert on their effects.
type syncSubmitter struct{}

func (syncSubmitter) Submit(task worker.Task) error { return task(context.Background()) }

// seqCodeGenerator returns the given codes in order, then fails.
type seqCodeGenerator struct {
	mu    sync.Mutex
	codes []string
}

func (g *seqCodeGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return "", errors.New("no more codes")
	}
	c := g.codes[0]
	g.codes = g.codes[1:]
	return c, nil
}

// fakeCipher reverses strings and tags them so tests can tell stored values apart.
type fakeCipher struct{}

func (fakeCipher) Encrypt(s string) (string, error) { return "enc:" + reverse(s), nil }
func (fakeCipher) Decrypt(s string) (string, error) {
	if len(s) < 4 || s[:4] != "enc:" {
		return "", errors.New("not encrypted")
	}
	return reverse(s[4:]), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// =============================
// Helpers
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func seedPlan(repo *MockPlanRepo, name string, dt model.DurationType, value int, price string, active bool) *model.SubscriptionPlan {
	p := &model.SubscriptionPlan{
		ID:            uuid.NewString(),
		Name:          name,
		DurationType:  dt,
		DurationValue: value,
		Price:         decimal.RequireFromString(price),
		Active:        active,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	_ = repo.Save(context.Background(), repository.NoTX, p)
	return p
}

func ptr[T any](v T) *T { return &v }
