package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/repository"
	"giftcard-service/internal/infra/logging"
	"giftcard-service/internal/infra/metrics"
)

// LedgerUseCase owns the payment transaction state machine:
// pending -> {approved, rejected, cancelled}.
type LedgerUseCase interface {
	// Create opens a pending transaction for an active plan, capturing the
	// plan's current price as the amount.
	Create(ctx context.Context, planID, email string) (*model.PaymentTransaction, error)
	// Transition applies newStatus only if the transaction is still pending.
	// A transaction already in a terminal state is returned unchanged.
	Transition(ctx context.Context, tx repository.Tx, id string, newStatus model.TransactionStatus, externalRef, giftCardID *string) (*model.PaymentTransaction, error)
	AttachExternalRef(ctx context.Context, id, ref string) error
	Get(ctx context.Context, id string) (*model.PaymentTransaction, error)
	FindByID(ctx context.Context, tx repository.Tx, id string, forUpdate bool) (*model.PaymentTransaction, error)
	FindByExternalRef(ctx context.Context, tx repository.Tx, ref string, forUpdate bool) (*model.PaymentTransaction, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error)
}

var _ LedgerUseCase = (*ledgerUC)(nil)

type ledgerUC struct {
	plans        repository.SubscriptionPlanRepository
	transactions repository.PaymentTransactionRepository
	now          func() time.Time
	dev          bool
	log          *zerolog.Logger
}

func NewLedgerUseCase(plans repository.SubscriptionPlanRepository, transactions repository.PaymentTransactionRepository, logger *zerolog.Logger, dev bool) LedgerUseCase {
	l := logger.With().Str("component", "LedgerUseCase").Logger()
	return &ledgerUC{
		plans:        plans,
		transactions: transactions,
		now:          func() time.Time { return time.Now().UTC() },
		dev:          dev,
		log:          &l,
	}
}

func (u *ledgerUC) Create(ctx context.Context, planID, email string) (*model.PaymentTransaction, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	plan, err := loadPurchasablePlan(ctx, u.plans, repository.NoTX, planID)
	if err != nil {
		return nil, err
	}
	now := u.now()
	t := &model.PaymentTransaction{
		ID:        uuid.NewString(),
		PlanID:    plan.ID,
		Email:     addr,
		Amount:    plan.Price,
		Status:    model.TransactionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.transactions.Insert(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	metrics.IncTransaction(string(model.TransactionPending))
	u.log.Info().
		Str("transaction_id", t.ID).
		Str("plan_id", plan.ID).
		Str("amount", t.Amount.StringFixed(2)).
		Str("email", logging.Redact(addr, u.dev)).
		Msg("transaction created")
	return t, nil
}

func (u *ledgerUC) Transition(ctx context.Context, tx repository.Tx, id string, newStatus model.TransactionStatus, externalRef, giftCardID *string) (*model.PaymentTransaction, error) {
	if !newStatus.IsTerminal() {
		return nil, domain.Validationf("cannot transition to %q", newStatus)
	}
	if newStatus == model.TransactionApproved && (giftCardID == nil || *giftCardID == "") {
		return nil, domain.Validationf("approved transaction requires a gift card")
	}
	updated, ok, err := u.transactions.TransitionIfPending(ctx, tx, id, newStatus, externalRef, giftCardID)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := u.transactions.FindByID(ctx, tx, id, false)
		if err != nil {
			return nil, err
		}
		u.log.Info().
			Str("transaction_id", id).
			Str("status", string(current.Status)).
			Str("requested", string(newStatus)).
			Msg("transition skipped, transaction not pending")
		return current, nil
	}
	metrics.IncTransaction(string(newStatus))
	u.log.Info().Str("transaction_id", id).Str("status", string(newStatus)).Msg("transaction transitioned")
	return updated, nil
}

func (u *ledgerUC) AttachExternalRef(ctx context.Context, id, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Validationf("external reference is required")
	}
	ok, err := u.transactions.SetExternalRef(ctx, repository.NoTX, id, ref)
	if err != nil {
		return err
	}
	if !ok {
		u.log.Warn().Str("transaction_id", id).Msg("external reference not stored, transaction not pending")
	}
	return nil
}

func (u *ledgerUC) Get(ctx context.Context, id string) (*model.PaymentTransaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return u.transactions.FindByID(ctx, repository.NoTX, id, false)
}

func (u *ledgerUC) FindByID(ctx context.Context, tx repository.Tx, id string, forUpdate bool) (*model.PaymentTransaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return u.transactions.FindByID(ctx, tx, id, forUpdate)
}

func (u *ledgerUC) FindByExternalRef(ctx context.Context, tx repository.Tx, ref string, forUpdate bool) (*model.PaymentTransaction, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, domain.ErrNotFound
	}
	return u.transactions.FindByExternalRef(ctx, tx, ref, forUpdate)
}

func (u *ledgerUC) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	return u.transactions.ListPendingOlderThan(ctx, repository.NoTX, olderThan, limit)
}
