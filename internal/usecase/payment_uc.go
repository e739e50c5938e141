package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/adapter"
	"giftcard-service/internal/domain/ports/repository"
	"giftcard-service/internal/infra/logging"
	"giftcard-service/internal/infra/metrics"
)

const (
	checkoutCurrency  = "BRL"
	checkoutItemTitle = "Gift Card Premium"
	webhookPath       = "/gateway/webhook"
)

// Checkout is what the buyer needs to continue on the gateway.
type Checkout struct {
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
	ExternalRef   string `json:"external_ref"`
}

// Reconcile outcomes.
const (
	OutcomeApproved     = "approved"
	OutcomeRejected     = "rejected"
	OutcomeCancelled    = "cancelled"
	OutcomeIgnored      = "ignored"
	OutcomeNotFound     = "not_found"
	OutcomeAlreadyFinal = "already_final"
)

type ReconcileResult struct {
	TransactionID string
	Outcome       string
	Status        model.TransactionStatus
	GiftCardID    string
}

// PaymentUseCase bridges the hosted-checkout gateway to the ledger.
type PaymentUseCase interface {
	// StartPurchase creates a pending transaction and initiates checkout for it.
	StartPurchase(ctx context.Context, planID, email, origin string) (*Checkout, error)
	// Initiate requests a payment intent for a pending transaction.
	// On gateway failure the transaction stays pending.
	Initiate(ctx context.Context, t *model.PaymentTransaction, origin string) (*Checkout, error)
	// Reconcile applies a gateway status report. Redelivery of the same report
	// is harmless: a card is minted at most once per transaction.
	Reconcile(ctx context.Context, n model.Notification) (*ReconcileResult, error)
	// SweepPending polls the gateway for stale pending transactions and
	// reconciles any that reached a final state.
	SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

var _ PaymentUseCase = (*paymentUC)(nil)

type paymentUC struct {
	ledger    LedgerUseCase
	giftCards GiftCardUseCase
	settings  SettingsUseCase
	plans     repository.SubscriptionPlanRepository
	tm        repository.TransactionManager
	gateway   adapter.PaymentGateway
	sandbox   bool
	now       func() time.Time
	log       *zerolog.Logger
}

func NewPaymentUseCase(
	ledger LedgerUseCase,
	giftCards GiftCardUseCase,
	settings SettingsUseCase,
	plans repository.SubscriptionPlanRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	sandbox bool,
	logger *zerolog.Logger,
) PaymentUseCase {
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{
		ledger:    ledger,
		giftCards: giftCards,
		settings:  settings,
		plans:     plans,
		tm:        tm,
		gateway:   gateway,
		sandbox:   sandbox,
		now:       func() time.Time { return time.Now().UTC() },
		log:       &l,
	}
}

func (u *paymentUC) StartPurchase(ctx context.Context, planID, email, origin string) (*Checkout, error) {
	t, err := u.ledger.Create(ctx, planID, email)
	if err != nil {
		return nil, err
	}
	return u.Initiate(ctx, t, origin)
}

func (u *paymentUC) Initiate(ctx context.Context, t *model.PaymentTransaction, origin string) (*Checkout, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Initiate")()

	if t == nil || t.Status != model.TransactionPending {
		return nil, domain.Validationf("only pending transactions can be initiated")
	}
	token, err := u.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	title := checkoutItemTitle
	if plan, perr := u.plans.FindByID(ctx, repository.NoTX, t.PlanID); perr == nil {
		title = fmt.Sprintf("%s - %s", checkoutItemTitle, plan.Name)
	}

	req := adapter.CheckoutRequest{
		ExternalReference: t.ID,
		Items: []adapter.CheckoutItem{{
			Title:      title,
			Quantity:   1,
			UnitPrice:  t.Amount,
			CurrencyID: checkoutCurrency,
		}},
		PayerEmail: t.Email,
	}
	if o := strings.TrimRight(strings.TrimSpace(origin), "/"); o != "" {
		req.BackURLs = adapter.BackURLs{
			Success: o + "/payment-success",
			Failure: o + "/payment-failure",
			Pending: o + "/payment-pending",
		}
		req.AutoReturn = "approved"
	}
	base, ok, err := u.settings.Get(ctx, model.SettingNotificationBaseURL)
	if err != nil {
		return nil, err
	}
	if ok {
		req.NotificationURL = strings.TrimRight(base, "/") + webhookPath
	}

	pref, err := u.gateway.CreatePreference(ctx, token, req)
	if err != nil {
		u.log.Error().Err(err).Str("transaction_id", t.ID).Msg("checkout preference failed")
		return nil, asGatewayError(err)
	}
	if err := u.ledger.AttachExternalRef(ctx, t.ID, pref.ID); err != nil {
		return nil, err
	}
	ref := pref.ID
	t.ExternalRef = &ref

	redirect := pref.InitPoint
	if u.sandbox && pref.SandboxInitPoint != "" {
		redirect = pref.SandboxInitPoint
	}
	u.log.Info().Str("transaction_id", t.ID).Str("external_ref", pref.ID).Msg("checkout initiated")
	return &Checkout{TransactionID: t.ID, RedirectURL: redirect, ExternalRef: pref.ID}, nil
}

func (u *paymentUC) Reconcile(ctx context.Context, n model.Notification) (*ReconcileResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Reconcile")()

	if n.ExternalRef == "" && n.TransactionID == "" && n.PaymentID == "" {
		return nil, domain.Validationf("notification carries no reference")
	}
	if n.PaymentID != "" && (n.Status == "" || (n.ExternalRef == "" && n.TransactionID == "")) {
		if err := u.resolvePayment(ctx, &n); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				u.log.Warn().Str("payment_id", n.PaymentID).Msg("payment unknown to the gateway, notification acknowledged")
				return &ReconcileResult{Outcome: OutcomeNotFound}, nil
			}
			return nil, err
		}
	}

	res := &ReconcileResult{TransactionID: n.TransactionID}
	var minted *model.GiftCard
	var amount decimal.Decimal
	var closedStatus model.TransactionStatus
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		minted = nil
		closedStatus = ""
		t, err := u.lockTransaction(ctx, tx, n)
		if errors.Is(err, domain.ErrNotFound) {
			res.Outcome = OutcomeNotFound
			return nil
		}
		if err != nil {
			return err
		}
		res.TransactionID = t.ID
		res.Status = t.Status

		outcome := model.MapGatewayStatus(n.Status)
		target, final := outcome.Status()
		if !final {
			res.Outcome = OutcomeIgnored
			return nil
		}
		if t.Status != model.TransactionPending || t.GiftCardID != nil {
			res.Outcome = OutcomeAlreadyFinal
			if t.GiftCardID != nil {
				res.GiftCardID = *t.GiftCardID
			} else if target == model.TransactionApproved {
				closedStatus = t.Status
			}
			return nil
		}

		var cardID *string
		if target == model.TransactionApproved {
			card, err := u.giftCards.Mint(ctx, tx, MintRequest{PlanID: t.PlanID, Email: t.Email})
			if err != nil {
				return fmt.Errorf("mint for transaction %s: %w", t.ID, err)
			}
			minted = card
			cardID = &card.ID
		}
		var ref *string
		if t.ExternalRef == nil && n.ExternalRef != "" {
			ref = &n.ExternalRef
		}
		updated, err := u.ledger.Transition(ctx, tx, t.ID, target, ref, cardID)
		if err != nil {
			return err
		}
		res.Status = updated.Status
		res.Outcome = string(target)
		amount = t.Amount
		if cardID != nil {
			res.GiftCardID = *cardID
		}
		return nil
	})
	if err != nil {
		l := u.log.Error().Err(err).Str("transaction_id", res.TransactionID).Str("gateway_status", n.Status)
		if minted != nil {
			l = l.Str("gift_card_id", minted.ID)
		}
		l.Msg("reconcile failed, changes rolled back")
		return nil, err
	}

	switch res.Outcome {
	case OutcomeNotFound:
		u.log.Warn().
			Str("external_ref", n.ExternalRef).
			Str("transaction_id", n.TransactionID).
			Msg("notification for unknown transaction acknowledged")
	case OutcomeIgnored:
		u.log.Info().Str("transaction_id", res.TransactionID).Str("gateway_status", n.Status).Msg("non-final gateway status, nothing to do")
	case OutcomeAlreadyFinal:
		if closedStatus != "" {
			// paid but no card: the buyer retried on a closed checkout
			u.log.Warn().
				Str("transaction_id", res.TransactionID).
				Str("payment_id", n.PaymentID).
				Str("gateway_status", n.Status).
				Str("status", string(closedStatus)).
				Msg("approved payment for a closed transaction, no gift card issued; needs manual reconciliation")
			break
		}
		u.log.Info().Str("transaction_id", res.TransactionID).Str("status", string(res.Status)).Msg("duplicate notification, transaction already final")
	default:
		u.log.Info().Str("transaction_id", res.TransactionID).Str("outcome", res.Outcome).Msg("transaction reconciled")
	}
	if res.Outcome == OutcomeApproved {
		metrics.AddRevenue(checkoutCurrency, amount)
	}
	if minted != nil {
		u.giftCards.QueueDelivery(minted, res.TransactionID)
	}
	return res, nil
}

func (u *paymentUC) SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := u.ledger.ListStalePending(ctx, u.now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	token, err := u.accessToken(ctx)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, t := range stale {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if t.ExternalRef == nil {
			continue
		}
		payments, err := u.gateway.SearchByExternalRef(ctx, token, t.ID)
		if err != nil {
			u.log.Warn().Err(err).Str("transaction_id", t.ID).Msg("payment search failed")
			continue
		}
		p, ok := pickFinalPayment(payments)
		if !ok {
			continue
		}
		res, err := u.Reconcile(ctx, model.Notification{TransactionID: t.ID, PaymentID: p.ID, Status: p.Status})
		if err != nil {
			u.log.Error().Err(err).Str("transaction_id", t.ID).Msg("sweep reconcile failed")
			continue
		}
		if res.Outcome == OutcomeApproved || res.Outcome == OutcomeRejected || res.Outcome == OutcomeCancelled {
			done++
		}
	}
	return done, nil
}

func (u *paymentUC) resolvePayment(ctx context.Context, n *model.Notification) error {
	token, err := u.accessToken(ctx)
	if err != nil {
		return err
	}
	info, err := u.gateway.LookupPayment(ctx, token, n.PaymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err != nil {
		return asGatewayError(err)
	}
	if n.TransactionID == "" {
		n.TransactionID = info.ExternalReference
	}
	n.Status = info.Status
	return nil
}

func (u *paymentUC) lockTransaction(ctx context.Context, tx repository.Tx, n model.Notification) (*model.PaymentTransaction, error) {
	if n.ExternalRef != "" {
		t, err := u.ledger.FindByExternalRef(ctx, tx, n.ExternalRef, true)
		if err == nil || !errors.Is(err, domain.ErrNotFound) || n.TransactionID == "" {
			return t, err
		}
	}
	if _, err := uuid.Parse(n.TransactionID); err != nil {
		return nil, domain.ErrNotFound
	}
	return u.ledger.FindByID(ctx, tx, n.TransactionID, true)
}

func (u *paymentUC) accessToken(ctx context.Context) (string, error) {
	token, ok, err := u.settings.Get(ctx, model.SettingGatewayAccessToken)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: gateway access token not configured", domain.ErrGateway)
	}
	return token, nil
}

// pickFinalPayment prefers an approved payment over other final ones.
func pickFinalPayment(ps []adapter.PaymentInfo) (adapter.PaymentInfo, bool) {
	var fallback *adapter.PaymentInfo
	for i := range ps {
		switch model.MapGatewayStatus(ps[i].Status) {
		case model.OutcomeApproved:
			return ps[i], true
		case model.OutcomeRejected, model.OutcomeCancelled:
			if fallback == nil {
				fallback = &ps[i]
			}
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return adapter.PaymentInfo{}, false
}

func asGatewayError(err error) error {
	if errors.Is(err, domain.ErrGateway) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrGateway, err)
}
