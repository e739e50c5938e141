package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/repository"
	"giftcard-service/internal/infra/logging"
	"giftcard-service/internal/infra/metrics"
)

// RedemptionUseCase consumes gift cards. It is the only writer of the used
// flag, and each card yields at most one grant.
type RedemptionUseCase interface {
	Redeem(ctx context.Context, code string) (*model.EntitlementGrant, error)
}

var _ RedemptionUseCase = (*redemptionUC)(nil)

type redemptionUC struct {
	cards repository.GiftCardRepository
	plans repository.SubscriptionPlanRepository
	now   func() time.Time
	dev   bool
	log   *zerolog.Logger
}

func NewRedemptionUseCase(cards repository.GiftCardRepository, plans repository.SubscriptionPlanRepository, logger *zerolog.Logger, dev bool) *redemptionUC {
	l := logger.With().Str("component", "RedemptionUseCase").Logger()
	return &redemptionUC{
		cards: cards,
		plans: plans,
		now:   func() time.Time { return time.Now().UTC() },
		dev:   dev,
		log:   &l,
	}
}

// WithClock replaces the time source; used by tests around expiry.
func (u *redemptionUC) WithClock(now func() time.Time) *redemptionUC {
	u.now = now
	return u
}

func (u *redemptionUC) Redeem(ctx context.Context, code string) (*model.EntitlementGrant, error) {
	defer logging.TraceDuration(u.log, "RedemptionUC.Redeem")()

	norm := model.NormalizeCode(code)
	if norm == "" {
		metrics.IncRedemption("not_found")
		return nil, domain.ErrNotFound
	}

	card, err := u.cards.FindByCode(ctx, repository.NoTX, norm)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncRedemption("not_found")
		}
		return nil, err
	}

	now := u.now()
	if err := u.check(card, now); err != nil {
		return nil, err
	}

	ok, err := u.cards.MarkUsed(ctx, repository.NoTX, card.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost a race or crossed expiry between read and write
		fresh, ferr := u.cards.FindByID(ctx, repository.NoTX, card.ID)
		if ferr != nil {
			return nil, ferr
		}
		if err := u.check(fresh, now); err != nil {
			return nil, err
		}
		metrics.IncRedemption("already_used")
		return nil, domain.ErrAlreadyUsed
	}

	grant := &model.EntitlementGrant{
		GiftCardID: card.ID,
		Code:       model.FormatCode(card.Code),
		PlanID:     card.PlanID,
		Email:      card.Email,
		RedeemedAt: now,
	}
	if plan, perr := u.plans.FindByID(ctx, repository.NoTX, card.PlanID); perr == nil {
		grant.AccessUntil = plan.AccessUntil(now)
	} else {
		u.log.Warn().Err(perr).Str("plan_id", card.PlanID).Msg("plan lookup failed after redemption")
	}

	metrics.IncRedemption("ok")
	u.log.Info().
		Str("gift_card_id", card.ID).
		Str("code", logging.Redact(card.Code, u.dev)).
		Str("plan_id", card.PlanID).
		Msg("gift card redeemed")
	return grant, nil
}

// check applies the precedence NotFound > AlreadyUsed > Expired.
func (u *redemptionUC) check(card *model.GiftCard, now time.Time) error {
	if card.Used {
		metrics.IncRedemption("already_used")
		return domain.ErrAlreadyUsed
	}
	if card.ExpiredAt(now) {
		metrics.IncRedemption("expired")
		return domain.ErrExpired
	}
	return nil
}
