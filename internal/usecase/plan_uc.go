package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/repository"
)

// PlanUseCase manages the plan catalog. Plans are authored by administrators;
// the purchase and redemption flows only read them.
type PlanUseCase interface {
	// ListActive returns purchasable plans ordered by price.
	ListActive(ctx context.Context) ([]*model.SubscriptionPlan, error)
	ListAll(ctx context.Context) ([]*model.SubscriptionPlan, error)
	Get(ctx context.Context, id string) (*model.SubscriptionPlan, error)
	Create(ctx context.Context, name string, durationType model.DurationType, durationValue int, price decimal.Decimal) (*model.SubscriptionPlan, error)
	// Update mutates an existing plan. Nil pointers mean "no change".
	Update(ctx context.Context, id string, upd PlanUpdate) (*model.SubscriptionPlan, error)
}

type PlanUpdate struct {
	Name          *string
	DurationType  *model.DurationType
	DurationValue *int
	Price         *decimal.Decimal
	Active        *bool
}

var _ PlanUseCase = (*planUC)(nil)

type planUC struct {
	plans repository.SubscriptionPlanRepository
	log   *zerolog.Logger
}

func NewPlanUseCase(plans repository.SubscriptionPlanRepository, logger *zerolog.Logger) PlanUseCase {
	l := logger.With().Str("component", "PlanUseCase").Logger()
	return &planUC{plans: plans, log: &l}
}

func (u *planUC) ListActive(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	all, err := u.plans.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	out := make([]*model.SubscriptionPlan, 0, len(all))
	for _, p := range all {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

func (u *planUC) ListAll(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	return u.plans.ListAll(ctx, repository.NoTX)
}

func (u *planUC) Get(ctx context.Context, id string) (*model.SubscriptionPlan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Validationf("plan id is required")
	}
	return u.plans.FindByID(ctx, repository.NoTX, id)
}

func (u *planUC) Create(ctx context.Context, name string, durationType model.DurationType, durationValue int, price decimal.Decimal) (*model.SubscriptionPlan, error) {
	p, err := model.NewSubscriptionPlan(uuid.NewString(), name, durationType, durationValue, price)
	if err != nil {
		return nil, err
	}
	if err := u.plans.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	u.log.Info().Str("plan_id", p.ID).Str("name", p.Name).Str("price", p.Price.StringFixed(2)).Msg("plan created")
	return p, nil
}

func (u *planUC) Update(ctx context.Context, id string, upd PlanUpdate) (*model.SubscriptionPlan, error) {
	p, err := u.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		p.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.DurationType != nil {
		p.DurationType = *upd.DurationType
	}
	if upd.DurationValue != nil {
		p.DurationValue = *upd.DurationValue
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Active != nil {
		p.Active = *upd.Active
	}
	// re-run constructor checks against the merged state
	if _, err := model.NewSubscriptionPlan(p.ID, p.Name, p.DurationType, p.DurationValue, p.Price); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()
	if err := u.plans.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	u.log.Info().Str("plan_id", p.ID).Bool("active", p.Active).Str("price", p.Price.StringFixed(2)).Msg("plan updated")
	return p, nil
}

// loadPurchasablePlan maps a missing or inactive plan to ErrInvalidPlan.
func loadPurchasablePlan(ctx context.Context, plans repository.SubscriptionPlanRepository, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidPlan
	}
	p, err := plans.FindByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidPlan
		}
		return nil, err
	}
	if !p.Purchasable() {
		return nil, domain.ErrInvalidPlan
	}
	return p, nil
}
