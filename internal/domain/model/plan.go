package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"giftcard-service/internal/domain"
)

// DurationType is the closed set of plan duration classes.
type DurationType string

const (
	DurationDaily     DurationType = "daily"
	DurationWeekly    DurationType = "weekly"
	DurationMonthly   DurationType = "monthly"
	DurationQuarterly DurationType = "quarterly"
	DurationAnnual    DurationType = "annual"
)

// ParseDurationType returns the duration class for s (case-insensitive).
func ParseDurationType(s string) (DurationType, error) {
	switch d := DurationType(strings.ToLower(strings.TrimSpace(s))); d {
	case DurationDaily, DurationWeekly, DurationMonthly, DurationQuarterly, DurationAnnual:
		return d, nil
	default:
		return "", domain.Validationf("unknown duration type %q", s)
	}
}

// AddTo advances t by n periods of this duration class.
// Months, quarters and years follow the calendar.
func (d DurationType) AddTo(t time.Time, n int) time.Time {
	if n <= 0 {
		n = 1
	}
	switch d {
	case DurationDaily:
		return t.AddDate(0, 0, n)
	case DurationWeekly:
		return t.AddDate(0, 0, 7*n)
	case DurationMonthly:
		return t.AddDate(0, n, 0)
	case DurationQuarterly:
		return t.AddDate(0, 3*n, 0)
	case DurationAnnual:
		return t.AddDate(n, 0, 0)
	default:
		return t
	}
}

// SubscriptionPlan is a catalog entry authored by administrators.
// Price is in BRL.
type SubscriptionPlan struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	DurationType  DurationType    `json:"duration_type"`
	DurationValue int             `json:"duration_value"`
	Price         decimal.Decimal `json:"price"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// Purchasable reports whether the plan may back a new gift card.
func (p *SubscriptionPlan) Purchasable() bool { return !p.IsZero() && p.Active }

// AccessUntil is the end of the entitlement granted when a card for this plan
// is redeemed at from.
func (p *SubscriptionPlan) AccessUntil(from time.Time) time.Time {
	return p.DurationType.AddTo(from, p.DurationValue)
}

// NewSubscriptionPlan validates and constructs an active plan.
func NewSubscriptionPlan(id, name string, durationType DurationType, durationValue int, price decimal.Decimal) (*SubscriptionPlan, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.Validationf("plan name is required")
	}
	if _, err := ParseDurationType(string(durationType)); err != nil {
		return nil, err
	}
	if durationValue <= 0 {
		return nil, domain.Validationf("duration value must be positive")
	}
	if !price.IsPositive() {
		return nil, domain.Validationf("price must be positive")
	}
	now := time.Now().UTC()
	return &SubscriptionPlan{
		ID:            id,
		Name:          strings.TrimSpace(name),
		DurationType:  durationType,
		DurationValue: durationValue,
		Price:         price,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
