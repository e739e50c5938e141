//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/usecase"
)

func TestPlanUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("ListActive should hide inactive plans and order by price", func(t *testing.T) {
		plans := NewMockPlanRepo()
		seedPlan(plans, "Annual", model.DurationAnnual, 1, "199.90", true)
		seedPlan(plans, "Daily", model.DurationDaily, 1, "1.90", true)
		seedPlan(plans, "Legacy", model.DurationMonthly, 1, "9.90", false)
		uc := usecase.NewPlanUseCase(plans, newTestLogger())

		got, err := uc.ListActive(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 2 || got[0].Name != "Daily" || got[1].Name != "Annual" {
			t.Errorf("unexpected plans %+v", got)
		}
		all, _ := uc.ListAll(ctx)
		if len(all) != 3 {
			t.Errorf("expected 3 plans, got %d", len(all))
		}
	})

	t.Run("Create should validate input", func(t *testing.T) {
		uc := usecase.NewPlanUseCase(NewMockPlanRepo(), newTestLogger())
		tests := []struct {
			name  string
			pname string
			dt    model.DurationType
			value int
			price string
		}{
			{"blank name", " ", model.DurationMonthly, 1, "10"},
			{"unknown duration", "X", model.DurationType("fortnightly"), 1, "10"},
			{"zero value", "X", model.DurationMonthly, 0, "10"},
			{"zero price", "X", model.DurationMonthly, 1, "0"},
			{"negative price", "X", model.DurationMonthly, 1, "-1"},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := uc.Create(ctx, tc.pname, tc.dt, tc.value, decimal.RequireFromString(tc.price))
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
			})
		}
	})

	t.Run("Update should apply partial changes", func(t *testing.T) {
		plans := NewMockPlanRepo()
		uc := usecase.NewPlanUseCase(plans, newTestLogger())
		p, err := uc.Create(ctx, "Monthly", model.DurationMonthly, 1, decimal.RequireFromString("19.90"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		price := decimal.RequireFromString("24.90")
		updated, err := uc.Update(ctx, p.ID, usecase.PlanUpdate{Price: &price, Active: ptr(false)})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if !updated.Price.Equal(price) || updated.Active || updated.Name != "Monthly" {
			t.Errorf("unexpected plan %+v", updated)
		}

		bad := -3
		if _, err := uc.Update(ctx, p.ID, usecase.PlanUpdate{DurationValue: &bad}); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
		stored, _ := uc.Get(ctx, p.ID)
		if stored.DurationValue != 1 {
			t.Error("invalid update must not be saved")
		}
		if _, err := uc.Update(ctx, "missing", usecase.PlanUpdate{}); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStatsUseCase_Totals(t *testing.T) {
	ctx := context.Background()
	deps := newPaymentUCDeps(false)

	for i := 0; i < 3; i++ {
		deps.pending(t)
	}
	tr := deps.pending(t)
	if _, err := deps.uc.Reconcile(ctx, model.Notification{TransactionID: tr.ID, Status: "approved"}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	stats, err := usecase.NewStatsUseCase(deps.txs, deps.cards, newTestLogger()).Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if stats.Transactions[model.TransactionPending] != 3 || stats.Transactions[model.TransactionApproved] != 1 {
		t.Errorf("unexpected transaction counts %v", stats.Transactions)
	}
	if stats.GiftCards["unused"] != 1 {
		t.Errorf("unexpected card counts %v", stats.GiftCards)
	}
}
