//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/repository"
)

func newPendingTx(planID string, created time.Time) *model.PaymentTransaction {
	return &model.PaymentTransaction{
		PlanID:    planID,
		Email:     "buyer@example.com",
		Amount:    decimal.RequireFromString("19.90"),
		Status:    model.TransactionPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestTransactionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewTransactionRepo(testPool)
	cards := NewGiftCardRepo(testPool)
	tm := NewTxManager(testPool)
	ctx := context.Background()
	cleanup(t)
	plan := seedPlan(t)
	now := time.Now().UTC()

	pending := newPendingTx(plan.ID, now.Add(-time.Hour))

	t.Run("should insert and look up by external ref", func(t *testing.T) {
		if err := repo.Insert(ctx, repository.NoTX, pending); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		ok, err := repo.SetExternalRef(ctx, repository.NoTX, pending.ID, "pref-1")
		if err != nil || !ok {
			t.Fatalf("SetExternalRef() = %v, %v", ok, err)
		}
		found, err := repo.FindByExternalRef(ctx, repository.NoTX, "pref-1", false)
		if err != nil {
			t.Fatalf("FindByExternalRef failed: %v", err)
		}
		if found.ID != pending.ID || !found.Amount.Equal(pending.Amount) || found.Status != model.TransactionPending {
			t.Errorf("unexpected transaction: %+v", found)
		}
	})

	t.Run("should map a missing plan to ErrInvalidPlan", func(t *testing.T) {
		tx := newPendingTx("00000000-0000-0000-0000-000000000000", now)
		if err := repo.Insert(ctx, repository.NoTX, tx); !errors.Is(err, domain.ErrInvalidPlan) {
			t.Errorf("expected ErrInvalidPlan, got %v", err)
		}
	})

	t.Run("should list pending transactions older than a cutoff", func(t *testing.T) {
		fresh := newPendingTx(plan.ID, now)
		if err := repo.Insert(ctx, repository.NoTX, fresh); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		list, err := repo.ListPendingOlderThan(ctx, repository.NoTX, now.Add(-time.Minute), 10)
		if err != nil {
			t.Fatalf("ListPendingOlderThan failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != pending.ID {
			t.Errorf("unexpected pending list: %+v", list)
		}
	})

	t.Run("should refuse approval without a gift card", func(t *testing.T) {
		_, _, err := repo.TransitionIfPending(ctx, repository.NoTX, pending.ID, model.TransactionApproved, nil, nil)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("should transition a pending row exactly once", func(t *testing.T) {
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := repo.TransitionIfPending(ctx, repository.NoTX, pending.ID, model.TransactionRejected, nil, nil)
				if err != nil {
					t.Errorf("TransitionIfPending failed: %v", err)
					return
				}
				if ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("expected one transition, got %d", wins)
		}
		if _, ok, _ := repo.TransitionIfPending(ctx, repository.NoTX, pending.ID, model.TransactionApproved, nil, nil); ok {
			t.Error("a terminal transaction must not move again")
		}
		if ok, _ := repo.SetExternalRef(ctx, repository.NoTX, pending.ID, "pref-2"); ok {
			t.Error("external ref must not change after a terminal state")
		}
	})

	t.Run("should approve with a card inside a transaction", func(t *testing.T) {
		tr := newPendingTx(plan.ID, now)
		if err := repo.Insert(ctx, repository.NoTX, tr); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			locked, err := repo.FindByID(ctx, tx, tr.ID, true)
			if err != nil {
				return err
			}
			card := newCard(plan.ID, "APPR0000APPR0000", now.Add(24*time.Hour))
			if _, err := cards.Insert(ctx, tx, card); err != nil {
				return err
			}
			ref := "pay-1"
			updated, ok, err := repo.TransitionIfPending(ctx, tx, locked.ID, model.TransactionApproved, &ref, &card.ID)
			if err != nil {
				return err
			}
			if !ok || updated.GiftCardID == nil || *updated.GiftCardID != card.ID {
				t.Errorf("unexpected approval result: %+v", updated)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}
		counts, err := repo.CountByStatus(ctx, repository.NoTX)
		if err != nil {
			t.Fatalf("CountByStatus failed: %v", err)
		}
		if counts[model.TransactionApproved] != 1 || counts[model.TransactionRejected] != 1 || counts[model.TransactionPending] != 1 {
			t.Errorf("unexpected counts: %v", counts)
		}
	})

	t.Run("should roll back every write when fn fails", func(t *testing.T) {
		tr := newPendingTx(plan.ID, now)
		boom := errors.New("boom")
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := repo.Insert(ctx, tx, tr); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected fn error, got %v", err)
		}
		if _, err := repo.FindByID(ctx, repository.NoTX, tr.ID, false); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("row should be rolled back, got %v", err)
		}
	})
}
