package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/repository"
	"giftcard-service/internal/infra/metrics"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type Stats struct {
	Transactions map[model.TransactionStatus]int `json:"transactions"`
	GiftCards    map[string]int                  `json:"gift_cards"` // unused|used|expired
	At           time.Time                       `json:"at"`
}

type StatsUseCase interface {
	Totals(ctx context.Context) (*Stats, error)
}

type statsUC struct {
	transactions repository.PaymentTransactionRepository
	cards        repository.GiftCardRepository
	log          *zerolog.Logger
}

func NewStatsUseCase(transactions repository.PaymentTransactionRepository, cards repository.GiftCardRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{transactions: transactions, cards: cards, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (*Stats, error) {
	now := time.Now().UTC()
	byStatus, err := s.transactions.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	cards, err := s.cards.CountByState(ctx, repository.NoTX, now)
	if err != nil {
		return nil, err
	}
	metrics.SetGiftCardsByState(cards)
	return &Stats{Transactions: byStatus, GiftCards: cards, At: now}, nil
}
