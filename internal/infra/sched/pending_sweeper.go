package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"giftcard-service/internal/infra/metrics"
	"giftcard-service/internal/usecase"
)

// PendingSweeper reconciles pending transactions whose webhook never
// arrived by asking the gateway for their payments.
type PendingSweeper struct {
	uc        usecase.PaymentUseCase
	olderThan time.Duration
	batch     int
	log       *zerolog.Logger
}

func NewPendingSweeper(uc usecase.PaymentUseCase, olderThan time.Duration, batch int, logger *zerolog.Logger) *PendingSweeper {
	if olderThan <= 0 {
		olderThan = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	l := logger.With().Str("component", "PendingSweeper").Logger()
	return &PendingSweeper{uc: uc, olderThan: olderThan, batch: batch, log: &l}
}

// Run is a scheduler.Job.
func (w *PendingSweeper) Run(ctx context.Context) error {
	n, err := w.uc.SweepPending(ctx, w.olderThan, w.batch)
	metrics.AddSweepReconciled(n)
	if n > 0 {
		w.log.Info().Int("reconciled", n).Msg("stale pending transactions reconciled")
	}
	return err
}
