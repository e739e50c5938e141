package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"giftcard-service/internal/infra/metrics"
	red "giftcard-service/internal/infra/redis"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron specs. With a Locker, each run first
// takes a Redis lock so only one replica executes a given job at a time.
type Scheduler struct {
	cron   *cron.Cron
	locker red.Locker
	log    *zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(locker red.Locker, logger *zerolog.Logger) *Scheduler {
	l := logger.With().Str("component", "Scheduler").Logger()
	cl := cronLogger{log: &l}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		locker: locker,
		log:    &l,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds job under name. timeout bounds a single run and doubles as
// the lock TTL.
func (s *Scheduler) Register(name, spec string, timeout time.Duration, job Job) error {
	if timeout <= 0 {
		timeout = time.Minute
	}
	_, err := s.cron.AddFunc(spec, func() { s.run(name, timeout, job) })
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.log.Info().Str("job", name).Str("spec", spec).Msg("job registered")
	return nil
}

// Start begins firing jobs. parent cancellation aborts in-flight runs.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(parent)
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.mu.Lock()
		s.cancel()
		s.mu.Unlock()
		<-done.Done()
	}
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run(name string, timeout time.Duration, job Job) {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	start := time.Now()

	if s.locker != nil {
		key := "lock:job:" + name
		token, err := s.locker.TryLock(ctx, key, timeout)
		if errors.Is(err, red.ErrLockHeld) {
			metrics.ObserveJobRun(name, "skipped", time.Since(start))
			s.log.Debug().Str("job", name).Msg("job running elsewhere, skipped")
			return
		}
		if err != nil {
			metrics.ObserveJobRun(name, "error", time.Since(start))
			s.log.Error().Err(err).Str("job", name).Msg("failed to take job lock")
			return
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn().Err(err).Str("job", name).Msg("failed to release job lock")
			}
		}()
	}

	err := job(ctx)
	took := time.Since(start)
	if err != nil {
		metrics.ObserveJobRun(name, "error", took)
		s.log.Error().Err(err).Str("job", name).Dur("duration", took).Msg("job failed")
		return
	}
	metrics.ObserveJobRun(name, "ok", took)
	s.log.Debug().Str("job", name).Dur("duration", took).Msg("job finished")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log *zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Trace().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
