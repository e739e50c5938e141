package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"giftcard-service/internal/config"
	"giftcard-service/internal/domain/ports/adapter"
	"giftcard-service/internal/infra/adapters/notifier"
	payAdapters "giftcard-service/internal/infra/adapters/payment"
	"giftcard-service/internal/infra/api"
	pg "giftcard-service/internal/infra/db/postgres"
	"giftcard-service/internal/infra/i18n"
	"giftcard-service/internal/infra/logging"
	"giftcard-service/internal/infra/metrics"
	red "giftcard-service/internal/infra/redis"
	"giftcard-service/internal/infra/sched"
	"giftcard-service/internal/infra/scheduler"
	"giftcard-service/internal/infra/security"
	"giftcard-service/internal/infra/worker"
	"giftcard-service/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (empty: environment only)")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no redaction, sandbox gateway)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("giftcard service stopped with error")
	}
	logger.Info().Msg("giftcard service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("database schema applied")
	}
	go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Encryption ----
	var cipher usecase.Cipher
	if cfg.Security.EncryptionKey != "" {
		c, err := security.NewSettingsCipher(cfg.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("encryption: %w", err)
		}
		cipher = c
	} else {
		logger.Warn().Msg("security.encryption_key not set; secret settings are stored unencrypted")
	}

	// ---- Repositories ----
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPlanRepo(pool), redisClient, cfg.Redis.TTL, logger)
	cardRepo := pg.NewGiftCardRepo(pool)
	txRepo := pg.NewTransactionRepo(pool)
	settingsRepo := pg.NewSettingsRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Notifications ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Notifier.Locale)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	var delivery adapter.GiftCardNotifier
	if cfg.Notifier.WebhookURL != "" {
		delivery = notifier.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout, tr, logger)
		logger.Info().Str("locale", tr.Locale()).Msg("gift card delivery: webhook")
	} else {
		delivery = notifier.NewLogNotifier(tr, cfg.Runtime.Dev, logger)
		logger.Info().Str("locale", tr.Locale()).Msg("gift card delivery: log only")
	}
	workers := worker.NewPool(cfg.Notifier.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()

	// ---- Payment gateway ----
	var (
		gateway adapter.PaymentGateway
		sandbox api.SandboxSettler
	)
	if cfg.UseSandboxGateway() {
		sg := payAdapters.NewSandboxGateway()
		gateway, sandbox = sg, sg
		logger.Warn().Msg("no gateway access token in dev mode; using the in-memory sandbox gateway")
	} else {
		mp, err := payAdapters.NewMercadoPagoGateway(cfg.Gateway, logger)
		if err != nil {
			return fmt.Errorf("mercadopago gateway: %w", err)
		}
		gateway = mp
	}
	logger.Info().Str("gateway", gateway.Name()).Bool("sandbox_checkout", cfg.Gateway.Sandbox).Msg("payment gateway ready")

	// ---- Use cases ----
	planUC := usecase.NewPlanUseCase(planRepo, logger)
	settingsUC := usecase.NewSettingsUseCase(settingsRepo, cipher, cfg.SettingFallbacks(), logger)
	giftCardUC := usecase.NewGiftCardUseCase(planRepo, cardRepo, tm, delivery, workers, logger, usecase.WithDevMode(cfg.Runtime.Dev))
	redemptionUC := usecase.NewRedemptionUseCase(cardRepo, planRepo, logger, cfg.Runtime.Dev)
	ledgerUC := usecase.NewLedgerUseCase(planRepo, txRepo, logger, cfg.Runtime.Dev)
	paymentUC := usecase.NewPaymentUseCase(ledgerUC, giftCardUC, settingsUC, planRepo, tm, gateway, cfg.Gateway.Sandbox, logger)
	statsUC := usecase.NewStatsUseCase(txRepo, cardRepo, logger)

	// ---- HTTP ----
	srv := api.NewServer(cfg.HTTP, api.Deps{
		Plans:      planUC,
		Settings:   settingsUC,
		GiftCards:  giftCardUC,
		Redemption: redemptionUC,
		Ledger:     ledgerUC,
		Payments:   paymentUC,
		Stats:      statsUC,
		Auth:       api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL),
		Limiter:    red.NewRateLimiter(redisClient),
		Sandbox:    sandbox,
		Ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if err := redisClient.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},
	}, logger)

	// ---- Scheduled jobs ----
	jobs := scheduler.NewScheduler(red.NewLocker(redisClient), logger)
	sweeper := sched.NewPendingSweeper(paymentUC, cfg.Scheduler.PendingOlderThan, cfg.Scheduler.SweepBatch, logger)
	if err := jobs.Register("pending_sweep", cfg.Scheduler.PendingSweepCron, 2*time.Minute, sweeper.Run); err != nil {
		return err
	}
	jobs.Start(ctx)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	// ---- Graceful shutdown ----
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case serveErr = <-errc:
		if serveErr != nil {
			logger.Error().Err(serveErr).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	jobs.Stop(shutdownCtx)
	return serveErr
}
