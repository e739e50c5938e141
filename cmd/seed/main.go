package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"giftcard-service/internal/config"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/infra/api"
	pg "giftcard-service/internal/infra/db/postgres"
	"giftcard-service/internal/infra/logging"
	"giftcard-service/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (empty: environment only)")
	adminSubject := flag.String("admin-token", "", "print an admin JWT for this subject and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	if *adminSubject != "" {
		token, err := api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL).Mint(*adminSubject)
		if err != nil {
			logger.Fatal().Err(err).Msg("mint admin token")
		}
		fmt.Println(token)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	planUC := usecase.NewPlanUseCase(pg.NewPlanRepo(pool), logger)

	// If plans already exist, do nothing
	plans, err := planUC.ListAll(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list plans")
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (%s x%d, price=%s, active=%v)\n", p.Name, p.DurationType, p.DurationValue, p.Price.StringFixed(2), p.Active)
		}
		return
	}

	seed := []struct {
		Name  string
		Type  model.DurationType
		Value int
		Price string
	}{
		{"Weekly Pass", model.DurationWeekly, 1, "9.90"},
		{"Monthly", model.DurationMonthly, 1, "29.90"},
		{"Quarterly", model.DurationQuarterly, 1, "79.90"},
		{"Annual", model.DurationAnnual, 1, "299.00"},
	}
	for _, s := range seed {
		p, err := planUC.Create(ctx, s.Name, s.Type, s.Value, decimal.RequireFromString(s.Price))
		if err != nil {
			logger.Fatal().Err(err).Str("plan", s.Name).Msg("create plan")
		}
		fmt.Printf("seeded: %s (id=%s, %s x%d, price=%s)\n", p.Name, p.ID, p.DurationType, p.DurationValue, p.Price.StringFixed(2))
	}
	fmt.Println("Seeding complete.")
}
