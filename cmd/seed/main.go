// Command seed loads the default plan pricing rows. Safe to run repeatedly:
// rows upsert on (plan, currency).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"finance-tracker/internal/config"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/repository"
	"finance-tracker/internal/infra/db/postgres"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath, false)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	repo := postgres.NewPgPlanPricingRepo(pool)
	now := time.Now()
	rows := []*model.PlanPricing{
		{Plan: model.PlanProMonthly, Currency: "INR", Amount: 49900, DurationDays: 30, Name: "Pro Monthly", Description: "Full access, billed monthly"},
		{Plan: model.PlanProMonthly, Currency: "USD", Amount: 599, DurationDays: 30, Name: "Pro Monthly", Description: "Full access, billed monthly"},
		{Plan: model.PlanProYearly, Currency: "INR", Amount: 499900, DurationDays: 365, Name: "Pro Yearly", Description: "Full access, billed yearly"},
		{Plan: model.PlanProYearly, Currency: "USD", Amount: 5999, DurationDays: 365, Name: "Pro Yearly", Description: "Full access, billed yearly"},
	}
	for _, pp := range rows {
		pp.ID = uuid.NewString()
		pp.Active = true
		pp.CreatedAt = now
		pp.UpdatedAt = now
		if err := repo.Save(ctx, repository.NoTX, pp); err != nil {
			return fmt.Errorf("seed %s/%s: %w", pp.Plan, pp.Currency, err)
		}
		fmt.Printf("seeded %s %s %d\n", pp.Plan, pp.Currency, pp.Amount)
	}
	return nil
}
