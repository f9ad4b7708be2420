package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"finance-tracker/internal/config"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/adapter"
	gateway "finance-tracker/internal/infra/adapters/payment"
	"finance-tracker/internal/infra/db/postgres"
	"finance-tracker/internal/infra/logging"
	"finance-tracker/internal/infra/metrics"
	"finance-tracker/internal/infra/redis"
	"finance-tracker/internal/infra/sched"
	"finance-tracker/internal/infra/web"
	"finance-tracker/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to config file")
	dev := flag.Bool("dev", false, "development mode")
	flag.Parse()

	if err := run(*configPath, *dev); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(configPath string, dev bool) error {
	cfg, err := config.LoadConfig(configPath, dev)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log, dev)
	logger.Info().Bool("dev", dev).Msg("starting finance-tracker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.PoolSize))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	postgres.StartPoolStatsCollector(ctx, pool, 15*time.Second)

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	// repositories
	txManager := postgres.NewTxManager(pool)
	paymentRepo := postgres.NewPgPaymentRepo(pool)
	subscriptionRepo := postgres.NewPgSubscriptionRepo(pool)
	pricingRepo := postgres.NewCachedPlanPricingRepo(
		postgres.NewPgPlanPricingRepo(pool), redisClient, cfg.Redis.TTL, logger)

	// payment gateways
	gateways, routing, fallback, err := buildGateways(cfg, dev, logger)
	if err != nil {
		return err
	}

	// usecases
	pricingUC := usecase.NewPricingUseCase(pricingRepo, logger)
	subscriptionUC := usecase.NewSubscriptionUseCase(subscriptionRepo, logger)
	paymentUC := usecase.NewPaymentUseCase(
		paymentRepo, pricingUC, subscriptionUC, gateways, routing, fallback, txManager, logger)
	statsUC := usecase.NewStatsUseCase(paymentRepo)

	reconciler := sched.NewPaymentReconciler(paymentUC, cfg.Reconciler, logger)
	go reconciler.Run(ctx)

	handlers := web.NewHandlers(paymentUC, pricingUC, subscriptionUC, statsUC, logger)
	router := web.NewRouter(web.ServerDeps{
		Handlers:    handlers,
		RateLimiter: redis.NewRateLimiter(redisClient),
		Auth:        cfg.Auth,
		RateLimit:   cfg.RateLimit,
		Logger:      logger,
	})
	srv := web.NewServer(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildGateways(cfg *config.Config, dev bool, logger *zerolog.Logger) ([]adapter.PaymentGateway, map[string]model.PaymentProvider, model.PaymentProvider, error) {
	var gateways []adapter.PaymentGateway
	if cfg.Payment.Razorpay.KeyID != "" {
		gateways = append(gateways, gateway.NewRazorpayGateway(
			cfg.Payment.Razorpay.KeyID, cfg.Payment.Razorpay.KeySecret, cfg.Payment.Razorpay.WebhookSecret, logger))
	}
	if cfg.Payment.Stripe.SecretKey != "" {
		gateways = append(gateways, gateway.NewStripeGateway(
			cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret, logger))
	}
	if len(gateways) == 0 {
		if !dev {
			return nil, nil, "", fmt.Errorf("no payment gateway configured")
		}
		logger.Warn().Msg("no gateway credentials, using loopback gateway")
		gateways = append(gateways, gateway.NewNoOpGateway())
	}

	routing := make(map[string]model.PaymentProvider, len(cfg.Payment.CurrencyProviders))
	for currency, provider := range cfg.Payment.CurrencyProviders {
		p := model.PaymentProvider(provider)
		if !p.Valid() {
			return nil, nil, "", fmt.Errorf("unknown provider %q for currency %q", provider, currency)
		}
		routing[currency] = p
	}
	fallback := model.PaymentProvider(cfg.Payment.DefaultProvider)
	if cfg.Payment.DefaultProvider == "" {
		fallback = gateways[0].Name()
	} else if !fallback.Valid() {
		return nil, nil, "", fmt.Errorf("unknown default provider %q", cfg.Payment.DefaultProvider)
	}
	return gateways, routing, fallback, nil
}
