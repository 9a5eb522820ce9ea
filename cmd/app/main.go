package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xraymed-saas/internal/config"
	"xraymed-saas/internal/domain/ports/adapter"
	pg "xraymed-saas/internal/infra/db/postgres"
	"xraymed-saas/internal/infra/logging"
	"xraymed-saas/internal/infra/metrics"
	payAdapters "xraymed-saas/internal/infra/payment"
	red "xraymed-saas/internal/infra/redis"
	"xraymed-saas/internal/infra/sched"
	"xraymed-saas/internal/infra/web"
	"xraymed-saas/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	accountRepo := pg.NewAccountRepo(pool)
	couponRepo := pg.NewCouponRepoCacheDecorator(pg.NewCouponRepo(pool), redisClient, cfg.Redis.TTL.Std())
	orderRepo := pg.NewOrderRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)

	// ---- Pricing ----
	planTable, err := cfg.PlanTable()
	if err != nil {
		logger.Fatal().Err(err).Msg("plan table")
	}
	pricing := usecase.NewPricingResolver(planTable)

	// ---- Gateway ----
	var gateway adapter.PaymentGateway
	var verifier adapter.SignatureVerifier
	if cfg.Runtime.Dev {
		gateway = payAdapters.NewNoopPaymentGateway()
		verifier = payAdapters.AcceptAllVerifier{}
		logger.Warn().Msg("payment gateway: noop (dev mode)")
	} else {
		gateway = payAdapters.NewRazorpayGateway(&cfg.Gateway)
		verifier = payAdapters.NewHMACVerifier(cfg.Gateway.KeySecret)
		logger.Info().Str("gateway", gateway.Name()).Bool("sandbox", cfg.Gateway.Sandbox).Msg("payment gateway ready")
	}

	// ---- Use cases ----
	couponUC := usecase.NewCouponUseCase(couponRepo, pricing, logger)
	entitlement := usecase.NewEntitlementApplier(accountRepo)
	billingUC := usecase.NewBillingUseCase(
		accountRepo, orderRepo, subRepo,
		pricing, couponUC, entitlement,
		gateway, verifier, txManager,
		cfg.Billing.Currency, logger,
	)
	creditUC := usecase.NewCreditUseCase(accountRepo, logger)
	statsUC := usecase.NewStatsUseCase(subRepo, orderRepo, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, 24*time.Hour)
	srv := web.NewServer(billingUC, couponUC, creditUC, statsUC, auth, rateLimiter, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Expiry worker ----
	worker := sched.NewExpiryWorker(cfg.Scheduler.ExpirySweepInterval.Std(), billingUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
