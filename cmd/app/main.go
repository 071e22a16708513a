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

	"devportal-billing/internal/config"
	"devportal-billing/internal/domain/ports/adapter"
	"devportal-billing/internal/infra/adapters/mail"
	"devportal-billing/internal/infra/adapters/p24"
	pg "devportal-billing/internal/infra/db/postgres"
	"devportal-billing/internal/infra/logging"
	"devportal-billing/internal/infra/metrics"
	red "devportal-billing/internal/infra/redis"
	"devportal-billing/internal/infra/sched"
	"devportal-billing/internal/infra/web"
	"devportal-billing/internal/infra/worker"
	"devportal-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (noop gateway, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled, using noop payment gateway")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	payRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Redis (optional fast-path dedupe) ----
	var dedupe usecase.NotificationDeduper
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		dedupe = red.NewNotificationDedupe(redisClient, cfg.Redis.TTL)
	}

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev {
		gateway = p24.NewNoopGateway()
	} else {
		gateway, err = p24.NewGateway(cfg.Gateway)
		if err != nil {
			logger.Fatal().Err(err).Msg("payment gateway")
		}
	}
	logger.Info().Str("gateway", gateway.Name()).Bool("sandbox", cfg.Gateway.Sandbox).Msg("payment gateway ready")

	// ---- Confirmation side effect (worker pool, fire-and-forget) ----
	pool4 := worker.NewPool(4, logger)
	pool4.Start(ctx)
	defer pool4.Stop()
	sender := mail.NewSMTPSender(cfg.Mail)
	confirmer := usecase.NewConfirmationDispatcher(sender, pool4, logger)

	// ---- Use cases ----
	checkoutUC := usecase.NewCheckoutUseCase(payRepo, gateway, logger)
	settlementUC := usecase.NewSettlementUseCase(payRepo, subRepo, gateway, tm, dedupe, confirmer, logger)
	subscriptionUC := usecase.NewSubscriptionUseCase(subRepo, logger)

	// ---- HTTP server ----
	srv := web.NewServer(checkoutUC, settlementUC, subscriptionUC, cfg.Server.JWTSecret, cfg.Gateway.WebhookSecret, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Reconciler ----
	reconciler := sched.NewReconciler(settlementUC, payRepo, gateway, cfg.Scheduler.ReconcileInterval, 30*time.Minute, cfg.Scheduler.PendingExpiry, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
