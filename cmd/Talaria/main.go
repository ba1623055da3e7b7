package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kwabena/Talaria/internal/audit"
	"github.com/Kwabena/Talaria/internal/config"
	"github.com/Kwabena/Talaria/internal/database"
	"github.com/Kwabena/Talaria/internal/escrow"
	"github.com/Kwabena/Talaria/internal/gateway"
	"github.com/Kwabena/Talaria/internal/ledger"
	"github.com/Kwabena/Talaria/internal/logger"
	"github.com/Kwabena/Talaria/internal/payout"
	"github.com/Kwabena/Talaria/internal/redis"
	"github.com/Kwabena/Talaria/internal/router"
	"github.com/Kwabena/Talaria/internal/server"
	"github.com/Kwabena/Talaria/internal/webhook"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	redisClient, err := redis.New(&log, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis client")
	}

	srv, err := server.NewServer(cfg, &log, loggerService, db, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	paystackClient := gateway.NewPaystackClient(cfg.Gateways.Paystack.SecretKey, cfg.Gateways.Paystack.BaseURL)

	escrowRepo := escrow.NewEscrowRepository(db.Pool)
	payoutRepo := payout.NewPayoutRepository(db.Pool)
	walletRepo := ledger.NewWalletRepository(db.Pool)
	auditRepo := audit.NewAuditRepository(db.Pool)
	webhookRepo := webhook.NewWebhookRepository(db.Pool)

	escrowService := escrow.NewEscrowService(escrowRepo, paystackClient, redisClient)
	payoutService, err := payout.NewPayoutService(payoutRepo, cfg.Payout, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create payout service")
	}
	ledgerService := ledger.NewLedgerService(walletRepo)
	auditService := audit.NewAuditService(auditRepo)

	handlers := &router.Handlers{
		Escrow:  escrow.NewEscrowHandler(escrowService),
		Payout:  payout.NewPayoutHandler(payoutService, redisClient),
		Ledger:  ledger.NewLedgerHandler(ledgerService),
		Audit:   audit.NewAuditHandler(auditService),
		Webhook: webhook.NewWebhookHandler(cfg.Gateways, webhookRepo),
	}

	r := router.NewRouter(srv, handlers)

	srv.SetupHTTPServer(r)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
