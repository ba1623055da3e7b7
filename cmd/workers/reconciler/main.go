package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kwabena/Talaria/internal/config"
	"github.com/Kwabena/Talaria/internal/database"
	"github.com/Kwabena/Talaria/internal/escrow"
	"github.com/Kwabena/Talaria/internal/gateway"
	"github.com/Kwabena/Talaria/internal/kafka"
	"github.com/Kwabena/Talaria/internal/logger"
	"github.com/Kwabena/Talaria/internal/payout"
	"github.com/Kwabena/Talaria/internal/redis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	log.Info().Msg("Starting Reconciler Worker...")

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	redisClient, err := redis.New(&log, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis")
	}
	defer redisClient.Close()

	paystackClient := gateway.NewPaystackClient(cfg.Gateways.Paystack.SecretKey, cfg.Gateways.Paystack.BaseURL)

	escrowService := escrow.NewEscrowService(escrow.NewEscrowRepository(db.Pool), paystackClient, redisClient)
	payoutService, err := payout.NewPayoutService(payout.NewPayoutRepository(db.Pool), cfg.Payout, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create payout service")
	}

	consumer, err := kafka.NewConsumer(kafka.DefaultConfig(cfg.Kafka.Brokers), kafka.GroupReconcilerWorker, kafka.TopicWebhookPending)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka consumer")
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Run(ctx, reconcilerHandler(db, escrowService, payoutService, &log)); err != nil {
			log.Error().Err(err).Msg("Reconciler worker stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Reconciler Worker...")
	cancel()

	log.Info().Msg("Reconciler Worker shutdown complete")
}
