package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kwabena/Talaria/internal/config"
	"github.com/Kwabena/Talaria/internal/kafka"
	"github.com/Kwabena/Talaria/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	log.Info().Msg("Starting Notification Worker...")

	notificationConsumer, err := kafka.NewConsumer(kafka.DefaultConfig(cfg.Kafka.Brokers), kafka.GroupNotificationWorker, kafka.TopicNotificationPending)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize notification consumer")
	}
	defer notificationConsumer.Close()

	invoiceConsumer, err := kafka.NewConsumer(kafka.DefaultConfig(cfg.Kafka.Brokers), kafka.GroupNotificationWorker, kafka.TopicInvoiceGenerate)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize invoice consumer")
	}
	defer invoiceConsumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := notificationConsumer.Run(ctx, notificationHandler(&log)); err != nil {
			log.Error().Err(err).Msg("Notification consumer stopped with error")
		}
	}()
	go func() {
		if err := invoiceConsumer.Run(ctx, invoiceHandler(&log)); err != nil {
			log.Error().Err(err).Msg("Invoice consumer stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Notification Worker...")
	cancel()

	log.Info().Msg("Notification Worker shutdown complete")
}
