package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kwabena/Talaria/internal/config"
	"github.com/Kwabena/Talaria/internal/database"
	"github.com/Kwabena/Talaria/internal/kafka"
	"github.com/Kwabena/Talaria/internal/logger"
	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/internal/payout"
	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

var systemActor = types.Actor{ID: constants.AccountExternalID, Role: constants.RoleSystem}

// The cutoff trigger closes release batch windows on schedule. It moves no
// money: a batch's pending payouts shift to processing to mark disbursement
// open, and the funds stay held until an admin confirms or fails each payout.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	log.Info().Msg("Starting Batch Cutoff Trigger...")

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	loc, err := time.LoadLocation(cfg.Payout.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Payout.Timezone).Msg("invalid operating timezone")
	}

	repo := payout.NewPayoutRepository(db.Pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runCutoffs(ctx, db, repo, loc, cfg.Payout.CutoffHours, &log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Batch Cutoff Trigger...")
	cancel()
}

func runCutoffs(ctx context.Context, db *database.Database, repo payout.PayoutRepository, loc *time.Location, cutoffHours []int, log *zerolog.Logger) {
	for {
		next := payout.NextCutoff(time.Now(), loc, cutoffHours)
		log.Info().Time("next_cutoff", next).Msg("Waiting for next batch cutoff")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		if err := closeBatch(ctx, db, repo, next, log); err != nil {
			log.Error().Err(err).Str("batch_id", payout.BatchID(next)).Msg("Failed to close batch")
		}
	}
}

func closeBatch(ctx context.Context, db *database.Database, repo payout.PayoutRepository, cutoff time.Time, log *zerolog.Logger) error {
	batchID := payout.BatchID(cutoff)

	moved, err := repo.BeginProcessing(ctx, batchID, systemActor)
	if err != nil {
		return err
	}

	summary, err := repo.BatchSummary(ctx, batchID)
	if err != nil {
		return err
	}

	log.Info().
		Str("batch_id", batchID).
		Int64("count", summary.Count).
		Int64("moved_to_processing", moved).
		Int64("total_gross", summary.TotalGross).
		Int64("ready_count", summary.ReadyCount).
		Msg("Release batch closed")

	if summary.Count == 0 {
		return nil
	}

	payload, err := json.Marshal(batchClosedEvent{BatchID: batchID, Summary: summary})
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO transaction_outbox (event_type, payload, partition_key, status)
		VALUES ($1, $2, $3, 'pending')`, kafka.EventPayoutStatusChanged, payload, batchID)
	return err
}

type batchClosedEvent struct {
	BatchID string                     `json:"batch_id"`
	Summary *model.ReleaseBatchSummary `json:"summary"`
}
