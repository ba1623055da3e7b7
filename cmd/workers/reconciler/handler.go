package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Kwabena/Talaria/internal/database"
	"github.com/Kwabena/Talaria/internal/escrow"
	"github.com/Kwabena/Talaria/internal/kafka"
	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/internal/payout"
	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

var systemActor = types.Actor{ID: constants.AccountExternalID, Role: constants.RoleSystem}

// reconcilerHandler applies verified, deduplicated gateway events to the
// escrow and payout state machines. Kafka redelivery is expected; every
// downstream transition is guarded by a status CAS, so reapplying is a no-op.
func reconcilerHandler(db *database.Database, escrowService *escrow.EscrowService, payoutService *payout.PayoutService, log *zerolog.Logger) kafka.Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		var event types.GatewayWebhookEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal gateway event")
			return nil // malformed forever, do not retry
		}

		log.Info().
			Str("gateway", event.Gateway).
			Str("event_type", event.EventType).
			Str("reference", event.Reference).
			Msg("Reconciling gateway event")

		switch event.EventType {
		case types.EventFundingSucceeded:
			return applyFunding(ctx, escrowService, &event, log)
		case types.EventFundingFailed:
			return notifyFundingFailed(ctx, db, &event, log)
		case types.EventRefundExecuted:
			return applyRefund(ctx, escrowService, &event, log)
		case types.EventPayoutSucceeded:
			return applyPayoutSettlement(ctx, payoutService, &event, log)
		case types.EventPayoutFailed:
			return applyPayoutFailure(ctx, payoutService, &event, log)
		default:
			log.Info().Str("event_type", event.EventType).Msg("Ignoring unhandled gateway event")
			return nil
		}
	}
}

func resolveEscrow(ctx context.Context, es *escrow.EscrowService, event *types.GatewayWebhookEvent) (*model.Escrow, error) {
	if event.EscrowID != "" {
		id, err := uuid.Parse(event.EscrowID)
		if err == nil {
			return es.GetEscrow(ctx, id)
		}
	}
	return es.FindByGatewayReference(ctx, event.Gateway, event.Reference)
}

func applyFunding(ctx context.Context, es *escrow.EscrowService, event *types.GatewayWebhookEvent, log *zerolog.Logger) error {
	target, err := resolveEscrow(ctx, es, event)
	if errors.Is(err, model.ErrNotFound) {
		log.Warn().Str("reference", event.Reference).Msg("Funding event for unknown escrow, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := es.ConfirmFunding(ctx, systemActor, target.ID, event.Reference); err != nil {
		if errors.Is(err, model.ErrInvalidStateTransition) {
			log.Info().Str("escrow_id", target.ID.String()).Msg("Escrow past funding, nothing to apply")
			return nil
		}
		return err
	}
	return nil
}

// notifyFundingFailed leaves the escrow in created and queues the client
// notification through the outbox.
func notifyFundingFailed(ctx context.Context, db *database.Database, event *types.GatewayWebhookEvent, log *zerolog.Logger) error {
	var clientID string
	if event.EscrowID != "" {
		if err := db.Pool.QueryRow(ctx, `SELECT client_id FROM escrows WHERE id = $1`, event.EscrowID).Scan(&clientID); err != nil {
			log.Warn().Err(err).Str("escrow_id", event.EscrowID).Msg("Funding failure for unknown escrow, skipping")
			return nil
		}
	} else {
		log.Warn().Str("reference", event.Reference).Msg("Funding failure without escrow id, skipping")
		return nil
	}

	payload, _ := json.Marshal(types.NotificationEvent{
		EventType:   "escrow.funding_failed",
		RecipientID: clientID,
		Amount:      event.Amount,
		Reference:   event.Reference,
		Currency:    constants.Currency,
	})
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO transaction_outbox (event_type, payload, partition_key, status)
		VALUES ($1, $2, $3, 'pending')`, kafka.EventNotificationQueued, payload, clientID)
	return err
}

func applyRefund(ctx context.Context, es *escrow.EscrowService, event *types.GatewayWebhookEvent, log *zerolog.Logger) error {
	target, err := resolveEscrow(ctx, es, event)
	if errors.Is(err, model.ErrNotFound) {
		log.Warn().Str("reference", event.Reference).Msg("Refund event for unknown escrow, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	_, err = es.Refund(ctx, systemActor, target.ID, &types.RefundEscrowRequest{
		Amount: event.Amount,
		Reason: "refund executed by gateway",
	})
	if errors.Is(err, model.ErrInvalidStateTransition) || errors.Is(err, model.ErrInsufficientEscrowBalance) {
		log.Info().Str("escrow_id", target.ID.String()).Msg("Refund already reconciled, nothing to apply")
		return nil
	}
	return err
}

func resolvePayout(ctx context.Context, ps *payout.PayoutService, event *types.GatewayWebhookEvent) (*model.Payout, error) {
	if event.PayoutID != "" {
		id, err := uuid.Parse(event.PayoutID)
		if err == nil {
			return ps.GetPayout(ctx, id)
		}
	}
	return ps.FindByGatewayReference(ctx, event.Reference)
}

func applyPayoutSettlement(ctx context.Context, ps *payout.PayoutService, event *types.GatewayWebhookEvent, log *zerolog.Logger) error {
	target, err := resolvePayout(ctx, ps, event)
	if errors.Is(err, model.ErrNotFound) {
		log.Warn().Str("reference", event.Reference).Msg("Settlement for unknown payout, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	// A gateway-native payout arrives pending; push it through the admin
	// gate so the confirm CAS can apply.
	if target.Status == model.PayoutPending || target.Status == model.PayoutProcessing {
		if _, err := ps.MarkReady(ctx, systemActor, target.ID); err != nil && !errors.Is(err, model.ErrInvalidStateTransition) {
			return err
		}
	}

	_, applied, err := ps.ConfirmFromGateway(ctx, target.ID, event.Reference)
	if errors.Is(err, model.ErrInvalidStateTransition) {
		log.Info().Str("payout_id", target.ID.String()).Msg("Payout settlement already reconciled")
		return nil
	}
	if err != nil {
		return err
	}
	if !applied {
		log.Info().Str("payout_id", target.ID.String()).Msg("Duplicate payout settlement, no-op")
	}
	return nil
}

func applyPayoutFailure(ctx context.Context, ps *payout.PayoutService, event *types.GatewayWebhookEvent, log *zerolog.Logger) error {
	target, err := resolvePayout(ctx, ps, event)
	if errors.Is(err, model.ErrNotFound) {
		log.Warn().Str("reference", event.Reference).Msg("Failure report for unknown payout, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	reason := event.FailureReason
	if reason == "" {
		reason = "gateway reported settlement failure"
	}
	_, err = ps.FailPayout(ctx, systemActor, target.ID, reason)
	if errors.Is(err, model.ErrInvalidStateTransition) {
		log.Info().Str("payout_id", target.ID.String()).Msg("Payout already terminal, failure not applied")
		return nil
	}
	return err
}
