package main

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/Kwabena/Talaria/internal/kafka"
	"github.com/Kwabena/Talaria/pkg/types"
)

// notificationHandler hands settlement events to the delivery collaborator.
// The engine's responsibility ends at emitting the trigger with its amounts;
// message content and channel belong to the collaborator.
func notificationHandler(log *zerolog.Logger) kafka.Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		var event types.NotificationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal notification event")
			return nil
		}

		log.Info().
			Str("event_type", event.EventType).
			Str("recipient_id", event.RecipientID).
			Int64("amount", event.Amount).
			Str("reference", event.Reference).
			Str("currency", event.Currency).
			Msg("Notification dispatched to delivery collaborator")
		return nil
	}
}

func invoiceHandler(log *zerolog.Logger) kafka.Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		var event types.InvoiceEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal invoice event")
			return nil
		}

		log.Info().
			Str("kind", event.Kind).
			Str("reference_id", event.ReferenceID).
			Str("user_id", event.UserID).
			Int64("gross", event.Breakdown.Gross).
			Int64("net", event.Breakdown.Net).
			Msg("Document generation dispatched to invoicing collaborator")
		return nil
	}
}
