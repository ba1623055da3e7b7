package webhook

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kwabena/Talaria/internal/audit"
	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

type OutboxMessage struct {
	EventType    string
	PartitionKey string
	Payload      []byte
}

type WebhookRepository interface {
	Record(ctx context.Context, event *model.WebhookEvent, outbox []OutboxMessage) (bool, error)
}

type WebhookRepo struct {
	db *pgxpool.Pool
}

func NewWebhookRepository(db *pgxpool.Pool) *WebhookRepo {
	return &WebhookRepo{db: db}
}

// Record inserts the dedup row and, for a first delivery, the outbox triggers
// in one transaction. A redelivery hits the (gateway, external_event_id)
// conflict and returns applied=false with nothing written.
func (wr *WebhookRepo) Record(ctx context.Context, event *model.WebhookEvent, outbox []OutboxMessage) (bool, error) {
	tx, err := wr.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO webhook_events (id, gateway, external_event_id, event_type, payload, payload_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (gateway, external_event_id) DO NOTHING`,
		event.ID, event.Gateway, event.ExternalEventID, event.EventType, event.Payload, event.PayloadHash)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := audit.Append(ctx, tx, &model.AuditEntry{
		EntityType: "webhook",
		EntityID:   event.ID,
		ActorID:    constants.AccountExternalID,
		ActorRole:  constants.RoleSystem,
		Action:     "webhook.received",
		After:      event.Payload,
	}); err != nil {
		return false, err
	}

	for _, m := range outbox {
		if _, err := tx.Exec(ctx, `
			INSERT INTO transaction_outbox (event_type, payload, partition_key, status)
			VALUES ($1, $2, $3, 'pending')`, m.EventType, m.Payload, m.PartitionKey); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// dispatchable reports whether the normalized event type drives a downstream
// state transition. Anything else is recorded and ignored.
func dispatchable(eventType string) bool {
	switch eventType {
	case types.EventFundingSucceeded, types.EventFundingFailed, types.EventRefundExecuted,
		types.EventPayoutSucceeded, types.EventPayoutFailed:
		return true
	}
	return false
}
