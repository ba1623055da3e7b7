package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Kwabena/Talaria/internal/config"
	"github.com/Kwabena/Talaria/internal/kafka"
	"github.com/Kwabena/Talaria/internal/middleware"
	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

type WebhookHandler struct {
	gateways config.GatewaysConfig
	repo     WebhookRepository
	now      func() time.Time
}

func NewWebhookHandler(gateways config.GatewaysConfig, repo WebhookRepository) *WebhookHandler {
	return &WebhookHandler{
		gateways: gateways,
		repo:     repo,
		now:      time.Now,
	}
}

// HandleWebhook verifies, dedups and queues one gateway delivery. Signature
// verification is unconditional: a missing or bad signature is rejected even
// if the secret is misconfigured. Effects are applied asynchronously by the
// reconciler worker off the outbox.
func (wh *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	gateway := chi.URLParam(r, "gateway")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read webhook body")
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var event *types.GatewayWebhookEvent
	switch gateway {
	case constants.GatewayPaystack:
		if !verifyPaystackSignature(body, r.Header.Get("x-paystack-signature"), wh.gateways.Paystack.WebhookSecret) {
			logger.Warn().Msg("Invalid paystack webhook signature")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
		event, err = parsePaystackEvent(body)
	case constants.GatewayStripe:
		if !verifyStripeSignature(body, r.Header.Get("Stripe-Signature"), wh.gateways.Stripe.WebhookSecret, wh.now()) {
			logger.Warn().Msg("Invalid stripe webhook signature")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
		event, err = parseStripeEvent(body)
	default:
		http.Error(w, "Unknown gateway", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse webhook payload")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	hash := sha256.Sum256(body)
	record := &model.WebhookEvent{
		ID:              uuid.New(),
		Gateway:         event.Gateway,
		ExternalEventID: event.ExternalEventID,
		EventType:       event.EventType,
		Payload:         body,
		PayloadHash:     hex.EncodeToString(hash[:]),
	}

	var outbox []OutboxMessage
	if dispatchable(event.EventType) {
		payload, _ := json.Marshal(event)
		outbox = []OutboxMessage{{
			EventType:    kafka.EventWebhookReceived,
			PartitionKey: event.Reference,
			Payload:      payload,
		}}
	}

	applied, err := wh.repo.Record(ctx, record, outbox)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to record webhook event")
		http.Error(w, "Failed to record event", http.StatusInternalServerError)
		return
	}
	if !applied {
		logger.Info().
			Str("gateway", event.Gateway).
			Str("external_event_id", event.ExternalEventID).
			Msg("Duplicate webhook delivery, already recorded")
	} else {
		logger.Info().
			Str("gateway", event.Gateway).
			Str("event_type", event.EventType).
			Str("external_event_id", event.ExternalEventID).
			Msg("Webhook recorded")
	}

	w.WriteHeader(http.StatusOK)
}
