package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

// parsePaystackEvent normalizes a verified Paystack delivery. Unrecognized
// event names keep the gateway's own name so they are still recorded for
// audit, just never dispatched.
func parsePaystackEvent(body []byte) (*types.GatewayWebhookEvent, error) {
	var event types.PaystackWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse paystack payload: %w", err)
	}
	if event.Event == "" || event.Data.ID == 0 {
		return nil, fmt.Errorf("paystack payload missing event or id")
	}

	eventType := event.Event
	switch event.Event {
	case "charge.success":
		eventType = types.EventFundingSucceeded
	case "charge.failed":
		eventType = types.EventFundingFailed
	case "refund.processed":
		eventType = types.EventRefundExecuted
	case "transfer.success":
		eventType = types.EventPayoutSucceeded
	case "transfer.failed", "transfer.reversed":
		eventType = types.EventPayoutFailed
	}

	var failureReason string
	if event.Data.Message != nil {
		failureReason = *event.Data.Message
	}

	return &types.GatewayWebhookEvent{
		Gateway:         constants.GatewayPaystack,
		ExternalEventID: strconv.FormatInt(event.Data.ID, 10),
		EventType:       eventType,
		Reference:       event.Data.Reference,
		Amount:          event.Data.Amount,
		Currency:        event.Data.Currency,
		EscrowID:        event.Data.Metadata.EscrowID,
		PayoutID:        event.Data.Metadata.PayoutID,
		FailureReason:   failureReason,
		Raw:             body,
	}, nil
}

func parseStripeEvent(body []byte) (*types.GatewayWebhookEvent, error) {
	var event types.StripeWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse stripe payload: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("stripe payload missing id or type")
	}

	eventType := event.Type
	switch event.Type {
	case "payment_intent.succeeded":
		eventType = types.EventFundingSucceeded
	case "payment_intent.payment_failed":
		eventType = types.EventFundingFailed
	case "charge.refunded":
		eventType = types.EventRefundExecuted
	case "payout.paid":
		eventType = types.EventPayoutSucceeded
	case "payout.failed":
		eventType = types.EventPayoutFailed
	}

	obj := event.Data.Object
	return &types.GatewayWebhookEvent{
		Gateway:         constants.GatewayStripe,
		ExternalEventID: event.ID,
		EventType:       eventType,
		Reference:       obj.ID,
		Amount:          obj.Amount,
		Currency:        obj.Currency,
		EscrowID:        obj.Metadata.EscrowID,
		PayoutID:        obj.Metadata.PayoutID,
		FailureReason:   obj.FailureMessage,
		Raw:             body,
	}, nil
}
