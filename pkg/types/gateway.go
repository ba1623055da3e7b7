package types

import (
	"encoding/json"
	"time"
)

// GatewayWebhookEvent is the normalized view the reconciler works with after
// verifying and parsing a gateway-specific delivery.
type GatewayWebhookEvent struct {
	Gateway         string          `json:"gateway"`
	ExternalEventID string          `json:"external_event_id"`
	EventType       string          `json:"event_type"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	EscrowID        string          `json:"escrow_id,omitempty"`
	PayoutID        string          `json:"payout_id,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	Raw             json.RawMessage `json:"raw,omitempty"`
}

// Normalized event types dispatched by the reconciler.
const (
	EventFundingSucceeded = "funding.succeeded"
	EventFundingFailed    = "funding.failed"
	EventRefundExecuted   = "refund.executed"
	EventPayoutSucceeded  = "payout.succeeded"
	EventPayoutFailed     = "payout.failed"
)

type PaystackWebhookEvent struct {
	Event string              `json:"event"`
	Data  PaystackWebhookData `json:"data"`
}

type PaystackWebhookData struct {
	ID              int64      `json:"id"`
	Domain          string     `json:"domain"`
	Status          string     `json:"status"`
	Reference       string     `json:"reference"`
	Amount          int64      `json:"amount"`
	Message         *string    `json:"message"`
	GatewayResponse string     `json:"gateway_response"`
	PaidAt          *time.Time `json:"paid_at"`
	CreatedAt       time.Time  `json:"created_at"`
	Channel         string     `json:"channel"`
	Currency        string     `json:"currency"`
	Metadata        struct {
		EscrowID string `json:"escrow_id,omitempty"`
		PayoutID string `json:"payout_id,omitempty"`
	} `json:"metadata"`
	Fees int64 `json:"fees"`
}

type StripeWebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID       string `json:"id"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Status   string `json:"status"`
			Metadata struct {
				EscrowID string `json:"escrow_id,omitempty"`
				PayoutID string `json:"payout_id,omitempty"`
			} `json:"metadata"`
			FailureMessage string `json:"failure_message,omitempty"`
		} `json:"object"`
	} `json:"data"`
}

type InitializePaymentRequest struct {
	Email       string `json:"email" validate:"required,email"`
	CallbackURL string `json:"callback_url,omitempty"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	Metadata    struct {
		EscrowID string `json:"escrow_id"`
	} `json:"metadata"`
}

type InitializePaymentResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type CreateTransferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Recipient string `json:"recipient" validate:"required"`
	Reason    string `json:"reason,omitempty"`
	Reference string `json:"reference" validate:"required"`
	Currency  string `json:"currency" validate:"required,len=3"`
}

type CreateTransferResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		TransferCode string `json:"transfer_code"`
		Reference    string `json:"reference"`
		Status       string `json:"status"`
	} `json:"data"`
}
