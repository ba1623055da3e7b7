package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Model struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Wallet holds a user's settled and reserved funds. Created lazily on first
// credit or reservation; never deleted. Balances are in minor units (pesewas).
type Wallet struct {
	ID               uuid.UUID `json:"id" validate:"required"`
	UserID           uuid.UUID `json:"user_id" validate:"required"`
	AvailableBalance int64     `json:"available_balance" validate:"gte=0"`
	HeldBalance      int64     `json:"held_balance" validate:"gte=0"`
	LifetimeEarned   int64     `json:"lifetime_earned" validate:"gte=0"`
	LifetimeSpent    int64     `json:"lifetime_spent" validate:"gte=0"`
	Currency         string    `json:"currency" validate:"required,len=3"`
	Model
}

type EscrowStatus string

const (
	EscrowCreated           EscrowStatus = "created"
	EscrowFunded            EscrowStatus = "funded"
	EscrowReleased          EscrowStatus = "released"
	EscrowRefunded          EscrowStatus = "refunded"
	EscrowPartiallyRefunded EscrowStatus = "partially_refunded"
	EscrowDisputed          EscrowStatus = "disputed"
)

// Escrow is the per-gig hold of client funds. platform_commission + net_amount
// always equals gross_amount; refunded_amount never exceeds gross_amount. The
// released_* fields record the split the release actually paid, which differs
// from the creation-time split once the escrow was partially refunded first.
type Escrow struct {
	ID                 uuid.UUID    `json:"id" validate:"required"`
	GigID              uuid.UUID    `json:"gig_id" validate:"required"`
	ClientID           uuid.UUID    `json:"client_id" validate:"required"`
	FreelancerID       uuid.UUID    `json:"freelancer_id" validate:"required"`
	GrossAmount        int64        `json:"gross_amount" validate:"required,gt=0"`
	PlatformCommission int64        `json:"platform_commission" validate:"gte=0"`
	NetAmount          int64        `json:"net_amount" validate:"gte=0"`
	PaymentGateway     string       `json:"payment_gateway" validate:"required,oneof=paystack stripe"`
	GatewayReference   string       `json:"gateway_reference,omitempty"`
	Status             EscrowStatus `json:"status" validate:"required,oneof=created funded released refunded partially_refunded disputed"`
	RefundedAmount     int64        `json:"refunded_amount" validate:"gte=0"`
	ReleasedGross      int64        `json:"released_gross,omitempty" validate:"gte=0"`
	ReleasedCommission int64        `json:"released_commission,omitempty" validate:"gte=0"`
	ReleasedNet        int64        `json:"released_net,omitempty" validate:"gte=0"`
	ReleasedStatutory  int64        `json:"released_statutory,omitempty" validate:"gte=0"`
	FundedAt           *time.Time   `json:"funded_at,omitempty"`
	ReleasedAt         *time.Time   `json:"released_at,omitempty"`
	RefundedAt         *time.Time   `json:"refunded_at,omitempty"`
	DisputedAt         *time.Time   `json:"disputed_at,omitempty"`
	Model
}

// Remaining is the portion of the gross not yet refunded.
func (e *Escrow) Remaining() int64 {
	return e.GrossAmount - e.RefundedAmount
}

type LedgerTransactionType string

const (
	LedgerEscrowRelease      LedgerTransactionType = "escrow_release"
	LedgerPayout             LedgerTransactionType = "payout"
	LedgerRefund             LedgerTransactionType = "refund"
	LedgerStatutoryDeduction LedgerTransactionType = "statutory_deduction"
	LedgerAdjustment         LedgerTransactionType = "adjustment"
)

// LedgerTransaction is the append-only record behind every available-balance
// change. Amount is signed; replaying all rows for a wallet in id order
// reproduces its available balance exactly.
type LedgerTransaction struct {
	ID            int64                 `json:"id"`
	WalletID      uuid.UUID             `json:"wallet_id" validate:"required"`
	Type          LedgerTransactionType `json:"type" validate:"required,oneof=escrow_release payout refund statutory_deduction adjustment"`
	Amount        int64                 `json:"amount" validate:"required"`
	BalanceBefore int64                 `json:"balance_before"`
	BalanceAfter  int64                 `json:"balance_after"`
	ReferenceType string                `json:"reference_type" validate:"required,oneof=escrow payout"`
	ReferenceID   uuid.UUID             `json:"reference_id" validate:"required"`
	CreatedAt     time.Time             `json:"created_at"`
}

type PayoutStatus string

const (
	PayoutPending         PayoutStatus = "pending"
	PayoutReadyForRelease PayoutStatus = "ready_for_release"
	PayoutProcessing      PayoutStatus = "processing"
	PayoutCompleted       PayoutStatus = "completed"
	PayoutFailed          PayoutStatus = "failed"
	PayoutCancelled       PayoutStatus = "cancelled"
)

// Payout is one withdrawal request. While pending the gross sits in the
// wallet's held balance; confirmation converts the hold into a permanent
// debit, failure returns it to available.
type Payout struct {
	ID                   uuid.UUID    `json:"id" validate:"required"`
	FreelancerID         uuid.UUID    `json:"freelancer_id" validate:"required"`
	GrossAmount          int64        `json:"gross_amount" validate:"required,gt=0"`
	GatewayFee           int64        `json:"gateway_fee" validate:"gte=0"`
	PlatformFee          int64        `json:"platform_fee" validate:"gte=0"`
	StatutoryDeduction   int64        `json:"statutory_deduction" validate:"gte=0"`
	NetAmount            int64        `json:"net_amount" validate:"gte=0"`
	PaymentMethod        string       `json:"payment_method" validate:"required,oneof=bank_transfer mobile_money"`
	Status               PayoutStatus `json:"status" validate:"required,oneof=pending ready_for_release processing completed failed cancelled"`
	ReleaseBatchID       string       `json:"release_batch_id" validate:"required"`
	ScheduledReleaseTime time.Time    `json:"scheduled_release_time" validate:"required"`
	GatewayPayoutRef     string       `json:"gateway_payout_reference,omitempty"`
	FailureReason        string       `json:"failure_reason,omitempty"`
	AdminNotes           string       `json:"admin_notes,omitempty"`
	CompletedAt          *time.Time   `json:"completed_at,omitempty"`
	Model
}

// WebhookEvent is the reconciler's dedup ledger. (gateway, external_event_id)
// is unique; a second delivery of the same event is a no-op.
type WebhookEvent struct {
	ID              uuid.UUID       `json:"id" validate:"required"`
	Gateway         string          `json:"gateway" validate:"required,oneof=paystack stripe"`
	ExternalEventID string          `json:"external_event_id" validate:"required"`
	EventType       string          `json:"event_type" validate:"required"`
	Payload         json.RawMessage `json:"payload" validate:"required"`
	PayloadHash     string          `json:"payload_hash" validate:"required"`
	ProcessedAt     time.Time       `json:"processed_at"`
}

// AuditEntry records one state transition or balance mutation. Append-only,
// sequenced per (entity_type, entity_id).
type AuditEntry struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entity_type" validate:"required,oneof=escrow payout wallet webhook"`
	EntityID   uuid.UUID       `json:"entity_id" validate:"required"`
	Sequence   int64           `json:"sequence" validate:"gte=1"`
	ActorID    string          `json:"actor_id" validate:"required"`
	ActorRole  string          `json:"actor_role" validate:"required,oneof=system admin client freelancer"`
	Action     string          `json:"action" validate:"required"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ReleaseBatchSummary aggregates the payouts bucketed into one cutoff window.
type ReleaseBatchSummary struct {
	BatchID        string `json:"batch_id"`
	TotalGross     int64  `json:"total_gross"`
	TotalNet       int64  `json:"total_net"`
	Count          int64  `json:"count"`
	ReadyCount     int64  `json:"ready_count"`
	CompletedCount int64  `json:"completed_count"`
}

type TransactionOutbox struct {
	ID            int64           `json:"id" validate:"required"`
	EventType     string          `json:"event_type" validate:"required"`
	Payload       json.RawMessage `json:"payload" validate:"required"`
	PartitionKey  string          `json:"partition_key" validate:"required"`
	Status        string          `json:"status" validate:"required,oneof=pending processed failed"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	RetryCount    int             `json:"retry_count" validate:"gte=0"`
	LastError     string          `json:"last_error,omitempty"`
	Model
}
