package types

// Actor is the authenticated caller forwarded by the identity collaborator.
// Every mutating operation takes it explicitly; the engine never reads roles
// from ambient session state.
type Actor struct {
	ID   string `json:"id" validate:"required"`
	Role string `json:"role" validate:"required,oneof=system admin client freelancer"`
}

func (a Actor) IsAdmin() bool  { return a.Role == "admin" }
func (a Actor) IsSystem() bool { return a.Role == "system" }

type CreateEscrowRequest struct {
	GigID          string `json:"gig_id" validate:"required,uuid4"`
	ClientID       string `json:"client_id" validate:"required,uuid4"`
	FreelancerID   string `json:"freelancer_id" validate:"required,uuid4"`
	GrossAmount    int64  `json:"gross_amount" validate:"required,gt=0"`
	PaymentGateway string `json:"payment_gateway" validate:"required,oneof=paystack stripe"`
	ClientEmail    string `json:"client_email" validate:"required,email"`
	CallbackURL    string `json:"callback_url,omitempty"`
}

type CreateEscrowResponse struct {
	EscrowID         string `json:"escrow_id"`
	Status           string `json:"status"`
	GatewayReference string `json:"gateway_reference,omitempty"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
}

type ConfirmFundingRequest struct {
	GatewayReference string `json:"gateway_reference" validate:"required"`
}

type RefundEscrowRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type ResolveDisputeRequest struct {
	// Resolution is the admin's forced outcome for a disputed escrow.
	Resolution string `json:"resolution" validate:"required,oneof=release refund"`
	Notes      string `json:"notes,omitempty"`
}

type RequestPayoutRequest struct {
	FreelancerID  string `json:"freelancer_id" validate:"required,uuid4"`
	GrossAmount   int64  `json:"gross_amount" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=bank_transfer mobile_money"`
}

type ConfirmPayoutRequest struct {
	GatewayReference string `json:"gateway_reference" validate:"required"`
	Notes            string `json:"notes,omitempty"`
}

type FailPayoutRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// FeeBreakdown is the immutable amount split attached to invoice and receipt
// triggers for external document rendering.
type FeeBreakdown struct {
	Gross              int64 `json:"gross"`
	PlatformCommission int64 `json:"platform_commission"`
	StatutoryDeduction int64 `json:"statutory_deduction"`
	Net                int64 `json:"net"`
}

// NotificationEvent is the outbox payload consumed by the delivery
// collaborator. Content and channel are its responsibility.
type NotificationEvent struct {
	EventType   string       `json:"event_type"`
	RecipientID string       `json:"recipient_id"`
	Amount      int64        `json:"amount"`
	Reference   string       `json:"reference"`
	Breakdown   FeeBreakdown `json:"breakdown"`
	Currency    string       `json:"currency"`
}

// InvoiceEvent triggers invoice (escrow released) or receipt (payout
// completed) generation.
type InvoiceEvent struct {
	Kind        string       `json:"kind"` // invoice | receipt
	ReferenceID string       `json:"reference_id"`
	UserID      string       `json:"user_id"`
	Breakdown   FeeBreakdown `json:"breakdown"`
	Currency    string       `json:"currency"`
}
