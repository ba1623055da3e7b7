package model

import "errors"

// Error taxonomy for the settlement engine. Validation errors are returned
// synchronously before any state change; ErrDuplicateEvent is a recognized
// no-op outcome, not a failure.
var (
	ErrInvalidAmount             = errors.New("invalid amount")
	ErrInvalidStateTransition    = errors.New("invalid state transition")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrInsufficientEscrowBalance = errors.New("insufficient escrow balance")
	ErrUnauthorized              = errors.New("unauthorized")
	ErrDuplicateEvent            = errors.New("duplicate event")
	ErrGatewaySettlementFailure  = errors.New("gateway settlement failure")
	ErrNotFound                  = errors.New("not found")
	ErrConflict                  = errors.New("concurrent update conflict")
)
