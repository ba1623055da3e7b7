package escrow

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Kwabena/Talaria/internal/middleware"
	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/pkg/types"
)

type EscrowHandler struct {
	escrowService *EscrowService
}

func NewEscrowHandler(escrowService *EscrowService) *EscrowHandler {
	return &EscrowHandler{
		escrowService: escrowService,
	}
}

var validate = validator.New()

func (eh *EscrowHandler) CreateEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	actor := middleware.GetActor(ctx)

	var req types.CreateEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode create escrow request")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		logger.Error().Err(err).Msg("Validation error on create escrow request")
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := eh.escrowService.CreateEscrow(ctx, actor, &req)
	if err != nil {
		writeServiceError(w, logger, err, "Failed to create escrow")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(res)
}

func (eh *EscrowHandler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "escrowID"))
	if err != nil {
		http.Error(w, "Invalid escrow id", http.StatusBadRequest)
		return
	}

	escrow, err := eh.escrowService.GetEscrow(ctx, id)
	if err != nil {
		writeServiceError(w, logger, err, "Failed to fetch escrow")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(escrow)
}

// ConfirmFunding is the direct gateway confirmation path for operators;
// the usual path is the webhook reconciler.
func (eh *EscrowHandler) ConfirmFunding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	actor := middleware.GetActor(ctx)

	if !actor.IsAdmin() && !actor.IsSystem() {
		http.Error(w, "Not allowed", http.StatusForbidden)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "escrowID"))
	if err != nil {
		http.Error(w, "Invalid escrow id", http.StatusBadRequest)
		return
	}

	var req types.ConfirmFundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode funding confirmation")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	escrow, err := eh.escrowService.ConfirmFunding(ctx, actor, id, req.GatewayReference)
	if err != nil {
		writeServiceError(w, logger, err, "Failed to confirm funding")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(escrow)
}

func (eh *EscrowHandler) Release(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	actor := middleware.GetActor(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "escrowID"))
	if err != nil {
		http.Error(w, "Invalid escrow id", http.StatusBadRequest)
		return
	}

	escrow, err := eh.escrowService.Release(ctx, actor, id)
	if err != nil {
		writeServiceError(w, logger, err, "Failed to release escrow")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(escrow)
}

func (eh *EscrowHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	actor := middleware.GetActor(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "escrowID"))
	if err != nil {
		http.Error(w, "Invalid escrow id", http.StatusBadRequest)
		return
	}

	var req types.RefundEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode refund request")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	escrow, err := eh.escrowService.Refund(ctx, actor, id, &req)
	if err != nil {
		writeServiceError(w, logger, err, "Failed to refund escrow")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(escrow)
}

func (eh *EscrowHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	actor := middleware.GetActor(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "escrowID"))
	if err != nil {
		http.Error(w, "Invalid escrow id", http.StatusBadRequest)
		return
	}

	escrow, err := eh.escrowService.Dispute(ctx, actor, id)
	if err != nil {
		writeServiceError(w, logger, err, "Failed to dispute escrow")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(escrow)
}

func (eh *EscrowHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	actor := middleware.GetActor(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "escrowID"))
	if err != nil {
		http.Error(w, "Invalid escrow id", http.StatusBadRequest)
		return
	}

	var req types.ResolveDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode dispute resolution request")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	escrow, err := eh.escrowService.ResolveDispute(ctx, actor, id, &req)
	if err != nil {
		writeServiceError(w, logger, err, "Failed to resolve dispute")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(escrow)
}

func writeServiceError(w http.ResponseWriter, logger *zerolog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "Escrow not found", http.StatusNotFound)
	case errors.Is(err, model.ErrUnauthorized):
		http.Error(w, "Not allowed", http.StatusForbidden)
	case errors.Is(err, model.ErrInvalidAmount):
		http.Error(w, "Invalid amount", http.StatusBadRequest)
	case errors.Is(err, model.ErrInsufficientEscrowBalance):
		http.Error(w, "Refund exceeds remaining escrow balance", http.StatusUnprocessableEntity)
	case errors.Is(err, model.ErrInvalidStateTransition):
		http.Error(w, "Invalid state transition", http.StatusConflict)
	case errors.Is(err, model.ErrConflict):
		http.Error(w, "Conflict", http.StatusConflict)
	default:
		logger.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
