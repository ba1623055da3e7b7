package payout

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Kwabena/Talaria/internal/middleware"
	"github.com/Kwabena/Talaria/internal/model"
	redisPkg "github.com/Kwabena/Talaria/internal/redis"
	"github.com/Kwabena/Talaria/pkg/types"
)

type PayoutHandler struct {
	payoutService *PayoutService
	redis         *redisPkg.Client
}

func NewPayoutHandler(payoutService *PayoutService, redisClient *redisPkg.Client) *PayoutHandler {
	return &PayoutHandler{
		payoutService: payoutService,
		redis:         redisClient,
	}
}

var validate = validator.New()

const idempotencyTTL = 30 * time.Minute

func (ph *PayoutHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	actor := middleware.GetActor(ctx)

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey == "" {
		logger.Error().Msg("Idempotency-Key header is missing")
		http.Error(w, "Idempotency-Key header is required", http.StatusBadRequest)
		return
	}

	if ph.redis != nil {
		cached, err := ph.redis.CheckAndSetIdempotency(ctx, idemKey, idempotencyTTL)
		if errors.Is(err, redisPkg.ErrKeyExists) {
			http.Error(w, "Request with this Idempotency-Key is still processing", http.StatusConflict)
			return
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Idempotency check unavailable, proceeding")
		}
		if cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			return
		}
	}

	var req types.RequestPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode payout request")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	payout, err := ph.payoutService.RequestPayout(ctx, actor, &req)
	if err != nil {
		if ph.redis != nil {
			ph.redis.MarkIdempotencyFailed(ctx, idemKey)
		}
		writePayoutError(w, logger, err, "Failed to request payout")
		return
	}

	response, _ := json.Marshal(payout)
	if ph.redis != nil {
		if err := ph.redis.MarkIdempotencyComplete(ctx, idemKey, response, idempotencyTTL); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache idempotent response")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(response)
}

func (ph *PayoutHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		http.Error(w, "Invalid payout id", http.StatusBadRequest)
		return
	}

	payout, err := ph.payoutService.GetPayout(ctx, id)
	if err != nil {
		writePayoutError(w, logger, err, "Failed to fetch payout")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payout)
}

func (ph *PayoutHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	actor := middleware.GetActor(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		http.Error(w, "Invalid payout id", http.StatusBadRequest)
		return
	}

	payout, err := ph.payoutService.MarkReady(ctx, actor, id)
	if err != nil {
		writePayoutError(w, logger, err, "Failed to mark payout ready")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payout)
}

func (ph *PayoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	actor := middleware.GetActor(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		http.Error(w, "Invalid payout id", http.StatusBadRequest)
		return
	}

	var req types.ConfirmPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode payout confirmation")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	payout, err := ph.payoutService.ConfirmExternalPayment(ctx, actor, id, &req)
	if err != nil {
		writePayoutError(w, logger, err, "Failed to confirm payout")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payout)
}

func (ph *PayoutHandler) Fail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	actor := middleware.GetActor(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		http.Error(w, "Invalid payout id", http.StatusBadRequest)
		return
	}

	var req types.FailPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode payout failure")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	payout, err := ph.payoutService.FailPayout(ctx, actor, id, req.Reason)
	if err != nil {
		writePayoutError(w, logger, err, "Failed to fail payout")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payout)
}

// GetBatch returns the aggregate view of one release batch. The batch id is
// passed as a query param because it is an RFC3339 timestamp.
func (ph *PayoutHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	batchID := r.URL.Query().Get("batch_id")
	if batchID == "" {
		batchID = ph.payoutService.CurrentBatchID()
	}

	summary, err := ph.payoutService.BatchSummary(ctx, batchID)
	if err != nil {
		writePayoutError(w, logger, err, "Failed to fetch batch summary")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func writePayoutError(w http.ResponseWriter, logger *zerolog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, "Payout not found", http.StatusNotFound)
	case errors.Is(err, model.ErrUnauthorized):
		http.Error(w, "Not allowed", http.StatusForbidden)
	case errors.Is(err, model.ErrInvalidAmount):
		http.Error(w, "Amount outside payout bounds", http.StatusBadRequest)
	case errors.Is(err, model.ErrInsufficientBalance):
		http.Error(w, "Insufficient available balance", http.StatusUnprocessableEntity)
	case errors.Is(err, model.ErrInvalidStateTransition):
		http.Error(w, "Invalid state transition", http.StatusConflict)
	default:
		logger.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
