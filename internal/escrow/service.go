package escrow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kwabena/Talaria/internal/fees"
	"github.com/Kwabena/Talaria/internal/gateway"
	"github.com/Kwabena/Talaria/internal/kafka"
	"github.com/Kwabena/Talaria/internal/middleware"
	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/internal/redis"
	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

type EscrowService struct {
	repo          EscrowRepository
	gatewayClient gateway.Client
	redis         *redis.Client
	lockTTL       time.Duration
}

func NewEscrowService(repo EscrowRepository, gatewayClient gateway.Client, redisClient *redis.Client) *EscrowService {
	return &EscrowService{
		repo:          repo,
		gatewayClient: gatewayClient,
		redis:         redisClient,
		lockTTL:       10 * time.Second,
	}
}

// lockWallet serializes balance mutations per wallet across processes. Tests
// run without a Redis client and skip the lock.
func (es *EscrowService) lockWallet(ctx context.Context, userID uuid.UUID) (*redis.Lock, error) {
	if es.redis == nil {
		return nil, nil
	}
	return es.redis.AcquireLock(ctx, "wallet:"+userID.String(), es.lockTTL)
}

// CreateEscrow opens a created escrow for a gig and initializes the gateway
// payment the client will complete. Commission and net are fixed at creation
// so the conservation invariant holds from the first row.
func (es *EscrowService) CreateEscrow(ctx context.Context, actor types.Actor, req *types.CreateEscrowRequest) (*types.CreateEscrowResponse, error) {
	logger := middleware.GetLogger(ctx)

	if req.GrossAmount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	if !actor.IsAdmin() && !actor.IsSystem() && actor.ID != req.ClientID {
		logger.Warn().Str("actor_id", actor.ID).Msg("Actor is not the paying client")
		return nil, model.ErrUnauthorized
	}

	commission, net := fees.ComputeCommission(req.GrossAmount)

	escrow := &model.Escrow{
		GigID:              uuid.MustParse(req.GigID),
		ClientID:           uuid.MustParse(req.ClientID),
		FreelancerID:       uuid.MustParse(req.FreelancerID),
		GrossAmount:        req.GrossAmount,
		PlatformCommission: commission,
		NetAmount:          net,
		PaymentGateway:     req.PaymentGateway,
	}
	if err := es.repo.Create(ctx, escrow, actor); err != nil {
		logger.Error().Err(err).Msg("Failed to create escrow")
		return nil, fmt.Errorf("failed to create escrow: %w", err)
	}

	initReq := &types.InitializePaymentRequest{
		Email:       req.ClientEmail,
		CallbackURL: req.CallbackURL,
		Amount:      req.GrossAmount,
		Currency:    constants.Currency,
	}
	initReq.Metadata.EscrowID = escrow.ID.String()

	initRes, err := es.gatewayClient.InitializePayment(ctx, initReq)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize gateway payment")
		return nil, fmt.Errorf("failed to initialize payment: %w", err)
	}

	return &types.CreateEscrowResponse{
		EscrowID:         escrow.ID.String(),
		Status:           string(model.EscrowCreated),
		GatewayReference: initRes.Data.Reference,
		AuthorizationURL: initRes.Data.AuthorizationURL,
	}, nil
}

func (es *EscrowService) GetEscrow(ctx context.Context, id uuid.UUID) (*model.Escrow, error) {
	return es.repo.GetByID(ctx, id)
}

func (es *EscrowService) FindByGatewayReference(ctx context.Context, gateway, reference string) (*model.Escrow, error) {
	return es.repo.GetByGatewayReference(ctx, gateway, reference)
}

// ConfirmFunding applies created -> funded off a verified gateway event.
// Re-confirmation of an already-funded escrow is a no-op returning the
// existing state.
func (es *EscrowService) ConfirmFunding(ctx context.Context, actor types.Actor, escrowID uuid.UUID, reference string) (*model.Escrow, error) {
	logger := middleware.GetLogger(ctx)

	escrow, applied, err := es.repo.MarkFunded(ctx, escrowID, reference, actor, nil)
	if err != nil {
		return nil, err
	}
	if !applied {
		logger.Info().Str("escrow_id", escrowID.String()).Msg("Escrow already funded, skipping duplicate confirmation")
		return escrow, nil
	}

	logger.Info().
		Str("escrow_id", escrowID.String()).
		Int64("gross_amount", escrow.GrossAmount).
		Msg("Escrow funded")
	return escrow, nil
}

// Release pays the freelancer the net of the escrow's remaining balance, less
// the statutory deduction, exactly once. Only the paying client or an admin
// may release.
func (es *EscrowService) Release(ctx context.Context, actor types.Actor, escrowID uuid.UUID) (*model.Escrow, error) {
	escrow, err := es.repo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.IsSystem() && actor.ID != escrow.ClientID.String() {
		return nil, model.ErrUnauthorized
	}

	return es.release(ctx, actor, escrow, []model.EscrowStatus{model.EscrowFunded, model.EscrowPartiallyRefunded})
}

func (es *EscrowService) release(ctx context.Context, actor types.Actor, escrow *model.Escrow, from []model.EscrowStatus) (*model.Escrow, error) {
	logger := middleware.GetLogger(ctx)

	releaseGross := escrow.Remaining()
	if releaseGross <= 0 {
		return nil, model.ErrInvalidAmount
	}
	commission, net := fees.ComputeCommission(releaseGross)
	statutory := fees.ComputeStatutoryDeduction(net)

	lock, err := es.lockWallet(ctx, escrow.FreelancerID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to acquire wallet lock")
		return nil, err
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	breakdown := types.FeeBreakdown{
		Gross:              releaseGross,
		PlatformCommission: commission,
		StatutoryDeduction: statutory,
		Net:                net - statutory,
	}
	outbox := []OutboxMessage{
		notificationMessage("escrow.released", escrow.FreelancerID.String(), net-statutory, escrow.ID.String(), breakdown),
		invoiceMessage("invoice", escrow.ID.String(), escrow.ClientID.String(), breakdown),
	}

	released, err := es.repo.Release(ctx, ReleaseParams{
		EscrowID:     escrow.ID,
		FreelancerID: escrow.FreelancerID,
		FromStatuses: from,
		Gross:        releaseGross,
		Commission:   commission,
		Net:          net,
		Statutory:    statutory,
		Actor:        actor,
		Outbox:       outbox,
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("escrow_id", escrow.ID.String()).
		Int64("net", net).
		Int64("commission", commission).
		Int64("statutory_deduction", statutory).
		Msg("Escrow released")
	return released, nil
}

// Refund returns part or all of the escrowed funds to the client, out of band
// through the gateway. The freelancer wallet is untouched. Cumulative refunds
// are capped at the gross amount.
func (es *EscrowService) Refund(ctx context.Context, actor types.Actor, escrowID uuid.UUID, req *types.RefundEscrowRequest) (*model.Escrow, error) {
	logger := middleware.GetLogger(ctx)

	escrow, err := es.repo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.IsSystem() && actor.ID != escrow.ClientID.String() {
		return nil, model.ErrUnauthorized
	}
	if req.Amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	if req.Amount > escrow.Remaining() {
		logger.Warn().
			Int64("requested", req.Amount).
			Int64("remaining", escrow.Remaining()).
			Msg("Refund exceeds remaining escrow balance")
		return nil, model.ErrInsufficientEscrowBalance
	}

	newStatus := model.EscrowPartiallyRefunded
	if escrow.RefundedAmount+req.Amount == escrow.GrossAmount {
		newStatus = model.EscrowRefunded
	}

	breakdown := types.FeeBreakdown{Gross: req.Amount, Net: req.Amount}
	outbox := []OutboxMessage{
		notificationMessage("escrow.refunded", escrow.ClientID.String(), req.Amount, escrow.ID.String(), breakdown),
	}

	refunded, err := es.repo.Refund(ctx, RefundParams{
		EscrowID:     escrow.ID,
		Amount:       req.Amount,
		NewStatus:    newStatus,
		FromStatuses: []model.EscrowStatus{model.EscrowFunded, model.EscrowPartiallyRefunded},
		Actor:        actor,
		Reason:       req.Reason,
		Outbox:       outbox,
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("escrow_id", escrow.ID.String()).
		Int64("amount", req.Amount).
		Str("status", string(refunded.Status)).
		Msg("Escrow refund recorded")
	return refunded, nil
}

// Dispute freezes release and refund until an admin resolves.
func (es *EscrowService) Dispute(ctx context.Context, actor types.Actor, escrowID uuid.UUID) (*model.Escrow, error) {
	escrow, err := es.repo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	isParty := actor.ID == escrow.ClientID.String() || actor.ID == escrow.FreelancerID.String()
	if !actor.IsAdmin() && !actor.IsSystem() && !isParty {
		return nil, model.ErrUnauthorized
	}
	return es.repo.MarkDisputed(ctx, escrowID, actor)
}

// ResolveDispute forces a disputed escrow to released or refunded. Admin only.
// Resolving to refund after funds already reached the freelancer claws back
// the credited amount as a compensating adjustment, never by rewriting
// history.
func (es *EscrowService) ResolveDispute(ctx context.Context, actor types.Actor, escrowID uuid.UUID, req *types.ResolveDisputeRequest) (*model.Escrow, error) {
	logger := middleware.GetLogger(ctx)

	if !actor.IsAdmin() {
		return nil, model.ErrUnauthorized
	}
	escrow, err := es.repo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if escrow.Status != model.EscrowDisputed {
		return nil, model.ErrInvalidStateTransition
	}

	alreadyPaid := escrow.ReleasedAt != nil

	switch req.Resolution {
	case "release":
		if alreadyPaid {
			return es.repo.ResolveReleased(ctx, escrowID, actor)
		}
		return es.release(ctx, actor, escrow, []model.EscrowStatus{model.EscrowDisputed})
	case "refund":
		if !alreadyPaid {
			remaining := escrow.Remaining()
			breakdown := types.FeeBreakdown{Gross: remaining, Net: remaining}
			outbox := []OutboxMessage{
				notificationMessage("escrow.refunded", escrow.ClientID.String(), remaining, escrow.ID.String(), breakdown),
			}
			return es.repo.Refund(ctx, RefundParams{
				EscrowID:     escrow.ID,
				Amount:       remaining,
				NewStatus:    model.EscrowRefunded,
				FromStatuses: []model.EscrowStatus{model.EscrowDisputed},
				Actor:        actor,
				Reason:       req.Notes,
				Outbox:       outbox,
			})
		}

		// funds already left: claw back what the release actually credited,
		// which the escrow row recorded at release time
		clawback := escrow.ReleasedNet - escrow.ReleasedStatutory

		lock, err := es.lockWallet(ctx, escrow.FreelancerID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to acquire wallet lock")
			return nil, err
		}
		if lock != nil {
			defer lock.Release(ctx)
		}

		breakdown := types.FeeBreakdown{Gross: escrow.ReleasedGross, Net: clawback}
		outbox := []OutboxMessage{
			notificationMessage("escrow.refunded", escrow.ClientID.String(), escrow.ReleasedGross, escrow.ID.String(), breakdown),
		}
		return es.repo.CompensateRelease(ctx, escrow.ID, escrow.FreelancerID, clawback, actor, outbox)
	default:
		return nil, model.ErrInvalidStateTransition
	}
}

func notificationMessage(eventType, recipientID string, amount int64, reference string, breakdown types.FeeBreakdown) OutboxMessage {
	payload, _ := json.Marshal(types.NotificationEvent{
		EventType:   eventType,
		RecipientID: recipientID,
		Amount:      amount,
		Reference:   reference,
		Breakdown:   breakdown,
		Currency:    constants.Currency,
	})
	return OutboxMessage{
		EventType:    kafka.EventNotificationQueued,
		PartitionKey: recipientID,
		Payload:      payload,
	}
}

func invoiceMessage(kind, referenceID, userID string, breakdown types.FeeBreakdown) OutboxMessage {
	payload, _ := json.Marshal(types.InvoiceEvent{
		Kind:        kind,
		ReferenceID: referenceID,
		UserID:      userID,
		Breakdown:   breakdown,
		Currency:    constants.Currency,
	})
	return OutboxMessage{
		EventType:    kafka.EventInvoiceRequested,
		PartitionKey: userID,
		Payload:      payload,
	}
}
