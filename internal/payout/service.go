package payout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Kwabena/Talaria/internal/config"
	"github.com/Kwabena/Talaria/internal/fees"
	"github.com/Kwabena/Talaria/internal/kafka"
	"github.com/Kwabena/Talaria/internal/middleware"
	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/internal/redis"
	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

type PayoutService struct {
	repo    PayoutRepository
	cfg     config.PayoutConfig
	loc     *time.Location
	redis   *redis.Client
	lockTTL time.Duration
	now     func() time.Time
}

func NewPayoutService(repo PayoutRepository, cfg config.PayoutConfig, redisClient *redis.Client) (*PayoutService, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &PayoutService{
		repo:    repo,
		cfg:     cfg,
		loc:     loc,
		redis:   redisClient,
		lockTTL: 10 * time.Second,
		now:     time.Now,
	}, nil
}

func (ps *PayoutService) lockWallet(ctx context.Context, userID uuid.UUID) (*redis.Lock, error) {
	if ps.redis == nil {
		return nil, nil
	}
	return ps.redis.AcquireLock(ctx, "wallet:"+userID.String(), ps.lockTTL)
}

// RequestPayout reserves the gross against the freelancer's wallet and files
// the payout into the next release batch whose cutoff is still ahead.
func (ps *PayoutService) RequestPayout(ctx context.Context, actor types.Actor, req *types.RequestPayoutRequest) (*model.Payout, error) {
	logger := middleware.GetLogger(ctx)

	if !actor.IsAdmin() && !actor.IsSystem() && actor.ID != req.FreelancerID {
		return nil, model.ErrUnauthorized
	}
	if req.GrossAmount < ps.cfg.MinAmount || req.GrossAmount > ps.cfg.MaxAmount {
		logger.Warn().
			Int64("gross_amount", req.GrossAmount).
			Int64("min", ps.cfg.MinAmount).
			Int64("max", ps.cfg.MaxAmount).
			Msg("Payout amount outside platform bounds")
		return nil, model.ErrInvalidAmount
	}

	freelancerID := uuid.MustParse(req.FreelancerID)

	lock, err := ps.lockWallet(ctx, freelancerID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to acquire wallet lock")
		return nil, err
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	cutoff := NextCutoff(ps.now(), ps.loc, ps.cfg.CutoffHours)
	payout := &model.Payout{
		FreelancerID:         freelancerID,
		GrossAmount:          req.GrossAmount,
		PaymentMethod:        req.PaymentMethod,
		ReleaseBatchID:       BatchID(cutoff),
		ScheduledReleaseTime: cutoff,
	}

	outbox := []OutboxMessage{
		notificationMessage("payout.requested", req.FreelancerID, req.GrossAmount, payout.ReleaseBatchID, types.FeeBreakdown{Gross: req.GrossAmount}),
	}
	if err := ps.repo.CreateWithReservation(ctx, payout, actor, outbox); err != nil {
		return nil, err
	}

	logger.Info().
		Str("payout_id", payout.ID.String()).
		Str("release_batch_id", payout.ReleaseBatchID).
		Int64("gross_amount", payout.GrossAmount).
		Msg("Payout requested")
	return payout, nil
}

func (ps *PayoutService) GetPayout(ctx context.Context, id uuid.UUID) (*model.Payout, error) {
	return ps.repo.GetByID(ctx, id)
}

// MarkReady is the admin's pre-disbursement gate. Repeating it on an
// already-ready payout is a no-op.
func (ps *PayoutService) MarkReady(ctx context.Context, actor types.Actor, payoutID uuid.UUID) (*model.Payout, error) {
	logger := middleware.GetLogger(ctx)

	if !actor.IsAdmin() && !actor.IsSystem() {
		return nil, model.ErrUnauthorized
	}

	payout, applied, err := ps.repo.MarkReady(ctx, payoutID, actor)
	if err != nil {
		return nil, err
	}
	if !applied {
		logger.Info().Str("payout_id", payoutID.String()).Msg("Payout already ready, skipping")
	}
	return payout, nil
}

// BeginBatchProcessing opens disbursement for a closed batch, moving its
// pending payouts to processing. The batch cutoff trigger calls this under the
// system actor.
func (ps *PayoutService) BeginBatchProcessing(ctx context.Context, actor types.Actor, batchID string) (int64, error) {
	logger := middleware.GetLogger(ctx)

	if !actor.IsAdmin() && !actor.IsSystem() {
		return 0, model.ErrUnauthorized
	}
	moved, err := ps.repo.BeginProcessing(ctx, batchID, actor)
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		logger.Info().
			Str("release_batch_id", batchID).
			Int64("moved", moved).
			Msg("Batch disbursement opened")
	}
	return moved, nil
}

// ConfirmExternalPayment reconciles an admin's completed external transfer:
// it computes the fee split, converts the reservation into a permanent debit
// and closes the payout.
func (ps *PayoutService) ConfirmExternalPayment(ctx context.Context, actor types.Actor, payoutID uuid.UUID, req *types.ConfirmPayoutRequest) (*model.Payout, error) {
	logger := middleware.GetLogger(ctx)

	if !actor.IsAdmin() && !actor.IsSystem() {
		return nil, model.ErrUnauthorized
	}
	payout, err := ps.repo.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	lock, err := ps.lockWallet(ctx, payout.FreelancerID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to acquire wallet lock")
		return nil, err
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	gatewayFee, platformFee, statutory, net := ps.computeFees(payout.GrossAmount)
	breakdown := types.FeeBreakdown{
		Gross:              payout.GrossAmount,
		PlatformCommission: gatewayFee + platformFee,
		StatutoryDeduction: statutory,
		Net:                net,
	}
	outbox := []OutboxMessage{
		notificationMessage("payout.completed", payout.FreelancerID.String(), net, payout.ID.String(), breakdown),
		receiptMessage(payout.ID.String(), payout.FreelancerID.String(), breakdown),
	}

	confirmed, err := ps.repo.Confirm(ctx, ConfirmParams{
		PayoutID:     payout.ID,
		FreelancerID: payout.FreelancerID,
		GatewayFee:   gatewayFee,
		PlatformFee:  platformFee,
		Statutory:    statutory,
		Net:          net,
		Reference:    req.GatewayReference,
		Notes:        req.Notes,
		Actor:        actor,
		Outbox:       outbox,
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("payout_id", confirmed.ID.String()).
		Int64("net_amount", confirmed.NetAmount).
		Msg("Payout completed")
	return confirmed, nil
}

// ConfirmFromGateway applies a gateway-reported settlement. A delivery for an
// already-completed payout is the duplicate-webhook no-op: the existing row
// comes back with applied=false and nothing is written.
func (ps *PayoutService) ConfirmFromGateway(ctx context.Context, payoutID uuid.UUID, reference string) (*model.Payout, bool, error) {
	payout, err := ps.repo.GetByID(ctx, payoutID)
	if err != nil {
		return nil, false, err
	}
	if payout.Status == model.PayoutCompleted {
		return payout, false, nil
	}

	confirmed, err := ps.ConfirmExternalPayment(ctx, types.Actor{ID: constants.AccountExternalID, Role: constants.RoleSystem}, payoutID, &types.ConfirmPayoutRequest{
		GatewayReference: reference,
		Notes:            "settled by gateway webhook",
	})
	if err != nil {
		return nil, false, err
	}
	return confirmed, true, nil
}

// FailPayout reverses the reservation and records why. Gross goes back to
// available in full.
func (ps *PayoutService) FailPayout(ctx context.Context, actor types.Actor, payoutID uuid.UUID, reason string) (*model.Payout, error) {
	logger := middleware.GetLogger(ctx)

	if !actor.IsAdmin() && !actor.IsSystem() {
		return nil, model.ErrUnauthorized
	}
	payout, err := ps.repo.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status == model.PayoutFailed {
		return payout, nil
	}

	lock, err := ps.lockWallet(ctx, payout.FreelancerID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to acquire wallet lock")
		return nil, err
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	outbox := []OutboxMessage{
		notificationMessage("payout.failed", payout.FreelancerID.String(), payout.GrossAmount, payout.ID.String(), types.FeeBreakdown{Gross: payout.GrossAmount}),
	}
	failed, err := ps.repo.Fail(ctx, FailParams{
		PayoutID:     payout.ID,
		FreelancerID: payout.FreelancerID,
		Reason:       reason,
		Actor:        actor,
		Outbox:       outbox,
	})
	if err != nil {
		return nil, err
	}

	logger.Warn().
		Str("payout_id", failed.ID.String()).
		Str("reason", reason).
		Msg("Payout failed, reservation reversed")
	return failed, nil
}

func (ps *PayoutService) FindByGatewayReference(ctx context.Context, reference string) (*model.Payout, error) {
	return ps.repo.GetByGatewayReference(ctx, reference)
}

func (ps *PayoutService) BatchSummary(ctx context.Context, batchID string) (*model.ReleaseBatchSummary, error) {
	return ps.repo.BatchSummary(ctx, batchID)
}

func (ps *PayoutService) ListBatch(ctx context.Context, batchID string) ([]model.Payout, error) {
	return ps.repo.ListByBatch(ctx, batchID)
}

// CurrentBatchID is the batch the next request would land in.
func (ps *PayoutService) CurrentBatchID() string {
	return BatchID(NextCutoff(ps.now(), ps.loc, ps.cfg.CutoffHours))
}

func (ps *PayoutService) computeFees(gross int64) (gatewayFee, platformFee, statutory, net int64) {
	gatewayFee = fees.RoundHalfUpBps(gross, ps.cfg.GatewayFeeBps)
	platformFee = fees.RoundHalfUpBps(gross, ps.cfg.PlatformFeeBps)
	statutory = fees.ComputeStatutoryDeduction(gross - gatewayFee - platformFee)
	net = gross - gatewayFee - platformFee - statutory
	return gatewayFee, platformFee, statutory, net
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

func receiptMessage(referenceID, userID string, breakdown types.FeeBreakdown) OutboxMessage {
	payload, _ := json.Marshal(types.InvoiceEvent{
		Kind:        "receipt",
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
