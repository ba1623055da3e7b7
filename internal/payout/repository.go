package payout

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kwabena/Talaria/internal/audit"
	"github.com/Kwabena/Talaria/internal/ledger"
	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/pkg/constants"
	"github.com/Kwabena/Talaria/pkg/types"
)

// OutboxMessage mirrors the escrow engine's: queued in the same transaction
// as the state change, delivered to Kafka by the relay.
type OutboxMessage struct {
	EventType    string
	PartitionKey string
	Payload      []byte
}

// ConfirmParams carries the fee split computed at confirmation time plus the
// external transfer reference the admin reconciled against.
type ConfirmParams struct {
	PayoutID     uuid.UUID
	FreelancerID uuid.UUID
	GatewayFee   int64
	PlatformFee  int64
	Statutory    int64
	Net          int64
	Reference    string
	Notes        string
	Actor        types.Actor
	Outbox       []OutboxMessage
}

type FailParams struct {
	PayoutID     uuid.UUID
	FreelancerID uuid.UUID
	Reason       string
	Actor        types.Actor
	Outbox       []OutboxMessage
}

type PayoutRepository interface {
	CreateWithReservation(ctx context.Context, payout *model.Payout, actor types.Actor, outbox []OutboxMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payout, error)
	GetByGatewayReference(ctx context.Context, reference string) (*model.Payout, error)
	MarkReady(ctx context.Context, id uuid.UUID, actor types.Actor) (*model.Payout, bool, error)
	BeginProcessing(ctx context.Context, batchID string, actor types.Actor) (int64, error)
	Confirm(ctx context.Context, p ConfirmParams) (*model.Payout, error)
	Fail(ctx context.Context, p FailParams) (*model.Payout, error)
	BatchSummary(ctx context.Context, batchID string) (*model.ReleaseBatchSummary, error)
	ListByBatch(ctx context.Context, batchID string) ([]model.Payout, error)
}

type PayoutRepo struct {
	db *pgxpool.Pool
}

func NewPayoutRepository(db *pgxpool.Pool) *PayoutRepo {
	return &PayoutRepo{db: db}
}

const payoutColumns = `id, freelancer_id, gross_amount, gateway_fee, platform_fee, statutory_deduction, net_amount,
	payment_method, status, release_batch_id, scheduled_release_time, gateway_payout_reference,
	failure_reason, admin_notes, completed_at, created_at, updated_at`

func scanPayout(row pgx.Row) (*model.Payout, error) {
	var p model.Payout
	err := row.Scan(&p.ID, &p.FreelancerID, &p.GrossAmount, &p.GatewayFee, &p.PlatformFee, &p.StatutoryDeduction, &p.NetAmount,
		&p.PaymentMethod, &p.Status, &p.ReleaseBatchID, &p.ScheduledReleaseTime, &p.GatewayPayoutRef,
		&p.FailureReason, &p.AdminNotes, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func payoutSnapshot(p *model.Payout) json.RawMessage {
	snap, _ := json.Marshal(map[string]interface{}{
		"status":              p.Status,
		"gross_amount":        p.GrossAmount,
		"gateway_fee":         p.GatewayFee,
		"platform_fee":        p.PlatformFee,
		"statutory_deduction": p.StatutoryDeduction,
		"net_amount":          p.NetAmount,
		"release_batch_id":    p.ReleaseBatchID,
	})
	return snap
}

func payoutAuditEntry(before, after *model.Payout, action string, actor types.Actor) *model.AuditEntry {
	entry := &model.AuditEntry{
		EntityType: "payout",
		EntityID:   after.ID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		After:      payoutSnapshot(after),
	}
	if before != nil {
		entry.Before = payoutSnapshot(before)
	}
	return entry
}

func appendPayoutAudit(ctx context.Context, tx pgx.Tx, before, after *model.Payout, action string, actor types.Actor) error {
	return audit.Append(ctx, tx, payoutAuditEntry(before, after, action, actor))
}

// lockPayout reads the row under FOR UPDATE so the pre-transition snapshot and
// the CAS that follows see the same state.
func lockPayout(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Payout, error) {
	row := tx.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1 FOR UPDATE`, id)
	return scanPayout(row)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, messages []OutboxMessage) error {
	for _, m := range messages {
		if _, err := tx.Exec(ctx, `
			INSERT INTO transaction_outbox (event_type, payload, partition_key, status)
			VALUES ($1, $2, $3, 'pending')`, m.EventType, m.Payload, m.PartitionKey); err != nil {
			return err
		}
	}
	return nil
}

func walletIDFor(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (uuid.UUID, error) {
	var walletID uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO wallets (user_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id`, userID, constants.Currency).Scan(&walletID)
	return walletID, err
}

// CreateWithReservation inserts the pending payout and moves its gross from
// available to held in the same transaction. An insufficient balance aborts
// before the payout row exists.
func (pr *PayoutRepo) CreateWithReservation(ctx context.Context, payout *model.Payout, actor types.Actor, outbox []OutboxMessage) error {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO payouts (freelancer_id, gross_amount, payment_method, status, release_batch_id, scheduled_release_time)
		VALUES ($1, $2, $3, 'pending', $4, $5)
		RETURNING id, created_at, updated_at`,
		payout.FreelancerID, payout.GrossAmount, payout.PaymentMethod, payout.ReleaseBatchID, payout.ScheduledReleaseTime,
	).Scan(&payout.ID, &payout.CreatedAt, &payout.UpdatedAt)
	if err != nil {
		return err
	}
	payout.Status = model.PayoutPending

	walletID, err := walletIDFor(ctx, tx, payout.FreelancerID)
	if err != nil {
		return err
	}
	if _, err := ledger.HoldFromAvailable(ctx, tx, walletID, payout.GrossAmount, payout.ID); err != nil {
		return err
	}

	if err := appendPayoutAudit(ctx, tx, nil, payout, "payout.requested", actor); err != nil {
		return err
	}
	if err := insertOutbox(ctx, tx, outbox); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (pr *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Payout, error) {
	row := pr.db.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	return scanPayout(row)
}

func (pr *PayoutRepo) GetByGatewayReference(ctx context.Context, reference string) (*model.Payout, error) {
	row := pr.db.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE gateway_payout_reference = $1`, reference)
	return scanPayout(row)
}

// MarkReady applies pending/processing -> ready_for_release. Calling it on an
// already-ready payout returns the row with applied=false, the idempotent
// no-op. Terminal payouts reject with ErrInvalidStateTransition.
func (pr *PayoutRepo) MarkReady(ctx context.Context, id uuid.UUID, actor types.Actor) (*model.Payout, bool, error) {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	before, err := lockPayout(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	if before.Status == model.PayoutReadyForRelease {
		// idempotent repeat, not an error
		return before, false, nil
	}

	row := tx.QueryRow(ctx, `
		UPDATE payouts
		SET status = 'ready_for_release', updated_at = NOW()
		WHERE id = $1 AND status = ANY('{pending,processing}')
		RETURNING `+payoutColumns, id)
	payout, err := scanPayout(row)
	if errors.Is(err, model.ErrNotFound) {
		return nil, false, model.ErrInvalidStateTransition
	}
	if err != nil {
		return nil, false, err
	}

	if err := appendPayoutAudit(ctx, tx, before, payout, "payout.marked_ready", actor); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return payout, true, nil
}

// BeginProcessing moves a closed batch's pending payouts into processing when
// its disbursement window opens. No money moves; the reservation stays held
// until each payout is confirmed or failed individually.
func (pr *PayoutRepo) BeginProcessing(ctx context.Context, batchID string, actor types.Actor) (int64, error) {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE payouts
		SET status = 'processing', updated_at = NOW()
		WHERE release_batch_id = $1 AND status = 'pending'
		RETURNING `+payoutColumns, batchID)
	if err != nil {
		return 0, err
	}

	var moved []model.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		moved = append(moved, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for i := range moved {
		before := moved[i]
		before.Status = model.PayoutPending
		if err := appendPayoutAudit(ctx, tx, &before, &moved[i], "payout.processing", actor); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int64(len(moved)), nil
}

// Confirm converts the reservation into a permanent debit. The held gross is
// removed (its ledger debit was written at reservation), the platform and
// statutory wallets are credited their cuts, and the payout is closed out.
// Losing the status CAS means another confirm or fail got there first.
func (pr *PayoutRepo) Confirm(ctx context.Context, p ConfirmParams) (*model.Payout, error) {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	before, err := lockPayout(ctx, tx, p.PayoutID)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE payouts
		SET status = 'completed',
			gateway_fee = $2,
			platform_fee = $3,
			statutory_deduction = $4,
			net_amount = $5,
			gateway_payout_reference = $6,
			admin_notes = $7,
			completed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = 'ready_for_release'
		RETURNING `+payoutColumns,
		p.PayoutID, p.GatewayFee, p.PlatformFee, p.Statutory, p.Net, p.Reference, p.Notes)
	payout, err := scanPayout(row)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidStateTransition
	}
	if err != nil {
		return nil, err
	}

	walletID, err := walletIDFor(ctx, tx, p.FreelancerID)
	if err != nil {
		return nil, err
	}
	if err := ledger.DebitHeld(ctx, tx, walletID, payout.GrossAmount); err != nil {
		return nil, err
	}
	if p.PlatformFee > 0 {
		if _, err := ledger.ApplyAvailable(ctx, tx, uuid.MustParse(constants.AccountPlatformID), model.LedgerAdjustment, p.PlatformFee, "payout", payout.ID); err != nil {
			return nil, err
		}
	}
	if p.Statutory > 0 {
		if _, err := ledger.ApplyAvailable(ctx, tx, uuid.MustParse(constants.AccountStatutoryID), model.LedgerStatutoryDeduction, p.Statutory, "payout", payout.ID); err != nil {
			return nil, err
		}
	}

	if err := appendPayoutAudit(ctx, tx, before, payout, "payout.completed", p.Actor); err != nil {
		return nil, err
	}
	if err := insertOutbox(ctx, tx, p.Outbox); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payout, nil
}

// Fail reverses the reservation, restoring exactly the gross to available,
// and records the failure reason on the payout.
func (pr *PayoutRepo) Fail(ctx context.Context, p FailParams) (*model.Payout, error) {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	before, err := lockPayout(ctx, tx, p.PayoutID)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE payouts
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY('{pending,processing,ready_for_release}')
		RETURNING `+payoutColumns, p.PayoutID, p.Reason)
	payout, err := scanPayout(row)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidStateTransition
	}
	if err != nil {
		return nil, err
	}

	walletID, err := walletIDFor(ctx, tx, p.FreelancerID)
	if err != nil {
		return nil, err
	}
	if _, err := ledger.ReleaseHold(ctx, tx, walletID, payout.GrossAmount, payout.ID); err != nil {
		return nil, err
	}

	if err := appendPayoutAudit(ctx, tx, before, payout, "payout.failed", p.Actor); err != nil {
		return nil, err
	}
	if err := insertOutbox(ctx, tx, p.Outbox); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payout, nil
}

func (pr *PayoutRepo) BatchSummary(ctx context.Context, batchID string) (*model.ReleaseBatchSummary, error) {
	summary := &model.ReleaseBatchSummary{BatchID: batchID}
	err := pr.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(gross_amount), 0),
			COALESCE(SUM(net_amount), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'ready_for_release'),
			COUNT(*) FILTER (WHERE status = 'completed')
		FROM payouts
		WHERE release_batch_id = $1`, batchID).
		Scan(&summary.TotalGross, &summary.TotalNet, &summary.Count, &summary.ReadyCount, &summary.CompletedCount)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (pr *PayoutRepo) ListByBatch(ctx context.Context, batchID string) ([]model.Payout, error) {
	rows, err := pr.db.Query(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE release_batch_id = $1 ORDER BY created_at`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []model.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}
