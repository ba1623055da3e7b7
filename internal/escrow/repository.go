package escrow

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

// OutboxMessage is queued inside the same transaction as the state change it
// announces; the relay delivers it to Kafka later.
type OutboxMessage struct {
	EventType    string
	PartitionKey string
	Payload      []byte
}

// ReleaseParams carries everything a release commits atomically: the status
// transition, the wallet credits, the fee splits and the outbox triggers.
type ReleaseParams struct {
	EscrowID     uuid.UUID
	FreelancerID uuid.UUID
	FromStatuses []model.EscrowStatus
	Gross        int64
	Commission   int64
	Net          int64
	Statutory    int64
	Actor        types.Actor
	Outbox       []OutboxMessage
}

type RefundParams struct {
	EscrowID     uuid.UUID
	Amount       int64
	NewStatus    model.EscrowStatus
	FromStatuses []model.EscrowStatus
	Actor        types.Actor
	Reason       string
	Outbox       []OutboxMessage
}

type EscrowRepository interface {
	Create(ctx context.Context, escrow *model.Escrow, actor types.Actor) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Escrow, error)
	GetByGatewayReference(ctx context.Context, gateway, reference string) (*model.Escrow, error)
	MarkFunded(ctx context.Context, id uuid.UUID, reference string, actor types.Actor, outbox []OutboxMessage) (*model.Escrow, bool, error)
	Release(ctx context.Context, p ReleaseParams) (*model.Escrow, error)
	Refund(ctx context.Context, p RefundParams) (*model.Escrow, error)
	MarkDisputed(ctx context.Context, id uuid.UUID, actor types.Actor) (*model.Escrow, error)
	ResolveReleased(ctx context.Context, id uuid.UUID, actor types.Actor) (*model.Escrow, error)
	CompensateRelease(ctx context.Context, escrowID, freelancerID uuid.UUID, amount int64, actor types.Actor, outbox []OutboxMessage) (*model.Escrow, error)
}

type EscrowRepo struct {
	db *pgxpool.Pool
}

func NewEscrowRepository(db *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{db: db}
}

const escrowColumns = `id, gig_id, client_id, freelancer_id, gross_amount, platform_commission, net_amount,
	payment_gateway, gateway_reference, status, refunded_amount,
	released_gross, released_commission, released_net, released_statutory,
	funded_at, released_at, refunded_at, disputed_at, created_at, updated_at`

func scanEscrow(row pgx.Row) (*model.Escrow, error) {
	var e model.Escrow
	err := row.Scan(&e.ID, &e.GigID, &e.ClientID, &e.FreelancerID, &e.GrossAmount, &e.PlatformCommission, &e.NetAmount,
		&e.PaymentGateway, &e.GatewayReference, &e.Status, &e.RefundedAmount,
		&e.ReleasedGross, &e.ReleasedCommission, &e.ReleasedNet, &e.ReleasedStatutory,
		&e.FundedAt, &e.ReleasedAt, &e.RefundedAt, &e.DisputedAt, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func moneySnapshot(e *model.Escrow) json.RawMessage {
	snap, _ := json.Marshal(map[string]interface{}{
		"status":              e.Status,
		"gross_amount":        e.GrossAmount,
		"platform_commission": e.PlatformCommission,
		"net_amount":          e.NetAmount,
		"refunded_amount":     e.RefundedAmount,
		"released_gross":      e.ReleasedGross,
		"released_commission": e.ReleasedCommission,
		"released_net":        e.ReleasedNet,
		"released_statutory":  e.ReleasedStatutory,
	})
	return snap
}

func escrowAuditEntry(before, after *model.Escrow, action string, actor types.Actor) *model.AuditEntry {
	entry := &model.AuditEntry{
		EntityType: "escrow",
		EntityID:   after.ID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		After:      moneySnapshot(after),
	}
	if before != nil {
		entry.Before = moneySnapshot(before)
	}
	return entry
}

func appendEscrowAudit(ctx context.Context, tx pgx.Tx, before, after *model.Escrow, action string, actor types.Actor) error {
	return audit.Append(ctx, tx, escrowAuditEntry(before, after, action, actor))
}

// lockEscrow reads the row under FOR UPDATE so the pre-transition snapshot and
// the CAS that follows see the same state.
func lockEscrow(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Escrow, error) {
	row := tx.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1 FOR UPDATE`, id)
	return scanEscrow(row)
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

func ensureWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (uuid.UUID, error) {
	var walletID uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO wallets (user_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id`, userID, constants.Currency).Scan(&walletID)
	return walletID, err
}

func (er *EscrowRepo) Create(ctx context.Context, escrow *model.Escrow, actor types.Actor) error {
	tx, err := er.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO escrows (gig_id, client_id, freelancer_id, gross_amount, platform_commission, net_amount, payment_gateway, gateway_reference, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'created')
		RETURNING id, created_at, updated_at`,
		escrow.GigID, escrow.ClientID, escrow.FreelancerID, escrow.GrossAmount, escrow.PlatformCommission, escrow.NetAmount, escrow.PaymentGateway, escrow.GatewayReference,
	).Scan(&escrow.ID, &escrow.CreatedAt, &escrow.UpdatedAt)
	if err != nil {
		return err
	}
	escrow.Status = model.EscrowCreated

	if err := appendEscrowAudit(ctx, tx, nil, escrow, "escrow.created", actor); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (er *EscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Escrow, error) {
	row := er.db.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1`, id)
	return scanEscrow(row)
}

func (er *EscrowRepo) GetByGatewayReference(ctx context.Context, gateway, reference string) (*model.Escrow, error) {
	row := er.db.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE payment_gateway = $1 AND gateway_reference = $2`, gateway, reference)
	return scanEscrow(row)
}

// MarkFunded applies created -> funded. Re-confirming an already-funded escrow
// returns the existing row with applied=false; that is the duplicate-webhook
// no-op path, not an error.
func (er *EscrowRepo) MarkFunded(ctx context.Context, id uuid.UUID, reference string, actor types.Actor, outbox []OutboxMessage) (*model.Escrow, bool, error) {
	tx, err := er.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	before, err := lockEscrow(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	if before.Status == model.EscrowFunded {
		// duplicate confirmation, not an error
		return before, false, nil
	}

	row := tx.QueryRow(ctx, `
		UPDATE escrows
		SET status = 'funded', gateway_reference = $2, funded_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'created'
		RETURNING `+escrowColumns, id, reference)
	escrow, err := scanEscrow(row)
	if errors.Is(err, model.ErrNotFound) {
		return nil, false, model.ErrInvalidStateTransition
	}
	if err != nil {
		return nil, false, err
	}

	if err := appendEscrowAudit(ctx, tx, before, escrow, "escrow.funded", actor); err != nil {
		return nil, false, err
	}
	if err := insertOutbox(ctx, tx, outbox); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return escrow, true, nil
}

// Release commits the exactly-once release transaction: status CAS, freelancer
// net credit, statutory withholding, platform commission, ledger rows, audit
// entry and outbox triggers. A concurrent release loses the CAS and gets
// ErrInvalidStateTransition with no side effects.
func (er *EscrowRepo) Release(ctx context.Context, p ReleaseParams) (*model.Escrow, error) {
	tx, err := er.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	before, err := lockEscrow(ctx, tx, p.EscrowID)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE escrows
		SET status = 'released',
			released_gross = $3,
			released_commission = $4,
			released_net = $5,
			released_statutory = $6,
			released_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
		RETURNING `+escrowColumns,
		p.EscrowID, statusStrings(p.FromStatuses), p.Gross, p.Commission, p.Net, p.Statutory)
	escrow, err := scanEscrow(row)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidStateTransition
	}
	if err != nil {
		return nil, err
	}

	walletID, err := ensureWallet(ctx, tx, p.FreelancerID)
	if err != nil {
		return nil, err
	}

	if _, err := ledger.ApplyAvailable(ctx, tx, walletID, model.LedgerEscrowRelease, p.Net, "escrow", escrow.ID); err != nil {
		return nil, err
	}
	if p.Statutory > 0 {
		if _, err := ledger.ApplyAvailable(ctx, tx, walletID, model.LedgerStatutoryDeduction, -p.Statutory, "escrow", escrow.ID); err != nil {
			return nil, err
		}
		if _, err := ledger.ApplyAvailable(ctx, tx, uuid.MustParse(constants.AccountStatutoryID), model.LedgerStatutoryDeduction, p.Statutory, "escrow", escrow.ID); err != nil {
			return nil, err
		}
	}
	if err := ledger.BumpLifetimeEarned(ctx, tx, walletID, p.Net); err != nil {
		return nil, err
	}
	if p.Commission > 0 {
		if _, err := ledger.ApplyAvailable(ctx, tx, uuid.MustParse(constants.AccountPlatformID), model.LedgerAdjustment, p.Commission, "escrow", escrow.ID); err != nil {
			return nil, err
		}
	}

	if err := appendEscrowAudit(ctx, tx, before, escrow, "escrow.released", p.Actor); err != nil {
		return nil, err
	}
	if err := insertOutbox(ctx, tx, p.Outbox); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return escrow, nil
}

// Refund advances refunded_amount under a guard that keeps the cumulative
// total within gross_amount. The freelancer wallet is never touched; the
// client repayment happens at the gateway.
func (er *EscrowRepo) Refund(ctx context.Context, p RefundParams) (*model.Escrow, error) {
	tx, err := er.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	before, err := lockEscrow(ctx, tx, p.EscrowID)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE escrows
		SET refunded_amount = refunded_amount + $2,
			status = $3,
			refunded_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($4) AND refunded_amount + $2 <= gross_amount
		RETURNING `+escrowColumns, p.EscrowID, p.Amount, p.NewStatus, statusStrings(p.FromStatuses))
	escrow, err := scanEscrow(row)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidStateTransition
	}
	if err != nil {
		return nil, err
	}

	if err := appendEscrowAudit(ctx, tx, before, escrow, "escrow.refunded", p.Actor); err != nil {
		return nil, err
	}
	if err := insertOutbox(ctx, tx, p.Outbox); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return escrow, nil
}

func (er *EscrowRepo) MarkDisputed(ctx context.Context, id uuid.UUID, actor types.Actor) (*model.Escrow, error) {
	tx, err := er.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	before, err := lockEscrow(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE escrows
		SET status = 'disputed', disputed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = ANY('{funded,released,partially_refunded}')
		RETURNING `+escrowColumns, id)
	escrow, err := scanEscrow(row)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidStateTransition
	}
	if err != nil {
		return nil, err
	}

	if err := appendEscrowAudit(ctx, tx, before, escrow, "escrow.disputed", actor); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return escrow, nil
}

// ResolveReleased closes a dispute on an escrow whose funds already reached
// the freelancer; no money moves.
func (er *EscrowRepo) ResolveReleased(ctx context.Context, id uuid.UUID, actor types.Actor) (*model.Escrow, error) {
	tx, err := er.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	before, err := lockEscrow(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE escrows
		SET status = 'released', updated_at = NOW()
		WHERE id = $1 AND status = 'disputed'
		RETURNING `+escrowColumns, id)
	escrow, err := scanEscrow(row)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidStateTransition
	}
	if err != nil {
		return nil, err
	}

	if err := appendEscrowAudit(ctx, tx, before, escrow, "escrow.dispute_resolved", actor); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return escrow, nil
}

// CompensateRelease claws back a previously released net amount after an
// admin resolves a post-release dispute as a refund. History is never undone;
// this is a fresh adjustment debit.
func (er *EscrowRepo) CompensateRelease(ctx context.Context, escrowID, freelancerID uuid.UUID, amount int64, actor types.Actor, outbox []OutboxMessage) (*model.Escrow, error) {
	tx, err := er.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	before, err := lockEscrow(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE escrows
		SET status = 'refunded', refunded_amount = gross_amount, refunded_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'disputed'
		RETURNING `+escrowColumns, escrowID)
	escrow, err := scanEscrow(row)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidStateTransition
	}
	if err != nil {
		return nil, err
	}

	walletID, err := ensureWallet(ctx, tx, freelancerID)
	if err != nil {
		return nil, err
	}
	if _, err := ledger.ApplyAvailable(ctx, tx, walletID, model.LedgerAdjustment, -amount, "escrow", escrow.ID); err != nil {
		return nil, err
	}

	if err := appendEscrowAudit(ctx, tx, before, escrow, "escrow.release_compensated", actor); err != nil {
		return nil, err
	}
	if err := insertOutbox(ctx, tx, outbox); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return escrow, nil
}

func statusStrings(statuses []model.EscrowStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
