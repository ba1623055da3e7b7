package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kwabena/Talaria/internal/model"
)

// Query filters for the read-only audit API.
type Query struct {
	EntityType string
	EntityID   *uuid.UUID
	ActorID    string
	Action     string
	From       *time.Time
	To         *time.Time
	Limit      int
}

type AuditRepository interface {
	List(ctx context.Context, q Query) ([]model.AuditEntry, error)
	ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]model.AuditEntry, error)
}

type AuditRepo struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{db: db}
}

// Append writes one audit entry inside the caller's transaction, assigning the
// next sequence number for the entity. There is no update or delete path.
func Append(ctx context.Context, tx pgx.Tx, entry *model.AuditEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO audit_entries (entity_type, entity_id, sequence, actor_id, actor_role, action, before, after)
		SELECT $1, $2, COALESCE(MAX(sequence), 0) + 1, $3, $4, $5, $6, $7
		FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		RETURNING id, sequence, created_at`,
		entry.EntityType, entry.EntityID, entry.ActorID, entry.ActorRole, entry.Action, entry.Before, entry.After,
	).Scan(&entry.ID, &entry.Sequence, &entry.CreatedAt)
}

const auditColumns = `id, entity_type, entity_id, sequence, actor_id, actor_role, action, before, after, created_at`

func scanEntries(rows pgx.Rows) ([]model.AuditEntry, error) {
	defer rows.Close()
	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Sequence, &e.ActorID, &e.ActorRole, &e.Action, &e.Before, &e.After, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (ar *AuditRepo) List(ctx context.Context, q Query) ([]model.AuditEntry, error) {
	if q.Limit <= 0 || q.Limit > 1000 {
		q.Limit = 100
	}

	sql := `SELECT ` + auditColumns + ` FROM audit_entries WHERE 1=1`
	args := []interface{}{}
	idx := 1

	appendArg := func(clause string, value interface{}) {
		sql += clause
		args = append(args, value)
		idx++
	}

	if q.EntityType != "" {
		appendArg(` AND entity_type = $`+strconv.Itoa(idx), q.EntityType)
	}
	if q.EntityID != nil {
		appendArg(` AND entity_id = $`+strconv.Itoa(idx), *q.EntityID)
	}
	if q.ActorID != "" {
		appendArg(` AND actor_id = $`+strconv.Itoa(idx), q.ActorID)
	}
	if q.Action != "" {
		appendArg(` AND action = $`+strconv.Itoa(idx), q.Action)
	}
	if q.From != nil {
		appendArg(` AND created_at >= $`+strconv.Itoa(idx), *q.From)
	}
	if q.To != nil {
		appendArg(` AND created_at <= $`+strconv.Itoa(idx), *q.To)
	}

	sql += ` ORDER BY created_at ASC, id ASC LIMIT $` + strconv.Itoa(idx)
	args = append(args, q.Limit)

	rows, err := ar.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (ar *AuditRepo) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]model.AuditEntry, error) {
	rows, err := ar.db.Query(ctx, `
		SELECT `+auditColumns+`
		FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY sequence ASC`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

