package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kwabena/Talaria/internal/model"
	"github.com/Kwabena/Talaria/pkg/constants"
)

type WalletRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Wallet, error)
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]model.LedgerTransaction, error)
}

type WalletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{db: db}
}

const walletColumns = `id, user_id, available_balance, held_balance, lifetime_earned, lifetime_spent, currency, created_at, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.AvailableBalance, &w.HeldBalance, &w.LifetimeEarned, &w.LifetimeSpent, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (wr *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	row := wr.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

// EnsureWallet creates the wallet on first need. Wallets are never deleted.
func (wr *WalletRepo) EnsureWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	row := wr.db.QueryRow(ctx, `
		INSERT INTO wallets (user_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING `+walletColumns, userID, constants.Currency)
	return scanWallet(row)
}

func (wr *WalletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]model.LedgerTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := wr.db.Query(ctx, `
		SELECT id, wallet_id, type, amount, balance_before, balance_after, reference_type, reference_id, created_at
		FROM ledger_transactions
		WHERE wallet_id = $1
		ORDER BY id ASC
		LIMIT $2`, walletID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []model.LedgerTransaction
	for rows.Next() {
		var t model.LedgerTransaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter, &t.ReferenceType, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
