package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Kwabena/Talaria/internal/model"
)

// The helpers below run inside the caller's open transaction so a balance
// change, its ledger transaction and the caller's audit entry commit together
// or not at all. Every available-balance change goes through ApplyAvailable,
// HoldFromAvailable or ReleaseHold, which is what keeps ledger replay exact.

func appendTransaction(ctx context.Context, tx pgx.Tx, entry *model.LedgerTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO ledger_transactions (wallet_id, type, amount, balance_before, balance_after, reference_type, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		entry.WalletID, entry.Type, entry.Amount, entry.BalanceBefore, entry.BalanceAfter, entry.ReferenceType, entry.ReferenceID,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ApplyAvailable adjusts a wallet's available balance by the signed amount and
// appends the ledger transaction recording it. A debit that would take the
// balance negative returns ErrInsufficientBalance without touching anything.
func ApplyAvailable(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, txnType model.LedgerTransactionType, amount int64, refType string, refID uuid.UUID) (*model.LedgerTransaction, error) {
	var after int64
	err := tx.QueryRow(ctx, `
		UPDATE wallets
		SET available_balance = available_balance + $1, updated_at = NOW()
		WHERE id = $2 AND available_balance + $1 >= 0
		RETURNING available_balance`, amount, walletID).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrInsufficientBalance
	}
	if err != nil {
		return nil, err
	}

	entry := &model.LedgerTransaction{
		WalletID:      walletID,
		Type:          txnType,
		Amount:        amount,
		BalanceBefore: after - amount,
		BalanceAfter:  after,
		ReferenceType: refType,
		ReferenceID:   refID,
	}
	if err := appendTransaction(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// HoldFromAvailable reserves amount against a pending payout: the available
// balance is debited (with its ledger transaction) and the held balance
// credited in the same statement.
func HoldFromAvailable(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, refID uuid.UUID) (*model.LedgerTransaction, error) {
	var after int64
	err := tx.QueryRow(ctx, `
		UPDATE wallets
		SET available_balance = available_balance - $1,
			held_balance = held_balance + $1,
			updated_at = NOW()
		WHERE id = $2 AND available_balance >= $1
		RETURNING available_balance`, amount, walletID).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrInsufficientBalance
	}
	if err != nil {
		return nil, err
	}

	entry := &model.LedgerTransaction{
		WalletID:      walletID,
		Type:          model.LedgerPayout,
		Amount:        -amount,
		BalanceBefore: after + amount,
		BalanceAfter:  after,
		ReferenceType: "payout",
		ReferenceID:   refID,
	}
	if err := appendTransaction(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ReleaseHold reverses a reservation after a failed payout: held is debited
// and available restored, with an adjustment ledger transaction.
func ReleaseHold(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, refID uuid.UUID) (*model.LedgerTransaction, error) {
	var after int64
	err := tx.QueryRow(ctx, `
		UPDATE wallets
		SET held_balance = held_balance - $1,
			available_balance = available_balance + $1,
			updated_at = NOW()
		WHERE id = $2 AND held_balance >= $1
		RETURNING available_balance`, amount, walletID).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrInsufficientBalance
	}
	if err != nil {
		return nil, err
	}

	entry := &model.LedgerTransaction{
		WalletID:      walletID,
		Type:          model.LedgerAdjustment,
		Amount:        amount,
		BalanceBefore: after - amount,
		BalanceAfter:  after,
		ReferenceType: "payout",
		ReferenceID:   refID,
	}
	if err := appendTransaction(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DebitHeld permanently removes a confirmed payout reservation. The
// available-balance ledger debit was already written at reservation time, so
// no further ledger transaction is appended here.
func DebitHeld(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE wallets
		SET held_balance = held_balance - $1,
			lifetime_spent = lifetime_spent + $1,
			updated_at = NOW()
		WHERE id = $2 AND held_balance >= $1`, amount, walletID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrInsufficientBalance
	}
	return nil
}

// BumpLifetimeEarned tracks gross earnings credited to a freelancer wallet.
func BumpLifetimeEarned(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE wallets SET lifetime_earned = lifetime_earned + $1, updated_at = NOW() WHERE id = $2`,
		amount, walletID)
	return err
}
