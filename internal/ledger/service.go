package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/Kwabena/Talaria/internal/middleware"
	"github.com/Kwabena/Talaria/internal/model"
)

type LedgerService struct {
	walletRepo WalletRepository
}

func NewLedgerService(walletRepo WalletRepository) *LedgerService {
	return &LedgerService{
		walletRepo: walletRepo,
	}
}

func (ls *LedgerService) GetWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	logger := middleware.GetLogger(ctx)
	logger.Info().Str("user_id", userID.String()).Msg("Fetching wallet")
	return ls.walletRepo.GetByUserID(ctx, userID)
}

// ListTransactions returns a wallet's ledger in creation order; replaying the
// amounts reproduces its available balance.
func (ls *LedgerService) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]model.LedgerTransaction, error) {
	wallet, err := ls.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ls.walletRepo.ListTransactions(ctx, wallet.ID, limit)
}
