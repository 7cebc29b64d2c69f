package balances

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Repository abstracts read transactions over posted lines.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository reads posted lines only. Draft and void entries never reach
// these sums.
type TxRepository interface {
	GetAccount(ctx context.Context, id int64) (accounts.Account, error)
	ListAccounts(ctx context.Context, filter accounts.ListFilter) ([]accounts.Account, error)
	SumPostedLines(ctx context.Context, accountID int64, r Range) (Totals, error)
	SumPostedLinesByAccount(ctx context.Context, r Range) (map[int64]Totals, error)
	ListPostedLines(ctx context.Context, accountID int64, r Range) ([]PostedLine, error)
}
