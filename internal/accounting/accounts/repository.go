package accounts

import (
	"context"
	"time"
)

// Repository abstracts transactional access to the chart of accounts.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Lookup is the read surface other ledger components need.
type Lookup interface {
	GetAccount(ctx context.Context, id int64) (Account, error)
	FindAccountBySubtype(ctx context.Context, subtype Subtype) (Account, bool, error)
	ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	Lookup
	GetAccountByCode(ctx context.Context, code string) (Account, error)
	ListChildAccounts(ctx context.Context, parentID int64) ([]Account, error)
	InsertAccount(ctx context.Context, account Account) (Account, error)
	UpdateAccount(ctx context.Context, account Account) error
	SoftDeleteAccount(ctx context.Context, id int64, at time.Time) error
	AccountHasLines(ctx context.Context, id int64) (bool, error)
}
