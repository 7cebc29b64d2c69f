package reconciliation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
)

// Repository abstracts transactional access to bank reconciliation data.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. Book balances
// are read through the embedded balance surface.
type TxRepository interface {
	balances.TxRepository

	InsertBankAccount(ctx context.Context, account BankAccount) (BankAccount, error)
	GetBankAccount(ctx context.Context, id int64) (BankAccount, error)
	GetBankAccountForUpdate(ctx context.Context, id int64) (BankAccount, error)
	ListBankAccounts(ctx context.Context) ([]BankAccount, error)
	UpdateBankAccountReconciled(ctx context.Context, id int64, at time.Time, balance decimal.Decimal) error

	// InsertBankTransaction reports false when the external reference was
	// already imported for the bank account.
	InsertBankTransaction(ctx context.Context, txn BankTransaction) (BankTransaction, bool, error)
	ListBankTransactions(ctx context.Context, filter TransactionFilter) ([]BankTransaction, error)
	// MarkTransactionsReconciled flags unreconciled transactions of the bank
	// account and returns how many rows changed.
	MarkTransactionsReconciled(ctx context.Context, bankAccountID int64, ids []int64, reconciliationID int64) (int, error)

	InsertReconciliation(ctx context.Context, rec Reconciliation) (Reconciliation, error)
	ListReconciliations(ctx context.Context, bankAccountID int64) ([]Reconciliation, error)
}
