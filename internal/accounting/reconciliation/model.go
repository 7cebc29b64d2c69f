package reconciliation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Status classifies a reconciliation snapshot.
type Status string

const (
	StatusBalanced    Status = "balanced"
	StatusDiscrepancy Status = "discrepancy"
)

// BankAccount links an external bank account to its GL cash/bank account.
type BankAccount struct {
	ID                    int64
	Name                  string
	AccountNumber         string
	GLAccountID           int64
	LastReconciledAt      *time.Time
	LastReconciledBalance *decimal.Decimal
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// BankTransaction is one imported statement line. Deposits are positive.
type BankTransaction struct {
	ID               int64
	BankAccountID    int64
	TransactionDate  time.Time
	Description      string
	Amount           decimal.Decimal
	ExternalRef      string
	IsReconciled     bool
	ReconciliationID *int64
	CreatedAt        time.Time
}

// Reconciliation is an audit snapshot comparing statement and book balances.
// A non-zero difference is recorded, never rejected.
type Reconciliation struct {
	ID               int64
	BankAccountID    int64
	StatementDate    time.Time
	StatementBalance decimal.Decimal
	GLBalance        decimal.Decimal
	Difference       decimal.Decimal
	Status           Status
	ClearedCount     int
	CompletedBy      int64
	CompletedAt      time.Time
}

// BookTransaction is a posted movement on the linked GL account. Debits are
// positive.
type BookTransaction struct {
	EntryID     int64
	EntryNumber string
	Date        time.Time
	Reference   string
	Description string
	Amount      decimal.Decimal
}

// TransactionFilter narrows bank transaction listings.
type TransactionFilter struct {
	BankAccountID    int64
	From             *time.Time
	To               *time.Time
	UnreconciledOnly bool
}

// CreateBankAccountInput carries a new bank account.
type CreateBankAccountInput struct {
	Name          string
	AccountNumber string
	GLAccountID   int64
	ActorID       int64
}

// Validate ensures required fields are present.
func (in CreateBankAccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.Validationf("bank account name required")
	}
	if in.GLAccountID == 0 {
		return shared.Validationf("gl account required")
	}
	return nil
}

// TransactionInput is one statement line to import.
type TransactionInput struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	ExternalRef string
}

// RecordTransactionsInput imports statement lines for a bank account.
type RecordTransactionsInput struct {
	BankAccountID int64
	Transactions  []TransactionInput
	ActorID       int64
}

// Validate checks every line before any is stored.
func (in RecordTransactionsInput) Validate() error {
	if in.BankAccountID == 0 {
		return shared.Validationf("bank account id required")
	}
	if len(in.Transactions) == 0 {
		return shared.Validationf("no transactions to record")
	}
	for idx, txn := range in.Transactions {
		if txn.Date.IsZero() {
			return shared.Validationf("transaction %d missing date", idx+1)
		}
		if txn.Amount.IsZero() {
			return shared.Validationf("transaction %d has zero amount", idx+1)
		}
		if !txn.Amount.Equal(shared.Round2(txn.Amount)) {
			return shared.Validationf("transaction %d has more than %d decimals", idx+1, shared.MoneyPlaces)
		}
	}
	return nil
}

// RecordResult reports imported and duplicate statement lines.
type RecordResult struct {
	Inserted   []BankTransaction
	Duplicates int
}

// ReconcileInput carries a statement to reconcile.
type ReconcileInput struct {
	BankAccountID         int64
	StatementDate         time.Time
	StatementBalance      decimal.Decimal
	ClearedTransactionIDs []int64
	ActorID               int64
}

// Validate ensures the statement is identified.
func (in ReconcileInput) Validate() error {
	if in.BankAccountID == 0 {
		return shared.Validationf("bank account id required")
	}
	if in.StatementDate.IsZero() {
		return shared.Validationf("statement date required")
	}
	if !in.StatementBalance.Equal(shared.Round2(in.StatementBalance)) {
		return shared.Validationf("statement balance has more than %d decimals", shared.MoneyPlaces)
	}
	return nil
}

var (
	// ErrBankAccountNotFound indicates a missing bank account.
	ErrBankAccountNotFound = shared.Wrap(shared.ErrNotFound, "bank account not found")
	// ErrGLAccountNotBank rejects links to anything but a cash or bank asset.
	ErrGLAccountNotBank = shared.Wrap(shared.ErrValidation, "gl account must be an active cash or bank asset")
	// ErrClearedMismatch rejects cleared ids that are foreign or already reconciled.
	ErrClearedMismatch = shared.Wrap(shared.ErrValidation, "cleared transactions must belong to the bank account and be unreconciled")
)
