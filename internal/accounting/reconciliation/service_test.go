package reconciliation_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/testing/ledgertest"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newBankAccount(t *testing.T, f *ledgertest.Fixture) reconciliation.BankAccount {
	t.Helper()
	account, err := f.Ledger.Reconciliation.CreateBankAccount(context.Background(), reconciliation.CreateBankAccountInput{
		Name:          "Operating",
		AccountNumber: "001-2233",
		GLAccountID:   f.Account(t, accounts.SubtypeBank).ID,
		ActorID:       1,
	})
	require.NoError(t, err)
	return account
}

func TestCreateBankAccountRequiresBankGL(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	ctx := context.Background()

	_, err := f.Ledger.Reconciliation.CreateBankAccount(ctx, reconciliation.CreateBankAccountInput{Name: "Wrong", GLAccountID: f.Account(t, accounts.SubtypeSales).ID})
	require.ErrorIs(t, err, reconciliation.ErrGLAccountNotBank)

	_, err = f.Ledger.Reconciliation.CreateBankAccount(ctx, reconciliation.CreateBankAccountInput{GLAccountID: f.Account(t, accounts.SubtypeBank).ID})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.Ledger.Reconciliation.CreateBankAccount(ctx, reconciliation.CreateBankAccountInput{Name: "Ghost", GLAccountID: 9999})
	require.ErrorIs(t, err, shared.ErrNotFound)

	created := newBankAccount(t, f)
	list, err := f.Ledger.Reconciliation.ListBankAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestRecordTransactionsSkipsDuplicateRefs(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	ctx := context.Background()
	bank := newBankAccount(t, f)

	in := reconciliation.RecordTransactionsInput{
		BankAccountID: bank.ID,
		ActorID:       1,
		Transactions: []reconciliation.TransactionInput{
			{Date: shared.Date(2025, 5, 2), Description: "Deposit", Amount: d("500"), ExternalRef: "STMT-1"},
			{Date: shared.Date(2025, 5, 3), Description: "Fee", Amount: d("-2.50")},
		},
	}
	first, err := f.Ledger.Reconciliation.RecordTransactions(ctx, in)
	require.NoError(t, err)
	assert.Len(t, first.Inserted, 2)
	assert.Zero(t, first.Duplicates)

	second, err := f.Ledger.Reconciliation.RecordTransactions(ctx, in)
	require.NoError(t, err)
	assert.Len(t, second.Inserted, 1, "lines without a reference are always imported")
	assert.Equal(t, 1, second.Duplicates)

	_, err = f.Ledger.Reconciliation.RecordTransactions(ctx, reconciliation.RecordTransactionsInput{
		BankAccountID: bank.ID,
		Transactions:  []reconciliation.TransactionInput{{Date: shared.Date(2025, 5, 3), Amount: decimal.Zero}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.Ledger.Reconciliation.RecordTransactions(ctx, reconciliation.RecordTransactionsInput{
		BankAccountID: 4242,
		Transactions:  []reconciliation.TransactionInput{{Date: shared.Date(2025, 5, 3), Amount: d("1")}},
	})
	require.ErrorIs(t, err, reconciliation.ErrBankAccountNotFound)
}

func TestReconcileRecordsDifference(t *testing.T) {
	f := ledgertest.New(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()
	bank := newBankAccount(t, f)
	f.Post(t, shared.Date(2025, 5, 2), accounts.SubtypeBank, accounts.SubtypeOwnerEquity, "500")
	f.Post(t, shared.Date(2025, 5, 20), accounts.SubtypeBankFees, accounts.SubtypeBank, "2.50")

	imported, err := f.Ledger.Reconciliation.RecordTransactions(ctx, reconciliation.RecordTransactionsInput{
		BankAccountID: bank.ID,
		Transactions: []reconciliation.TransactionInput{
			{Date: shared.Date(2025, 5, 2), Amount: d("500"), ExternalRef: "A"},
			{Date: shared.Date(2025, 5, 21), Amount: d("-2.50"), ExternalRef: "B"},
		},
	})
	require.NoError(t, err)

	ids := []int64{imported.Inserted[0].ID, imported.Inserted[1].ID, imported.Inserted[0].ID}
	rec, err := f.Ledger.Reconciliation.Reconcile(ctx, reconciliation.ReconcileInput{
		BankAccountID:         bank.ID,
		StatementDate:         shared.Date(2025, 5, 31),
		StatementBalance:      d("490"),
		ClearedTransactionIDs: ids,
		ActorID:               4,
	})
	require.NoError(t, err)
	assert.True(t, rec.GLBalance.Equal(d("497.50")))
	assert.True(t, rec.Difference.Equal(d("-7.50")))
	assert.Equal(t, reconciliation.StatusDiscrepancy, rec.Status)
	assert.Equal(t, 2, rec.ClearedCount)

	open, err := f.Ledger.Reconciliation.ListTransactions(ctx, reconciliation.TransactionFilter{BankAccountID: bank.ID, UnreconciledOnly: true})
	require.NoError(t, err)
	assert.Empty(t, open)

	account, err := f.Ledger.Reconciliation.GetBankAccount(ctx, bank.ID)
	require.NoError(t, err)
	require.NotNil(t, account.LastReconciledAt)
	assert.Equal(t, shared.Date(2025, 5, 31), *account.LastReconciledAt)
	assert.True(t, account.LastReconciledBalance.Equal(d("490")))

	balanced, err := f.Ledger.Reconciliation.Reconcile(ctx, reconciliation.ReconcileInput{
		BankAccountID:    bank.ID,
		StatementDate:    shared.Date(2025, 5, 31),
		StatementBalance: d("497.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, reconciliation.StatusBalanced, balanced.Status)

	history, err := f.Ledger.Reconciliation.ListReconciliations(ctx, bank.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, balanced.ID, history[0].ID)
}

func TestReconcileRejectsForeignOrClearedLines(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	ctx := context.Background()
	bank := newBankAccount(t, f)
	other, err := f.Ledger.Reconciliation.CreateBankAccount(ctx, reconciliation.CreateBankAccountInput{Name: "Petty", GLAccountID: f.Account(t, accounts.SubtypeCash).ID})
	require.NoError(t, err)

	foreign, err := f.Ledger.Reconciliation.RecordTransactions(ctx, reconciliation.RecordTransactionsInput{
		BankAccountID: other.ID,
		Transactions:  []reconciliation.TransactionInput{{Date: shared.Date(2025, 5, 2), Amount: d("5")}},
	})
	require.NoError(t, err)

	_, err = f.Ledger.Reconciliation.Reconcile(ctx, reconciliation.ReconcileInput{
		BankAccountID:         bank.ID,
		StatementDate:         shared.Date(2025, 5, 31),
		ClearedTransactionIDs: []int64{foreign.Inserted[0].ID},
	})
	require.ErrorIs(t, err, reconciliation.ErrClearedMismatch)

	history, err := f.Ledger.Reconciliation.ListReconciliations(ctx, bank.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "failed reconcile must not leave a snapshot")
}

func TestSuggestMatchesAgainstBooks(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	ctx := context.Background()
	bank := newBankAccount(t, f)
	f.Post(t, shared.Date(2025, 5, 1), accounts.SubtypeBank, accounts.SubtypeSales, "120")
	f.Post(t, shared.Date(2025, 5, 9), accounts.SubtypeOperatingExpense, accounts.SubtypeBank, "30")

	_, err := f.Ledger.Reconciliation.RecordTransactions(ctx, reconciliation.RecordTransactionsInput{
		BankAccountID: bank.ID,
		Transactions: []reconciliation.TransactionInput{
			{Date: shared.Date(2025, 5, 3), Amount: d("120"), ExternalRef: "1"},
			{Date: shared.Date(2025, 5, 10), Amount: d("-30"), ExternalRef: "2"},
			{Date: shared.Date(2025, 5, 11), Amount: d("-7"), ExternalRef: "3"},
		},
	})
	require.NoError(t, err)

	res, err := f.Ledger.Reconciliation.SuggestMatches(ctx, bank.ID, shared.Date(2025, 5, 1), shared.Date(2025, 5, 31), 0)
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.True(t, res.Matches[1].Book.Amount.Equal(d("-30")))
	require.Len(t, res.UnmatchedBank, 1)
	assert.True(t, res.UnmatchedBank[0].Amount.Equal(d("-7")))
	assert.Empty(t, res.UnmatchedBook)

	book, err := f.Ledger.Reconciliation.BookTransactions(ctx, bank.ID, shared.Date(2025, 5, 1), shared.Date(2025, 5, 31))
	require.NoError(t, err)
	assert.Len(t, book, 2)
}
