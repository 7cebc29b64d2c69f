package balances_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/testing/ledgertest"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestBalanceCountsPostedLinesOnly(t *testing.T) {
	f := ledgertest.New(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.Post(t, shared.Date(2025, 1, 10), accounts.SubtypeCash, accounts.SubtypeSales, "500")

	cash := f.Account(t, accounts.SubtypeCash)
	sales := f.Account(t, accounts.SubtypeSales)
	_, err := f.Ledger.Journals.Create(ctx, journals.CreateInput{
		EntryDate: shared.Date(2025, 1, 11),
		Lines: []journals.LineInput{
			{AccountID: cash.ID, Debit: d("70")},
			{AccountID: sales.ID, Credit: d("70")},
		},
	})
	require.NoError(t, err)

	voided := f.Post(t, shared.Date(2025, 1, 12), accounts.SubtypeCash, accounts.SubtypeSales, "30")
	_, err = f.Ledger.Journals.Void(ctx, journals.VoidInput{EntryID: voided.ID, ActorID: 1, Reason: "wrong"})
	require.NoError(t, err)

	assert.True(t, f.Balance(t, accounts.SubtypeCash, shared.Date(2025, 12, 31)).Equal(d("500")))
	assert.True(t, f.Balance(t, accounts.SubtypeSales, shared.Date(2025, 12, 31)).Equal(d("500")))
	assert.True(t, f.Balance(t, accounts.SubtypeCash, shared.Date(2025, 1, 9)).IsZero())
}

func TestReversalNetsToZero(t *testing.T) {
	f := ledgertest.New(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	original := f.Post(t, shared.Date(2025, 3, 1), accounts.SubtypeOperatingExpense, accounts.SubtypeCash, "80.25")

	reversal, err := f.Ledger.Journals.CreateReversingEntry(ctx, journals.ReverseInput{EntryID: original.ID, ActorID: 1})
	require.NoError(t, err)
	assert.True(t, f.Balance(t, accounts.SubtypeCash, shared.Date(2025, 3, 31)).Equal(d("-80.25")))

	_, err = f.Ledger.Journals.Post(ctx, journals.PostInput{EntryID: reversal.ID, ActorID: 1})
	require.NoError(t, err)
	assert.True(t, f.Balance(t, accounts.SubtypeCash, shared.Date(2025, 3, 31)).IsZero())
	assert.True(t, f.Balance(t, accounts.SubtypeOperatingExpense, shared.Date(2025, 3, 31)).IsZero())
}

func TestOpeningBalanceAppliesFromItsDate(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	ctx := context.Background()
	openedOn := shared.Date(2025, 1, 1)
	account, err := f.Ledger.Accounts.CreateAccount(ctx, accounts.CreateAccountInput{
		Code:               "1250",
		Name:               "Savings",
		Type:               accounts.AccountTypeAsset,
		OpeningBalance:     d("1000"),
		OpeningBalanceDate: &openedOn,
	})
	require.NoError(t, err)

	before, err := f.Ledger.Balances.BalanceAsOf(ctx, account.ID, shared.Date(2024, 12, 31))
	require.NoError(t, err)
	assert.True(t, before.Balance.IsZero())

	after, err := f.Ledger.Balances.BalanceAsOf(ctx, account.ID, openedOn)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(d("1000")))
	assert.True(t, after.Opening.Equal(d("1000")))
}

func TestPeriodActivityExcludesOpening(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	ctx := context.Background()
	f.Post(t, shared.Date(2025, 1, 31), accounts.SubtypeCash, accounts.SubtypeSales, "100")
	f.Post(t, shared.Date(2025, 2, 1), accounts.SubtypeCash, accounts.SubtypeSales, "40")
	f.Post(t, shared.Date(2025, 2, 28), accounts.SubtypeOperatingExpense, accounts.SubtypeCash, "15")
	f.Post(t, shared.Date(2025, 3, 1), accounts.SubtypeCash, accounts.SubtypeSales, "9")

	act, err := f.Ledger.Balances.PeriodActivity(ctx, f.Account(t, accounts.SubtypeCash).ID, shared.Date(2025, 2, 1), shared.Date(2025, 2, 28))
	require.NoError(t, err)
	assert.True(t, act.Debit.Equal(d("40")))
	assert.True(t, act.Credit.Equal(d("15")))
	assert.True(t, act.Net.Equal(d("25")))

	_, err = f.Ledger.Balances.PeriodActivity(ctx, f.Account(t, accounts.SubtypeCash).ID, shared.Date(2025, 3, 1), shared.Date(2025, 2, 1))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTrialBalanceAlwaysBalances(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	ctx := context.Background()
	f.Post(t, shared.Date(2025, 1, 2), accounts.SubtypeCash, accounts.SubtypeOwnerEquity, "10000")
	f.Post(t, shared.Date(2025, 1, 3), accounts.SubtypeInventory, accounts.SubtypeAccountsPayable, "2500")
	f.Post(t, shared.Date(2025, 1, 4), accounts.SubtypeAccountsReceivable, accounts.SubtypeSales, "1200.10")
	f.Post(t, shared.Date(2025, 1, 5), accounts.SubtypeCostOfGoodsSold, accounts.SubtypeInventory, "700")
	// Overdraws cash so an asset sits on the credit side.
	f.Post(t, shared.Date(2025, 1, 6), accounts.SubtypeOperatingExpense, accounts.SubtypeCash, "10500.55")

	tb, err := f.Ledger.Balances.TrialBalance(ctx, shared.Date(2025, 1, 31))
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced(), "difference %s", tb.Difference())
	assert.True(t, tb.TotalDebit.Equal(d("14200.65")))

	cash := f.Account(t, accounts.SubtypeCash)
	for _, row := range tb.Rows {
		if row.Account.ID == cash.ID {
			assert.True(t, row.Balance.Equal(d("-500.55")))
			assert.True(t, row.Credit.Equal(d("500.55")))
			assert.True(t, row.Debit.IsZero())
		}
	}

	early, err := f.Ledger.Balances.TrialBalance(ctx, shared.Date(2025, 1, 2))
	require.NoError(t, err)
	assert.True(t, early.TotalDebit.Equal(d("10000")))
}

func TestTrialBalanceCarriesDeactivatedAccountsWithPostings(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	ctx := context.Background()
	f.Post(t, shared.Date(2025, 2, 1), accounts.SubtypeOperatingExpense, accounts.SubtypeCash, "100")

	expense := f.Account(t, accounts.SubtypeOperatingExpense)
	require.NoError(t, f.Store.Accounts().WithTx(ctx, func(ctx context.Context, tx accounts.TxRepository) error {
		expense.IsActive = false
		return tx.UpdateAccount(ctx, expense)
	}))
	unused, err := f.Ledger.Accounts.CreateAccount(ctx, accounts.CreateAccountInput{Code: "5990", Name: "Unused", Type: accounts.AccountTypeExpense})
	require.NoError(t, err)
	_, err = f.Ledger.Accounts.UpdateAccount(ctx, unused.ID, accounts.UpdateAccountInput{Code: "5990", Name: "Unused", Type: accounts.AccountTypeExpense})
	require.NoError(t, err)

	tb, err := f.Ledger.Balances.TrialBalance(ctx, shared.Date(2025, 2, 28))
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced(), "difference %s", tb.Difference())
	assert.True(t, tb.TotalDebit.Equal(d("100")))

	var ids []int64
	for _, row := range tb.Rows {
		ids = append(ids, row.Account.ID)
	}
	assert.Contains(t, ids, expense.ID)
	assert.NotContains(t, ids, unused.ID)
}

func TestAccountLedgerRunningBalance(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	ctx := context.Background()
	f.Post(t, shared.Date(2025, 4, 30), accounts.SubtypeBank, accounts.SubtypeOwnerEquity, "300")
	f.Post(t, shared.Date(2025, 5, 2), accounts.SubtypeBank, accounts.SubtypeSales, "50")
	f.Post(t, shared.Date(2025, 5, 3), accounts.SubtypeBankFees, accounts.SubtypeBank, "2.5")

	ledger, err := f.Ledger.Balances.AccountLedger(ctx, f.Account(t, accounts.SubtypeBank).ID, shared.Date(2025, 5, 1), shared.Date(2025, 5, 31))
	require.NoError(t, err)
	assert.True(t, ledger.Opening.Equal(d("300")))
	require.Len(t, ledger.Rows, 2)
	assert.True(t, ledger.Rows[0].Running.Equal(d("350")))
	assert.True(t, ledger.Rows[1].Running.Equal(d("347.5")))
	assert.True(t, ledger.Closing.Equal(d("347.5")))
}
