package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/testing/ledgertest"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func seedActivity(t *testing.T, f *ledgertest.Fixture) {
	t.Helper()
	f.Post(t, shared.Date(2025, 1, 2), accounts.SubtypeBank, accounts.SubtypeOwnerEquity, "10000")
	f.Post(t, shared.Date(2025, 1, 15), accounts.SubtypeAccountsReceivable, accounts.SubtypeSales, "4000")
	f.Post(t, shared.Date(2025, 2, 10), accounts.SubtypeOperatingExpense, accounts.SubtypeBank, "1500")
	f.Post(t, shared.Date(2025, 2, 20), accounts.SubtypeBank, accounts.SubtypeAccountsReceivable, "2500")
}

func TestProfitAndLossOverPeriod(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	seedActivity(t, f)

	pl, err := f.Ledger.Reports.ProfitAndLoss(context.Background(), shared.Date(2025, 2, 1), shared.Date(2025, 2, 28))
	require.NoError(t, err)
	assert.True(t, pl.Revenue.Total.IsZero())
	assert.True(t, pl.Expense.Total.Equal(d("1500")))
	assert.True(t, pl.NetIncome.Equal(d("-1500")))

	full, err := f.Ledger.Reports.ProfitAndLoss(context.Background(), shared.Date(2025, 1, 1), shared.Date(2025, 12, 31))
	require.NoError(t, err)
	assert.True(t, full.NetIncome.Equal(d("2500")))

	_, err = f.Ledger.Reports.ProfitAndLoss(context.Background(), shared.Date(2025, 2, 1), shared.Date(2025, 1, 1))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTrialBalanceCarriesOpening(t *testing.T) {
	f := ledgertest.New(t, time.Time{})
	seedActivity(t, f)

	tb, err := f.Ledger.Reports.TrialBalance(context.Background(), shared.Date(2025, 2, 1), shared.Date(2025, 2, 28))
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced())
	assert.True(t, tb.TotalDebit.Equal(d("4000")))

	bank := f.Account(t, accounts.SubtypeBank)
	for _, grp := range tb.Groups {
		for _, row := range grp.Accounts {
			if row.Code == bank.Code {
				assert.True(t, row.Opening.Equal(d("10000")))
				assert.True(t, row.Closing.Equal(d("11000")))
			}
		}
	}
}

func TestBalanceSheetBalancesBeforeAndAfterClose(t *testing.T) {
	f := ledgertest.New(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	seedActivity(t, f)

	before, err := f.Ledger.Reports.BalanceSheet(ctx, shared.Date(2025, 12, 31))
	require.NoError(t, err)
	assert.True(t, before.IsBalanced())
	assert.True(t, before.CurrentEarnings.Equal(d("2500")))
	assert.True(t, before.Assets.Total.Equal(d("12500")))

	fy, err := f.Ledger.FiscalYears.Create(ctx, fiscalyears.CreateInput{Name: "FY2025", StartDate: shared.Date(2025, 1, 1), EndDate: shared.Date(2025, 12, 31)})
	require.NoError(t, err)
	_, err = f.Ledger.FiscalYears.Close(ctx, fiscalyears.CloseInput{FiscalYearID: fy.ID, ActorID: 1})
	require.NoError(t, err)

	after, err := f.Ledger.Reports.BalanceSheet(ctx, shared.Date(2025, 12, 31))
	require.NoError(t, err)
	assert.True(t, after.IsBalanced())
	assert.True(t, after.CurrentEarnings.IsZero())
	assert.True(t, after.Equity.Total.Equal(before.Equity.Total))
}
