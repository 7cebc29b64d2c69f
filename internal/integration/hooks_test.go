package integration_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/store/memory"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
)

func setup(t *testing.T, seed bool) (*accounting.Ledger, *integration.Hooks) {
	t.Helper()
	ledger := accounting.New(memory.New())
	if seed {
		chart, err := accounts.DefaultChart()
		require.NoError(t, err)
		_, err = ledger.Accounts.SeedChart(context.Background(), chart, 1)
		require.NoError(t, err)
	}
	hooks := integration.NewHooks(ledger.Journals, ledger.Accounts, decimal.RequireFromString("0.11"), nil)
	return ledger, hooks
}

func balanceOf(t *testing.T, ledger *accounting.Ledger, subtype accounts.Subtype) decimal.Decimal {
	t.Helper()
	ctx := context.Background()
	account, found, err := ledger.Accounts.ResolveFunctional(ctx, subtype)
	require.NoError(t, err)
	require.True(t, found)
	bal, err := ledger.Balances.BalanceAsOf(ctx, account.ID, shared.Date(2025, 12, 31))
	require.NoError(t, err)
	return bal.Balance
}

func TestPostSaleOnCreditSplitsTax(t *testing.T) {
	ledger, hooks := setup(t, true)
	res, err := hooks.PostSale(context.Background(), integration.Sale{
		OrderID: 10,
		Number:  "SO-10",
		Date:    shared.Date(2025, 3, 5),
		Net:     decimal.RequireFromString("1000"),
	})
	require.NoError(t, err)
	require.True(t, res.Posted())
	require.Len(t, res.Entry.Lines, 3)
	require.True(t, res.Entry.TotalDebit.Equal(decimal.RequireFromString("1110")))

	require.True(t, balanceOf(t, ledger, accounts.SubtypeAccountsReceivable).Equal(decimal.RequireFromString("1110")))
	require.True(t, balanceOf(t, ledger, accounts.SubtypeSales).Equal(decimal.RequireFromString("1000")))
	require.True(t, balanceOf(t, ledger, accounts.SubtypeSalesTaxPayable).Equal(decimal.RequireFromString("110")))
}

func TestPostSaleTwiceIsIdempotent(t *testing.T) {
	_, hooks := setup(t, true)
	evt := integration.Sale{OrderID: 11, Number: "SO-11", Date: shared.Date(2025, 3, 5), Net: decimal.NewFromInt(50), Paid: true}
	first, err := hooks.PostSale(context.Background(), evt)
	require.NoError(t, err)
	require.True(t, first.Posted())

	second, err := hooks.PostSale(context.Background(), evt)
	require.NoError(t, err)
	require.False(t, second.Posted())
	require.True(t, second.AlreadyPosted)
}

func TestMissingFunctionalAccountSkips(t *testing.T) {
	ledger, hooks := setup(t, false)
	res, err := hooks.PostExpense(context.Background(), integration.Expense{
		ExpenseID: 3,
		Date:      shared.Date(2025, 1, 2),
		Amount:    decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.ElementsMatch(t, []accounts.Subtype{accounts.SubtypeOperatingExpense, accounts.SubtypeCash}, res.MissingSubtypes)

	entries, err := ledger.Journals.List(context.Background(), journals.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCustomerAndSupplierPaymentsWithSameIDBothPost(t *testing.T) {
	_, hooks := setup(t, true)
	ctx := context.Background()
	received, err := hooks.PostCustomerPayment(ctx, integration.CustomerPayment{PaymentID: 7, Date: shared.Date(2025, 2, 1), Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.True(t, received.Posted())

	paid, err := hooks.PostSupplierPayment(ctx, integration.SupplierPayment{PaymentID: 7, Date: shared.Date(2025, 2, 1), Amount: decimal.NewFromInt(99)})
	require.NoError(t, err)
	require.True(t, paid.Posted())
	require.False(t, paid.AlreadyPosted)
	require.Equal(t, journals.SupplierPaymentRef(7), paid.Entry.SourceRef)

	again, err := hooks.PostSupplierPayment(ctx, integration.SupplierPayment{PaymentID: 7, Date: shared.Date(2025, 2, 1), Amount: decimal.NewFromInt(99)})
	require.NoError(t, err)
	require.True(t, again.AlreadyPosted)
}

func TestRefundReversesSaleBalances(t *testing.T) {
	ledger, hooks := setup(t, true)
	ctx := context.Background()
	_, err := hooks.PostSale(ctx, integration.Sale{OrderID: 1, Number: "SO-1", Date: shared.Date(2025, 4, 1), Net: decimal.NewFromInt(200), Paid: true})
	require.NoError(t, err)
	res, err := hooks.PostRefund(ctx, integration.Refund{RefundID: 1, OrderID: 1, Date: shared.Date(2025, 4, 2), Net: decimal.NewFromInt(200)})
	require.NoError(t, err)
	require.True(t, res.Posted())

	require.True(t, balanceOf(t, ledger, accounts.SubtypeCash).IsZero())
	require.True(t, balanceOf(t, ledger, accounts.SubtypeSalesTaxPayable).IsZero())
	require.True(t, balanceOf(t, ledger, accounts.SubtypeSalesReturns).Equal(decimal.NewFromInt(-200)))
}

func TestPurchaseAndBadDebtRoutes(t *testing.T) {
	ledger, hooks := setup(t, true)
	ctx := context.Background()
	_, err := hooks.PostPurchase(ctx, integration.Purchase{PayableID: 4, Number: "PO-4", Date: shared.Date(2025, 5, 1), Amount: decimal.NewFromInt(300), Inventory: true})
	require.NoError(t, err)
	_, err = hooks.PostSupplierPayment(ctx, integration.SupplierPayment{PaymentID: 9, Date: shared.Date(2025, 5, 3), Amount: decimal.NewFromInt(300), FromBank: true})
	require.NoError(t, err)
	_, err = hooks.PostBadDebt(ctx, integration.BadDebt{ReceivableID: 2, Date: shared.Date(2025, 5, 4), Amount: decimal.NewFromInt(40), Reason: "customer insolvent"})
	require.NoError(t, err)

	require.True(t, balanceOf(t, ledger, accounts.SubtypeInventory).Equal(decimal.NewFromInt(300)))
	require.True(t, balanceOf(t, ledger, accounts.SubtypeAccountsPayable).IsZero())
	require.True(t, balanceOf(t, ledger, accounts.SubtypeBank).Equal(decimal.NewFromInt(-300)))
	require.True(t, balanceOf(t, ledger, accounts.SubtypeBadDebt).Equal(decimal.NewFromInt(40)))
	require.True(t, balanceOf(t, ledger, accounts.SubtypeAccountsReceivable).Equal(decimal.NewFromInt(-40)))

	tb, err := ledger.Balances.TrialBalance(ctx, shared.Date(2025, 5, 31))
	require.NoError(t, err)
	require.True(t, tb.IsBalanced())
}

func TestInvalidEventRejected(t *testing.T) {
	_, hooks := setup(t, true)
	_, err := hooks.PostExpense(context.Background(), integration.Expense{ExpenseID: 1, Date: shared.Date(2025, 1, 1)})
	require.ErrorIs(t, err, shared.ErrValidation)
}
