package reports

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestBuildTrialBalance(t *testing.T) {
	balances := []AccountBalance{
		{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, Opening: amt(1000), Debit: amt(200), Credit: amt(150)},
		{Code: "1200", Name: "Bank", Type: accounts.AccountTypeAsset, Opening: amt(500), Debit: amt(100), Credit: amt(50)},
		{Code: "2100", Name: "Accounts Payable", Type: accounts.AccountTypeLiability, Opening: amt(0), Debit: amt(10), Credit: amt(400)},
	}

	tb := BuildTrialBalance(balances)
	if len(tb.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(tb.Groups))
	}
	if !tb.TotalDebit.Equal(amt(310)) {
		t.Fatalf("unexpected total debit: %v", tb.TotalDebit)
	}
	if !tb.TotalCredit.Equal(amt(600)) {
		t.Fatalf("unexpected total credit: %v", tb.TotalCredit)
	}
	if got := tb.Groups[0].Accounts[0].Closing; !got.Equal(amt(1050)) {
		t.Fatalf("unexpected cash closing: %v", got)
	}
	if got := tb.Groups[1].Accounts[0].Closing; !got.Equal(amt(390)) {
		t.Fatalf("unexpected payable closing: %v", got)
	}
}

func TestBuildProfitAndLoss(t *testing.T) {
	balances := []AccountBalance{
		{Code: "4100", Name: "Sales", Type: accounts.AccountTypeIncome, Debit: amt(0), Credit: amt(1200)},
		{Code: "5100", Name: "COGS", Type: accounts.AccountTypeExpense, Debit: amt(300), Credit: amt(0)},
		{Code: "5200", Name: "Marketing", Type: accounts.AccountTypeExpense, Debit: amt(200), Credit: amt(0)},
		{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, Debit: amt(900), Credit: amt(0)},
	}

	pl := BuildProfitAndLoss(balances)
	if !pl.Revenue.Total.Equal(amt(1200)) {
		t.Fatalf("expected revenue total 1200 got %v", pl.Revenue.Total)
	}
	if !pl.Expense.Total.Equal(amt(500)) {
		t.Fatalf("expected expense total 500 got %v", pl.Expense.Total)
	}
	if !pl.NetIncome.Equal(amt(700)) {
		t.Fatalf("expected net income 700 got %v", pl.NetIncome)
	}
	if len(pl.Expense.Accounts) != 2 || pl.Expense.Accounts[0].Code != "5100" {
		t.Fatalf("unexpected expense rows: %+v", pl.Expense.Accounts)
	}
}

func TestBuildBalanceSheet(t *testing.T) {
	balances := []AccountBalance{
		{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, Opening: amt(500), Debit: amt(100), Credit: amt(20)},
		{Code: "2100", Name: "AP", Type: accounts.AccountTypeLiability, Opening: amt(0), Debit: amt(10), Credit: amt(40)},
		{Code: "3100", Name: "Equity", Type: accounts.AccountTypeEquity, Opening: amt(500), Debit: amt(0), Credit: amt(0)},
		{Code: "4100", Name: "Sales", Type: accounts.AccountTypeIncome, Debit: amt(0), Credit: amt(100)},
		{Code: "5200", Name: "Rent", Type: accounts.AccountTypeExpense, Debit: amt(50), Credit: amt(0)},
	}

	bs := BuildBalanceSheet(balances)
	if !bs.Assets.Total.Equal(amt(580)) {
		t.Fatalf("unexpected assets total: %v", bs.Assets.Total)
	}
	if !bs.Liabilities.Total.Equal(amt(30)) {
		t.Fatalf("unexpected liabilities total: %v", bs.Liabilities.Total)
	}
	if !bs.CurrentEarnings.Equal(amt(50)) {
		t.Fatalf("unexpected current earnings: %v", bs.CurrentEarnings)
	}
	if !bs.Equity.Total.Equal(amt(550)) {
		t.Fatalf("unexpected equity total: %v", bs.Equity.Total)
	}
	if !bs.IsBalanced() {
		t.Fatalf("expected balanced sheet, assets %v vs %v", bs.Assets.Total, bs.TotalLiabilitiesAndEquity)
	}
}
