package accounts_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/store/memory"
)

func newService(t *testing.T) (*accounts.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return accounts.NewService(store.Accounts(), store), store
}

func create(t *testing.T, svc *accounts.Service, in accounts.CreateAccountInput) accounts.Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), in)
	require.NoError(t, err)
	return account
}

func TestCreateAccountDerivesLevelFromParent(t *testing.T) {
	svc, store := newService(t)
	root := create(t, svc, accounts.CreateAccountInput{Code: "1000", Name: "Assets", Type: accounts.AccountTypeAsset, ActorID: 1})
	child := create(t, svc, accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: "asset", Subtype: accounts.SubtypeCash, ParentID: &root.ID, ActorID: 1})

	assert.Equal(t, 0, root.Level)
	assert.Equal(t, 1, child.Level)
	assert.Equal(t, accounts.AccountTypeAsset, child.Type)
	assert.True(t, child.IsActive)
	require.Len(t, store.AuditLogs(), 2)
	assert.Equal(t, "account.create", store.AuditLogs()[1].Action)
}

func TestCreateAccountValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   accounts.CreateAccountInput
	}{
		{"missing code", accounts.CreateAccountInput{Name: "Cash", Type: accounts.AccountTypeAsset}},
		{"long code", accounts.CreateAccountInput{Code: strings.Repeat("1", accounts.MaxCodeLength+1), Name: "Cash", Type: accounts.AccountTypeAsset}},
		{"missing name", accounts.CreateAccountInput{Code: "1100", Type: accounts.AccountTypeAsset}},
		{"unknown type", accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: "REVENUE"}},
		{"subtype mismatch", accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: accounts.AccountTypeLiability, Subtype: accounts.SubtypeCash}},
		{"opening precision", accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, OpeningBalance: decimal.RequireFromString("1.005")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, tc.in)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestCreateAccountRejectsDuplicateCode(t *testing.T) {
	svc, _ := newService(t)
	create(t, svc, accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset})

	_, err := svc.CreateAccount(context.Background(), accounts.CreateAccountInput{Code: " 1100 ", Name: "Petty", Type: accounts.AccountTypeAsset})
	require.ErrorIs(t, err, accounts.ErrAccountCodeTaken)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateAccountParentMustShareType(t *testing.T) {
	svc, _ := newService(t)
	parent := create(t, svc, accounts.CreateAccountInput{Code: "2000", Name: "Liabilities", Type: accounts.AccountTypeLiability})

	_, err := svc.CreateAccount(context.Background(), accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, ParentID: &parent.ID})
	require.ErrorIs(t, err, shared.ErrValidation)

	missing := int64(999)
	_, err = svc.CreateAccount(context.Background(), accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, ParentID: &missing})
	require.ErrorIs(t, err, accounts.ErrParentNotFound)
}

func TestUpdateAccountRejectsCycles(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a := create(t, svc, accounts.CreateAccountInput{Code: "1000", Name: "A", Type: accounts.AccountTypeAsset})
	b := create(t, svc, accounts.CreateAccountInput{Code: "1100", Name: "B", Type: accounts.AccountTypeAsset, ParentID: &a.ID})
	c := create(t, svc, accounts.CreateAccountInput{Code: "1110", Name: "C", Type: accounts.AccountTypeAsset, ParentID: &b.ID})

	_, err := svc.UpdateAccount(ctx, a.ID, accounts.UpdateAccountInput{Code: "1000", Name: "A", Type: accounts.AccountTypeAsset, ParentID: &c.ID, IsActive: true})
	require.ErrorIs(t, err, accounts.ErrParentCycle)

	_, err = svc.UpdateAccount(ctx, a.ID, accounts.UpdateAccountInput{Code: "1000", Name: "A", Type: accounts.AccountTypeAsset, ParentID: &a.ID, IsActive: true})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateAccountRelevelsSubtree(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	root := create(t, svc, accounts.CreateAccountInput{Code: "1000", Name: "Assets", Type: accounts.AccountTypeAsset})
	mid := create(t, svc, accounts.CreateAccountInput{Code: "1100", Name: "Current", Type: accounts.AccountTypeAsset})
	leaf := create(t, svc, accounts.CreateAccountInput{Code: "1110", Name: "Cash", Type: accounts.AccountTypeAsset, ParentID: &mid.ID})

	_, err := svc.UpdateAccount(ctx, mid.ID, accounts.UpdateAccountInput{Code: "1100", Name: "Current", Type: accounts.AccountTypeAsset, ParentID: &root.ID, IsActive: true})
	require.NoError(t, err)

	got, err := svc.GetAccount(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Level)
}

func TestSystemAccountsAreProtected(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	system := create(t, svc, accounts.CreateAccountInput{Code: "3200", Name: "Retained Earnings", Type: accounts.AccountTypeEquity, Subtype: accounts.SubtypeRetainedEarnings, IsSystem: true})

	_, err := svc.UpdateAccount(ctx, system.ID, accounts.UpdateAccountInput{Code: "3200", Name: "RE", Type: accounts.AccountTypeEquity, IsActive: true})
	require.ErrorIs(t, err, accounts.ErrSystemAccount)

	err = svc.DeleteAccount(ctx, accounts.DeleteAccountInput{AccountID: system.ID})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDeleteAccountGuards(t *testing.T) {
	store := memory.New()
	svc := accounts.NewService(store.Accounts(), store)
	journalSvc := journals.NewService(store.Journals(), store)
	ctx := context.Background()

	parent := create(t, svc, accounts.CreateAccountInput{Code: "1000", Name: "Assets", Type: accounts.AccountTypeAsset})
	cash := create(t, svc, accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, ParentID: &parent.ID})
	equity := create(t, svc, accounts.CreateAccountInput{Code: "3100", Name: "Capital", Type: accounts.AccountTypeEquity})
	spare := create(t, svc, accounts.CreateAccountInput{Code: "1900", Name: "Spare", Type: accounts.AccountTypeAsset})

	err := svc.DeleteAccount(ctx, accounts.DeleteAccountInput{AccountID: parent.ID})
	require.ErrorIs(t, err, accounts.ErrAccountHasChildren)

	_, err = journalSvc.Create(ctx, journals.CreateInput{
		EntryDate: shared.Date(2025, 1, 1),
		Lines: []journals.LineInput{
			{AccountID: cash.ID, Debit: decimal.NewFromInt(10)},
			{AccountID: equity.ID, Credit: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	err = svc.DeleteAccount(ctx, accounts.DeleteAccountInput{AccountID: cash.ID})
	require.ErrorIs(t, err, accounts.ErrAccountHasLines)

	require.NoError(t, svc.DeleteAccount(ctx, accounts.DeleteAccountInput{AccountID: spare.ID}))
	_, err = svc.GetAccount(ctx, spare.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// The code is free again once the holder is deleted.
	create(t, svc, accounts.CreateAccountInput{Code: "1900", Name: "Spare again", Type: accounts.AccountTypeAsset})
}

func TestDeactivateAccountGuards(t *testing.T) {
	store := memory.New()
	svc := accounts.NewService(store.Accounts(), store)
	journalSvc := journals.NewService(store.Journals(), store)
	ctx := context.Background()

	cash := create(t, svc, accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset})
	expense := create(t, svc, accounts.CreateAccountInput{Code: "5900", Name: "Other Expense", Type: accounts.AccountTypeExpense})
	pettyCash := create(t, svc, accounts.CreateAccountInput{Code: "1900", Name: "Float", Type: accounts.AccountTypeAsset, OpeningBalance: decimal.NewFromInt(25)})
	spare := create(t, svc, accounts.CreateAccountInput{Code: "1950", Name: "Spare", Type: accounts.AccountTypeAsset})

	_, err := journalSvc.CreatePosted(ctx, journals.CreateInput{
		EntryDate: shared.Date(2025, 1, 1),
		Lines: []journals.LineInput{
			{AccountID: expense.ID, Debit: decimal.NewFromInt(100)},
			{AccountID: cash.ID, Credit: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)

	deactivate := func(a accounts.Account) error {
		_, err := svc.UpdateAccount(ctx, a.ID, accounts.UpdateAccountInput{
			Code: a.Code, Name: a.Name, Type: a.Type, OpeningBalance: a.OpeningBalance, IsActive: false,
		})
		return err
	}
	require.ErrorIs(t, deactivate(expense), accounts.ErrAccountInUse)
	require.ErrorIs(t, deactivate(expense), shared.ErrConflict)
	require.ErrorIs(t, deactivate(pettyCash), accounts.ErrAccountInUse)
	require.NoError(t, deactivate(spare))

	got, err := svc.GetAccount(ctx, expense.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestTypeChangeRequiresNoChildren(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	parent := create(t, svc, accounts.CreateAccountInput{Code: "1000", Name: "Assets", Type: accounts.AccountTypeAsset})
	create(t, svc, accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, ParentID: &parent.ID})
	leaf := create(t, svc, accounts.CreateAccountInput{Code: "1200", Name: "Deposits", Type: accounts.AccountTypeAsset})

	_, err := svc.UpdateAccount(ctx, parent.ID, accounts.UpdateAccountInput{Code: "1000", Name: "Assets", Type: accounts.AccountTypeLiability, IsActive: true})
	require.ErrorIs(t, err, accounts.ErrTypeChangeWithChildren)

	updated, err := svc.UpdateAccount(ctx, leaf.ID, accounts.UpdateAccountInput{Code: "1200", Name: "Deposits", Type: accounts.AccountTypeLiability, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, accounts.AccountTypeLiability, updated.Type)
}

func TestResolveFunctionalPrefersSystemAccount(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	create(t, svc, accounts.CreateAccountInput{Code: "1050", Name: "Till", Type: accounts.AccountTypeAsset, Subtype: accounts.SubtypeCash})
	system := create(t, svc, accounts.CreateAccountInput{Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, Subtype: accounts.SubtypeCash, IsSystem: true})

	got, found, err := svc.ResolveFunctional(ctx, accounts.SubtypeCash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, system.ID, got.ID)

	_, found, err = svc.ResolveFunctional(ctx, accounts.SubtypeBadDebt)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSeedChartIsIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	chart, err := accounts.DefaultChart()
	require.NoError(t, err)

	first, err := svc.SeedChart(ctx, chart, 1)
	require.NoError(t, err)
	assert.Positive(t, first.Created)
	assert.Zero(t, first.Skipped)

	second, err := svc.SeedChart(ctx, chart, 1)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, first.Created, second.Skipped)

	cash, found, err := svc.ResolveFunctional(ctx, accounts.SubtypeCash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, cash.Level)
	assert.Equal(t, accounts.AccountTypeAsset, cash.Type)
}

func TestParseChartRejectsBadInput(t *testing.T) {
	_, err := accounts.ParseChart([]byte("accounts: [oops"))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = accounts.ParseChart([]byte("accounts:\n  - code: \"9\"\n    name: Orphan\n"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSignedBalanceFollowsNormalSide(t *testing.T) {
	ten, four := decimal.NewFromInt(10), decimal.NewFromInt(4)
	assert.True(t, accounts.Signed(accounts.NormalBalanceSide(accounts.AccountTypeAsset), ten, four).Equal(decimal.NewFromInt(6)))
	assert.True(t, accounts.Signed(accounts.NormalBalanceSide(accounts.AccountTypeIncome), ten, four).Equal(decimal.NewFromInt(-6)))
	assert.Equal(t, accounts.SideDebit, accounts.NormalBalanceSide(accounts.AccountTypeExpense))
	assert.Equal(t, accounts.SideCredit, accounts.NormalBalanceSide(accounts.AccountTypeEquity))
}
