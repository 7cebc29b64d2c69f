package accounts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountTypes lists every type in statement order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeIncome,
	AccountTypeExpense,
}

// ParseAccountType accepts the type name in any case.
func ParseAccountType(raw string) (AccountType, bool) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AccountTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Subtype is the functional role used to look accounts up without hardcoded ids.
type Subtype string

const (
	SubtypeNone               Subtype = ""
	SubtypeCash               Subtype = "cash"
	SubtypeBank               Subtype = "bank"
	SubtypeAccountsReceivable Subtype = "accounts_receivable"
	SubtypeInventory          Subtype = "inventory"
	SubtypePrepaid            Subtype = "prepaid"
	SubtypeFixedAsset         Subtype = "fixed_asset"
	SubtypeOtherAsset         Subtype = "other_asset"

	SubtypeAccountsPayable  Subtype = "accounts_payable"
	SubtypeSalesTaxPayable  Subtype = "sales_tax_payable"
	SubtypeAccruedLiability Subtype = "accrued_liability"
	SubtypeLoan             Subtype = "loan"
	SubtypeOtherLiability   Subtype = "other_liability"

	SubtypeOwnerEquity      Subtype = "owner_equity"
	SubtypeRetainedEarnings Subtype = "retained_earnings"
	SubtypeOtherEquity      Subtype = "other_equity"

	SubtypeSales         Subtype = "sales"
	SubtypeSalesReturns  Subtype = "sales_returns"
	SubtypeServiceIncome Subtype = "service_income"
	SubtypeOtherIncome   Subtype = "other_income"

	SubtypeCostOfGoodsSold  Subtype = "cost_of_goods_sold"
	SubtypeOperatingExpense Subtype = "operating_expense"
	SubtypeBadDebt          Subtype = "bad_debt"
	SubtypeBankFees         Subtype = "bank_fees"
	SubtypeOtherExpense     Subtype = "other_expense"
)

var allowedSubtypes = map[AccountType][]Subtype{
	AccountTypeAsset:     {SubtypeCash, SubtypeBank, SubtypeAccountsReceivable, SubtypeInventory, SubtypePrepaid, SubtypeFixedAsset, SubtypeOtherAsset},
	AccountTypeLiability: {SubtypeAccountsPayable, SubtypeSalesTaxPayable, SubtypeAccruedLiability, SubtypeLoan, SubtypeOtherLiability},
	AccountTypeEquity:    {SubtypeOwnerEquity, SubtypeRetainedEarnings, SubtypeOtherEquity},
	AccountTypeIncome:    {SubtypeSales, SubtypeSalesReturns, SubtypeServiceIncome, SubtypeOtherIncome},
	AccountTypeExpense:   {SubtypeCostOfGoodsSold, SubtypeOperatingExpense, SubtypeBadDebt, SubtypeBankFees, SubtypeOtherExpense},
}

// SubtypeAllowed reports whether subtype may be used with the account type.
// An empty subtype is valid for every type.
func SubtypeAllowed(t AccountType, s Subtype) bool {
	if s == SubtypeNone {
		return true
	}
	for _, candidate := range allowedSubtypes[t] {
		if candidate == s {
			return true
		}
	}
	return false
}

// Side is a column of the double-entry notation.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// NormalBalanceSide returns the side that increases accounts of type t.
func NormalBalanceSide(t AccountType) Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Signed converts raw debit/credit totals into a balance signed by the normal side.
func Signed(side Side, debit, credit decimal.Decimal) decimal.Decimal {
	if side == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Account models a chart of accounts node.
type Account struct {
	ID                 int64
	Code               string
	Name               string
	LocalName          string
	Type               AccountType
	Subtype            Subtype
	ParentID           *int64
	Level              int
	OpeningBalance     decimal.Decimal
	OpeningBalanceDate *time.Time
	IsSystem           bool
	IsActive           bool
	DeletedAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NormalSide returns the account's normal balance side.
func (a Account) NormalSide() Side {
	return NormalBalanceSide(a.Type)
}

// OpeningBalanceOn returns the opening balance that applies to balances as of date.
func (a Account) OpeningBalanceOn(date time.Time) decimal.Decimal {
	if a.OpeningBalanceDate != nil && date.Before(*a.OpeningBalanceDate) {
		return decimal.Zero
	}
	return a.OpeningBalance
}

// ListFilter narrows account listings.
type ListFilter struct {
	Type       AccountType
	ActiveOnly bool
}

// MaxCodeLength bounds the display code.
const MaxCodeLength = 10

var (
	// ErrAccountCodeTaken indicates a duplicate code.
	ErrAccountCodeTaken = shared.Wrap(shared.ErrConflict, "account code already exists")
	// ErrSystemAccount protects seeded accounts.
	ErrSystemAccount = shared.Wrap(shared.ErrForbidden, "system accounts cannot be modified")
	// ErrAccountHasLines blocks deleting accounts with postings.
	ErrAccountHasLines = shared.Wrap(shared.ErrConflict, "account has journal lines")
	// ErrAccountHasChildren blocks deleting parents.
	ErrAccountHasChildren = shared.Wrap(shared.ErrConflict, "account has child accounts")
	// ErrAccountInUse blocks deactivating an account that carries a balance.
	ErrAccountInUse = shared.Wrap(shared.ErrConflict, "account with journal lines or an opening balance cannot be deactivated")
	// ErrTypeChangeWithChildren keeps a subtree on its parent's type.
	ErrTypeChangeWithChildren = shared.Wrap(shared.ErrConflict, "account type cannot change while child accounts exist")
	// ErrParentCycle rejects parent changes that would loop the tree.
	ErrParentCycle = shared.Wrap(shared.ErrValidation, "account parent would create a cycle")
	// ErrParentNotFound indicates a dangling parent reference.
	ErrParentNotFound = shared.Wrap(shared.ErrNotFound, "parent account not found")
)
