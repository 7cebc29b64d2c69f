package balances

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Totals holds raw posted debit and credit sums for an account.
type Totals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Add combines two totals.
func (t Totals) Add(other Totals) Totals {
	return Totals{Debit: t.Debit.Add(other.Debit), Credit: t.Credit.Add(other.Credit)}
}

// IsZero reports whether nothing was posted.
func (t Totals) IsZero() bool {
	return t.Debit.IsZero() && t.Credit.IsZero()
}

// Carried reports whether account belongs in a ledger-wide listing: every
// active account, plus deactivated ones still holding an opening balance or
// postings so totals stay whole.
func Carried(account accounts.Account, sums ...Totals) bool {
	if account.IsActive || !account.OpeningBalance.IsZero() {
		return true
	}
	for _, t := range sums {
		if !t.IsZero() {
			return true
		}
	}
	return false
}

// Range bounds a query by entry date, inclusive. Nil ends are open.
type Range struct {
	From *time.Time
	To   *time.Time
}

// Through is the range of every date up to and including to.
func Through(to time.Time) Range {
	return Range{To: &to}
}

// Between is the closed range [from, to].
func Between(from, to time.Time) Range {
	return Range{From: &from, To: &to}
}

// Contains reports whether date falls inside the range.
func (r Range) Contains(date time.Time) bool {
	if r.From != nil && date.Before(*r.From) {
		return false
	}
	if r.To != nil && date.After(*r.To) {
		return false
	}
	return true
}

// Balance is a signed account balance at a point in time.
type Balance struct {
	Account accounts.Account
	AsOf    time.Time
	Opening decimal.Decimal
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Balance decimal.Decimal
}

// Activity is the signed movement of an account over a period.
type Activity struct {
	Account accounts.Account
	From    time.Time
	To      time.Time
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Net     decimal.Decimal
}

// TrialBalanceRow expresses one account balance in the debit or credit column.
type TrialBalanceRow struct {
	Account accounts.Account
	Balance decimal.Decimal
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// TrialBalance lists every active account balance as of a date.
type TrialBalance struct {
	AsOf        time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// IsBalanced reports whether both columns agree.
func (tb TrialBalance) IsBalanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// Difference is debit minus credit column totals.
func (tb TrialBalance) Difference() decimal.Decimal {
	return tb.TotalDebit.Sub(tb.TotalCredit)
}

// PostedLine is a posted journal line joined with its entry header.
type PostedLine struct {
	EntryID     int64
	EntryNumber string
	EntryDate   time.Time
	Reference   string
	Description string
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// LedgerRow is a posted line with the running balance after it.
type LedgerRow struct {
	PostedLine
	Running decimal.Decimal
}

// AccountLedger is the line-by-line history of an account over a period.
type AccountLedger struct {
	Account accounts.Account
	From    time.Time
	To      time.Time
	Opening decimal.Decimal
	Rows    []LedgerRow
	Closing decimal.Decimal
}
