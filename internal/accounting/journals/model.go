package journals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates journal lifecycle values.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
	StatusVoid   Status = "VOID"
)

// Source names the business domain that produced an entry.
type Source string

const (
	SourceManual     Source = "manual"
	SourceSales      Source = "sales"
	SourceExpense    Source = "expense"
	SourcePurchase   Source = "purchase"
	SourceRefund     Source = "refund"
	SourcePayment    Source = "payment"
	SourceAdjustment Source = "adjustment"
	SourceClosing    Source = "closing"
	SourceRecurring  Source = "recurring"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceSales, SourceExpense, SourcePurchase, SourceRefund,
		SourcePayment, SourceAdjustment, SourceClosing, SourceRecurring:
		return true
	}
	return false
}

// SourceKind tags the originating business object of an entry.
type SourceKind string

const (
	SourceKindNone            SourceKind = ""
	SourceKindOrder           SourceKind = "order"
	SourceKindPayable         SourceKind = "payable"
	SourceKindReceivable      SourceKind = "receivable"
	SourceKindCustomerPayment SourceKind = "customer_payment"
	SourceKindSupplierPayment SourceKind = "supplier_payment"
	SourceKindExpense         SourceKind = "expense"
	SourceKindRefund          SourceKind = "refund"
	SourceKindFiscalYear      SourceKind = "fiscal_year"
)

// SourceRef points back to the business object an entry was posted for.
type SourceRef struct {
	Kind SourceKind
	ID   int64
}

// NoSource is the zero reference used by manual entries.
var NoSource = SourceRef{}

// OrderRef references a sales order.
func OrderRef(id int64) SourceRef { return SourceRef{Kind: SourceKindOrder, ID: id} }

// PayableRef references a supplier payable.
func PayableRef(id int64) SourceRef { return SourceRef{Kind: SourceKindPayable, ID: id} }

// ReceivableRef references a customer receivable.
func ReceivableRef(id int64) SourceRef { return SourceRef{Kind: SourceKindReceivable, ID: id} }

// CustomerPaymentRef references a payment received from a customer.
func CustomerPaymentRef(id int64) SourceRef {
	return SourceRef{Kind: SourceKindCustomerPayment, ID: id}
}

// SupplierPaymentRef references a payment made to a supplier.
func SupplierPaymentRef(id int64) SourceRef {
	return SourceRef{Kind: SourceKindSupplierPayment, ID: id}
}

// ExpenseRef references a recorded expense.
func ExpenseRef(id int64) SourceRef { return SourceRef{Kind: SourceKindExpense, ID: id} }

// RefundRef references a customer refund.
func RefundRef(id int64) SourceRef { return SourceRef{Kind: SourceKindRefund, ID: id} }

// IsZero reports whether the reference is empty.
func (r SourceRef) IsZero() bool {
	return r.Kind == SourceKindNone || r.ID == 0
}

func (r SourceRef) String() string {
	if r.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID           int64
	Number       string
	EntryDate    time.Time
	FiscalYearID *int64
	Reference    string
	Description  string
	Status       Status
	Source       Source
	SourceRef    SourceRef
	ReversalOfID *int64
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	CreatedBy    int64
	PostedBy     *int64
	PostedAt     *time.Time
	VoidedBy     *int64
	VoidedAt     *time.Time
	VoidReason   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []JournalLine
}

// IsBalanced recomputes the line totals and compares them exactly.
func (e JournalEntry) IsBalanced() bool {
	debit, credit := Totals(e.Lines)
	return len(e.Lines) >= 2 && debit.Equal(credit)
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	LineOrder   int
}

// Totals sums both columns.
func Totals(lines []JournalLine) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// FormatNumber renders the human entry number for a year sequence.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("JE-%04d-%06d", year, seq)
}

// FiscalYearStatus is the fiscal-year view journals need when dating entries.
type FiscalYearStatus struct {
	ID     int64
	Found  bool
	Closed bool
}

// StatusChange is a conditional transition applied by the store only while
// the entry still has status From.
type StatusChange struct {
	EntryID int64
	From    Status
	To      Status
	ActorID int64
	At      time.Time
	Reason  string
}

// ListFilter narrows entry listings.
type ListFilter struct {
	Status Status
	Source Source
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
