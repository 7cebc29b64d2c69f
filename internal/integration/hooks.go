// Package integration posts business events from operational modules into
// the general ledger.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Ledger exposes journal posting operations required by integrations.
type Ledger interface {
	CreatePosted(ctx context.Context, in journals.CreateInput) (journals.JournalEntry, error)
}

// AccountResolver finds the account playing a functional role.
type AccountResolver interface {
	ResolveFunctional(ctx context.Context, subtype accounts.Subtype) (accounts.Account, bool, error)
}

// PostingResult reports what a hook did. Skipped is set when a required
// functional account is missing; the caller's own transaction must go on.
type PostingResult struct {
	Entry           *journals.JournalEntry
	Skipped         bool
	MissingSubtypes []accounts.Subtype
	AlreadyPosted   bool
}

// Posted reports whether this call created an entry.
func (r PostingResult) Posted() bool {
	return r.Entry != nil
}

// Outcomes of a business event, as reported to an EventRecorder.
const (
	OutcomePosted        = "posted"
	OutcomeSkipped       = "skipped"
	OutcomeAlreadyPosted = "already_posted"
	OutcomeRejected      = "rejected"
	OutcomeFailed        = "failed"
)

// Outcome names what the call did.
func (r PostingResult) Outcome() string {
	switch {
	case r.Posted():
		return OutcomePosted
	case r.AlreadyPosted:
		return OutcomeAlreadyPosted
	case r.Skipped:
		return OutcomeSkipped
	}
	return OutcomeFailed
}

// Hooks wires domain events from operational modules into the general ledger.
type Hooks struct {
	ledger   Ledger
	accounts AccountResolver
	taxRate  decimal.Decimal
	logger   *slog.Logger
}

// NewHooks constructs integration hooks. A zero taxRate disables the sales
// tax line.
func NewHooks(ledger Ledger, resolver AccountResolver, taxRate decimal.Decimal, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, accounts: resolver, taxRate: taxRate, logger: logger}
}

// Sale is a completed sales order. Net excludes tax.
type Sale struct {
	OrderID int64
	Number  string
	Date    time.Time
	Net     decimal.Decimal
	Paid    bool
	ActorID int64
}

// CustomerPayment settles a receivable.
type CustomerPayment struct {
	PaymentID int64
	Reference string
	Date      time.Time
	Amount    decimal.Decimal
	ToBank    bool
	ActorID   int64
}

// Purchase is a supplier bill. Stock purchases hit inventory, others expense.
type Purchase struct {
	PayableID int64
	Number    string
	Date      time.Time
	Amount    decimal.Decimal
	Inventory bool
	ActorID   int64
}

// SupplierPayment settles a payable.
type SupplierPayment struct {
	PaymentID int64
	Reference string
	Date      time.Time
	Amount    decimal.Decimal
	FromBank  bool
	ActorID   int64
}

// Expense is a cash-paid operating expense.
type Expense struct {
	ExpenseID   int64
	Description string
	Date        time.Time
	Amount      decimal.Decimal
	ActorID     int64
}

// Refund returns money for a sale. Net excludes tax; the tax share is
// reversed at the configured rate.
type Refund struct {
	RefundID int64
	OrderID  int64
	Date     time.Time
	Net      decimal.Decimal
	ActorID  int64
}

// BadDebt writes off an uncollectible receivable.
type BadDebt struct {
	ReceivableID int64
	Date         time.Time
	Amount       decimal.Decimal
	Reason       string
	ActorID      int64
}

// PostSale debits cash or receivables and credits sales plus sales tax.
func (h *Hooks) PostSale(ctx context.Context, evt Sale) (PostingResult, error) {
	if err := requireEvent(evt.OrderID, evt.Date, evt.Net); err != nil {
		return PostingResult{}, err
	}
	receiving := accounts.SubtypeAccountsReceivable
	if evt.Paid {
		receiving = accounts.SubtypeCash
	}
	tax := flatTax(evt.Net, h.taxRate)
	needed := []accounts.Subtype{receiving, accounts.SubtypeSales}
	if tax.IsPositive() {
		needed = append(needed, accounts.SubtypeSalesTaxPayable)
	}
	ids, res, err := h.resolve(ctx, "sale", needed...)
	if err != nil || res.Skipped {
		return res, err
	}
	lines := []journals.LineInput{
		debit(ids[receiving], evt.Net.Add(tax)),
		credit(ids[accounts.SubtypeSales], evt.Net),
	}
	if tax.IsPositive() {
		lines = append(lines, credit(ids[accounts.SubtypeSalesTaxPayable], tax))
	}
	return h.post(ctx, journals.CreateInput{
		EntryDate:   evt.Date,
		Reference:   evt.Number,
		Description: fmt.Sprintf("Sale %s", evt.Number),
		Source:      journals.SourceSales,
		SourceRef:   journals.OrderRef(evt.OrderID),
		ActorID:     evt.ActorID,
		Lines:       lines,
	})
}

// PostCustomerPayment debits cash or bank and credits receivables.
func (h *Hooks) PostCustomerPayment(ctx context.Context, evt CustomerPayment) (PostingResult, error) {
	if err := requireEvent(evt.PaymentID, evt.Date, evt.Amount); err != nil {
		return PostingResult{}, err
	}
	into := accounts.SubtypeCash
	if evt.ToBank {
		into = accounts.SubtypeBank
	}
	ids, res, err := h.resolve(ctx, "customer_payment", into, accounts.SubtypeAccountsReceivable)
	if err != nil || res.Skipped {
		return res, err
	}
	return h.post(ctx, journals.CreateInput{
		EntryDate:   evt.Date,
		Reference:   evt.Reference,
		Description: fmt.Sprintf("Customer payment %s", evt.Reference),
		Source:      journals.SourcePayment,
		SourceRef:   journals.CustomerPaymentRef(evt.PaymentID),
		ActorID:     evt.ActorID,
		Lines: []journals.LineInput{
			debit(ids[into], evt.Amount),
			credit(ids[accounts.SubtypeAccountsReceivable], evt.Amount),
		},
	})
}

// PostPurchase debits inventory or expense and credits payables.
func (h *Hooks) PostPurchase(ctx context.Context, evt Purchase) (PostingResult, error) {
	if err := requireEvent(evt.PayableID, evt.Date, evt.Amount); err != nil {
		return PostingResult{}, err
	}
	target := accounts.SubtypeOperatingExpense
	if evt.Inventory {
		target = accounts.SubtypeInventory
	}
	ids, res, err := h.resolve(ctx, "purchase", target, accounts.SubtypeAccountsPayable)
	if err != nil || res.Skipped {
		return res, err
	}
	return h.post(ctx, journals.CreateInput{
		EntryDate:   evt.Date,
		Reference:   evt.Number,
		Description: fmt.Sprintf("Purchase %s", evt.Number),
		Source:      journals.SourcePurchase,
		SourceRef:   journals.PayableRef(evt.PayableID),
		ActorID:     evt.ActorID,
		Lines: []journals.LineInput{
			debit(ids[target], evt.Amount),
			credit(ids[accounts.SubtypeAccountsPayable], evt.Amount),
		},
	})
}

// PostSupplierPayment debits payables and credits cash or bank.
func (h *Hooks) PostSupplierPayment(ctx context.Context, evt SupplierPayment) (PostingResult, error) {
	if err := requireEvent(evt.PaymentID, evt.Date, evt.Amount); err != nil {
		return PostingResult{}, err
	}
	from := accounts.SubtypeCash
	if evt.FromBank {
		from = accounts.SubtypeBank
	}
	ids, res, err := h.resolve(ctx, "supplier_payment", accounts.SubtypeAccountsPayable, from)
	if err != nil || res.Skipped {
		return res, err
	}
	return h.post(ctx, journals.CreateInput{
		EntryDate:   evt.Date,
		Reference:   evt.Reference,
		Description: fmt.Sprintf("Supplier payment %s", evt.Reference),
		Source:      journals.SourcePayment,
		SourceRef:   journals.SupplierPaymentRef(evt.PaymentID),
		ActorID:     evt.ActorID,
		Lines: []journals.LineInput{
			debit(ids[accounts.SubtypeAccountsPayable], evt.Amount),
			credit(ids[from], evt.Amount),
		},
	})
}

// PostExpense debits operating expense and credits cash.
func (h *Hooks) PostExpense(ctx context.Context, evt Expense) (PostingResult, error) {
	if err := requireEvent(evt.ExpenseID, evt.Date, evt.Amount); err != nil {
		return PostingResult{}, err
	}
	ids, res, err := h.resolve(ctx, "expense", accounts.SubtypeOperatingExpense, accounts.SubtypeCash)
	if err != nil || res.Skipped {
		return res, err
	}
	return h.post(ctx, journals.CreateInput{
		EntryDate:   evt.Date,
		Description: evt.Description,
		Source:      journals.SourceExpense,
		SourceRef:   journals.ExpenseRef(evt.ExpenseID),
		ActorID:     evt.ActorID,
		Lines: []journals.LineInput{
			debit(ids[accounts.SubtypeOperatingExpense], evt.Amount),
			credit(ids[accounts.SubtypeCash], evt.Amount),
		},
	})
}

// PostRefund debits sales returns and sales tax and credits cash.
func (h *Hooks) PostRefund(ctx context.Context, evt Refund) (PostingResult, error) {
	if err := requireEvent(evt.RefundID, evt.Date, evt.Net); err != nil {
		return PostingResult{}, err
	}
	tax := flatTax(evt.Net, h.taxRate)
	needed := []accounts.Subtype{accounts.SubtypeSalesReturns, accounts.SubtypeCash}
	if tax.IsPositive() {
		needed = append(needed, accounts.SubtypeSalesTaxPayable)
	}
	ids, res, err := h.resolve(ctx, "refund", needed...)
	if err != nil || res.Skipped {
		return res, err
	}
	lines := []journals.LineInput{debit(ids[accounts.SubtypeSalesReturns], evt.Net)}
	if tax.IsPositive() {
		lines = append(lines, debit(ids[accounts.SubtypeSalesTaxPayable], tax))
	}
	lines = append(lines, credit(ids[accounts.SubtypeCash], evt.Net.Add(tax)))
	reference := ""
	if evt.OrderID != 0 {
		reference = journals.OrderRef(evt.OrderID).String()
	}
	return h.post(ctx, journals.CreateInput{
		EntryDate:   evt.Date,
		Reference:   reference,
		Description: fmt.Sprintf("Refund %d", evt.RefundID),
		Source:      journals.SourceRefund,
		SourceRef:   journals.RefundRef(evt.RefundID),
		ActorID:     evt.ActorID,
		Lines:       lines,
	})
}

// PostBadDebt debits bad debt expense and credits receivables.
func (h *Hooks) PostBadDebt(ctx context.Context, evt BadDebt) (PostingResult, error) {
	if err := requireEvent(evt.ReceivableID, evt.Date, evt.Amount); err != nil {
		return PostingResult{}, err
	}
	ids, res, err := h.resolve(ctx, "bad_debt", accounts.SubtypeBadDebt, accounts.SubtypeAccountsReceivable)
	if err != nil || res.Skipped {
		return res, err
	}
	description := "Bad debt write-off"
	if evt.Reason != "" {
		description += ": " + evt.Reason
	}
	return h.post(ctx, journals.CreateInput{
		EntryDate:   evt.Date,
		Description: description,
		Source:      journals.SourceAdjustment,
		SourceRef:   journals.ReceivableRef(evt.ReceivableID),
		ActorID:     evt.ActorID,
		Lines: []journals.LineInput{
			debit(ids[accounts.SubtypeBadDebt], evt.Amount),
			credit(ids[accounts.SubtypeAccountsReceivable], evt.Amount),
		},
	})
}

// resolve looks every subtype up. Missing accounts produce a skipped result
// listing all gaps, never an error.
func (h *Hooks) resolve(ctx context.Context, event string, subtypes ...accounts.Subtype) (map[accounts.Subtype]int64, PostingResult, error) {
	ids := make(map[accounts.Subtype]int64, len(subtypes))
	var missing []accounts.Subtype
	for _, subtype := range subtypes {
		account, found, err := h.accounts.ResolveFunctional(ctx, subtype)
		if err != nil {
			return nil, PostingResult{}, err
		}
		if !found {
			missing = append(missing, subtype)
			continue
		}
		ids[subtype] = account.ID
	}
	if len(missing) > 0 {
		h.logger.Warn("ledger posting skipped", slog.String("event", event), slog.Any("missing_subtypes", missing))
		return nil, PostingResult{Skipped: true, MissingSubtypes: missing}, nil
	}
	return ids, PostingResult{}, nil
}

func (h *Hooks) post(ctx context.Context, in journals.CreateInput) (PostingResult, error) {
	entry, err := h.ledger.CreatePosted(ctx, in)
	if err != nil {
		if errors.Is(err, shared.ErrSourceAlreadyLinked) {
			return PostingResult{AlreadyPosted: true}, nil
		}
		return PostingResult{}, err
	}
	return PostingResult{Entry: &entry}, nil
}

func requireEvent(id int64, date time.Time, amount decimal.Decimal) error {
	if id == 0 {
		return shared.Validationf("integration: source id required")
	}
	if date.IsZero() {
		return shared.Validationf("integration: event date required")
	}
	if !amount.IsPositive() {
		return shared.Validationf("integration: amount must be positive")
	}
	return nil
}
