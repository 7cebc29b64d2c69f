package journals

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// LineInput describes a journal line for a create request.
type LineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// CreateInput groups fields required to create a journal entry.
type CreateInput struct {
	EntryDate    time.Time
	Reference    string
	Description  string
	Source       Source
	SourceRef    SourceRef
	ReversalOfID *int64
	ActorID      int64
	Lines        []LineInput
}

// Validate ensures the entry is balanced and every line is one-sided.
func (in CreateInput) Validate() error {
	if in.EntryDate.IsZero() {
		return shared.Validationf("entry date required")
	}
	if in.Source != "" && !in.Source.Valid() {
		return shared.Validationf("unknown source %q", in.Source)
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return shared.Validationf("line %d missing account", idx+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return shared.Validationf("line %d negative amount", idx+1)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return shared.Validationf("line %d must have exactly one of debit or credit", idx+1)
		}
		if !line.Debit.Equal(shared.Round2(line.Debit)) || !line.Credit.Equal(shared.Round2(line.Credit)) {
			return shared.Validationf("line %d has more than %d decimals", idx+1, shared.MoneyPlaces)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return shared.ErrUnbalanced
	}
	return nil
}

func (in CreateInput) lines() []JournalLine {
	out := make([]JournalLine, 0, len(in.Lines))
	for idx, line := range in.Lines {
		out = append(out, JournalLine{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: strings.TrimSpace(line.Description),
			LineOrder:   idx + 1,
		})
	}
	return out
}

// PostInput identifies a draft to post.
type PostInput struct {
	EntryID int64
	ActorID int64
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	EntryID int64
	ActorID int64
	Reason  string
}

// ReverseInput wraps parameters for reversal. Date defaults to today.
type ReverseInput struct {
	EntryID     int64
	ActorID     int64
	Date        *time.Time
	Description string
}
