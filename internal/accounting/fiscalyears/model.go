package fiscalyears

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// FiscalYear represents an accounting year window.
type FiscalYear struct {
	ID             int64
	Name           string
	StartDate      time.Time
	EndDate        time.Time
	IsClosed       bool
	ClosingEntryID *int64
	ClosedBy       *int64
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Contains reports whether date falls inside the year, inclusive.
func (fy FiscalYear) Contains(date time.Time) bool {
	date = shared.DateOnly(date)
	return !date.Before(fy.StartDate) && !date.After(fy.EndDate)
}

// CreateInput carries a new fiscal year.
type CreateInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	ActorID   int64
}

// Validate ensures the window is well formed.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.Validationf("fiscal year name required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return shared.Validationf("fiscal year start and end dates required")
	}
	if shared.DateOnly(in.EndDate).Before(shared.DateOnly(in.StartDate)) {
		return shared.Validationf("fiscal year ends before it starts")
	}
	return nil
}

// CloseInput identifies the year to close.
type CloseInput struct {
	FiscalYearID int64
	ActorID      int64
}

// CloseMark is applied only while the year is still open.
type CloseMark struct {
	FiscalYearID   int64
	ClosingEntryID *int64
	ActorID        int64
	At             time.Time
}

// ClosePreview describes the closing entry a close would post.
type ClosePreview struct {
	FiscalYear       FiscalYear
	RetainedEarnings accounts.Account
	Revenue          decimal.Decimal
	Expenses         decimal.Decimal
	NetIncome        decimal.Decimal
	Lines            []journals.LineInput
}

// CloseResult is the outcome of a successful close.
type CloseResult struct {
	FiscalYear   FiscalYear
	ClosingEntry *journals.JournalEntry
	NetIncome    decimal.Decimal
}

var (
	// ErrFiscalYearNotFound indicates a missing fiscal year.
	ErrFiscalYearNotFound = shared.Wrap(shared.ErrNotFound, "fiscal year not found")
	// ErrFiscalYearOverlap rejects intersecting windows.
	ErrFiscalYearOverlap = shared.Wrap(shared.ErrConflict, "fiscal year overlaps an existing fiscal year")
	// ErrAlreadyClosed rejects a repeated close.
	ErrAlreadyClosed = shared.Wrap(shared.ErrConflict, "fiscal year already closed")
	// ErrRetainedEarningsMissing indicates no retained earnings account is configured.
	ErrRetainedEarningsMissing = shared.Wrap(shared.ErrConflict, "retained earnings account not configured")
	// ErrCloseInProgress indicates another close holds the lock.
	ErrCloseInProgress = shared.Wrap(shared.ErrConflict, "fiscal year close already in progress, try again")
)
