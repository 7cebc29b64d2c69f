package journals

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Repository abstracts transactional access to journal storage.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. Other ledger
// components embed it when they need to write entries atomically with their
// own state.
type TxRepository interface {
	GetAccount(ctx context.Context, id int64) (accounts.Account, error)
	FiscalYearStatusOn(ctx context.Context, date time.Time) (FiscalYearStatus, error)

	// NextEntrySequence atomically increments and returns the counter for year.
	NextEntrySequence(ctx context.Context, year int) (int64, error)
	// InsertEntry stores the header. It returns shared.ErrEntryNumberTaken
	// without aborting the transaction when the number already exists.
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error
	SourceLinked(ctx context.Context, ref SourceRef) (bool, error)
	LinkSource(ctx context.Context, ref SourceRef, entryID int64) error

	GetEntry(ctx context.Context, id int64) (JournalEntry, error)
	GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, error)
	// HasLiveReversal reports whether a non-void entry reverses id.
	HasLiveReversal(ctx context.Context, id int64) (bool, error)
	// UpdateEntryStatus applies change only if the entry still has change.From.
	UpdateEntryStatus(ctx context.Context, change StatusChange) (bool, error)
}
