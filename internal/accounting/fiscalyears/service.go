package fiscalyears

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const defaultLockTTL = 2 * time.Minute

// AuditPort records fiscal year events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// EntryWriter writes journal entries inside a caller-owned transaction.
type EntryWriter interface {
	CreateInTx(ctx context.Context, tx journals.TxRepository, in journals.CreateInput, status journals.Status) (journals.JournalEntry, error)
}

// Locker serialises closes across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// Service manages fiscal year windows and year-end closing.
type Service struct {
	repo    Repository
	entries EntryWriter
	audit   AuditPort
	locker  Locker
	lockTTL time.Duration
	now     func() time.Time
}

// NewService constructs the fiscal year manager.
func NewService(repo Repository, entries EntryWriter, audit AuditPort) *Service {
	return &Service{repo: repo, entries: entries, audit: audit, lockTTL: defaultLockTTL, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLocker guards Close with a distributed lock in addition to the row lock.
func (s *Service) WithLocker(locker Locker, ttl time.Duration) {
	s.locker = locker
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// Create stores a new fiscal year after rejecting overlapping windows.
func (s *Service) Create(ctx context.Context, in CreateInput) (FiscalYear, error) {
	if err := in.Validate(); err != nil {
		return FiscalYear{}, err
	}
	start, end := shared.DateOnly(in.StartDate), shared.DateOnly(in.EndDate)
	var fy FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		overlaps, err := tx.FiscalYearOverlaps(ctx, start, end)
		if err != nil {
			return err
		}
		if overlaps {
			return ErrFiscalYearOverlap
		}
		now := s.now()
		fy, err = tx.InsertFiscalYear(ctx, FiscalYear{
			Name:      strings.TrimSpace(in.Name),
			StartDate: start,
			EndDate:   end,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, in.ActorID, "fiscal_year.create", fy.ID, map[string]any{
		"start": fy.StartDate.Format(time.DateOnly),
		"end":   fy.EndDate.Format(time.DateOnly),
	})
	return fy, nil
}

// FindByDate returns the open fiscal year containing date.
func (s *Service) FindByDate(ctx context.Context, date time.Time) (FiscalYear, bool, error) {
	var (
		fy    FiscalYear
		found bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		fy, found, err = tx.FindOpenFiscalYearByDate(ctx, shared.DateOnly(date))
		return err
	})
	return fy, found, err
}

// Get returns a fiscal year by id.
func (s *Service) Get(ctx context.Context, id int64) (FiscalYear, error) {
	var fy FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		fy, err = tx.GetFiscalYear(ctx, id)
		return err
	})
	return fy, err
}

// List returns every fiscal year ordered by start date.
func (s *Service) List(ctx context.Context) ([]FiscalYear, error) {
	var out []FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListFiscalYears(ctx)
		return err
	})
	return out, err
}

// PreviewClose computes the closing entry without writing anything.
func (s *Service) PreviewClose(ctx context.Context, id int64) (ClosePreview, error) {
	var preview ClosePreview
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fy, err := tx.GetFiscalYear(ctx, id)
		if err != nil {
			return err
		}
		if fy.IsClosed {
			return ErrAlreadyClosed
		}
		preview, err = buildClosing(ctx, tx, fy)
		return err
	})
	return preview, err
}

// Close zeroes income and expense accounts into retained earnings with one
// posted closing entry dated the last day of the year, then marks the year
// closed. Entry and flag commit together.
func (s *Service) Close(ctx context.Context, in CloseInput) (CloseResult, error) {
	if in.FiscalYearID == 0 {
		return CloseResult{}, shared.Validationf("fiscal year id required")
	}
	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, internalShared.FiscalYearCloseLockKey(in.FiscalYearID), s.lockTTL)
		if err != nil {
			return CloseResult{}, err
		}
		if !ok {
			return CloseResult{}, ErrCloseInProgress
		}
		defer unlock()
	}

	var result CloseResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fy, err := tx.GetFiscalYearForUpdate(ctx, in.FiscalYearID)
		if err != nil {
			return err
		}
		if fy.IsClosed {
			return ErrAlreadyClosed
		}
		preview, err := buildClosing(ctx, tx, fy)
		if err != nil {
			return err
		}

		var closingID *int64
		if len(preview.Lines) > 0 {
			entry, err := s.entries.CreateInTx(ctx, tx, journals.CreateInput{
				EntryDate:   fy.EndDate,
				Reference:   fy.Name,
				Description: fmt.Sprintf("Closing entry for %s", fy.Name),
				Source:      journals.SourceClosing,
				SourceRef:   journals.SourceRef{Kind: journals.SourceKindFiscalYear, ID: fy.ID},
				ActorID:     in.ActorID,
				Lines:       preview.Lines,
			}, journals.StatusPosted)
			if err != nil {
				return err
			}
			result.ClosingEntry = &entry
			closingID = &entry.ID
		}

		now := s.now()
		ok, err := tx.MarkFiscalYearClosed(ctx, CloseMark{
			FiscalYearID:   fy.ID,
			ClosingEntryID: closingID,
			ActorID:        in.ActorID,
			At:             now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyClosed
		}
		actor := in.ActorID
		fy.IsClosed = true
		fy.ClosingEntryID = closingID
		fy.ClosedBy = &actor
		fy.ClosedAt = &now
		fy.UpdatedAt = now
		result.FiscalYear = fy
		result.NetIncome = preview.NetIncome
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}
	meta := map[string]any{"net_income": result.NetIncome.StringFixed(shared.MoneyPlaces)}
	if result.ClosingEntry != nil {
		meta["entry"] = result.ClosingEntry.Number
	}
	s.record(ctx, in.ActorID, "fiscal_year.close", result.FiscalYear.ID, meta)
	return result, nil
}

// buildClosing derives the closing lines from income and expense activity
// over the year. Accounts without movement are skipped; a year without any
// income or expense activity produces no lines.
func buildClosing(ctx context.Context, tx TxRepository, fy FiscalYear) (ClosePreview, error) {
	re, found, err := tx.FindAccountBySubtype(ctx, accounts.SubtypeRetainedEarnings)
	if err != nil {
		return ClosePreview{}, err
	}
	if !found {
		return ClosePreview{}, ErrRetainedEarningsMissing
	}
	income, err := balances.ActivityByType(ctx, tx, accounts.AccountTypeIncome, fy.StartDate, fy.EndDate)
	if err != nil {
		return ClosePreview{}, err
	}
	expenses, err := balances.ActivityByType(ctx, tx, accounts.AccountTypeExpense, fy.StartDate, fy.EndDate)
	if err != nil {
		return ClosePreview{}, err
	}

	preview := ClosePreview{FiscalYear: fy, RetainedEarnings: re, Revenue: decimal.Zero, Expenses: decimal.Zero}
	for _, act := range income {
		if act.Net.IsZero() {
			continue
		}
		preview.Revenue = preview.Revenue.Add(act.Net)
		preview.Lines = append(preview.Lines, closingLine(act, accounts.SideDebit))
	}
	for _, act := range expenses {
		if act.Net.IsZero() {
			continue
		}
		preview.Expenses = preview.Expenses.Add(act.Net)
		preview.Lines = append(preview.Lines, closingLine(act, accounts.SideCredit))
	}
	if len(preview.Lines) == 0 {
		preview.NetIncome = decimal.Zero
		return preview, nil
	}

	preview.NetIncome = preview.Revenue.Sub(preview.Expenses)
	description := fmt.Sprintf("Net result %s", fy.Name)
	switch {
	case preview.NetIncome.IsPositive():
		preview.Lines = append(preview.Lines, journals.LineInput{AccountID: re.ID, Credit: preview.NetIncome, Description: description})
	case preview.NetIncome.IsNegative():
		preview.Lines = append(preview.Lines, journals.LineInput{AccountID: re.ID, Debit: preview.NetIncome.Neg(), Description: description})
	}
	return preview, nil
}

// closingLine zeroes an account's net activity. A positive net lands on the
// reducing side; contra balances flip to the other one.
func closingLine(act balances.Activity, reducing accounts.Side) journals.LineInput {
	line := journals.LineInput{
		AccountID:   act.Account.ID,
		Description: fmt.Sprintf("Close %s %s", act.Account.Code, act.Account.Name),
	}
	amount := act.Net.Abs()
	side := reducing
	if act.Net.IsNegative() {
		if side == accounts.SideDebit {
			side = accounts.SideCredit
		} else {
			side = accounts.SideDebit
		}
	}
	if side == accounts.SideDebit {
		line.Debit = amount
	} else {
		line.Credit = amount
	}
	return line
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "fiscal_year",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
