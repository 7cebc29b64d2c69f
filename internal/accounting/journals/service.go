package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// numberAttempts bounds entry number allocation when stored numbers collide.
const numberAttempts = 3

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service coordinates creating, posting, voiding, and reversing journal entries.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create stores a manual entry as a draft.
func (s *Service) Create(ctx context.Context, in CreateInput) (JournalEntry, error) {
	if in.Source == "" {
		in.Source = SourceManual
	}
	return s.create(ctx, in, StatusDraft)
}

// CreatePosted stores a business-event entry directly in posted status.
func (s *Service) CreatePosted(ctx context.Context, in CreateInput) (JournalEntry, error) {
	return s.create(ctx, in, StatusPosted)
}

func (s *Service) create(ctx context.Context, in CreateInput, status Status) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.CreateInTx(ctx, tx, in, status)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.ActorID, "journal.create", entry, map[string]any{
		"status": string(entry.Status),
		"source": string(entry.Source),
		"ref":    entry.SourceRef.String(),
	})
	return entry, nil
}

// CreateInTx validates and writes an entry inside a transaction owned by the
// caller, so closing and recurring runs commit their own state atomically with
// the entry. Posted entries are stamped with the actor and clock.
func (s *Service) CreateInTx(ctx context.Context, tx TxRepository, in CreateInput, status Status) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if in.Source == "" {
		in.Source = SourceManual
	}
	if err := ensureAccountsUsable(ctx, tx, in.Lines); err != nil {
		return JournalEntry{}, err
	}
	fy, err := tx.FiscalYearStatusOn(ctx, in.EntryDate)
	if err != nil {
		return JournalEntry{}, err
	}
	if fy.Found && fy.Closed {
		return JournalEntry{}, shared.ErrFiscalYearClosed
	}
	if !in.SourceRef.IsZero() {
		linked, err := tx.SourceLinked(ctx, in.SourceRef)
		if err != nil {
			return JournalEntry{}, err
		}
		if linked {
			return JournalEntry{}, shared.ErrSourceAlreadyLinked
		}
	}

	lines := in.lines()
	debit, credit := Totals(lines)
	now := s.now()
	entry := JournalEntry{
		EntryDate:    shared.DateOnly(in.EntryDate),
		Reference:    strings.TrimSpace(in.Reference),
		Description:  strings.TrimSpace(in.Description),
		Status:       status,
		Source:       in.Source,
		SourceRef:    in.SourceRef,
		ReversalOfID: in.ReversalOfID,
		TotalDebit:   debit,
		TotalCredit:  credit,
		CreatedBy:    in.ActorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if fy.Found {
		id := fy.ID
		entry.FiscalYearID = &id
	}
	if status == StatusPosted {
		actor := in.ActorID
		entry.PostedBy = &actor
		entry.PostedAt = &now
	}

	inserted, err := s.insertNumbered(ctx, tx, entry)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
		return JournalEntry{}, err
	}
	if !in.SourceRef.IsZero() {
		if err := tx.LinkSource(ctx, in.SourceRef, inserted.ID); err != nil {
			return JournalEntry{}, err
		}
	}
	for i := range lines {
		lines[i].EntryID = inserted.ID
	}
	inserted.Lines = lines
	return inserted, nil
}

// insertNumbered allocates the next number for the entry year and retries
// with a fresh number when the stored one is already taken.
func (s *Service) insertNumbered(ctx context.Context, tx TxRepository, entry JournalEntry) (JournalEntry, error) {
	year := entry.EntryDate.Year()
	for attempt := 0; attempt < numberAttempts; attempt++ {
		seq, err := tx.NextEntrySequence(ctx, year)
		if err != nil {
			return JournalEntry{}, err
		}
		entry.Number = FormatNumber(year, seq)
		inserted, err := tx.InsertEntry(ctx, entry)
		if errors.Is(err, shared.ErrEntryNumberTaken) {
			continue
		}
		return inserted, err
	}
	return JournalEntry{}, shared.ErrEntryNumberTaken
}

// Post transitions a draft to posted after re-validating it.
func (s *Service) Post(ctx context.Context, in PostInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, shared.Validationf("entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, in.EntryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrNotDraft
		}
		if !current.IsBalanced() {
			return shared.ErrUnbalanced
		}
		if err := ensureAccountsUsable(ctx, tx, toInputs(current.Lines)); err != nil {
			return err
		}
		if err := ensureYearOpen(ctx, tx, current.EntryDate); err != nil {
			return err
		}
		now := s.now()
		ok, err := tx.UpdateEntryStatus(ctx, StatusChange{
			EntryID: current.ID,
			From:    StatusDraft,
			To:      StatusPosted,
			ActorID: in.ActorID,
			At:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrStatusChanged
		}
		actor := in.ActorID
		current.Status = StatusPosted
		current.PostedBy = &actor
		current.PostedAt = &now
		current.UpdatedAt = now
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.ActorID, "journal.post", entry, nil)
	return entry, nil
}

// Void marks a posted entry as void. The entry is retained for audit.
func (s *Service) Void(ctx context.Context, in VoidInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, shared.Validationf("entry id required")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return JournalEntry{}, shared.Validationf("void reason required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, in.EntryID)
		if err != nil {
			return err
		}
		if current.Status != StatusPosted {
			return shared.ErrNotPosted
		}
		if err := ensureYearOpen(ctx, tx, current.EntryDate); err != nil {
			return err
		}
		now := s.now()
		ok, err := tx.UpdateEntryStatus(ctx, StatusChange{
			EntryID: current.ID,
			From:    StatusPosted,
			To:      StatusVoid,
			ActorID: in.ActorID,
			At:      now,
			Reason:  reason,
		})
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrStatusChanged
		}
		actor := in.ActorID
		current.Status = StatusVoid
		current.VoidedBy = &actor
		current.VoidedAt = &now
		current.VoidReason = reason
		current.UpdatedAt = now
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.ActorID, "journal.void", entry, map[string]any{"reason": reason})
	return entry, nil
}

// CreateReversingEntry drafts an entry with every line's sides swapped. The
// caller posts it separately after review. An entry has at most one reversal
// that is not void.
func (s *Service) CreateReversingEntry(ctx context.Context, in ReverseInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, shared.Validationf("entry id required")
	}
	date := shared.DateOnly(s.now())
	if in.Date != nil {
		date = shared.DateOnly(*in.Date)
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, in.EntryID)
		if err != nil {
			return err
		}
		if original.Status != StatusPosted {
			return shared.ErrNotPosted
		}
		reversed, err := tx.HasLiveReversal(ctx, original.ID)
		if err != nil {
			return err
		}
		if reversed {
			return shared.ErrAlreadyReversed
		}
		originalID := original.ID
		description := strings.TrimSpace(in.Description)
		if description == "" {
			description = fmt.Sprintf("Reversal of %s", original.Number)
		}
		reversal, err = s.CreateInTx(ctx, tx, CreateInput{
			EntryDate:    date,
			Reference:    original.Number,
			Description:  description,
			Source:       SourceAdjustment,
			ReversalOfID: &originalID,
			ActorID:      in.ActorID,
			Lines:        reverseLines(original.Lines),
		}, StatusDraft)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.ActorID, "journal.reverse", reversal, map[string]any{"reversal_of": in.EntryID})
	return reversal, nil
}

// Get returns an entry with its lines.
func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetEntry(ctx, id)
		return err
	})
	return entry, err
}

// List retrieves entry headers matching filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListEntries(ctx, filter)
		return err
	})
	return entries, err
}

func ensureAccountsUsable(ctx context.Context, tx TxRepository, lines []LineInput) error {
	checked := make(map[int64]bool, len(lines))
	for _, line := range lines {
		if checked[line.AccountID] {
			continue
		}
		checked[line.AccountID] = true
		account, err := tx.GetAccount(ctx, line.AccountID)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return fmt.Errorf("%w: %s", shared.ErrAccountInactive, account.Code)
		}
	}
	return nil
}

func ensureYearOpen(ctx context.Context, tx TxRepository, date time.Time) error {
	fy, err := tx.FiscalYearStatusOn(ctx, date)
	if err != nil {
		return err
	}
	if fy.Found && fy.Closed {
		return shared.ErrFiscalYearClosed
	}
	return nil
}

func reverseLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func toInputs(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit})
	}
	return out
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entry JournalEntry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = entry.Number
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     meta,
		At:       s.now(),
	})
}
