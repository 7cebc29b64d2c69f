package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const defaultLockTTL = 5 * time.Minute

// AuditPort records scheduler events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// EntryWriter writes journal entries inside a caller-owned transaction.
type EntryWriter interface {
	CreateInTx(ctx context.Context, tx journals.TxRepository, in journals.CreateInput, status journals.Status) (journals.JournalEntry, error)
}

// Locker serialises generation passes across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// Service materialises journal entries from recurring templates.
type Service struct {
	repo    Repository
	entries EntryWriter
	audit   AuditPort
	locker  Locker
	lockTTL time.Duration
	now     func() time.Time
}

// NewService constructs the scheduler.
func NewService(repo Repository, entries EntryWriter, audit AuditPort) *Service {
	return &Service{repo: repo, entries: entries, audit: audit, lockTTL: defaultLockTTL, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLocker guards GenerateDue with a per-day distributed lock.
func (s *Service) WithLocker(locker Locker, ttl time.Duration) {
	s.locker = locker
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// CreateTemplate stores a template with its cursor aligned to the first run.
func (s *Service) CreateTemplate(ctx context.Context, in CreateTemplateInput) (Template, error) {
	if err := in.Validate(); err != nil {
		return Template{}, err
	}
	var tpl Template
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, line := range in.Lines {
			account, err := tx.GetAccount(ctx, line.AccountID)
			if err != nil {
				return err
			}
			if !account.IsActive {
				return fmt.Errorf("%w: %s", shared.ErrAccountInactive, account.Code)
			}
		}
		var err error
		tpl, err = tx.InsertTemplate(ctx, in.template(s.now()))
		return err
	})
	if err != nil {
		return Template{}, err
	}
	s.record(ctx, in.ActorID, "recurring.create", tpl.ID, map[string]any{
		"frequency": string(tpl.Frequency),
		"next_run":  tpl.NextRunDate.Format(time.DateOnly),
	})
	return tpl, nil
}

// SetActive toggles a template. Inactive templates never fire.
func (s *Service) SetActive(ctx context.Context, id int64, active bool, actorID int64) (Template, error) {
	var tpl Template
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTemplateForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.SetTemplateActive(ctx, id, active, now); err != nil {
			return err
		}
		current.IsActive = active
		current.UpdatedAt = now
		tpl = current
		return nil
	})
	if err != nil {
		return Template{}, err
	}
	s.record(ctx, actorID, "recurring.toggle", id, map[string]any{"active": active})
	return tpl, nil
}

// Get returns a template with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Template, error) {
	var tpl Template
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		tpl, err = tx.GetTemplate(ctx, id)
		return err
	})
	return tpl, err
}

// List returns templates matching filter.
func (s *Service) List(ctx context.Context, filter TemplateFilter) ([]Template, error) {
	var out []Template
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListTemplates(ctx, filter)
		return err
	})
	return out, err
}

// PreviewDue performs the due selection of GenerateDue without writing.
func (s *Service) PreviewDue(ctx context.Context, today time.Time) ([]Preview, error) {
	due, err := s.due(ctx, today)
	if err != nil {
		return nil, err
	}
	today = shared.DateOnly(today)
	out := make([]Preview, 0, len(due))
	for _, tpl := range due {
		for dueOn(tpl, today) {
			next := NextRunDate(tpl, tpl.NextRunDate)
			out = append(out, Preview{
				TemplateID:  tpl.ID,
				Name:        tpl.Name,
				RunDate:     tpl.NextRunDate,
				NextRunDate: next,
				Amount:      tpl.Amount(),
			})
			if !next.After(tpl.NextRunDate) {
				break
			}
			tpl.NextRunDate = next
			tpl.Occurrences++
		}
	}
	return out, nil
}

// dueOn reports whether the template's cursor should fire as of today.
func dueOn(tpl Template, today time.Time) bool {
	return !tpl.NextRunDate.After(today) && tpl.CheckEligible(today) == nil
}

// GenerateDue materialises every occurrence of every eligible template whose
// cursor is on or before today, each dated at its own scheduled run date, so
// a second pass for the same day finds nothing left. Each occurrence runs in
// its own transaction and one template failing never blocks the others; the
// error return covers only the selection itself.
func (s *Service) GenerateDue(ctx context.Context, today time.Time) ([]RunResult, error) {
	today = shared.DateOnly(today)
	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, internalShared.RecurringRunLockKey(today), s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer unlock()
	}
	due, err := s.due(ctx, today)
	if err != nil {
		return nil, err
	}
	results := make([]RunResult, 0, len(due))
	for _, tpl := range due {
		for {
			if err := ctx.Err(); err != nil {
				results = append(results, RunResult{TemplateID: tpl.ID, Name: tpl.Name, RunDate: tpl.NextRunDate, Err: err})
				break
			}
			res, advanced := s.materialize(ctx, tpl.ID, today, true, tpl.CreatedBy)
			results = append(results, res)
			if !res.OK() || !dueOn(advanced, today) {
				break
			}
		}
	}
	return results, nil
}

// RunNow fires a template immediately regardless of its cursor. Eligibility
// still applies.
func (s *Service) RunNow(ctx context.Context, id int64, actorID int64) (RunResult, error) {
	res, _ := s.materialize(ctx, id, shared.DateOnly(s.now()), false, actorID)
	return res, res.Err
}

func (s *Service) due(ctx context.Context, today time.Time) ([]Template, error) {
	today = shared.DateOnly(today)
	var out []Template
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		candidates, err := tx.ListDueTemplates(ctx, today)
		if err != nil {
			return err
		}
		for _, tpl := range candidates {
			if tpl.NextRunDate.After(today) || tpl.CheckEligible(today) != nil {
				continue
			}
			out = append(out, tpl)
		}
		return nil
	})
	return out, err
}

// materialize posts the occurrence at the template cursor, records the run,
// and advances the cursor in one transaction. It returns the template as
// advanced.
func (s *Service) materialize(ctx context.Context, id int64, today time.Time, requireDue bool, actorID int64) (RunResult, Template) {
	result := RunResult{TemplateID: id}
	var advanced Template
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tpl, err := tx.GetTemplateForUpdate(ctx, id)
		if err != nil {
			return err
		}
		result.Name = tpl.Name
		result.RunDate = tpl.NextRunDate
		if requireDue && tpl.NextRunDate.After(today) {
			return ErrNotDue
		}
		if err := tpl.CheckEligible(today); err != nil {
			return err
		}

		description := tpl.Description
		if description == "" {
			description = tpl.Name
		}
		reference := tpl.Reference
		if reference == "" {
			reference = fmt.Sprintf("RJE-%d", tpl.ID)
		}
		entry, err := s.entries.CreateInTx(ctx, tx, journals.CreateInput{
			EntryDate:   tpl.NextRunDate,
			Reference:   reference,
			Description: description,
			Source:      journals.SourceRecurring,
			ActorID:     actorID,
			Lines:       tpl.entryLines(),
		}, journals.StatusPosted)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.InsertRun(ctx, Run{
			TemplateID: tpl.ID,
			RunDate:    tpl.NextRunDate,
			RunKey:     RunKey(tpl.ID, tpl.NextRunDate),
			EntryID:    entry.ID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		step := Advance{
			TemplateID:   tpl.ID,
			ExpectedNext: tpl.NextRunDate,
			LastRun:      tpl.NextRunDate,
			NextRun:      NextRunDate(tpl, tpl.NextRunDate),
			Occurrences:  tpl.Occurrences + 1,
			At:           now,
		}
		ok, err := tx.AdvanceTemplate(ctx, step)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyGenerated
		}
		advanced = tpl
		advanced.LastRunDate = &step.LastRun
		advanced.NextRunDate = step.NextRun
		advanced.Occurrences = step.Occurrences
		result.Entry = &entry
		return nil
	})
	if err != nil {
		result.Entry = nil
		result.Err = err
		return result, Template{}
	}
	s.record(ctx, actorID, "recurring.run", id, map[string]any{
		"run_date": result.RunDate.Format(time.DateOnly),
		"entry":    result.Entry.Number,
	})
	return result, advanced
}

// IsSkip reports whether a run result failed only because the occurrence was
// already handled elsewhere.
func IsSkip(err error) bool {
	return errors.Is(err, ErrAlreadyGenerated) || errors.Is(err, ErrNotDue)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "recurring_template",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
