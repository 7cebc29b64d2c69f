package recurring

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Frequency enumerates recurrence rules.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// Template is a journal entry blueprint with a recurrence rule. NextRunDate
// is the cursor advanced every time the template fires.
type Template struct {
	ID             int64
	Name           string
	Description    string
	Reference      string
	Frequency      Frequency
	DayOfWeek      *int
	DayOfMonth     *int
	MonthOfYear    *int
	StartDate      time.Time
	EndDate        *time.Time
	NextRunDate    time.Time
	LastRunDate    *time.Time
	MaxOccurrences *int
	Occurrences    int
	IsActive       bool
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []TemplateLine
}

// TemplateLine is one line of the entry blueprint.
type TemplateLine struct {
	ID          int64
	TemplateID  int64
	AccountID   int64
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	LineOrder   int
}

// Amount is the debit total of one occurrence.
func (t Template) Amount() decimal.Decimal {
	total := decimal.Zero
	for _, line := range t.Lines {
		total = total.Add(line.Debit)
	}
	return total
}

// CheckEligible reports why the template cannot fire as of today, if at all.
// Timing against NextRunDate is not part of eligibility.
func (t Template) CheckEligible(today time.Time) error {
	today = shared.DateOnly(today)
	if !t.IsActive {
		return ErrTemplateInactive
	}
	if t.EndDate != nil && (t.EndDate.Before(today) || t.NextRunDate.After(*t.EndDate)) {
		return ErrTemplateExpired
	}
	if t.MaxOccurrences != nil && t.Occurrences >= *t.MaxOccurrences {
		return ErrTemplateExhausted
	}
	return nil
}

func (t Template) entryLines() []journals.LineInput {
	out := make([]journals.LineInput, 0, len(t.Lines))
	for _, line := range t.Lines {
		out = append(out, journals.LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return out
}

// Run records one materialised occurrence. (TemplateID, RunDate) is unique.
type Run struct {
	TemplateID int64
	RunDate    time.Time
	RunKey     uuid.UUID
	EntryID    int64
	CreatedAt  time.Time
}

// RunKey derives the stable key of a template occurrence.
func RunKey(templateID int64, runDate time.Time) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("RECURRING:%d:%s", templateID, runDate.Format(time.DateOnly))))
}

// Advance moves the cursor only while it still points at ExpectedNext.
type Advance struct {
	TemplateID   int64
	ExpectedNext time.Time
	LastRun      time.Time
	NextRun      time.Time
	Occurrences  int
	At           time.Time
}

// RunResult is the outcome of one template within a batch.
type RunResult struct {
	TemplateID int64
	Name       string
	RunDate    time.Time
	Entry      *journals.JournalEntry
	Err        error
}

// OK reports whether an entry was generated.
func (r RunResult) OK() bool {
	return r.Err == nil && r.Entry != nil
}

// Summarize counts generated and failed results.
func Summarize(results []RunResult) (generated, failed int) {
	for _, res := range results {
		if res.OK() {
			generated++
		} else {
			failed++
		}
	}
	return generated, failed
}

// Preview describes an occurrence a generation pass would materialise.
type Preview struct {
	TemplateID  int64
	Name        string
	RunDate     time.Time
	NextRunDate time.Time
	Amount      decimal.Decimal
}

// TemplateFilter narrows template listings.
type TemplateFilter struct {
	ActiveOnly bool
}

var (
	// ErrTemplateNotFound indicates a missing template.
	ErrTemplateNotFound = shared.Wrap(shared.ErrNotFound, "recurring template not found")
	// ErrTemplateInactive rejects runs of a disabled template.
	ErrTemplateInactive = shared.Wrap(shared.ErrInvalidState, "recurring template inactive")
	// ErrTemplateExpired rejects runs past the end date.
	ErrTemplateExpired = shared.Wrap(shared.ErrInvalidState, "recurring template past its end date")
	// ErrTemplateExhausted rejects runs once max occurrences is reached.
	ErrTemplateExhausted = shared.Wrap(shared.ErrInvalidState, "recurring template reached max occurrences")
	// ErrNotDue indicates the cursor already moved past today.
	ErrNotDue = shared.Wrap(shared.ErrConflict, "recurring template no longer due, try again")
	// ErrAlreadyGenerated guards the (template, date) pair.
	ErrAlreadyGenerated = shared.Wrap(shared.ErrConflict, "recurring entry already generated for this date")
	// ErrRunInProgress indicates another generation pass holds the lock.
	ErrRunInProgress = shared.Wrap(shared.ErrConflict, "recurring generation already in progress, try again")
)
