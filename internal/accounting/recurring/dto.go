package recurring

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// CreateTemplateInput carries a new recurring template.
type CreateTemplateInput struct {
	Name           string
	Description    string
	Reference      string
	Frequency      Frequency
	DayOfWeek      *int
	DayOfMonth     *int
	MonthOfYear    *int
	StartDate      time.Time
	EndDate        *time.Time
	MaxOccurrences *int
	ActorID        int64
	Lines          []journals.LineInput
}

// Validate checks the rule fields and that the line template balances.
func (in CreateTemplateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.Validationf("template name required")
	}
	if !in.Frequency.Valid() {
		return shared.Validationf("unknown frequency %q", in.Frequency)
	}
	if in.DayOfWeek != nil && (*in.DayOfWeek < 0 || *in.DayOfWeek > 6) {
		return shared.Validationf("day_of_week must be between 0 and 6")
	}
	if in.DayOfMonth != nil && (*in.DayOfMonth < 1 || *in.DayOfMonth > 31) {
		return shared.Validationf("day_of_month must be between 1 and 31")
	}
	if in.MonthOfYear != nil && (*in.MonthOfYear < 1 || *in.MonthOfYear > 12) {
		return shared.Validationf("month_of_year must be between 1 and 12")
	}
	if in.StartDate.IsZero() {
		return shared.Validationf("start date required")
	}
	if in.EndDate != nil && shared.DateOnly(*in.EndDate).Before(shared.DateOnly(in.StartDate)) {
		return shared.Validationf("end date before start date")
	}
	if in.MaxOccurrences != nil && *in.MaxOccurrences < 1 {
		return shared.Validationf("max occurrences must be positive")
	}
	return journals.CreateInput{EntryDate: in.StartDate, Lines: in.Lines}.Validate()
}

func (in CreateTemplateInput) template(now time.Time) Template {
	tpl := Template{
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		Reference:      strings.TrimSpace(in.Reference),
		Frequency:      in.Frequency,
		DayOfWeek:      in.DayOfWeek,
		DayOfMonth:     in.DayOfMonth,
		MonthOfYear:    in.MonthOfYear,
		StartDate:      shared.DateOnly(in.StartDate),
		MaxOccurrences: in.MaxOccurrences,
		IsActive:       true,
		CreatedBy:      in.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.EndDate != nil {
		end := shared.DateOnly(*in.EndDate)
		tpl.EndDate = &end
	}
	for idx, line := range in.Lines {
		tpl.Lines = append(tpl.Lines, TemplateLine{
			AccountID:   line.AccountID,
			Description: strings.TrimSpace(line.Description),
			Debit:       line.Debit,
			Credit:      line.Credit,
			LineOrder:   idx + 1,
		})
	}
	tpl.NextRunDate = FirstRunDate(tpl)
	return tpl
}
