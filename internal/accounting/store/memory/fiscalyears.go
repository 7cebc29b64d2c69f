package memory

import (
	"context"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
)

func (t *tx) InsertFiscalYear(ctx context.Context, fy fiscalyears.FiscalYear) (fiscalyears.FiscalYear, error) {
	overlaps, err := t.FiscalYearOverlaps(ctx, fy.StartDate, fy.EndDate)
	if err != nil {
		return fiscalyears.FiscalYear{}, err
	}
	if overlaps {
		return fiscalyears.FiscalYear{}, fiscalyears.ErrFiscalYearOverlap
	}
	fy.ID = t.st.nextID()
	t.st.fiscalYears[fy.ID] = fy
	return fy, nil
}

func (t *tx) FiscalYearOverlaps(_ context.Context, start, end time.Time) (bool, error) {
	for _, fy := range t.st.fiscalYears {
		if !fy.StartDate.After(end) && !fy.EndDate.Before(start) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) GetFiscalYear(_ context.Context, id int64) (fiscalyears.FiscalYear, error) {
	fy, ok := t.st.fiscalYears[id]
	if !ok {
		return fiscalyears.FiscalYear{}, fiscalyears.ErrFiscalYearNotFound
	}
	return fy, nil
}

func (t *tx) GetFiscalYearForUpdate(ctx context.Context, id int64) (fiscalyears.FiscalYear, error) {
	return t.GetFiscalYear(ctx, id)
}

func (t *tx) FindOpenFiscalYearByDate(_ context.Context, date time.Time) (fiscalyears.FiscalYear, bool, error) {
	for _, fy := range t.st.fiscalYears {
		if !fy.IsClosed && fy.Contains(date) {
			return fy, true, nil
		}
	}
	return fiscalyears.FiscalYear{}, false, nil
}

func (t *tx) ListFiscalYears(_ context.Context) ([]fiscalyears.FiscalYear, error) {
	out := make([]fiscalyears.FiscalYear, 0, len(t.st.fiscalYears))
	for _, fy := range t.st.fiscalYears {
		out = append(out, fy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (t *tx) MarkFiscalYearClosed(_ context.Context, mark fiscalyears.CloseMark) (bool, error) {
	fy, ok := t.st.fiscalYears[mark.FiscalYearID]
	if !ok {
		return false, fiscalyears.ErrFiscalYearNotFound
	}
	if fy.IsClosed {
		return false, nil
	}
	actor, at := mark.ActorID, mark.At
	fy.IsClosed = true
	fy.ClosingEntryID = mark.ClosingEntryID
	fy.ClosedBy = &actor
	fy.ClosedAt = &at
	fy.UpdatedAt = at
	t.st.fiscalYears[fy.ID] = fy
	return true, nil
}
