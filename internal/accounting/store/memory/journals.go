package memory

import (
	"context"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func (t *tx) FiscalYearStatusOn(_ context.Context, date time.Time) (journals.FiscalYearStatus, error) {
	for _, fy := range t.st.fiscalYears {
		if fy.Contains(date) {
			return journals.FiscalYearStatus{ID: fy.ID, Found: true, Closed: fy.IsClosed}, nil
		}
	}
	return journals.FiscalYearStatus{}, nil
}

func (t *tx) NextEntrySequence(_ context.Context, year int) (int64, error) {
	t.st.sequences[year]++
	return t.st.sequences[year], nil
}

func (t *tx) InsertEntry(_ context.Context, entry journals.JournalEntry) (journals.JournalEntry, error) {
	if _, taken := t.st.numbers[entry.Number]; taken {
		return journals.JournalEntry{}, shared.ErrEntryNumberTaken
	}
	entry.ID = t.st.nextID()
	entry.Lines = nil
	t.st.entries[entry.ID] = entry
	t.st.numbers[entry.Number] = entry.ID
	return entry, nil
}

func (t *tx) InsertLines(_ context.Context, entryID int64, lines []journals.JournalLine) error {
	if _, ok := t.st.entries[entryID]; !ok {
		return shared.ErrJournalNotFound
	}
	stored := make([]journals.JournalLine, 0, len(lines))
	for _, line := range lines {
		line.ID = t.st.nextID()
		line.EntryID = entryID
		stored = append(stored, line)
	}
	t.st.lines[entryID] = append(append([]journals.JournalLine(nil), t.st.lines[entryID]...), stored...)
	return nil
}

func (t *tx) SourceLinked(_ context.Context, ref journals.SourceRef) (bool, error) {
	_, ok := t.st.sourceLinks[ref]
	return ok, nil
}

func (t *tx) LinkSource(_ context.Context, ref journals.SourceRef, entryID int64) error {
	if _, ok := t.st.sourceLinks[ref]; ok {
		return shared.ErrSourceAlreadyLinked
	}
	t.st.sourceLinks[ref] = entryID
	return nil
}

func (t *tx) GetEntry(_ context.Context, id int64) (journals.JournalEntry, error) {
	entry, ok := t.st.entries[id]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	entry.Lines = t.entryLines(id)
	return entry, nil
}

func (t *tx) GetEntryForUpdate(ctx context.Context, id int64) (journals.JournalEntry, error) {
	return t.GetEntry(ctx, id)
}

func (t *tx) HasLiveReversal(_ context.Context, id int64) (bool, error) {
	for _, entry := range t.st.entries {
		if entry.ReversalOfID != nil && *entry.ReversalOfID == id && entry.Status != journals.StatusVoid {
			return true, nil
		}
	}
	return false, nil
}

// ListEntries returns headers only, newest first.
func (t *tx) ListEntries(_ context.Context, filter journals.ListFilter) ([]journals.JournalEntry, error) {
	out := make([]journals.JournalEntry, 0)
	for _, entry := range t.st.entries {
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		if filter.Source != "" && entry.Source != filter.Source {
			continue
		}
		if filter.From != nil && entry.EntryDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && entry.EntryDate.After(*filter.To) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.After(out[j].EntryDate)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []journals.JournalEntry{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *tx) UpdateEntryStatus(_ context.Context, change journals.StatusChange) (bool, error) {
	entry, ok := t.st.entries[change.EntryID]
	if !ok {
		return false, shared.ErrJournalNotFound
	}
	if entry.Status != change.From {
		return false, nil
	}
	at, actor := change.At, change.ActorID
	entry.Status = change.To
	entry.UpdatedAt = at
	switch change.To {
	case journals.StatusPosted:
		entry.PostedBy = &actor
		entry.PostedAt = &at
	case journals.StatusVoid:
		entry.VoidedBy = &actor
		entry.VoidedAt = &at
		entry.VoidReason = change.Reason
	}
	t.st.entries[entry.ID] = entry
	return true, nil
}

func (t *tx) entryLines(entryID int64) []journals.JournalLine {
	lines := append([]journals.JournalLine(nil), t.st.lines[entryID]...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].LineOrder < lines[j].LineOrder })
	return lines
}
