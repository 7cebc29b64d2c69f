package memory

import (
	"context"
	"sort"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

// postedLines visits every line of a posted entry dated inside r.
func (t *tx) postedLines(r balances.Range, visit func(journals.JournalEntry, journals.JournalLine)) {
	for id, entry := range t.st.entries {
		if entry.Status != journals.StatusPosted || !r.Contains(entry.EntryDate) {
			continue
		}
		for _, line := range t.st.lines[id] {
			visit(entry, line)
		}
	}
}

func (t *tx) SumPostedLines(_ context.Context, accountID int64, r balances.Range) (balances.Totals, error) {
	var totals balances.Totals
	t.postedLines(r, func(_ journals.JournalEntry, line journals.JournalLine) {
		if line.AccountID == accountID {
			totals = totals.Add(balances.Totals{Debit: line.Debit, Credit: line.Credit})
		}
	})
	return totals, nil
}

func (t *tx) SumPostedLinesByAccount(_ context.Context, r balances.Range) (map[int64]balances.Totals, error) {
	out := map[int64]balances.Totals{}
	t.postedLines(r, func(_ journals.JournalEntry, line journals.JournalLine) {
		out[line.AccountID] = out[line.AccountID].Add(balances.Totals{Debit: line.Debit, Credit: line.Credit})
	})
	return out, nil
}

func (t *tx) ListPostedLines(_ context.Context, accountID int64, r balances.Range) ([]balances.PostedLine, error) {
	type keyed struct {
		line  balances.PostedLine
		order int
	}
	var rows []keyed
	t.postedLines(r, func(entry journals.JournalEntry, line journals.JournalLine) {
		if line.AccountID != accountID {
			return
		}
		description := line.Description
		if description == "" {
			description = entry.Description
		}
		rows = append(rows, keyed{order: line.LineOrder, line: balances.PostedLine{
			EntryID:     entry.ID,
			EntryNumber: entry.Number,
			EntryDate:   entry.EntryDate,
			Reference:   entry.Reference,
			Description: description,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
		}})
	})
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.line.EntryDate.Equal(b.line.EntryDate) {
			return a.line.EntryDate.Before(b.line.EntryDate)
		}
		if a.line.EntryID != b.line.EntryID {
			return a.line.EntryID < b.line.EntryID
		}
		return a.order < b.order
	})
	out := make([]balances.PostedLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.line)
	}
	return out, nil
}
