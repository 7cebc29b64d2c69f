package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const entryColumns = `id, entry_number, entry_date, fiscal_year_id, reference, description, status, source,
	source_type, source_id, reversal_of_id, total_debit::text, total_credit::text, created_by,
	posted_by, posted_at, voided_by, voided_at, void_reason, created_at, updated_at`

func scanEntry(row pgx.Row) (journals.JournalEntry, error) {
	var (
		entry         journals.JournalEntry
		status        string
		source        string
		sourceType    string
		debit, credit string
	)
	if err := row.Scan(&entry.ID, &entry.Number, &entry.EntryDate, &entry.FiscalYearID, &entry.Reference,
		&entry.Description, &status, &source, &sourceType, &entry.SourceRef.ID, &entry.ReversalOfID,
		&debit, &credit, &entry.CreatedBy, &entry.PostedBy, &entry.PostedAt, &entry.VoidedBy,
		&entry.VoidedAt, &entry.VoidReason, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return journals.JournalEntry{}, err
	}
	entry.Status = journals.Status(status)
	entry.Source = journals.Source(source)
	entry.SourceRef.Kind = journals.SourceKind(sourceType)
	var err error
	if entry.TotalDebit, err = parseDecimal(debit); err != nil {
		return journals.JournalEntry{}, err
	}
	if entry.TotalCredit, err = parseDecimal(credit); err != nil {
		return journals.JournalEntry{}, err
	}
	return entry, nil
}

func (t *tx) FiscalYearStatusOn(ctx context.Context, date time.Time) (journals.FiscalYearStatus, error) {
	var status journals.FiscalYearStatus
	err := t.q.QueryRow(ctx, `SELECT id, is_closed FROM fiscal_years
WHERE start_date <= $1 AND end_date >= $1`, date).Scan(&status.ID, &status.Closed)
	if errors.Is(err, pgx.ErrNoRows) {
		return journals.FiscalYearStatus{}, nil
	}
	if err != nil {
		return journals.FiscalYearStatus{}, err
	}
	status.Found = true
	return status, nil
}

// NextEntrySequence increments the per-year counter. Concurrent callers queue
// on the row and a rolled back transaction gives its number back.
func (t *tx) NextEntrySequence(ctx context.Context, year int) (int64, error) {
	var value int64
	err := t.q.QueryRow(ctx, `INSERT INTO journal_sequences (year, value) VALUES ($1, 1)
ON CONFLICT (year) DO UPDATE SET value = journal_sequences.value + 1
RETURNING value`, year).Scan(&value)
	return value, err
}

func (t *tx) InsertEntry(ctx context.Context, entry journals.JournalEntry) (journals.JournalEntry, error) {
	inserted, err := scanEntry(t.q.QueryRow(ctx, `INSERT INTO journal_entries
(entry_number, entry_date, fiscal_year_id, reference, description, status, source, source_type, source_id,
 reversal_of_id, total_debit, total_credit, created_by, created_at, updated_at, posted_by, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12::numeric, $13, $14, $14, $15, $16)
ON CONFLICT (entry_number) DO NOTHING
RETURNING `+entryColumns,
		entry.Number, entry.EntryDate, entry.FiscalYearID, entry.Reference, entry.Description,
		string(entry.Status), string(entry.Source), string(entry.SourceRef.Kind), entry.SourceRef.ID,
		entry.ReversalOfID, numeric(entry.TotalDebit), numeric(entry.TotalCredit), entry.CreatedBy,
		createdAt(entry.CreatedAt), entry.PostedBy, entry.PostedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return journals.JournalEntry{}, shared.ErrEntryNumberTaken
	}
	return inserted, err
}

func (t *tx) InsertLines(ctx context.Context, entryID int64, lines []journals.JournalLine) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`INSERT INTO journal_lines (entry_id, account_id, debit, credit, description, line_order)
VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6)`,
			entryID, line.AccountID, numeric(line.Debit), numeric(line.Credit), line.Description, line.LineOrder)
	}
	return t.q.SendBatch(ctx, batch).Close()
}

func (t *tx) SourceLinked(ctx context.Context, ref journals.SourceRef) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM source_links WHERE source_type = $1 AND source_id = $2)`,
		string(ref.Kind), ref.ID).Scan(&exists)
	return exists, err
}

func (t *tx) LinkSource(ctx context.Context, ref journals.SourceRef, entryID int64) error {
	res, err := t.q.Exec(ctx, `INSERT INTO source_links (source_type, source_id, entry_id) VALUES ($1, $2, $3)
ON CONFLICT (source_type, source_id) DO NOTHING`, string(ref.Kind), ref.ID, entryID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return shared.ErrSourceAlreadyLinked
	}
	return nil
}

func (t *tx) GetEntry(ctx context.Context, id int64) (journals.JournalEntry, error) {
	return t.getEntry(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, id)
}

func (t *tx) GetEntryForUpdate(ctx context.Context, id int64) (journals.JournalEntry, error) {
	return t.getEntry(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1 FOR UPDATE`, id)
}

func (t *tx) getEntry(ctx context.Context, sql string, id int64) (journals.JournalEntry, error) {
	entry, err := scanEntry(t.q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	if err != nil {
		return journals.JournalEntry{}, err
	}
	entry.Lines, err = t.entryLines(ctx, id)
	return entry, err
}

func (t *tx) entryLines(ctx context.Context, entryID int64) ([]journals.JournalLine, error) {
	rows, err := t.q.Query(ctx, `SELECT id, entry_id, account_id, debit::text, credit::text, description, line_order
FROM journal_lines WHERE entry_id = $1 ORDER BY line_order, id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []journals.JournalLine
	for rows.Next() {
		var (
			line          journals.JournalLine
			debit, credit string
		)
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &debit, &credit, &line.Description, &line.LineOrder); err != nil {
			return nil, err
		}
		if line.Debit, err = parseDecimal(debit); err != nil {
			return nil, err
		}
		if line.Credit, err = parseDecimal(credit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListEntries returns headers only, newest first.
func (t *tx) ListEntries(ctx context.Context, filter journals.ListFilter) ([]journals.JournalEntry, error) {
	var from, to any
	if filter.From != nil {
		from = *filter.From
	}
	if filter.To != nil {
		to = *filter.To
	}
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	rows, err := t.q.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR source = $2)
  AND ($3::date IS NULL OR entry_date >= $3::date)
  AND ($4::date IS NULL OR entry_date <= $4::date)
ORDER BY entry_date DESC, id DESC
LIMIT $5 OFFSET $6`, string(filter.Status), string(filter.Source), from, to, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]journals.JournalEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (t *tx) HasLiveReversal(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE reversal_of_id = $1 AND status <> $2)`,
		id, string(journals.StatusVoid)).Scan(&exists)
	return exists, err
}

func (t *tx) UpdateEntryStatus(ctx context.Context, change journals.StatusChange) (bool, error) {
	sql := `UPDATE journal_entries SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	args := []any{change.EntryID, string(change.From), string(change.To), change.At}
	switch change.To {
	case journals.StatusPosted:
		sql = `UPDATE journal_entries SET status = $3, updated_at = $4, posted_at = $4, posted_by = $5
WHERE id = $1 AND status = $2`
		args = append(args, change.ActorID)
	case journals.StatusVoid:
		sql = `UPDATE journal_entries SET status = $3, updated_at = $4, voided_at = $4, voided_by = $5, void_reason = $6
WHERE id = $1 AND status = $2`
		args = append(args, change.ActorID, change.Reason)
	}
	res, err := t.q.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := t.GetEntry(ctx, change.EntryID); err != nil {
		return false, err
	}
	return false, nil
}

func createdAt(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at
}
