package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
)

const fiscalYearColumns = `id, name, start_date, end_date, is_closed, closing_entry_id, closed_by, closed_at, created_at, updated_at`

func scanFiscalYear(row pgx.Row) (fiscalyears.FiscalYear, error) {
	var fy fiscalyears.FiscalYear
	err := row.Scan(&fy.ID, &fy.Name, &fy.StartDate, &fy.EndDate, &fy.IsClosed, &fy.ClosingEntryID,
		&fy.ClosedBy, &fy.ClosedAt, &fy.CreatedAt, &fy.UpdatedAt)
	return fy, err
}

func (t *tx) InsertFiscalYear(ctx context.Context, fy fiscalyears.FiscalYear) (fiscalyears.FiscalYear, error) {
	var inserted fiscalyears.FiscalYear
	err := t.savepoint(ctx, func(q pgx.Tx) error {
		var err error
		inserted, err = scanFiscalYear(q.QueryRow(ctx, `INSERT INTO fiscal_years (name, start_date, end_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING `+fiscalYearColumns, fy.Name, fy.StartDate, fy.EndDate, createdAt(fy.CreatedAt)))
		return err
	})
	if isExclusionViolation(err) {
		return fiscalyears.FiscalYear{}, fiscalyears.ErrFiscalYearOverlap
	}
	return inserted, err
}

func (t *tx) FiscalYearOverlaps(ctx context.Context, start, end time.Time) (bool, error) {
	var overlaps bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM fiscal_years WHERE start_date <= $2 AND end_date >= $1)`, start, end).Scan(&overlaps)
	return overlaps, err
}

func (t *tx) GetFiscalYear(ctx context.Context, id int64) (fiscalyears.FiscalYear, error) {
	return t.getFiscalYear(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE id = $1`, id)
}

func (t *tx) GetFiscalYearForUpdate(ctx context.Context, id int64) (fiscalyears.FiscalYear, error) {
	return t.getFiscalYear(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE id = $1 FOR UPDATE`, id)
}

func (t *tx) getFiscalYear(ctx context.Context, sql string, id int64) (fiscalyears.FiscalYear, error) {
	fy, err := scanFiscalYear(t.q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return fiscalyears.FiscalYear{}, fiscalyears.ErrFiscalYearNotFound
	}
	return fy, err
}

func (t *tx) FindOpenFiscalYearByDate(ctx context.Context, date time.Time) (fiscalyears.FiscalYear, bool, error) {
	fy, err := scanFiscalYear(t.q.QueryRow(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years
WHERE NOT is_closed AND start_date <= $1 AND end_date >= $1`, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return fiscalyears.FiscalYear{}, false, nil
	}
	if err != nil {
		return fiscalyears.FiscalYear{}, false, err
	}
	return fy, true, nil
}

func (t *tx) ListFiscalYears(ctx context.Context) ([]fiscalyears.FiscalYear, error) {
	rows, err := t.q.Query(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]fiscalyears.FiscalYear, 0)
	for rows.Next() {
		fy, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fy)
	}
	return out, rows.Err()
}

func (t *tx) MarkFiscalYearClosed(ctx context.Context, mark fiscalyears.CloseMark) (bool, error) {
	res, err := t.q.Exec(ctx, `UPDATE fiscal_years
SET is_closed = TRUE, closing_entry_id = $2, closed_by = $3, closed_at = $4, updated_at = $4
WHERE id = $1 AND NOT is_closed`, mark.FiscalYearID, mark.ClosingEntryID, mark.ActorID, mark.At)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := t.GetFiscalYear(ctx, mark.FiscalYearID); err != nil {
		return false, err
	}
	return false, nil
}
