package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/recurring"
)

const templateColumns = `id, name, description, reference, frequency, day_of_week, day_of_month, month_of_year,
	start_date, end_date, next_run_date, last_run_date, max_occurrences, occurrences, is_active,
	created_by, created_at, updated_at`

func scanTemplate(row pgx.Row) (recurring.Template, error) {
	var (
		tpl       recurring.Template
		frequency string
	)
	err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.Reference, &frequency,
		&tpl.DayOfWeek, &tpl.DayOfMonth, &tpl.MonthOfYear, &tpl.StartDate, &tpl.EndDate,
		&tpl.NextRunDate, &tpl.LastRunDate, &tpl.MaxOccurrences, &tpl.Occurrences, &tpl.IsActive,
		&tpl.CreatedBy, &tpl.CreatedAt, &tpl.UpdatedAt)
	tpl.Frequency = recurring.Frequency(frequency)
	return tpl, err
}

func (t *tx) InsertTemplate(ctx context.Context, tpl recurring.Template) (recurring.Template, error) {
	inserted, err := scanTemplate(t.q.QueryRow(ctx, `INSERT INTO recurring_templates
(name, description, reference, frequency, day_of_week, day_of_month, month_of_year, start_date, end_date,
 next_run_date, max_occurrences, is_active, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
RETURNING `+templateColumns,
		tpl.Name, tpl.Description, tpl.Reference, string(tpl.Frequency), tpl.DayOfWeek, tpl.DayOfMonth,
		tpl.MonthOfYear, tpl.StartDate, tpl.EndDate, tpl.NextRunDate, tpl.MaxOccurrences, tpl.IsActive,
		tpl.CreatedBy, createdAt(tpl.CreatedAt)))
	if err != nil {
		return recurring.Template{}, err
	}
	for _, line := range tpl.Lines {
		line.TemplateID = inserted.ID
		err := t.q.QueryRow(ctx, `INSERT INTO recurring_template_lines
(template_id, account_id, description, debit, credit, line_order)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6)
RETURNING id`, inserted.ID, line.AccountID, line.Description, numeric(line.Debit), numeric(line.Credit),
			line.LineOrder).Scan(&line.ID)
		if err != nil {
			return recurring.Template{}, err
		}
		inserted.Lines = append(inserted.Lines, line)
	}
	return inserted, nil
}

func (t *tx) GetTemplate(ctx context.Context, id int64) (recurring.Template, error) {
	return t.getTemplate(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = $1`, id)
}

func (t *tx) GetTemplateForUpdate(ctx context.Context, id int64) (recurring.Template, error) {
	return t.getTemplate(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = $1 FOR UPDATE`, id)
}

func (t *tx) getTemplate(ctx context.Context, sql string, id int64) (recurring.Template, error) {
	tpl, err := scanTemplate(t.q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return recurring.Template{}, recurring.ErrTemplateNotFound
	}
	if err != nil {
		return recurring.Template{}, err
	}
	tpl.Lines, err = t.templateLines(ctx, id)
	return tpl, err
}

func (t *tx) templateLines(ctx context.Context, templateID int64) ([]recurring.TemplateLine, error) {
	rows, err := t.q.Query(ctx, `SELECT id, template_id, account_id, description, debit::text, credit::text, line_order
FROM recurring_template_lines WHERE template_id = $1 ORDER BY line_order, id`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []recurring.TemplateLine
	for rows.Next() {
		var (
			line          recurring.TemplateLine
			debit, credit string
		)
		if err := rows.Scan(&line.ID, &line.TemplateID, &line.AccountID, &line.Description, &debit, &credit, &line.LineOrder); err != nil {
			return nil, err
		}
		totals, err := parseTotals(debit, credit)
		if err != nil {
			return nil, err
		}
		line.Debit, line.Credit = totals.Debit, totals.Credit
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// listTemplates loads headers first and lines after the cursor is closed,
// since a pgx connection runs one query at a time.
func (t *tx) listTemplates(ctx context.Context, sql string, args ...any) ([]recurring.Template, error) {
	rows, err := t.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out := make([]recurring.Template, 0)
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, tpl)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Lines, err = t.templateLines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *tx) ListTemplates(ctx context.Context, filter recurring.TemplateFilter) ([]recurring.Template, error) {
	return t.listTemplates(ctx, `SELECT `+templateColumns+` FROM recurring_templates
WHERE (NOT $1 OR is_active)
ORDER BY id`, filter.ActiveOnly)
}

func (t *tx) ListDueTemplates(ctx context.Context, today time.Time) ([]recurring.Template, error) {
	return t.listTemplates(ctx, `SELECT `+templateColumns+` FROM recurring_templates
WHERE is_active AND next_run_date <= $1
ORDER BY next_run_date, id`, today)
}

func (t *tx) SetTemplateActive(ctx context.Context, id int64, active bool, at time.Time) error {
	res, err := t.q.Exec(ctx, `UPDATE recurring_templates SET is_active = $2, updated_at = $3 WHERE id = $1`, id, active, at)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return recurring.ErrTemplateNotFound
	}
	return nil
}

func (t *tx) InsertRun(ctx context.Context, run recurring.Run) error {
	res, err := t.q.Exec(ctx, `INSERT INTO recurring_runs (template_id, run_date, run_key, entry_id, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT DO NOTHING`, run.TemplateID, run.RunDate, run.RunKey, run.EntryID, createdAt(run.CreatedAt))
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return recurring.ErrAlreadyGenerated
	}
	return nil
}

func (t *tx) AdvanceTemplate(ctx context.Context, adv recurring.Advance) (bool, error) {
	res, err := t.q.Exec(ctx, `UPDATE recurring_templates
SET last_run_date = $3, next_run_date = $4, occurrences = $5, updated_at = $6
WHERE id = $1 AND next_run_date = $2`,
		adv.TemplateID, adv.ExpectedNext, adv.LastRun, adv.NextRun, adv.Occurrences, adv.At)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := t.GetTemplate(ctx, adv.TemplateID); err != nil {
		return false, err
	}
	return false, nil
}
