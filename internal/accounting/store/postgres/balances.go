package postgres

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
)

const postedRange = `e.status = 'POSTED'
  AND ($1::date IS NULL OR e.entry_date >= $1::date)
  AND ($2::date IS NULL OR e.entry_date <= $2::date)`

func (t *tx) SumPostedLines(ctx context.Context, accountID int64, r balances.Range) (balances.Totals, error) {
	from, to := rangeArgs(r)
	var debit, credit string
	err := t.q.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit), 0)::text, COALESCE(SUM(l.credit), 0)::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE `+postedRange+` AND l.account_id = $3`, from, to, accountID).Scan(&debit, &credit)
	if err != nil {
		return balances.Totals{}, err
	}
	return parseTotals(debit, credit)
}

func (t *tx) SumPostedLinesByAccount(ctx context.Context, r balances.Range) (map[int64]balances.Totals, error) {
	from, to := rangeArgs(r)
	rows, err := t.q.Query(ctx, `SELECT l.account_id, SUM(l.debit)::text, SUM(l.credit)::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE `+postedRange+`
GROUP BY l.account_id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64]balances.Totals{}
	for rows.Next() {
		var (
			accountID     int64
			debit, credit string
		)
		if err := rows.Scan(&accountID, &debit, &credit); err != nil {
			return nil, err
		}
		totals, err := parseTotals(debit, credit)
		if err != nil {
			return nil, err
		}
		out[accountID] = totals
	}
	return out, rows.Err()
}

func (t *tx) ListPostedLines(ctx context.Context, accountID int64, r balances.Range) ([]balances.PostedLine, error) {
	from, to := rangeArgs(r)
	rows, err := t.q.Query(ctx, `SELECT e.id, e.entry_number, e.entry_date, e.reference,
       COALESCE(NULLIF(l.description, ''), e.description), l.account_id, l.debit::text, l.credit::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE `+postedRange+` AND l.account_id = $3
ORDER BY e.entry_date, e.id, l.line_order`, from, to, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []balances.PostedLine
	for rows.Next() {
		var (
			line          balances.PostedLine
			debit, credit string
		)
		if err := rows.Scan(&line.EntryID, &line.EntryNumber, &line.EntryDate, &line.Reference,
			&line.Description, &line.AccountID, &debit, &credit); err != nil {
			return nil, err
		}
		totals, err := parseTotals(debit, credit)
		if err != nil {
			return nil, err
		}
		line.Debit, line.Credit = totals.Debit, totals.Credit
		out = append(out, line)
	}
	return out, rows.Err()
}

func parseTotals(debit, credit string) (balances.Totals, error) {
	d, err := parseDecimal(debit)
	if err != nil {
		return balances.Totals{}, err
	}
	c, err := parseDecimal(credit)
	if err != nil {
		return balances.Totals{}, err
	}
	return balances.Totals{Debit: d, Credit: c}, nil
}
