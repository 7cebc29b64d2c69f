package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const accountColumns = `id, code, name, local_name, type, subtype, parent_id, level,
	opening_balance::text, opening_balance_date, is_system, is_active, deleted_at, created_at, updated_at`

func scanAccount(row pgx.Row) (accounts.Account, error) {
	var (
		account accounts.Account
		typ     string
		subtype string
		opening string
	)
	if err := row.Scan(&account.ID, &account.Code, &account.Name, &account.LocalName, &typ, &subtype,
		&account.ParentID, &account.Level, &opening, &account.OpeningBalanceDate,
		&account.IsSystem, &account.IsActive, &account.DeletedAt, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return accounts.Account{}, err
	}
	account.Type = accounts.AccountType(typ)
	account.Subtype = accounts.Subtype(subtype)
	balance, err := parseDecimal(opening)
	if err != nil {
		return accounts.Account{}, err
	}
	account.OpeningBalance = balance
	return account, nil
}

func (t *tx) queryAccounts(ctx context.Context, sql string, args ...any) ([]accounts.Account, error) {
	rows, err := t.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounts.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (t *tx) getAccount(ctx context.Context, sql string, args ...any) (accounts.Account, error) {
	account, err := scanAccount(t.q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return account, err
}

func (t *tx) GetAccount(ctx context.Context, id int64) (accounts.Account, error) {
	return t.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (t *tx) GetAccountByCode(ctx context.Context, code string) (accounts.Account, error) {
	return t.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code = $1 AND deleted_at IS NULL`, code)
}

// FindAccountBySubtype prefers system accounts, then the lowest code.
func (t *tx) FindAccountBySubtype(ctx context.Context, subtype accounts.Subtype) (accounts.Account, bool, error) {
	account, err := t.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE subtype = $1 AND is_active AND deleted_at IS NULL
ORDER BY is_system DESC, code
LIMIT 1`, string(subtype))
	if errors.Is(err, shared.ErrAccountNotFound) {
		return accounts.Account{}, false, nil
	}
	if err != nil {
		return accounts.Account{}, false, err
	}
	return account, true, nil
}

func (t *tx) ListAccounts(ctx context.Context, filter accounts.ListFilter) ([]accounts.Account, error) {
	return t.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE deleted_at IS NULL
  AND ($1 = '' OR type = $1)
  AND (NOT $2 OR is_active)
ORDER BY code`, string(filter.Type), filter.ActiveOnly)
}

func (t *tx) ListChildAccounts(ctx context.Context, parentID int64) ([]accounts.Account, error) {
	return t.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE parent_id = $1 AND deleted_at IS NULL
ORDER BY code`, parentID)
}

func (t *tx) InsertAccount(ctx context.Context, account accounts.Account) (accounts.Account, error) {
	var inserted accounts.Account
	err := t.savepoint(ctx, func(q pgx.Tx) error {
		var err error
		inserted, err = scanAccount(q.QueryRow(ctx, `INSERT INTO accounts
(code, name, local_name, type, subtype, parent_id, level, opening_balance, opening_balance_date, is_system, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11)
RETURNING `+accountColumns,
			account.Code, account.Name, account.LocalName, string(account.Type), string(account.Subtype),
			account.ParentID, account.Level, numeric(account.OpeningBalance), account.OpeningBalanceDate,
			account.IsSystem, account.IsActive))
		return err
	})
	if isUniqueViolation(err) {
		return accounts.Account{}, accounts.ErrAccountCodeTaken
	}
	return inserted, err
}

func (t *tx) UpdateAccount(ctx context.Context, account accounts.Account) error {
	var tag int64
	err := t.savepoint(ctx, func(q pgx.Tx) error {
		res, err := q.Exec(ctx, `UPDATE accounts SET
code = $2, name = $3, local_name = $4, type = $5, subtype = $6, parent_id = $7, level = $8,
opening_balance = $9::numeric, opening_balance_date = $10, is_active = $11, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`,
			account.ID, account.Code, account.Name, account.LocalName, string(account.Type), string(account.Subtype),
			account.ParentID, account.Level, numeric(account.OpeningBalance), account.OpeningBalanceDate, account.IsActive)
		tag = res.RowsAffected()
		return err
	})
	if isUniqueViolation(err) {
		return accounts.ErrAccountCodeTaken
	}
	if err != nil {
		return err
	}
	if tag == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (t *tx) SoftDeleteAccount(ctx context.Context, id int64, at time.Time) error {
	res, err := t.q.Exec(ctx, `UPDATE accounts SET deleted_at = $2, is_active = FALSE, updated_at = $2
WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (t *tx) AccountHasLines(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id = $1)`, id).Scan(&exists)
	return exists, err
}
