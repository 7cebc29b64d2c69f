package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
)

const bankAccountColumns = `id, name, account_number, gl_account_id, last_reconciled_at,
	last_reconciled_balance::text, created_at, updated_at`

func scanBankAccount(row pgx.Row) (reconciliation.BankAccount, error) {
	var (
		account reconciliation.BankAccount
		balance *string
	)
	if err := row.Scan(&account.ID, &account.Name, &account.AccountNumber, &account.GLAccountID,
		&account.LastReconciledAt, &balance, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return reconciliation.BankAccount{}, err
	}
	parsed, err := parseNullDecimal(balance)
	if err != nil {
		return reconciliation.BankAccount{}, err
	}
	account.LastReconciledBalance = parsed
	return account, nil
}

func (t *tx) InsertBankAccount(ctx context.Context, account reconciliation.BankAccount) (reconciliation.BankAccount, error) {
	return scanBankAccount(t.q.QueryRow(ctx, `INSERT INTO bank_accounts (name, account_number, gl_account_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING `+bankAccountColumns, account.Name, account.AccountNumber, account.GLAccountID, createdAt(account.CreatedAt)))
}

func (t *tx) GetBankAccount(ctx context.Context, id int64) (reconciliation.BankAccount, error) {
	return t.getBankAccount(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = $1`, id)
}

func (t *tx) GetBankAccountForUpdate(ctx context.Context, id int64) (reconciliation.BankAccount, error) {
	return t.getBankAccount(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = $1 FOR UPDATE`, id)
}

func (t *tx) getBankAccount(ctx context.Context, sql string, id int64) (reconciliation.BankAccount, error) {
	account, err := scanBankAccount(t.q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return reconciliation.BankAccount{}, reconciliation.ErrBankAccountNotFound
	}
	return account, err
}

func (t *tx) ListBankAccounts(ctx context.Context) ([]reconciliation.BankAccount, error) {
	rows, err := t.q.Query(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]reconciliation.BankAccount, 0)
	for rows.Next() {
		account, err := scanBankAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (t *tx) UpdateBankAccountReconciled(ctx context.Context, id int64, at time.Time, balance decimal.Decimal) error {
	res, err := t.q.Exec(ctx, `UPDATE bank_accounts
SET last_reconciled_at = $2, last_reconciled_balance = $3::numeric, updated_at = NOW()
WHERE id = $1`, id, at, numeric(balance))
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return reconciliation.ErrBankAccountNotFound
	}
	return nil
}

const bankTransactionColumns = `id, bank_account_id, transaction_date, description, amount::text, external_ref,
	is_reconciled, reconciliation_id, created_at`

func scanBankTransaction(row pgx.Row) (reconciliation.BankTransaction, error) {
	var (
		txn    reconciliation.BankTransaction
		amount string
	)
	if err := row.Scan(&txn.ID, &txn.BankAccountID, &txn.TransactionDate, &txn.Description, &amount,
		&txn.ExternalRef, &txn.IsReconciled, &txn.ReconciliationID, &txn.CreatedAt); err != nil {
		return reconciliation.BankTransaction{}, err
	}
	parsed, err := parseDecimal(amount)
	if err != nil {
		return reconciliation.BankTransaction{}, err
	}
	txn.Amount = parsed
	return txn, nil
}

func (t *tx) InsertBankTransaction(ctx context.Context, txn reconciliation.BankTransaction) (reconciliation.BankTransaction, bool, error) {
	inserted, err := scanBankTransaction(t.q.QueryRow(ctx, `INSERT INTO bank_transactions
(bank_account_id, transaction_date, description, amount, external_ref, created_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6)
ON CONFLICT (bank_account_id, external_ref) WHERE external_ref <> '' DO NOTHING
RETURNING `+bankTransactionColumns,
		txn.BankAccountID, txn.TransactionDate, txn.Description, numeric(txn.Amount), txn.ExternalRef,
		createdAt(txn.CreatedAt)))
	if errors.Is(err, pgx.ErrNoRows) {
		return reconciliation.BankTransaction{}, false, nil
	}
	if err != nil {
		return reconciliation.BankTransaction{}, false, err
	}
	return inserted, true, nil
}

func (t *tx) ListBankTransactions(ctx context.Context, filter reconciliation.TransactionFilter) ([]reconciliation.BankTransaction, error) {
	var from, to any
	if filter.From != nil {
		from = *filter.From
	}
	if filter.To != nil {
		to = *filter.To
	}
	rows, err := t.q.Query(ctx, `SELECT `+bankTransactionColumns+` FROM bank_transactions
WHERE ($1 = 0 OR bank_account_id = $1)
  AND (NOT $2 OR NOT is_reconciled)
  AND ($3::date IS NULL OR transaction_date >= $3::date)
  AND ($4::date IS NULL OR transaction_date <= $4::date)
ORDER BY transaction_date, id`, filter.BankAccountID, filter.UnreconciledOnly, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reconciliation.BankTransaction
	for rows.Next() {
		txn, err := scanBankTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func (t *tx) MarkTransactionsReconciled(ctx context.Context, bankAccountID int64, ids []int64, reconciliationID int64) (int, error) {
	res, err := t.q.Exec(ctx, `UPDATE bank_transactions
SET is_reconciled = TRUE, reconciliation_id = $3
WHERE bank_account_id = $1 AND id = ANY($2) AND NOT is_reconciled`, bankAccountID, ids, reconciliationID)
	if err != nil {
		return 0, err
	}
	return int(res.RowsAffected()), nil
}

const reconciliationColumns = `id, bank_account_id, statement_date, statement_balance::text, gl_balance::text,
	difference::text, status, cleared_count, completed_by, completed_at`

func scanReconciliation(row pgx.Row) (reconciliation.Reconciliation, error) {
	var (
		rec                 reconciliation.Reconciliation
		statement, gl, diff string
		status              string
	)
	if err := row.Scan(&rec.ID, &rec.BankAccountID, &rec.StatementDate, &statement, &gl, &diff, &status,
		&rec.ClearedCount, &rec.CompletedBy, &rec.CompletedAt); err != nil {
		return reconciliation.Reconciliation{}, err
	}
	rec.Status = reconciliation.Status(status)
	var err error
	if rec.StatementBalance, err = parseDecimal(statement); err != nil {
		return reconciliation.Reconciliation{}, err
	}
	if rec.GLBalance, err = parseDecimal(gl); err != nil {
		return reconciliation.Reconciliation{}, err
	}
	if rec.Difference, err = parseDecimal(diff); err != nil {
		return reconciliation.Reconciliation{}, err
	}
	return rec, nil
}

func (t *tx) InsertReconciliation(ctx context.Context, rec reconciliation.Reconciliation) (reconciliation.Reconciliation, error) {
	return scanReconciliation(t.q.QueryRow(ctx, `INSERT INTO bank_reconciliations
(bank_account_id, statement_date, statement_balance, gl_balance, difference, status, cleared_count, completed_by, completed_at)
VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9)
RETURNING `+reconciliationColumns,
		rec.BankAccountID, rec.StatementDate, numeric(rec.StatementBalance), numeric(rec.GLBalance),
		numeric(rec.Difference), string(rec.Status), rec.ClearedCount, rec.CompletedBy, createdAt(rec.CompletedAt)))
}

func (t *tx) ListReconciliations(ctx context.Context, bankAccountID int64) ([]reconciliation.Reconciliation, error) {
	rows, err := t.q.Query(ctx, `SELECT `+reconciliationColumns+` FROM bank_reconciliations
WHERE bank_account_id = $1
ORDER BY statement_date DESC, id DESC`, bankAccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reconciliation.Reconciliation
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
