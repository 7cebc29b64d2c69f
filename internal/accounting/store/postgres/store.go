// Package postgres persists the ledger in PostgreSQL via pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/recurring"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

//go:embed schema.sql
var schema string

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

// Store provides pgx-backed persistence for every ledger component.
type Store struct {
	pool  *pgxpool.Pool
	audit *internalShared.AuditLogger
}

// New constructs a store over the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, audit: internalShared.NewAuditLogger(pool)}
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ledger/postgres: migrate: %w", err)
	}
	return nil
}

// Record persists an audit log entry.
func (s *Store) Record(ctx context.Context, log internalShared.AuditLog) error {
	return s.audit.Record(ctx, log)
}

// withTx runs fn at ReadCommitted. Services take row locks where they need
// serial access.
func (s *Store) withTx(ctx context.Context, fn func(*tx) error) error {
	return db.InTx(ctx, s.pool, pgx.ReadCommitted, func(pgTx pgx.Tx) error {
		return fn(&tx{q: pgTx})
	})
}

// Accounts exposes the chart of accounts repository.
func (s *Store) Accounts() accounts.Repository { return accountsRepo{s} }

// Journals exposes the journal repository.
func (s *Store) Journals() journals.Repository { return journalsRepo{s} }

// Balances exposes the posted-line read repository.
func (s *Store) Balances() balances.Repository { return balancesRepo{s} }

// FiscalYears exposes the fiscal year repository.
func (s *Store) FiscalYears() fiscalyears.Repository { return fiscalYearsRepo{s} }

// Recurring exposes the recurring template repository.
func (s *Store) Recurring() recurring.Repository { return recurringRepo{s} }

// Reconciliation exposes the bank reconciliation repository.
func (s *Store) Reconciliation() reconciliation.Repository { return reconciliationRepo{s} }

type accountsRepo struct{ s *Store }

func (r accountsRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

type journalsRepo struct{ s *Store }

func (r journalsRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

type balancesRepo struct{ s *Store }

func (r balancesRepo) WithTx(ctx context.Context, fn func(context.Context, balances.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

type fiscalYearsRepo struct{ s *Store }

func (r fiscalYearsRepo) WithTx(ctx context.Context, fn func(context.Context, fiscalyears.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

type recurringRepo struct{ s *Store }

func (r recurringRepo) WithTx(ctx context.Context, fn func(context.Context, recurring.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

type reconciliationRepo struct{ s *Store }

func (r reconciliationRepo) WithTx(ctx context.Context, fn func(context.Context, reconciliation.TxRepository) error) error {
	return r.s.withTx(ctx, func(t *tx) error { return fn(ctx, t) })
}

// tx implements every component's TxRepository over one pgx transaction.
type tx struct {
	q pgx.Tx
}

var (
	_ accounts.TxRepository       = (*tx)(nil)
	_ journals.TxRepository       = (*tx)(nil)
	_ balances.TxRepository       = (*tx)(nil)
	_ fiscalyears.TxRepository    = (*tx)(nil)
	_ recurring.TxRepository      = (*tx)(nil)
	_ reconciliation.TxRepository = (*tx)(nil)
)

// savepoint runs fn inside a nested transaction so an expected constraint
// violation leaves the outer transaction usable.
func (t *tx) savepoint(ctx context.Context, fn func(pgx.Tx) error) error {
	nested, err := t.q.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(nested); err != nil {
		_ = nested.Rollback(ctx)
		return err
	}
	return nested.Commit(ctx)
}

func pgCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pgCode(err)
	return code == codeUniqueViolation
}

func isExclusionViolation(err error) bool {
	code, _ := pgCode(err)
	return code == codeExclusionViolation
}

// numeric columns are selected as text and parsed without float rounding.
func parseDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger/postgres: parse numeric %q: %w", raw, err)
	}
	return d, nil
}

func parseNullDecimal(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := parseDecimal(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func numeric(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// rangeArgs turns an inclusive date range into nullable bounds.
func rangeArgs(r balances.Range) (any, any) {
	var from, to any
	if r.From != nil {
		from = *r.From
	}
	if r.To != nil {
		to = *r.To
	}
	return from, to
}
