// Package memory is an in-process ledger store. Every transaction holds the
// store mutex and rolls back to a snapshot on error, so it has the same
// all-or-nothing behaviour as the Postgres store. It backs tests and the
// LEDGER_STORE=memory mode.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/recurring"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type runKey struct {
	templateID int64
	date       time.Time
}

type bankRefKey struct {
	bankAccountID int64
	ref           string
}

type state struct {
	seq int64

	accounts    map[int64]accounts.Account
	entries     map[int64]journals.JournalEntry
	lines       map[int64][]journals.JournalLine
	numbers     map[string]int64
	sequences   map[int]int64
	sourceLinks map[journals.SourceRef]int64

	fiscalYears map[int64]fiscalyears.FiscalYear

	templates map[int64]recurring.Template
	runs      map[runKey]recurring.Run

	bankAccounts    map[int64]reconciliation.BankAccount
	bankTxns        map[int64]reconciliation.BankTransaction
	bankRefs        map[bankRefKey]int64
	reconciliations map[int64]reconciliation.Reconciliation
}

func newState() *state {
	return &state{
		accounts:        map[int64]accounts.Account{},
		entries:         map[int64]journals.JournalEntry{},
		lines:           map[int64][]journals.JournalLine{},
		numbers:         map[string]int64{},
		sequences:       map[int]int64{},
		sourceLinks:     map[journals.SourceRef]int64{},
		fiscalYears:     map[int64]fiscalyears.FiscalYear{},
		templates:       map[int64]recurring.Template{},
		runs:            map[runKey]recurring.Run{},
		bankAccounts:    map[int64]reconciliation.BankAccount{},
		bankTxns:        map[int64]reconciliation.BankTransaction{},
		bankRefs:        map[bankRefKey]int64{},
		reconciliations: map[int64]reconciliation.Reconciliation{},
	}
}

// clone copies every table. Stored values are replaced, never mutated in
// place, so copying the maps is enough.
func (st *state) clone() *state {
	return &state{
		seq:             st.seq,
		accounts:        maps.Clone(st.accounts),
		entries:         maps.Clone(st.entries),
		lines:           maps.Clone(st.lines),
		numbers:         maps.Clone(st.numbers),
		sequences:       maps.Clone(st.sequences),
		sourceLinks:     maps.Clone(st.sourceLinks),
		fiscalYears:     maps.Clone(st.fiscalYears),
		templates:       maps.Clone(st.templates),
		runs:            maps.Clone(st.runs),
		bankAccounts:    maps.Clone(st.bankAccounts),
		bankTxns:        maps.Clone(st.bankTxns),
		bankRefs:        maps.Clone(st.bankRefs),
		reconciliations: maps.Clone(st.reconciliations),
	}
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

// Store is the in-memory ledger store.
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time

	auditMu sync.Mutex
	audit   []internalShared.AuditLog
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

// WithNow overrides the clock used for store-assigned timestamps.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) withTx(ctx context.Context, fn func(*tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn(&tx{st: s.data, now: s.now}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// Record appends an audit log entry.
func (s *Store) Record(_ context.Context, log internalShared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	s.audit = append(s.audit, log)
	return nil
}

// AuditLogs returns the recorded audit entries.
func (s *Store) AuditLogs() []internalShared.AuditLog {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	return append([]internalShared.AuditLog(nil), s.audit...)
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

// tx implements every component's TxRepository over one state.
type tx struct {
	st  *state
	now func() time.Time
}

var (
	_ accounts.TxRepository       = (*tx)(nil)
	_ journals.TxRepository       = (*tx)(nil)
	_ balances.TxRepository       = (*tx)(nil)
	_ fiscalyears.TxRepository    = (*tx)(nil)
	_ recurring.TxRepository      = (*tx)(nil)
	_ reconciliation.TxRepository = (*tx)(nil)
)
