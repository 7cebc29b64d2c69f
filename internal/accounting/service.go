// Package accounting composes the ledger components into one unit for
// process wiring.
package accounting

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/recurring"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Store is the persistence surface shared by the memory and Postgres stores.
type Store interface {
	Accounts() accounts.Repository
	Journals() journals.Repository
	Balances() balances.Repository
	FiscalYears() fiscalyears.Repository
	Recurring() recurring.Repository
	Reconciliation() reconciliation.Repository
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Locker serialises fiscal closes and recurring runs across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// Option customises ledger construction.
type Option func(*options)

type options struct {
	now     func() time.Time
	locker  Locker
	lockTTL time.Duration
}

// WithClock overrides the clock of every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocker enables distributed locks. A zero ttl keeps each component's default.
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(o *options) {
		o.locker = locker
		o.lockTTL = ttl
	}
}

// Ledger holds one service per component, all sharing a store.
type Ledger struct {
	Accounts       *accounts.Service
	Journals       *journals.Service
	Balances       *balances.Service
	FiscalYears    *fiscalyears.Service
	Recurring      *recurring.Service
	Reconciliation *reconciliation.Service
	Reports        *reports.Service
}

// New builds the ledger over store.
func New(store Store, opts ...Option) *Ledger {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	journalSvc := journals.NewService(store.Journals(), store)
	l := &Ledger{
		Accounts:       accounts.NewService(store.Accounts(), store),
		Journals:       journalSvc,
		Balances:       balances.NewService(store.Balances()),
		FiscalYears:    fiscalyears.NewService(store.FiscalYears(), journalSvc, store),
		Recurring:      recurring.NewService(store.Recurring(), journalSvc, store),
		Reconciliation: reconciliation.NewService(store.Reconciliation(), store),
		Reports:        reports.NewService(store.Balances()),
	}

	if o.now != nil {
		l.Accounts.WithNow(o.now)
		l.Journals.WithNow(o.now)
		l.FiscalYears.WithNow(o.now)
		l.Recurring.WithNow(o.now)
		l.Reconciliation.WithNow(o.now)
	}
	if o.locker != nil {
		l.FiscalYears.WithLocker(o.locker, o.lockTTL)
		l.Recurring.WithLocker(o.locker, o.lockTTL)
	}
	return l
}
