// Package ledgertest builds in-memory ledgers with the default chart for
// tests.
package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/store/memory"
)

// Fixture is a seeded ledger over a memory store.
type Fixture struct {
	Store  *memory.Store
	Ledger *accounting.Ledger
	Now    time.Time
}

// New returns a ledger seeded with the default chart. The clock is frozen at
// now; a zero now keeps the wall clock.
func New(t testing.TB, now time.Time, opts ...accounting.Option) *Fixture {
	t.Helper()
	store := memory.New()
	if !now.IsZero() {
		clock := func() time.Time { return now }
		store.WithNow(clock)
		opts = append([]accounting.Option{accounting.WithClock(clock)}, opts...)
	}
	f := &Fixture{Store: store, Ledger: accounting.New(store, opts...), Now: now}
	chart, err := accounts.DefaultChart()
	require.NoError(t, err)
	_, err = f.Ledger.Accounts.SeedChart(context.Background(), chart, 1)
	require.NoError(t, err)
	return f
}

// Account returns the seeded account playing subtype.
func (f *Fixture) Account(t testing.TB, subtype accounts.Subtype) accounts.Account {
	t.Helper()
	account, found, err := f.Ledger.Accounts.ResolveFunctional(context.Background(), subtype)
	require.NoError(t, err)
	require.True(t, found, "no account for subtype %s", subtype)
	return account
}

// Post writes a posted two-line entry moving amount from credit to debit.
func (f *Fixture) Post(t testing.TB, date time.Time, debit, credit accounts.Subtype, amount string) journals.JournalEntry {
	t.Helper()
	value := decimal.RequireFromString(amount)
	entry, err := f.Ledger.Journals.CreatePosted(context.Background(), journals.CreateInput{
		EntryDate:   date,
		Description: string(debit) + " / " + string(credit),
		ActorID:     1,
		Lines: []journals.LineInput{
			{AccountID: f.Account(t, debit).ID, Debit: value},
			{AccountID: f.Account(t, credit).ID, Credit: value},
		},
	})
	require.NoError(t, err)
	return entry
}

// Balance returns the signed balance of the subtype account at the end of date.
func (f *Fixture) Balance(t testing.TB, subtype accounts.Subtype, date time.Time) decimal.Decimal {
	t.Helper()
	bal, err := f.Ledger.Balances.BalanceAsOf(context.Background(), f.Account(t, subtype).ID, date)
	require.NoError(t, err)
	return bal.Balance
}
