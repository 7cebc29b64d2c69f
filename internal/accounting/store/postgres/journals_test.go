package postgres

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// echoTx answers an INSERT ... RETURNING with the values it was given, the
// way Postgres would for columns without defaults.
type echoTx struct {
	pgx.Tx
	sql      string
	args     []any
	conflict bool
}

func (e *echoTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	e.sql, e.args = sql, args
	if e.conflict {
		return errRow{pgx.ErrNoRows}
	}
	return echoRow{values: insertedValues(sql, args)}
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type echoRow struct{ values map[string]any }

func (r echoRow) Scan(dest ...any) error {
	columns := strings.Split(entryColumns, ",")
	if len(columns) != len(dest) {
		return fmt.Errorf("scan %d columns into %d targets", len(columns), len(dest))
	}
	for i, column := range columns {
		name := strings.TrimSuffix(strings.TrimSpace(column), "::text")
		value, ok := r.values[name]
		if !ok {
			continue
		}
		target := reflect.ValueOf(dest[i]).Elem()
		v := reflect.ValueOf(value)
		if !v.IsValid() {
			continue
		}
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("column %s: %s into %s", name, v.Type(), target.Type())
		}
		target.Set(v)
	}
	return nil
}

var (
	insertColumnsRe = regexp.MustCompile(`(?s)INSERT INTO journal_entries\s*\((.*?)\)\s*VALUES\s*\((.*?)\)`)
	placeholderRe   = regexp.MustCompile(`\$(\d+)`)
)

func insertedValues(sql string, args []any) map[string]any {
	match := insertColumnsRe.FindStringSubmatch(sql)
	if match == nil {
		return nil
	}
	columns := strings.Split(match[1], ",")
	placeholders := strings.Split(match[2], ",")
	values := make(map[string]any, len(columns))
	for i, column := range columns {
		if i >= len(placeholders) {
			break
		}
		ref := placeholderRe.FindStringSubmatch(placeholders[i])
		if ref == nil {
			continue
		}
		n, _ := strconv.Atoi(ref[1])
		if n >= 1 && n <= len(args) {
			values[strings.TrimSpace(column)] = args[n-1]
		}
	}
	return values
}

func postedEntry() journals.JournalEntry {
	actor := int64(42)
	postedAt := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	amount := decimal.RequireFromString("150")
	return journals.JournalEntry{
		Number:      "JE-2025-000001",
		EntryDate:   shared.Date(2025, 3, 3),
		Description: "Sale 9",
		Status:      journals.StatusPosted,
		Source:      journals.SourceSales,
		SourceRef:   journals.OrderRef(9),
		TotalDebit:  amount,
		TotalCredit: amount,
		CreatedBy:   actor,
		PostedBy:    &actor,
		PostedAt:    &postedAt,
		CreatedAt:   postedAt,
	}
}

func TestInsertEntryStampsPostedEntries(t *testing.T) {
	q := &echoTx{}
	store := &tx{q: q}
	entry := postedEntry()

	inserted, err := store.InsertEntry(context.Background(), entry)
	require.NoError(t, err)

	values := insertedValues(q.sql, q.args)
	assert.Equal(t, entry.PostedBy, values["posted_by"])
	assert.Equal(t, entry.PostedAt, values["posted_at"])

	assert.Equal(t, journals.StatusPosted, inserted.Status)
	require.NotNil(t, inserted.PostedBy)
	assert.Equal(t, int64(42), *inserted.PostedBy)
	require.NotNil(t, inserted.PostedAt)
	assert.True(t, inserted.PostedAt.Equal(*entry.PostedAt))
	assert.True(t, inserted.TotalDebit.Equal(entry.TotalDebit))
	assert.Equal(t, journals.OrderRef(9), inserted.SourceRef)
}

func TestInsertEntryLeavesDraftsUnstamped(t *testing.T) {
	q := &echoTx{}
	store := &tx{q: q}
	entry := postedEntry()
	entry.Status = journals.StatusDraft
	entry.PostedBy, entry.PostedAt = nil, nil

	inserted, err := store.InsertEntry(context.Background(), entry)
	require.NoError(t, err)
	assert.Nil(t, inserted.PostedBy)
	assert.Nil(t, inserted.PostedAt)
}

func TestInsertEntryReportsTakenNumber(t *testing.T) {
	store := &tx{q: &echoTx{conflict: true}}

	_, err := store.InsertEntry(context.Background(), postedEntry())
	assert.ErrorIs(t, err, shared.ErrEntryNumberTaken)
}
