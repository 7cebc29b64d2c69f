package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/testing/ledgertest"
)

func run(t *testing.T, fx *ledgertest.Fixture, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(func(context.Context) (*app.Runtime, error) {
		return &app.Runtime{Ledger: fx.Ledger}, nil
	})
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestChartSeedIsRepeatable(t *testing.T) {
	fx := ledgertest.New(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	out, err := run(t, fx, "chart", "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "created 0 account(s)")

	file := filepath.Join(t.TempDir(), "chart.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`accounts:
  - code: "1900"
    name: Petty Cash Float
    type: ASSET
`), 0o600))
	out, err = run(t, fx, "chart", "seed", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "created 1 account(s), skipped 0 existing")

	_, err = run(t, fx, "chart", "seed", "--file", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTrialBalancePrintsGroupedTotals(t *testing.T) {
	fx := ledgertest.New(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	fx.Post(t, shared.Date(2025, 3, 3), accounts.SubtypeBank, accounts.SubtypeSales, "100")

	out, err := run(t, fx, "trial-balance", "--as-of", "2025-03-31")
	require.NoError(t, err)
	assert.Contains(t, out, "Trial balance as of 2025-03-31")
	assert.Contains(t, out, "Asset")
	assert.Contains(t, out, "Income")
	assert.Contains(t, out, "100.00")

	_, err = run(t, fx, "trial-balance", "--as-of", "31/03/2025")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecurringGenerateDryRun(t *testing.T) {
	fx := ledgertest.New(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	out, err := run(t, fx, "recurring", "generate", "--date", "2025-06-01", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "0 occurrence(s) due on 2025-06-01")

	out, err = run(t, fx, "recurring", "generate", "--date", "2025-06-01")
	require.NoError(t, err)
	assert.Contains(t, out, "generated 0, failed 0")
}

func TestFiscalYearClose(t *testing.T) {
	fx := ledgertest.New(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	fy, err := fx.Ledger.FiscalYears.Create(context.Background(), fiscalyears.CreateInput{
		Name: "FY2025", StartDate: shared.Date(2025, 1, 1), EndDate: shared.Date(2025, 12, 31), ActorID: 1,
	})
	require.NoError(t, err)
	fx.Post(t, shared.Date(2025, 5, 5), accounts.SubtypeBank, accounts.SubtypeSales, "500")
	id := []string{"fiscal-year", "close"}

	out, err := run(t, fx, append(id, "--preview", itoa(fy.ID))...)
	require.NoError(t, err)
	assert.Contains(t, out, "net 500.00")

	out, err = run(t, fx, append(id, "--actor", "7", itoa(fy.ID))...)
	require.NoError(t, err)
	assert.Contains(t, out, "closed FY2025, net income 500.00 posted as JE-2025-")

	_, err = run(t, fx, append(id, itoa(fy.ID))...)
	assert.ErrorIs(t, err, fiscalyears.ErrAlreadyClosed)

	_, err = run(t, fx, append(id, "abc")...)
	assert.Error(t, err)

	out, err = run(t, fx, "fy", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "closed")
}

func TestJobsTriggerEnqueues(t *testing.T) {
	mr := miniredis.RunT(t)
	fx := ledgertest.New(t, time.Time{})

	out, err := run(t, fx, "jobs", "trigger", "gl-integrity", "--redis-addr", mr.Addr())
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued ledger:gl.integrity")

	_, err = run(t, fx, "jobs", "trigger", "recurring-generate", "--date", "June 1", "--redis-addr", mr.Addr())
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = run(t, fx, "jobs", "trigger", "reindex", "--redis-addr", mr.Addr())
	assert.Error(t, err)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
