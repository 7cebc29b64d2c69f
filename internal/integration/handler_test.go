package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/store/memory"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/testing/ledgertest"
)

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *outcomeCounter) ObserveEvent(event, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[event+"/"+outcome]++
}

func (c *outcomeCounter) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

func newEventServer(t *testing.T, ledger *accounting.Ledger) (*httptest.Server, *outcomeCounter) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hooks := integration.NewHooks(ledger.Journals, ledger.Accounts, decimal.RequireFromString("0.11"), logger)
	counter := &outcomeCounter{counts: map[string]int{}}
	r := chi.NewRouter()
	r.Route("/events", integration.NewHandler(logger, hooks).WithRecorder(counter).MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, counter
}

func postEvent(t *testing.T, srv *httptest.Server, path string, body map[string]any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := srv.Client().Post(srv.URL+"/events"+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestEventEndpointsPostOnce(t *testing.T) {
	fx := ledgertest.New(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	srv, counter := newEventServer(t, fx.Ledger)

	sale := map[string]any{"id": 21, "reference": "SO-21", "date": "2025-03-05", "amount": "200"}
	status, body := postEvent(t, srv, "/sales", sale)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["posted"])
	assert.NotEmpty(t, body["entry_number"])

	status, body = postEvent(t, srv, "/sales", sale)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["already_posted"])
	assert.Equal(t, false, body["posted"])

	status, _ = postEvent(t, srv, "/customer-payments", map[string]any{
		"id": 5, "reference": "PAY-5", "date": "2025-03-08", "amount": "222", "bank": true,
	})
	require.Equal(t, http.StatusCreated, status)

	march := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	assert.True(t, fx.Balance(t, accounts.SubtypeAccountsReceivable, march).IsZero())
	assert.True(t, fx.Balance(t, accounts.SubtypeBank, march).Equal(decimal.NewFromInt(222)))

	status, body = postEvent(t, srv, "/supplier-payments", map[string]any{
		"id": 5, "reference": "OUT-5", "date": "2025-03-09", "amount": "50", "bank": true,
	})
	require.Equal(t, http.StatusCreated, status, "supplier payment 5 is not customer payment 5")
	assert.Equal(t, true, body["posted"])

	assert.Equal(t, 1, counter.get("sale/posted"))
	assert.Equal(t, 1, counter.get("sale/already_posted"))
	assert.Equal(t, 1, counter.get("customer_payment/posted"))
	assert.Equal(t, 1, counter.get("supplier_payment/posted"))
}

func TestEventEndpointsSkipWithoutChart(t *testing.T) {
	srv, counter := newEventServer(t, accounting.New(memory.New()))

	status, body := postEvent(t, srv, "/expenses", map[string]any{
		"id": 9, "description": "Office supplies", "date": "2025-02-01", "amount": "35",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["skipped"])
	assert.NotEmpty(t, body["missing_subtypes"])
	assert.Equal(t, 1, counter.get("expense/skipped"))
}

func TestEventEndpointsRejectBadInput(t *testing.T) {
	fx := ledgertest.New(t, time.Time{})
	srv, counter := newEventServer(t, fx.Ledger)

	status, _ := postEvent(t, srv, "/refunds", map[string]any{"date": "2025-02-01", "amount": "10"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = postEvent(t, srv, "/purchases", map[string]any{"id": 3, "date": "01/02/2025", "amount": "10"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = postEvent(t, srv, "/bad-debts", map[string]any{"id": 4, "date": "2025-02-01", "amount": "0"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	assert.Equal(t, 1, counter.get("refund/rejected"))
	assert.Equal(t, 1, counter.get("purchase/rejected"))
	assert.Equal(t, 1, counter.get("bad_debt/rejected"))
}
