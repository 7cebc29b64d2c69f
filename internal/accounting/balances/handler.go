package balances

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type balanceService interface {
	BalanceAsOf(ctx context.Context, accountID int64, date time.Time) (Balance, error)
	PeriodActivity(ctx context.Context, accountID int64, from, to time.Time) (Activity, error)
	TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error)
	AccountLedger(ctx context.Context, accountID int64, from, to time.Time) (AccountLedger, error)
}

// Handler serves balance queries over posted entries.
type Handler struct {
	logger  *slog.Logger
	service balanceService
	now     func() time.Time
}

// NewHandler constructs the balance handler.
func NewHandler(logger *slog.Logger, service balanceService) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers balance endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/accounts/{id}", h.balance)
	r.Get("/accounts/{id}/activity", h.activity)
	r.Get("/accounts/{id}/ledger", h.ledger)
}

type balanceView struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	AsOf      string          `json:"as_of"`
	Opening   decimal.Decimal `json:"opening"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"`
}

type activityView struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Net       decimal.Decimal `json:"net"`
}

type trialBalanceRowView struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type trialBalanceView struct {
	AsOf        string                `json:"as_of"`
	Rows        []trialBalanceRowView `json:"rows"`
	TotalDebit  decimal.Decimal       `json:"total_debit"`
	TotalCredit decimal.Decimal       `json:"total_credit"`
	Balanced    bool                  `json:"balanced"`
}

type ledgerRowView struct {
	EntryID     int64           `json:"entry_id"`
	EntryNumber string          `json:"entry_number"`
	EntryDate   string          `json:"entry_date"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Running     decimal.Decimal `json:"running"`
}

type ledgerView struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Opening   decimal.Decimal `json:"opening"`
	Rows      []ledgerRowView `json:"rows"`
	Closing   decimal.Decimal `json:"closing"`
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	asOf, err := shared.QueryDate(r, "as_of", h.now())
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	bal, err := h.service.BalanceAsOf(r.Context(), id, asOf)
	if err != nil {
		h.fail(w, "account balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceView{
		AccountID: bal.Account.ID,
		Code:      bal.Account.Code,
		AsOf:      bal.AsOf.Format(time.DateOnly),
		Opening:   bal.Opening,
		Debit:     bal.Debit,
		Credit:    bal.Credit,
		Balance:   bal.Balance,
	})
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	id, from, to, err := h.periodFor(r)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	act, err := h.service.PeriodActivity(r.Context(), id, from, to)
	if err != nil {
		h.fail(w, "period activity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, activityView{
		AccountID: act.Account.ID,
		Code:      act.Account.Code,
		From:      act.From.Format(time.DateOnly),
		To:        act.To.Format(time.DateOnly),
		Debit:     act.Debit,
		Credit:    act.Credit,
		Net:       act.Net,
	})
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	id, from, to, err := h.periodFor(r)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	led, err := h.service.AccountLedger(r.Context(), id, from, to)
	if err != nil {
		h.fail(w, "account ledger", err)
		return
	}
	view := ledgerView{
		AccountID: led.Account.ID,
		Code:      led.Account.Code,
		From:      led.From.Format(time.DateOnly),
		To:        led.To.Format(time.DateOnly),
		Opening:   led.Opening,
		Rows:      make([]ledgerRowView, 0, len(led.Rows)),
		Closing:   led.Closing,
	}
	for _, row := range led.Rows {
		view.Rows = append(view.Rows, ledgerRowView{
			EntryID:     row.EntryID,
			EntryNumber: row.EntryNumber,
			EntryDate:   row.EntryDate.Format(time.DateOnly),
			Reference:   row.Reference,
			Description: row.Description,
			Debit:       row.Debit,
			Credit:      row.Credit,
			Running:     row.Running,
		})
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := shared.QueryDate(r, "as_of", h.now())
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	view := trialBalanceView{
		AsOf:        tb.AsOf.Format(time.DateOnly),
		Rows:        make([]trialBalanceRowView, 0, len(tb.Rows)),
		TotalDebit:  tb.TotalDebit,
		TotalCredit: tb.TotalCredit,
		Balanced:    tb.IsBalanced(),
	}
	for _, row := range tb.Rows {
		view.Rows = append(view.Rows, trialBalanceRowView{
			AccountID: row.Account.ID,
			Code:      row.Account.Code,
			Name:      row.Account.Name,
			Type:      string(row.Account.Type),
			Debit:     row.Debit,
			Credit:    row.Credit,
		})
	}
	httpx.JSON(w, http.StatusOK, view)
}

// periodFor reads the account id and a from/to window defaulting to the
// current month.
func (h *Handler) periodFor(r *http.Request) (int64, time.Time, time.Time, error) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		return 0, time.Time{}, time.Time{}, err
	}
	to, err := shared.QueryDate(r, "to", h.now())
	if err != nil {
		return 0, time.Time{}, time.Time{}, err
	}
	from, err := shared.QueryDate(r, "from", shared.Date(to.Year(), to.Month(), 1))
	if err != nil {
		return 0, time.Time{}, time.Time{}, err
	}
	return id, from, to, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.RespondError(w, err)
}
