package reports

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type reportService interface {
	TrialBalance(ctx context.Context, from, to time.Time) (TrialBalance, error)
	ProfitAndLoss(ctx context.Context, from, to time.Time) (ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error)
}

// Handler serves financial statements. Identical concurrent requests share
// one computation.
type Handler struct {
	logger  *slog.Logger
	service reportService
	group   singleflight.Group
	now     func() time.Time
}

// NewHandler constructs the report handler.
func NewHandler(logger *slog.Logger, service reportService) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers report endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/profit-and-loss", h.profitAndLoss)
	r.Get("/balance-sheet", h.balanceSheet)
}

type amountView struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type sectionView struct {
	Label    string          `json:"label"`
	Accounts []amountView    `json:"accounts"`
	Total    decimal.Decimal `json:"total"`
}

type trialBalanceRowView struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Opening decimal.Decimal `json:"opening"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Closing decimal.Decimal `json:"closing"`
}

type trialBalanceGroupView struct {
	Key      string                `json:"key"`
	Accounts []trialBalanceRowView `json:"accounts"`
	Debit    decimal.Decimal       `json:"debit"`
	Credit   decimal.Decimal       `json:"credit"`
}

type trialBalanceView struct {
	From        string                  `json:"from"`
	To          string                  `json:"to"`
	Groups      []trialBalanceGroupView `json:"groups"`
	TotalDebit  decimal.Decimal         `json:"total_debit"`
	TotalCredit decimal.Decimal         `json:"total_credit"`
	Balanced    bool                    `json:"balanced"`
}

type profitAndLossView struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Revenue   sectionView     `json:"revenue"`
	Expense   sectionView     `json:"expense"`
	NetIncome decimal.Decimal `json:"net_income"`
}

type balanceSheetView struct {
	AsOf                      string          `json:"as_of"`
	Assets                    sectionView     `json:"assets"`
	Liabilities               sectionView     `json:"liabilities"`
	Equity                    sectionView     `json:"equity"`
	CurrentEarnings           decimal.Decimal `json:"current_earnings"`
	TotalLiabilitiesAndEquity decimal.Decimal `json:"total_liabilities_and_equity"`
	Balanced                  bool            `json:"balanced"`
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.period(r)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	key := fmt.Sprintf("tb:%s:%s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	v, err, _ := h.group.Do(key, func() (any, error) {
		return h.service.TrialBalance(r.Context(), from, to)
	})
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	tb := v.(TrialBalance)
	view := trialBalanceView{
		From:        tb.From.Format(time.DateOnly),
		To:          tb.To.Format(time.DateOnly),
		TotalDebit:  tb.TotalDebit,
		TotalCredit: tb.TotalCredit,
		Balanced:    tb.IsBalanced(),
	}
	for _, grp := range tb.Groups {
		gv := trialBalanceGroupView{Key: grp.Key, Debit: grp.Debit, Credit: grp.Credit}
		for _, row := range grp.Accounts {
			gv.Accounts = append(gv.Accounts, trialBalanceRowView{
				Code:    row.Code,
				Name:    row.Name,
				Type:    string(row.Type),
				Opening: row.Opening,
				Debit:   row.Debit,
				Credit:  row.Credit,
				Closing: row.Closing,
			})
		}
		view.Groups = append(view.Groups, gv)
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.period(r)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	key := fmt.Sprintf("pl:%s:%s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	v, err, _ := h.group.Do(key, func() (any, error) {
		return h.service.ProfitAndLoss(r.Context(), from, to)
	})
	if err != nil {
		h.fail(w, "profit and loss", err)
		return
	}
	pl := v.(ProfitAndLoss)
	httpx.JSON(w, http.StatusOK, profitAndLossView{
		From:      pl.From.Format(time.DateOnly),
		To:        pl.To.Format(time.DateOnly),
		Revenue:   plSection(pl.Revenue),
		Expense:   plSection(pl.Expense),
		NetIncome: pl.NetIncome,
	})
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := shared.QueryDate(r, "as_of", h.now())
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	v, err, _ := h.group.Do("bs:"+asOf.Format(time.DateOnly), func() (any, error) {
		return h.service.BalanceSheet(r.Context(), asOf)
	})
	if err != nil {
		h.fail(w, "balance sheet", err)
		return
	}
	bs := v.(BalanceSheet)
	httpx.JSON(w, http.StatusOK, balanceSheetView{
		AsOf:                      bs.AsOf.Format(time.DateOnly),
		Assets:                    bsSection(bs.Assets),
		Liabilities:               bsSection(bs.Liabilities),
		Equity:                    bsSection(bs.Equity),
		CurrentEarnings:           bs.CurrentEarnings,
		TotalLiabilitiesAndEquity: bs.TotalLiabilitiesAndEquity,
		Balanced:                  bs.IsBalanced(),
	})
}

// period reads from/to, defaulting to the calendar year to date.
func (h *Handler) period(r *http.Request) (time.Time, time.Time, error) {
	to, err := shared.QueryDate(r, "to", h.now())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := shared.QueryDate(r, "from", shared.Date(to.Year(), time.January, 1))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func (h *Handler) fail(w http.ResponseWriter, report string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error("build report", slog.String("report", report), slog.Any("error", err))
	}
	shared.RespondError(w, err)
}

func plSection(sec ProfitAndLossSection) sectionView {
	out := sectionView{Label: sec.Label, Total: sec.Total, Accounts: []amountView{}}
	for _, acc := range sec.Accounts {
		out.Accounts = append(out.Accounts, amountView{Code: acc.Code, Name: acc.Name, Amount: acc.Amount})
	}
	return out
}

func bsSection(sec BalanceSheetSection) sectionView {
	out := sectionView{Label: sec.Label, Total: sec.Total, Accounts: []amountView{}}
	for _, acc := range sec.Accounts {
		out.Accounts = append(out.Accounts, amountView{Code: acc.Code, Name: acc.Name, Amount: acc.Balance})
	}
	return out
}
