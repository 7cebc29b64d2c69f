package fiscalyears

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type fiscalYearService interface {
	Create(ctx context.Context, in CreateInput) (FiscalYear, error)
	FindByDate(ctx context.Context, date time.Time) (FiscalYear, bool, error)
	Get(ctx context.Context, id int64) (FiscalYear, error)
	List(ctx context.Context) ([]FiscalYear, error)
	PreviewClose(ctx context.Context, id int64) (ClosePreview, error)
	Close(ctx context.Context, in CloseInput) (CloseResult, error)
}

// Handler serves fiscal year management.
type Handler struct {
	logger  *slog.Logger
	service fiscalYearService
	now     func() time.Time
}

// NewHandler constructs the fiscal year handler.
func NewHandler(logger *slog.Logger, service fiscalYearService) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers fiscal year endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/current", h.current)
	r.Get("/{id}", h.get)
	r.Get("/{id}/close-preview", h.previewClose)
	r.Post("/{id}/close", h.close)
}

type createRequest struct {
	Name      string `json:"name" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

type fiscalYearView struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	StartDate      string     `json:"start_date"`
	EndDate        string     `json:"end_date"`
	IsClosed       bool       `json:"is_closed"`
	ClosingEntryID *int64     `json:"closing_entry_id,omitempty"`
	ClosedBy       *int64     `json:"closed_by,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

type closingLineView struct {
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type previewView struct {
	FiscalYear       fiscalYearView    `json:"fiscal_year"`
	RetainedEarnings int64             `json:"retained_earnings_account_id"`
	Revenue          decimal.Decimal   `json:"revenue"`
	Expenses         decimal.Decimal   `json:"expenses"`
	NetIncome        decimal.Decimal   `json:"net_income"`
	Lines            []closingLineView `json:"lines"`
}

type closeView struct {
	FiscalYear     fiscalYearView  `json:"fiscal_year"`
	ClosingEntryID *int64          `json:"closing_entry_id,omitempty"`
	EntryNumber    string          `json:"entry_number,omitempty"`
	NetIncome      decimal.Decimal `json:"net_income"`
}

func toView(fy FiscalYear) fiscalYearView {
	return fiscalYearView{
		ID:             fy.ID,
		Name:           fy.Name,
		StartDate:      fy.StartDate.Format(time.DateOnly),
		EndDate:        fy.EndDate.Format(time.DateOnly),
		IsClosed:       fy.IsClosed,
		ClosingEntryID: fy.ClosingEntryID,
		ClosedBy:       fy.ClosedBy,
		ClosedAt:       fy.ClosedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list fiscal years", err)
		return
	}
	out := make([]fiscalYearView, 0, len(years))
	for _, fy := range years {
		out = append(out, toView(fy))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	start, err := shared.ParseDate(req.StartDate)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	end, err := shared.ParseDate(req.EndDate)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	fy, err := h.service.Create(r.Context(), CreateInput{
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		ActorID:   internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "create fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(fy))
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	date, err := shared.QueryDate(r, "date", h.now())
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	fy, found, err := h.service.FindByDate(r.Context(), date)
	if err != nil {
		h.fail(w, "find fiscal year", err)
		return
	}
	if !found {
		shared.RespondError(w, ErrFiscalYearNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(fy))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	fy, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(fy))
}

func (h *Handler) previewClose(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	preview, err := h.service.PreviewClose(r.Context(), id)
	if err != nil {
		h.fail(w, "preview close", err)
		return
	}
	view := previewView{
		FiscalYear:       toView(preview.FiscalYear),
		RetainedEarnings: preview.RetainedEarnings.ID,
		Revenue:          preview.Revenue,
		Expenses:         preview.Expenses,
		NetIncome:        preview.NetIncome,
		Lines:            make([]closingLineView, 0, len(preview.Lines)),
	}
	for _, line := range preview.Lines {
		view.Lines = append(view.Lines, closingLineView{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit})
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	res, err := h.service.Close(r.Context(), CloseInput{
		FiscalYearID: id,
		ActorID:      internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "close fiscal year", err)
		return
	}
	view := closeView{FiscalYear: toView(res.FiscalYear), NetIncome: res.NetIncome}
	if res.ClosingEntry != nil {
		view.ClosingEntryID = &res.ClosingEntry.ID
		view.EntryNumber = res.ClosingEntry.Number
	}
	h.logger.Info("fiscal year closed", slog.Int64("fiscal_year_id", id), slog.String("net_income", res.NetIncome.String()))
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.RespondError(w, err)
}
