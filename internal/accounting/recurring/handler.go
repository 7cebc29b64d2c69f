package recurring

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type recurringService interface {
	CreateTemplate(ctx context.Context, in CreateTemplateInput) (Template, error)
	SetActive(ctx context.Context, id int64, active bool, actorID int64) (Template, error)
	Get(ctx context.Context, id int64) (Template, error)
	List(ctx context.Context, filter TemplateFilter) ([]Template, error)
	PreviewDue(ctx context.Context, today time.Time) ([]Preview, error)
	GenerateDue(ctx context.Context, today time.Time) ([]RunResult, error)
	RunNow(ctx context.Context, id int64, actorID int64) (RunResult, error)
}

// Handler serves recurring template management and generation.
type Handler struct {
	logger  *slog.Logger
	service recurringService
	now     func() time.Time
}

// NewHandler constructs the recurring handler.
func NewHandler(logger *slog.Logger, service recurringService) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers recurring endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/due", h.previewDue)
	r.Post("/generate", h.generate)
	r.Get("/{id}", h.get)
	r.Put("/{id}/active", h.setActive)
	r.Post("/{id}/run", h.runNow)
}

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type createRequest struct {
	Name           string        `json:"name" validate:"required"`
	Description    string        `json:"description"`
	Reference      string        `json:"reference"`
	Frequency      string        `json:"frequency" validate:"required,oneof=daily weekly monthly quarterly yearly"`
	DayOfWeek      *int          `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	DayOfMonth     *int          `json:"day_of_month" validate:"omitempty,min=1,max=31"`
	MonthOfYear    *int          `json:"month_of_year" validate:"omitempty,min=1,max=12"`
	StartDate      string        `json:"start_date" validate:"required"`
	EndDate        string        `json:"end_date"`
	MaxOccurrences *int          `json:"max_occurrences" validate:"omitempty,gt=0"`
	Lines          []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

type generateRequest struct {
	Date string `json:"date"`
}

type templateLineView struct {
	AccountID   int64           `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

type templateView struct {
	ID             int64              `json:"id"`
	Name           string             `json:"name"`
	Description    string             `json:"description,omitempty"`
	Reference      string             `json:"reference,omitempty"`
	Frequency      Frequency          `json:"frequency"`
	DayOfWeek      *int               `json:"day_of_week,omitempty"`
	DayOfMonth     *int               `json:"day_of_month,omitempty"`
	MonthOfYear    *int               `json:"month_of_year,omitempty"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date,omitempty"`
	NextRunDate    string             `json:"next_run_date"`
	LastRunDate    string             `json:"last_run_date,omitempty"`
	MaxOccurrences *int               `json:"max_occurrences,omitempty"`
	Occurrences    int                `json:"occurrences"`
	IsActive       bool               `json:"is_active"`
	Amount         decimal.Decimal    `json:"amount"`
	Lines          []templateLineView `json:"lines"`
}

type previewView struct {
	TemplateID  int64           `json:"template_id"`
	Name        string          `json:"name"`
	RunDate     string          `json:"run_date"`
	NextRunDate string          `json:"next_run_date"`
	Amount      decimal.Decimal `json:"amount"`
}

type runView struct {
	TemplateID  int64  `json:"template_id"`
	Name        string `json:"name"`
	RunDate     string `json:"run_date"`
	EntryID     int64  `json:"entry_id,omitempty"`
	EntryNumber string `json:"entry_number,omitempty"`
	Error       string `json:"error,omitempty"`
}

type generateView struct {
	Date      string    `json:"date"`
	Generated int       `json:"generated"`
	Failed    int       `json:"failed"`
	Results   []runView `json:"results"`
}

func toView(t Template) templateView {
	v := templateView{
		ID:             t.ID,
		Name:           t.Name,
		Description:    t.Description,
		Reference:      t.Reference,
		Frequency:      t.Frequency,
		DayOfWeek:      t.DayOfWeek,
		DayOfMonth:     t.DayOfMonth,
		MonthOfYear:    t.MonthOfYear,
		StartDate:      t.StartDate.Format(time.DateOnly),
		EndDate:        shared.FormatDate(t.EndDate),
		NextRunDate:    t.NextRunDate.Format(time.DateOnly),
		LastRunDate:    shared.FormatDate(t.LastRunDate),
		MaxOccurrences: t.MaxOccurrences,
		Occurrences:    t.Occurrences,
		IsActive:       t.IsActive,
		Amount:         t.Amount(),
		Lines:          make([]templateLineView, 0, len(t.Lines)),
	}
	for _, line := range t.Lines {
		v.Lines = append(v.Lines, templateLineView{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return v
}

func toRunView(res RunResult) runView {
	v := runView{TemplateID: res.TemplateID, Name: res.Name}
	if !res.RunDate.IsZero() {
		v.RunDate = res.RunDate.Format(time.DateOnly)
	}
	if res.Entry != nil {
		v.EntryID = res.Entry.ID
		v.EntryNumber = res.Entry.Number
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.List(r.Context(), TemplateFilter{ActiveOnly: r.URL.Query().Get("active") == "true"})
	if err != nil {
		h.fail(w, "list recurring templates", err)
		return
	}
	out := make([]templateView, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, toView(tpl))
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
	end, err := shared.OptionalDate(req.EndDate)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	in := CreateTemplateInput{
		Name:           req.Name,
		Description:    req.Description,
		Reference:      req.Reference,
		Frequency:      Frequency(req.Frequency),
		DayOfWeek:      req.DayOfWeek,
		DayOfMonth:     req.DayOfMonth,
		MonthOfYear:    req.MonthOfYear,
		StartDate:      start,
		EndDate:        end,
		MaxOccurrences: req.MaxOccurrences,
		ActorID:        internalShared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, journals.LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	tpl, err := h.service.CreateTemplate(r.Context(), in)
	if err != nil {
		h.fail(w, "create recurring template", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(tpl))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	tpl, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get recurring template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(tpl))
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	var req activeRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	tpl, err := h.service.SetActive(r.Context(), id, req.Active, internalShared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "toggle recurring template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(tpl))
}

func (h *Handler) previewDue(w http.ResponseWriter, r *http.Request) {
	date, err := shared.QueryDate(r, "date", h.now())
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	previews, err := h.service.PreviewDue(r.Context(), date)
	if err != nil {
		h.fail(w, "preview recurring", err)
		return
	}
	out := make([]previewView, 0, len(previews))
	for _, p := range previews {
		out = append(out, previewView{
			TemplateID:  p.TemplateID,
			Name:        p.Name,
			RunDate:     p.RunDate.Format(time.DateOnly),
			NextRunDate: p.NextRunDate.Format(time.DateOnly),
			Amount:      p.Amount,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

// generate runs every due template. Per-template failures are reported in
// the body; the status only reflects the batch itself.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeAndValidate(r, &req); err != nil {
			shared.RespondError(w, err)
			return
		}
	}
	date := shared.DateOnly(h.now())
	if req.Date != "" {
		parsed, err := shared.ParseDate(req.Date)
		if err != nil {
			shared.RespondError(w, err)
			return
		}
		date = parsed
	}
	results, err := h.service.GenerateDue(r.Context(), date)
	if err != nil {
		h.fail(w, "generate recurring", err)
		return
	}
	generated, failed := Summarize(results)
	view := generateView{
		Date:      date.Format(time.DateOnly),
		Generated: generated,
		Failed:    failed,
		Results:   make([]runView, 0, len(results)),
	}
	for _, res := range results {
		view.Results = append(view.Results, toRunView(res))
	}
	h.logger.Info("recurring generation", slog.String("date", view.Date), slog.Int("generated", generated), slog.Int("failed", failed))
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) runNow(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	res, err := h.service.RunNow(r.Context(), id, internalShared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "run recurring template", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRunView(res))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.RespondError(w, err)
}
