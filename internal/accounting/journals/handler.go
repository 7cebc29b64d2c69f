package journals

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type journalService interface {
	Create(ctx context.Context, in CreateInput) (JournalEntry, error)
	CreatePosted(ctx context.Context, in CreateInput) (JournalEntry, error)
	Post(ctx context.Context, in PostInput) (JournalEntry, error)
	Void(ctx context.Context, in VoidInput) (JournalEntry, error)
	CreateReversingEntry(ctx context.Context, in ReverseInput) (JournalEntry, error)
	Get(ctx context.Context, id int64) (JournalEntry, error)
	List(ctx context.Context, filter ListFilter) ([]JournalEntry, error)
}

// Handler serves the journal entry API.
type Handler struct {
	service journalService
	logger  *slog.Logger
}

// NewHandler constructs the journal handler.
func NewHandler(logger *slog.Logger, service journalService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers journal endpoints. Entries are never deleted; void
// and reverse are the only corrections.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/post", h.Post)
	r.Post("/{id}/void", h.Void)
	r.Post("/{id}/reverse", h.Reverse)
}

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type createRequest struct {
	EntryDate   string        `json:"entry_date" validate:"required"`
	Reference   string        `json:"reference"`
	Description string        `json:"description"`
	Source      string        `json:"source"`
	Post        bool          `json:"post"`
	Lines       []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type reverseRequest struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

type lineView struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
	LineOrder   int             `json:"line_order"`
}

type entryView struct {
	ID           int64           `json:"id"`
	Number       string          `json:"entry_number"`
	EntryDate    string          `json:"entry_date"`
	FiscalYearID *int64          `json:"fiscal_year_id,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	Description  string          `json:"description,omitempty"`
	Status       Status          `json:"status"`
	Source       Source          `json:"source"`
	SourceRef    string          `json:"source_ref,omitempty"`
	ReversalOfID *int64          `json:"reversal_of_id,omitempty"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	CreatedBy    int64           `json:"created_by"`
	PostedBy     *int64          `json:"posted_by,omitempty"`
	PostedAt     *time.Time      `json:"posted_at,omitempty"`
	VoidedBy     *int64          `json:"voided_by,omitempty"`
	VoidedAt     *time.Time      `json:"voided_at,omitempty"`
	VoidReason   string          `json:"void_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Lines        []lineView      `json:"lines,omitempty"`
}

func toView(e JournalEntry) entryView {
	v := entryView{
		ID:           e.ID,
		Number:       e.Number,
		EntryDate:    e.EntryDate.Format(time.DateOnly),
		FiscalYearID: e.FiscalYearID,
		Reference:    e.Reference,
		Description:  e.Description,
		Status:       e.Status,
		Source:       e.Source,
		ReversalOfID: e.ReversalOfID,
		TotalDebit:   e.TotalDebit,
		TotalCredit:  e.TotalCredit,
		CreatedBy:    e.CreatedBy,
		PostedBy:     e.PostedBy,
		PostedAt:     e.PostedAt,
		VoidedBy:     e.VoidedBy,
		VoidedAt:     e.VoidedAt,
		VoidReason:   e.VoidReason,
		CreatedAt:    e.CreatedAt,
	}
	if !e.SourceRef.IsZero() {
		v.SourceRef = e.SourceRef.String()
	}
	for _, line := range e.Lines {
		v.Lines = append(v.Lines, lineView{
			ID:          line.ID,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
			LineOrder:   line.LineOrder,
		})
	}
	return v
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := shared.OptionalDate(q.Get("from"))
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	to, err := shared.OptionalDate(q.Get("to"))
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	filter := ListFilter{
		Status: Status(q.Get("status")),
		Source: Source(q.Get("source")),
		From:   from,
		To:     to,
		Limit:  queryInt(q.Get("limit"), 50),
		Offset: queryInt(q.Get("offset"), 0),
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	out := make([]entryView, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toView(entry))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(entry))
}

// Create stores a draft, or posts it immediately when post is set.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	date, err := shared.ParseDate(req.EntryDate)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	in := CreateInput{
		EntryDate:   date,
		Reference:   req.Reference,
		Description: req.Description,
		Source:      Source(req.Source),
		ActorID:     internalShared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	create := h.service.Create
	if req.Post {
		create = h.service.CreatePosted
	}
	entry, err := create(r.Context(), in)
	if err != nil {
		h.fail(w, "create journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(entry))
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	entry, err := h.service.Post(r.Context(), PostInput{
		EntryID: id,
		ActorID: internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "post journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(entry))
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	var req voidRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	entry, err := h.service.Void(r.Context(), VoidInput{
		EntryID: id,
		ActorID: internalShared.ActorFromContext(r.Context()),
		Reason:  req.Reason,
	})
	if err != nil {
		h.fail(w, "void journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(entry))
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeAndValidate(r, &req); err != nil {
			shared.RespondError(w, err)
			return
		}
	}
	date, err := shared.OptionalDate(req.Date)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	entry, err := h.service.CreateReversingEntry(r.Context(), ReverseInput{
		EntryID:     id,
		ActorID:     internalShared.ActorFromContext(r.Context()),
		Date:        date,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, "reverse journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(entry))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.RespondError(w, err)
}

func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
