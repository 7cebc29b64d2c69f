package integration

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// EventRecorder counts business events by outcome.
type EventRecorder interface {
	ObserveEvent(event, outcome string)
}

// Handler accepts business events over HTTP for modules running out of
// process.
type Handler struct {
	logger   *slog.Logger
	hooks    *Hooks
	recorder EventRecorder
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, hooks *Hooks) *Handler {
	return &Handler{logger: logger, hooks: hooks}
}

// WithRecorder reports every handled event to rec.
func (h *Handler) WithRecorder(rec EventRecorder) *Handler {
	h.recorder = rec
	return h
}

// MountRoutes registers one POST route per event kind.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", h.event("sale", func(ctx context.Context, req eventRequest) (PostingResult, error) {
		return h.hooks.PostSale(ctx, Sale{OrderID: req.ID, Number: req.Reference, Date: req.date, Net: req.Amount, Paid: req.Paid, ActorID: req.actor})
	}))
	r.Post("/customer-payments", h.event("customer_payment", func(ctx context.Context, req eventRequest) (PostingResult, error) {
		return h.hooks.PostCustomerPayment(ctx, CustomerPayment{PaymentID: req.ID, Reference: req.Reference, Date: req.date, Amount: req.Amount, ToBank: req.Bank, ActorID: req.actor})
	}))
	r.Post("/purchases", h.event("purchase", func(ctx context.Context, req eventRequest) (PostingResult, error) {
		return h.hooks.PostPurchase(ctx, Purchase{PayableID: req.ID, Number: req.Reference, Date: req.date, Amount: req.Amount, Inventory: req.Inventory, ActorID: req.actor})
	}))
	r.Post("/supplier-payments", h.event("supplier_payment", func(ctx context.Context, req eventRequest) (PostingResult, error) {
		return h.hooks.PostSupplierPayment(ctx, SupplierPayment{PaymentID: req.ID, Reference: req.Reference, Date: req.date, Amount: req.Amount, FromBank: req.Bank, ActorID: req.actor})
	}))
	r.Post("/expenses", h.event("expense", func(ctx context.Context, req eventRequest) (PostingResult, error) {
		return h.hooks.PostExpense(ctx, Expense{ExpenseID: req.ID, Description: req.Description, Date: req.date, Amount: req.Amount, ActorID: req.actor})
	}))
	r.Post("/refunds", h.event("refund", func(ctx context.Context, req eventRequest) (PostingResult, error) {
		return h.hooks.PostRefund(ctx, Refund{RefundID: req.ID, OrderID: req.OrderID, Date: req.date, Net: req.Amount, ActorID: req.actor})
	}))
	r.Post("/bad-debts", h.event("bad_debt", func(ctx context.Context, req eventRequest) (PostingResult, error) {
		return h.hooks.PostBadDebt(ctx, BadDebt{ReceivableID: req.ID, Date: req.date, Amount: req.Amount, Reason: req.Description, ActorID: req.actor})
	}))
}

type eventRequest struct {
	ID          int64           `json:"id" validate:"required,gt=0"`
	Reference   string          `json:"reference"`
	Date        string          `json:"date" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Paid        bool            `json:"paid"`
	Bank        bool            `json:"bank"`
	Inventory   bool            `json:"inventory"`
	OrderID     int64           `json:"order_id"`
	Description string          `json:"description"`

	date  time.Time
	actor int64
}

type postingView struct {
	Posted          bool               `json:"posted"`
	Skipped         bool               `json:"skipped"`
	AlreadyPosted   bool               `json:"already_posted"`
	MissingSubtypes []accounts.Subtype `json:"missing_subtypes,omitempty"`
	EntryID         int64              `json:"entry_id,omitempty"`
	EntryNumber     string             `json:"entry_number,omitempty"`
}

func (h *Handler) event(name string, post func(context.Context, eventRequest) (PostingResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req eventRequest
		if err := httpx.DecodeAndValidate(r, &req); err != nil {
			h.observe(name, OutcomeRejected)
			shared.RespondError(w, err)
			return
		}
		date, err := shared.ParseDate(req.Date)
		if err != nil {
			h.observe(name, OutcomeRejected)
			shared.RespondError(w, err)
			return
		}
		req.date = date
		req.actor = internalShared.ActorFromContext(r.Context())

		res, err := post(r.Context(), req)
		if err != nil {
			if shared.IsClientError(err) {
				h.observe(name, OutcomeRejected)
			} else {
				h.observe(name, OutcomeFailed)
				h.logger.Error("post business event", slog.String("event", name), slog.Any("error", err))
			}
			shared.RespondError(w, err)
			return
		}
		h.observe(name, res.Outcome())
		view := postingView{
			Posted:          res.Posted(),
			Skipped:         res.Skipped,
			AlreadyPosted:   res.AlreadyPosted,
			MissingSubtypes: res.MissingSubtypes,
		}
		status := http.StatusOK
		if res.Entry != nil {
			status = http.StatusCreated
			view.EntryID = res.Entry.ID
			view.EntryNumber = res.Entry.Number
		}
		httpx.JSON(w, status, view)
	}
}

func (h *Handler) observe(event, outcome string) {
	if h.recorder != nil {
		h.recorder.ObserveEvent(event, outcome)
	}
}
