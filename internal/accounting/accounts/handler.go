package accounts

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type accountService interface {
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	UpdateAccount(ctx context.Context, id int64, in UpdateAccountInput) (Account, error)
	DeleteAccount(ctx context.Context, in DeleteAccountInput) error
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error)
	ResolveFunctional(ctx context.Context, subtype Subtype) (Account, bool, error)
	SeedChart(ctx context.Context, chart Chart, actorID int64) (SeedResult, error)
}

// Handler serves the chart of accounts API.
type Handler struct {
	service accountService
	logger  *slog.Logger
}

// NewHandler constructs the accounts handler.
func NewHandler(logger *slog.Logger, service accountService) *Handler {
	return &Handler{logger: logger, service: service}
}

type accountRequest struct {
	Code               string          `json:"code" validate:"required,max=10"`
	Name               string          `json:"name" validate:"required"`
	LocalName          string          `json:"local_name"`
	Type               string          `json:"type" validate:"required"`
	Subtype            string          `json:"subtype"`
	ParentID           *int64          `json:"parent_id" validate:"omitempty,gt=0"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningBalanceDate string          `json:"opening_balance_date"`
	IsActive           *bool           `json:"is_active"`
}

type accountView struct {
	ID                 int64           `json:"id"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	LocalName          string          `json:"local_name,omitempty"`
	Type               AccountType     `json:"type"`
	Subtype            Subtype         `json:"subtype,omitempty"`
	ParentID           *int64          `json:"parent_id,omitempty"`
	Level              int             `json:"level"`
	NormalSide         Side            `json:"normal_side"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningBalanceDate string          `json:"opening_balance_date,omitempty"`
	IsSystem           bool            `json:"is_system"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func toView(a Account) accountView {
	return accountView{
		ID:                 a.ID,
		Code:               a.Code,
		Name:               a.Name,
		LocalName:          a.LocalName,
		Type:               a.Type,
		Subtype:            a.Subtype,
		ParentID:           a.ParentID,
		Level:              a.Level,
		NormalSide:         a.NormalSide(),
		OpeningBalance:     a.OpeningBalance,
		OpeningBalanceDate: shared.FormatDate(a.OpeningBalanceDate),
		IsSystem:           a.IsSystem,
		IsActive:           a.IsActive,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{ActiveOnly: r.URL.Query().Get("active") == "true"}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, ok := ParseAccountType(raw)
		if !ok {
			shared.RespondError(w, shared.Validationf("unknown account type %q", raw))
			return
		}
		filter.Type = t
	}
	list, err := h.service.ListAccounts(r.Context(), filter)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	out := make([]accountView, 0, len(list))
	for _, a := range list {
		out = append(out, toView(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.fail(w, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(account))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	openingDate, err := shared.OptionalDate(req.OpeningBalanceDate)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	t, _ := ParseAccountType(req.Type)
	account, err := h.service.CreateAccount(r.Context(), CreateAccountInput{
		Code:               req.Code,
		Name:               req.Name,
		LocalName:          req.LocalName,
		Type:               t,
		Subtype:            Subtype(req.Subtype),
		ParentID:           req.ParentID,
		OpeningBalance:     req.OpeningBalance,
		OpeningBalanceDate: openingDate,
		ActorID:            internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(account))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	var req accountRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	openingDate, err := shared.OptionalDate(req.OpeningBalanceDate)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	t, _ := ParseAccountType(req.Type)
	account, err := h.service.UpdateAccount(r.Context(), id, UpdateAccountInput{
		Code:               req.Code,
		Name:               req.Name,
		LocalName:          req.LocalName,
		Type:               t,
		Subtype:            Subtype(req.Subtype),
		ParentID:           req.ParentID,
		OpeningBalance:     req.OpeningBalance,
		OpeningBalanceDate: openingDate,
		IsActive:           active,
		ActorID:            internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(account))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	err = h.service.DeleteAccount(r.Context(), DeleteAccountInput{
		AccountID: id,
		ActorID:   internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Functional resolves the account playing a subtype role.
func (h *Handler) Functional(w http.ResponseWriter, r *http.Request) {
	subtype := Subtype(r.URL.Query().Get("subtype"))
	if subtype == SubtypeNone {
		shared.RespondError(w, shared.Validationf("subtype required"))
		return
	}
	account, found, err := h.service.ResolveFunctional(r.Context(), subtype)
	if err != nil {
		h.fail(w, "resolve functional account", err)
		return
	}
	if !found {
		shared.RespondError(w, shared.Wrap(shared.ErrNotFound, "no active account with subtype "+string(subtype)))
		return
	}
	httpx.JSON(w, http.StatusOK, toView(account))
}

// Seed imports a YAML chart from the body, or the bundled chart when the
// body is empty.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	var (
		chart Chart
		err   error
	)
	if r.ContentLength == 0 {
		chart, err = DefaultChart()
	} else {
		chart, err = LoadChart(r.Body)
	}
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	result, err := h.service.SeedChart(r.Context(), chart, internalShared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "seed chart", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"created": result.Created, "skipped": result.Skipped})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.RespondError(w, err)
}
