package reconciliation

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

type reconciliationService interface {
	CreateBankAccount(ctx context.Context, in CreateBankAccountInput) (BankAccount, error)
	GetBankAccount(ctx context.Context, id int64) (BankAccount, error)
	ListBankAccounts(ctx context.Context) ([]BankAccount, error)
	RecordTransactions(ctx context.Context, in RecordTransactionsInput) (RecordResult, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]BankTransaction, error)
	BookTransactions(ctx context.Context, bankAccountID int64, from, to time.Time) ([]BookTransaction, error)
	SuggestMatches(ctx context.Context, bankAccountID int64, from, to time.Time, windowDays int) (MatchResult, error)
	Reconcile(ctx context.Context, in ReconcileInput) (Reconciliation, error)
	ListReconciliations(ctx context.Context, bankAccountID int64) ([]Reconciliation, error)
}

// Handler serves bank accounts, statement imports and reconciliation.
type Handler struct {
	logger  *slog.Logger
	service reconciliationService
	now     func() time.Time
}

// NewHandler constructs the reconciliation handler.
func NewHandler(logger *slog.Logger, service reconciliationService) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers bank endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listAccounts)
	r.Post("/", h.createAccount)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getAccount)
		r.Get("/transactions", h.listTransactions)
		r.Post("/transactions", h.recordTransactions)
		r.Get("/book", h.book)
		r.Get("/matches", h.matches)
		r.Get("/reconciliations", h.listReconciliations)
		r.Post("/reconciliations", h.reconcile)
	})
}

type createAccountRequest struct {
	Name          string `json:"name" validate:"required"`
	AccountNumber string `json:"account_number"`
	GLAccountID   int64  `json:"gl_account_id" validate:"required,gt=0"`
}

type transactionRequest struct {
	Date        string          `json:"date" validate:"required"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"external_ref"`
}

type recordRequest struct {
	Transactions []transactionRequest `json:"transactions" validate:"required,min=1,dive"`
}

type reconcileRequest struct {
	StatementDate         string          `json:"statement_date" validate:"required"`
	StatementBalance      decimal.Decimal `json:"statement_balance"`
	ClearedTransactionIDs []int64         `json:"cleared_transaction_ids"`
}

type bankAccountView struct {
	ID                    int64            `json:"id"`
	Name                  string           `json:"name"`
	AccountNumber         string           `json:"account_number,omitempty"`
	GLAccountID           int64            `json:"gl_account_id"`
	LastReconciledAt      string           `json:"last_reconciled_at,omitempty"`
	LastReconciledBalance *decimal.Decimal `json:"last_reconciled_balance,omitempty"`
}

type transactionView struct {
	ID               int64           `json:"id"`
	Date             string          `json:"date"`
	Description      string          `json:"description,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	ExternalRef      string          `json:"external_ref,omitempty"`
	IsReconciled     bool            `json:"is_reconciled"`
	ReconciliationID *int64          `json:"reconciliation_id,omitempty"`
}

type bookView struct {
	EntryID     int64           `json:"entry_id"`
	EntryNumber string          `json:"entry_number"`
	Date        string          `json:"date"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

type matchView struct {
	Bank    transactionView `json:"bank"`
	Book    bookView        `json:"book"`
	DayDiff int             `json:"day_diff"`
}

type matchResultView struct {
	Matches       []matchView       `json:"matches"`
	UnmatchedBank []transactionView `json:"unmatched_bank"`
	UnmatchedBook []bookView        `json:"unmatched_book"`
}

type reconciliationView struct {
	ID               int64           `json:"id"`
	BankAccountID    int64           `json:"bank_account_id"`
	StatementDate    string          `json:"statement_date"`
	StatementBalance decimal.Decimal `json:"statement_balance"`
	GLBalance        decimal.Decimal `json:"gl_balance"`
	Difference       decimal.Decimal `json:"difference"`
	Status           Status          `json:"status"`
	ClearedCount     int             `json:"cleared_count"`
	CompletedBy      int64           `json:"completed_by"`
	CompletedAt      time.Time       `json:"completed_at"`
}

func toAccountView(a BankAccount) bankAccountView {
	return bankAccountView{
		ID:                    a.ID,
		Name:                  a.Name,
		AccountNumber:         a.AccountNumber,
		GLAccountID:           a.GLAccountID,
		LastReconciledAt:      shared.FormatDate(a.LastReconciledAt),
		LastReconciledBalance: a.LastReconciledBalance,
	}
}

func toTransactionView(t BankTransaction) transactionView {
	return transactionView{
		ID:               t.ID,
		Date:             t.TransactionDate.Format(time.DateOnly),
		Description:      t.Description,
		Amount:           t.Amount,
		ExternalRef:      t.ExternalRef,
		IsReconciled:     t.IsReconciled,
		ReconciliationID: t.ReconciliationID,
	}
}

func toBookView(b BookTransaction) bookView {
	return bookView{
		EntryID:     b.EntryID,
		EntryNumber: b.EntryNumber,
		Date:        b.Date.Format(time.DateOnly),
		Reference:   b.Reference,
		Description: b.Description,
		Amount:      b.Amount,
	}
}

func toReconciliationView(rec Reconciliation) reconciliationView {
	return reconciliationView{
		ID:               rec.ID,
		BankAccountID:    rec.BankAccountID,
		StatementDate:    rec.StatementDate.Format(time.DateOnly),
		StatementBalance: rec.StatementBalance,
		GLBalance:        rec.GLBalance,
		Difference:       rec.Difference,
		Status:           rec.Status,
		ClearedCount:     rec.ClearedCount,
		CompletedBy:      rec.CompletedBy,
		CompletedAt:      rec.CompletedAt,
	}
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListBankAccounts(r.Context())
	if err != nil {
		h.fail(w, "list bank accounts", err)
		return
	}
	out := make([]bankAccountView, 0, len(list))
	for _, a := range list {
		out = append(out, toAccountView(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	account, err := h.service.CreateBankAccount(r.Context(), CreateBankAccountInput{
		Name:          req.Name,
		AccountNumber: req.AccountNumber,
		GLAccountID:   req.GLAccountID,
		ActorID:       internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "create bank account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountView(account))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	account, err := h.service.GetBankAccount(r.Context(), id)
	if err != nil {
		h.fail(w, "get bank account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountView(account))
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
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
	txns, err := h.service.ListTransactions(r.Context(), TransactionFilter{
		BankAccountID:    id,
		From:             from,
		To:               to,
		UnreconciledOnly: q.Get("unreconciled") == "true",
	})
	if err != nil {
		h.fail(w, "list bank transactions", err)
		return
	}
	out := make([]transactionView, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionView(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) recordTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	var req recordRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	in := RecordTransactionsInput{BankAccountID: id, ActorID: internalShared.ActorFromContext(r.Context())}
	for _, t := range req.Transactions {
		date, err := shared.ParseDate(t.Date)
		if err != nil {
			shared.RespondError(w, err)
			return
		}
		in.Transactions = append(in.Transactions, TransactionInput{
			Date:        date,
			Description: t.Description,
			Amount:      t.Amount,
			ExternalRef: t.ExternalRef,
		})
	}
	res, err := h.service.RecordTransactions(r.Context(), in)
	if err != nil {
		h.fail(w, "record bank transactions", err)
		return
	}
	inserted := make([]transactionView, 0, len(res.Inserted))
	for _, t := range res.Inserted {
		inserted = append(inserted, toTransactionView(t))
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"inserted": inserted, "duplicates": res.Duplicates})
}

func (h *Handler) book(w http.ResponseWriter, r *http.Request) {
	id, from, to, err := h.window(r)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	book, err := h.service.BookTransactions(r.Context(), id, from, to)
	if err != nil {
		h.fail(w, "book transactions", err)
		return
	}
	out := make([]bookView, 0, len(book))
	for _, b := range book {
		out = append(out, toBookView(b))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) matches(w http.ResponseWriter, r *http.Request) {
	id, from, to, err := h.window(r)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	windowDays := DefaultMatchWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		windowDays, err = strconv.Atoi(raw)
		if err != nil || windowDays < 0 {
			shared.RespondError(w, shared.Validationf("invalid window"))
			return
		}
	}
	res, err := h.service.SuggestMatches(r.Context(), id, from, to, windowDays)
	if err != nil {
		h.fail(w, "suggest matches", err)
		return
	}
	view := matchResultView{
		Matches:       make([]matchView, 0, len(res.Matches)),
		UnmatchedBank: make([]transactionView, 0, len(res.UnmatchedBank)),
		UnmatchedBook: make([]bookView, 0, len(res.UnmatchedBook)),
	}
	for _, m := range res.Matches {
		view.Matches = append(view.Matches, matchView{Bank: toTransactionView(m.Bank), Book: toBookView(m.Book), DayDiff: m.DayDiff})
	}
	for _, t := range res.UnmatchedBank {
		view.UnmatchedBank = append(view.UnmatchedBank, toTransactionView(t))
	}
	for _, b := range res.UnmatchedBook {
		view.UnmatchedBook = append(view.UnmatchedBook, toBookView(b))
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	var req reconcileRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	date, err := shared.ParseDate(req.StatementDate)
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	rec, err := h.service.Reconcile(r.Context(), ReconcileInput{
		BankAccountID:         id,
		StatementDate:         date,
		StatementBalance:      req.StatementBalance,
		ClearedTransactionIDs: req.ClearedTransactionIDs,
		ActorID:               internalShared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "reconcile", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReconciliationView(rec))
}

func (h *Handler) listReconciliations(w http.ResponseWriter, r *http.Request) {
	id, err := shared.URLID(r, "id")
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	recs, err := h.service.ListReconciliations(r.Context(), id)
	if err != nil {
		h.fail(w, "list reconciliations", err)
		return
	}
	out := make([]reconciliationView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toReconciliationView(rec))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// window reads the bank account id and a from/to window defaulting to the
// current month.
func (h *Handler) window(r *http.Request) (int64, time.Time, time.Time, error) {
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
