package accounting

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/fiscalyears"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/recurring"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

// Handler wires ledger endpoints.
type Handler struct {
	logger *slog.Logger
	ledger *Ledger
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, ledger *Ledger) *Handler {
	return &Handler{logger: logger, ledger: ledger}
}

// MountRoutes registers HTTP routes for every ledger component.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", accounts.NewHandler(h.scoped("accounts"), h.ledger.Accounts).MountRoutes)
	r.Route("/journals", journals.NewHandler(h.scoped("journals"), h.ledger.Journals).MountRoutes)
	r.Route("/balances", balances.NewHandler(h.scoped("balances"), h.ledger.Balances).MountRoutes)
	r.Route("/fiscal-years", fiscalyears.NewHandler(h.scoped("fiscal_years"), h.ledger.FiscalYears).MountRoutes)
	r.Route("/recurring", recurring.NewHandler(h.scoped("recurring"), h.ledger.Recurring).MountRoutes)
	r.Route("/bank-accounts", reconciliation.NewHandler(h.scoped("reconciliation"), h.ledger.Reconciliation).MountRoutes)
	r.Route("/reports", reports.NewHandler(h.scoped("reports"), h.ledger.Reports).MountRoutes)
}

func (h *Handler) scoped(component string) *slog.Logger {
	return h.logger.With(slog.String("component", component))
}
