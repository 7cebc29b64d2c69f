package fiscalyears

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

// Repository abstracts transactional access to fiscal years.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. The closing
// entry is written through the embedded journal surface so it commits with
// the closed flag.
type TxRepository interface {
	journals.TxRepository
	balances.TxRepository
	FindAccountBySubtype(ctx context.Context, subtype accounts.Subtype) (accounts.Account, bool, error)

	InsertFiscalYear(ctx context.Context, fy FiscalYear) (FiscalYear, error)
	FiscalYearOverlaps(ctx context.Context, start, end time.Time) (bool, error)
	GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error)
	GetFiscalYearForUpdate(ctx context.Context, id int64) (FiscalYear, error)
	FindOpenFiscalYearByDate(ctx context.Context, date time.Time) (FiscalYear, bool, error)
	ListFiscalYears(ctx context.Context) ([]FiscalYear, error)
	// MarkFiscalYearClosed stamps the year only if it is still open.
	MarkFiscalYearClosed(ctx context.Context, mark CloseMark) (bool, error)
}
