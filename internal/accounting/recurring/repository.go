package recurring

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

// Repository abstracts transactional access to recurring templates.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. Generated
// entries are written through the embedded journal surface.
type TxRepository interface {
	journals.TxRepository

	InsertTemplate(ctx context.Context, tpl Template) (Template, error)
	GetTemplate(ctx context.Context, id int64) (Template, error)
	GetTemplateForUpdate(ctx context.Context, id int64) (Template, error)
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]Template, error)
	// ListDueTemplates returns active templates whose cursor is on or before today.
	ListDueTemplates(ctx context.Context, today time.Time) ([]Template, error)
	SetTemplateActive(ctx context.Context, id int64, active bool, at time.Time) error
	// InsertRun returns ErrAlreadyGenerated without aborting the transaction
	// when the (template, date) pair exists.
	InsertRun(ctx context.Context, run Run) error
	// AdvanceTemplate applies adv only while the cursor equals adv.ExpectedNext.
	AdvanceTemplate(ctx context.Context, adv Advance) (bool, error)
}
