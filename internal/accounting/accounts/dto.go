package accounts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// CreateAccountInput carries a new chart node.
type CreateAccountInput struct {
	Code               string
	Name               string
	LocalName          string
	Type               AccountType
	Subtype            Subtype
	ParentID           *int64
	OpeningBalance     decimal.Decimal
	OpeningBalanceDate *time.Time
	IsSystem           bool
	ActorID            int64
}

// Validate ensures the input is well formed before touching storage.
func (in CreateAccountInput) Validate() error {
	return validateFields(in.Code, in.Name, in.Type, in.Subtype, in.OpeningBalance)
}

// UpdateAccountInput replaces the mutable fields of an account.
type UpdateAccountInput struct {
	Code               string
	Name               string
	LocalName          string
	Type               AccountType
	Subtype            Subtype
	ParentID           *int64
	OpeningBalance     decimal.Decimal
	OpeningBalanceDate *time.Time
	IsActive           bool
	ActorID            int64
}

// Validate ensures the input is well formed before touching storage.
func (in UpdateAccountInput) Validate() error {
	return validateFields(in.Code, in.Name, in.Type, in.Subtype, in.OpeningBalance)
}

func validateFields(code, name string, t AccountType, s Subtype, opening decimal.Decimal) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return shared.Validationf("account code required")
	}
	if len(code) > MaxCodeLength {
		return shared.Validationf("account code %q longer than %d characters", code, MaxCodeLength)
	}
	if strings.TrimSpace(name) == "" {
		return shared.Validationf("account name required")
	}
	if _, ok := ParseAccountType(string(t)); !ok {
		return shared.Validationf("unknown account type %q", t)
	}
	if !SubtypeAllowed(t, s) {
		return shared.Validationf("subtype %q not allowed for %s accounts", s, t)
	}
	if !opening.Equal(shared.Round2(opening)) {
		return shared.Validationf("opening balance has more than %d decimals", shared.MoneyPlaces)
	}
	return nil
}

// DeleteAccountInput identifies the account to retire.
type DeleteAccountInput struct {
	AccountID int64
	ActorID   int64
}
