package integration

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// flatTax applies rate to net, rounded to the ledger precision.
func flatTax(net, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return shared.Round2(net.Mul(rate))
}

func debit(accountID int64, amount decimal.Decimal) journals.LineInput {
	return journals.LineInput{AccountID: accountID, Debit: amount}
}

func credit(accountID int64, amount decimal.Decimal) journals.LineInput {
	return journals.LineInput{AccountID: accountID, Credit: amount}
}
