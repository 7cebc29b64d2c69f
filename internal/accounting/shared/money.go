package shared

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the monetary precision of every stored amount.
const MoneyPlaces = 2

// Round2 rounds an amount to the ledger precision.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ParseAmount reads a decimal string, rejecting more than two fraction digits.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, Validationf("invalid amount %q", raw)
	}
	if !d.Equal(Round2(d)) {
		return decimal.Zero, Validationf("amount %q has more than %d decimals", raw, MoneyPlaces)
	}
	return d, nil
}

// Sum adds amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
