package shared

import (
	"fmt"
	"time"
)

// FiscalYearCloseLockKey builds the redis key guarding a fiscal year close.
func FiscalYearCloseLockKey(fiscalYearID int64) string {
	return fmt.Sprintf("ledger:fiscal-year:%d:close:lock", fiscalYearID)
}

// RecurringRunLockKey builds the redis key guarding one scheduler pass for a day.
func RecurringRunLockKey(day time.Time) string {
	return fmt.Sprintf("ledger:recurring:%s:lock", day.Format("2006-01-02"))
}
