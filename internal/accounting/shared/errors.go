package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every ledger error wraps exactly one of these so callers can
// branch with errors.Is without knowing the specific rule that failed.
var (
	// ErrValidation indicates malformed or unbalanced input.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrInvalidState indicates an illegal state transition.
	ErrInvalidState = errors.New("accounting: invalid state")
	// ErrNotFound indicates a dangling reference.
	ErrNotFound = errors.New("accounting: not found")
	// ErrConflict indicates a concurrent or unique-key collision.
	ErrConflict = errors.New("accounting: conflict")
	// ErrForbidden indicates a protected record.
	ErrForbidden = errors.New("accounting: forbidden")
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = Wrap(ErrValidation, "debits must equal credits")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = Wrap(ErrValidation, "journal requires at least two lines")
	// ErrAccountNotFound indicates a missing or deleted account.
	ErrAccountNotFound = Wrap(ErrNotFound, "account not found")
	// ErrAccountInactive blocks postings to disabled accounts.
	ErrAccountInactive = Wrap(ErrValidation, "account is inactive")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = Wrap(ErrNotFound, "journal entry not found")
	// ErrNotDraft rejects posting anything but a draft.
	ErrNotDraft = Wrap(ErrInvalidState, "only draft entries can be posted")
	// ErrNotPosted rejects voiding or reversing anything but a posted entry.
	ErrNotPosted = Wrap(ErrInvalidState, "only posted entries can be voided or reversed")
	// ErrStatusChanged indicates another transaction moved the entry first.
	ErrStatusChanged = Wrap(ErrConflict, "journal entry status changed concurrently, try again")
	// ErrAlreadyReversed allows one live reversal per entry.
	ErrAlreadyReversed = Wrap(ErrConflict, "journal entry already has a reversal")
	// ErrEntryNumberTaken indicates the allocated number collided.
	ErrEntryNumberTaken = Wrap(ErrConflict, "entry number already allocated, try again")
	// ErrSourceAlreadyLinked indicates the business event was already posted.
	ErrSourceAlreadyLinked = Wrap(ErrConflict, "source already linked")
	// ErrFiscalYearClosed blocks writes dated inside a closed fiscal year.
	ErrFiscalYearClosed = Wrap(ErrInvalidState, "fiscal year is closed")
)

// Wrap derives a specific error from a kind sentinel.
func Wrap(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Validationf formats a validation error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Kind returns the taxonomy sentinel err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrInvalidState, ErrNotFound, ErrConflict, ErrForbidden} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
