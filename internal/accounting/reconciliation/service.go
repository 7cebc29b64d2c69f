package reconciliation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// DefaultMatchWindow is the date tolerance used when callers pass none.
const DefaultMatchWindow = 3

// AuditPort records reconciliation events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service records bank statements and reconciles them against the ledger.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the reconciliation helper.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateBankAccount links a bank account to an active cash or bank GL account.
func (s *Service) CreateBankAccount(ctx context.Context, in CreateBankAccountInput) (BankAccount, error) {
	if err := in.Validate(); err != nil {
		return BankAccount{}, err
	}
	var account BankAccount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		gl, err := tx.GetAccount(ctx, in.GLAccountID)
		if err != nil {
			return err
		}
		if !gl.IsActive || gl.Type != accounts.AccountTypeAsset ||
			(gl.Subtype != accounts.SubtypeBank && gl.Subtype != accounts.SubtypeCash) {
			return ErrGLAccountNotBank
		}
		now := s.now()
		account, err = tx.InsertBankAccount(ctx, BankAccount{
			Name:          strings.TrimSpace(in.Name),
			AccountNumber: strings.TrimSpace(in.AccountNumber),
			GLAccountID:   gl.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		return err
	})
	if err != nil {
		return BankAccount{}, err
	}
	s.record(ctx, in.ActorID, "bank_account.create", "bank_account", account.ID, map[string]any{"gl_account": account.GLAccountID})
	return account, nil
}

// GetBankAccount returns a bank account by id.
func (s *Service) GetBankAccount(ctx context.Context, id int64) (BankAccount, error) {
	var account BankAccount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetBankAccount(ctx, id)
		return err
	})
	return account, err
}

// ListBankAccounts returns every bank account.
func (s *Service) ListBankAccounts(ctx context.Context) ([]BankAccount, error) {
	var out []BankAccount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListBankAccounts(ctx)
		return err
	})
	return out, err
}

// RecordTransactions imports statement lines. Lines whose external reference
// was already imported are counted as duplicates and skipped.
func (s *Service) RecordTransactions(ctx context.Context, in RecordTransactionsInput) (RecordResult, error) {
	if err := in.Validate(); err != nil {
		return RecordResult{}, err
	}
	var result RecordResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetBankAccount(ctx, in.BankAccountID); err != nil {
			return err
		}
		now := s.now()
		for _, item := range in.Transactions {
			txn, inserted, err := tx.InsertBankTransaction(ctx, BankTransaction{
				BankAccountID:   in.BankAccountID,
				TransactionDate: shared.DateOnly(item.Date),
				Description:     strings.TrimSpace(item.Description),
				Amount:          item.Amount,
				ExternalRef:     strings.TrimSpace(item.ExternalRef),
				CreatedAt:       now,
			})
			if err != nil {
				return err
			}
			if !inserted {
				result.Duplicates++
				continue
			}
			result.Inserted = append(result.Inserted, txn)
		}
		return nil
	})
	if err != nil {
		return RecordResult{}, err
	}
	s.record(ctx, in.ActorID, "bank_transaction.import", "bank_account", in.BankAccountID, map[string]any{
		"inserted":   len(result.Inserted),
		"duplicates": result.Duplicates,
	})
	return result, nil
}

// ListTransactions returns statement lines matching filter.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]BankTransaction, error) {
	var out []BankTransaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListBankTransactions(ctx, filter)
		return err
	})
	return out, err
}

// BookTransactions lists posted movements on the linked GL account over
// [from, to], debits positive.
func (s *Service) BookTransactions(ctx context.Context, bankAccountID int64, from, to time.Time) ([]BookTransaction, error) {
	if to.Before(from) {
		return nil, shared.Validationf("period end before start")
	}
	var out []BookTransaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetBankAccount(ctx, bankAccountID)
		if err != nil {
			return err
		}
		out, err = bookTransactions(ctx, tx, account, shared.DateOnly(from), shared.DateOnly(to))
		return err
	})
	return out, err
}

// SuggestMatches pairs unreconciled statement lines dated in [from, to] with
// book movements of equal amount within windowDays.
func (s *Service) SuggestMatches(ctx context.Context, bankAccountID int64, from, to time.Time, windowDays int) (MatchResult, error) {
	if to.Before(from) {
		return MatchResult{}, shared.Validationf("period end before start")
	}
	if windowDays <= 0 {
		windowDays = DefaultMatchWindow
	}
	from, to = shared.DateOnly(from), shared.DateOnly(to)
	var result MatchResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetBankAccount(ctx, bankAccountID)
		if err != nil {
			return err
		}
		bank, err := tx.ListBankTransactions(ctx, TransactionFilter{
			BankAccountID:    account.ID,
			From:             &from,
			To:               &to,
			UnreconciledOnly: true,
		})
		if err != nil {
			return err
		}
		book, err := bookTransactions(ctx, tx, account, from.AddDate(0, 0, -windowDays), to.AddDate(0, 0, windowDays))
		if err != nil {
			return err
		}
		result = MatchTransactions(bank, book, windowDays)
		return nil
	})
	return result, err
}

// Reconcile flags the cleared statement lines, compares the statement balance
// with the book balance of the linked GL account, and stores the snapshot.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) (Reconciliation, error) {
	if err := in.Validate(); err != nil {
		return Reconciliation{}, err
	}
	ids := uniqueIDs(in.ClearedTransactionIDs)
	statementDate := shared.DateOnly(in.StatementDate)
	var rec Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetBankAccountForUpdate(ctx, in.BankAccountID)
		if err != nil {
			return err
		}
		gl, err := tx.GetAccount(ctx, account.GLAccountID)
		if err != nil {
			return err
		}
		book, err := balances.BalanceOf(ctx, tx, gl, statementDate)
		if err != nil {
			return err
		}
		difference := in.StatementBalance.Sub(book.Balance)
		status := StatusBalanced
		if !difference.IsZero() {
			status = StatusDiscrepancy
		}
		rec, err = tx.InsertReconciliation(ctx, Reconciliation{
			BankAccountID:    account.ID,
			StatementDate:    statementDate,
			StatementBalance: in.StatementBalance,
			GLBalance:        book.Balance,
			Difference:       difference,
			Status:           status,
			ClearedCount:     len(ids),
			CompletedBy:      in.ActorID,
			CompletedAt:      s.now(),
		})
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			marked, err := tx.MarkTransactionsReconciled(ctx, account.ID, ids, rec.ID)
			if err != nil {
				return err
			}
			if marked != len(ids) {
				return fmt.Errorf("%w: %d of %d", ErrClearedMismatch, marked, len(ids))
			}
		}
		return tx.UpdateBankAccountReconciled(ctx, account.ID, statementDate, in.StatementBalance)
	})
	if err != nil {
		return Reconciliation{}, err
	}
	s.record(ctx, in.ActorID, "bank_account.reconcile", "bank_reconciliation", rec.ID, map[string]any{
		"bank_account": rec.BankAccountID,
		"difference":   rec.Difference.StringFixed(shared.MoneyPlaces),
		"status":       string(rec.Status),
	})
	return rec, nil
}

// ListReconciliations returns the snapshots of a bank account, newest first.
func (s *Service) ListReconciliations(ctx context.Context, bankAccountID int64) ([]Reconciliation, error) {
	var out []Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetBankAccount(ctx, bankAccountID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListReconciliations(ctx, bankAccountID)
		return err
	})
	return out, err
}

func bookTransactions(ctx context.Context, tx TxRepository, account BankAccount, from, to time.Time) ([]BookTransaction, error) {
	lines, err := tx.ListPostedLines(ctx, account.GLAccountID, balances.Between(from, to))
	if err != nil {
		return nil, err
	}
	out := make([]BookTransaction, 0, len(lines))
	for _, line := range lines {
		out = append(out, BookTransaction{
			EntryID:     line.EntryID,
			EntryNumber: line.EntryNumber,
			Date:        line.EntryDate,
			Reference:   line.Reference,
			Description: line.Description,
			Amount:      line.Debit.Sub(line.Credit),
		})
	}
	return out, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
