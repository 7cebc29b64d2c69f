package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reconciliation"
)

func (t *tx) InsertBankAccount(_ context.Context, account reconciliation.BankAccount) (reconciliation.BankAccount, error) {
	account.ID = t.st.nextID()
	t.st.bankAccounts[account.ID] = account
	return account, nil
}

func (t *tx) GetBankAccount(_ context.Context, id int64) (reconciliation.BankAccount, error) {
	account, ok := t.st.bankAccounts[id]
	if !ok {
		return reconciliation.BankAccount{}, reconciliation.ErrBankAccountNotFound
	}
	return account, nil
}

func (t *tx) GetBankAccountForUpdate(ctx context.Context, id int64) (reconciliation.BankAccount, error) {
	return t.GetBankAccount(ctx, id)
}

func (t *tx) ListBankAccounts(_ context.Context) ([]reconciliation.BankAccount, error) {
	out := make([]reconciliation.BankAccount, 0, len(t.st.bankAccounts))
	for _, account := range t.st.bankAccounts {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateBankAccountReconciled(_ context.Context, id int64, at time.Time, balance decimal.Decimal) error {
	account, ok := t.st.bankAccounts[id]
	if !ok {
		return reconciliation.ErrBankAccountNotFound
	}
	account.LastReconciledAt = &at
	account.LastReconciledBalance = &balance
	account.UpdatedAt = t.now()
	t.st.bankAccounts[id] = account
	return nil
}

func (t *tx) InsertBankTransaction(_ context.Context, txn reconciliation.BankTransaction) (reconciliation.BankTransaction, bool, error) {
	key := bankRefKey{bankAccountID: txn.BankAccountID, ref: txn.ExternalRef}
	if txn.ExternalRef != "" {
		if _, ok := t.st.bankRefs[key]; ok {
			return reconciliation.BankTransaction{}, false, nil
		}
	}
	txn.ID = t.st.nextID()
	t.st.bankTxns[txn.ID] = txn
	if txn.ExternalRef != "" {
		t.st.bankRefs[key] = txn.ID
	}
	return txn, true, nil
}

func (t *tx) ListBankTransactions(_ context.Context, filter reconciliation.TransactionFilter) ([]reconciliation.BankTransaction, error) {
	var out []reconciliation.BankTransaction
	for _, txn := range t.st.bankTxns {
		if filter.BankAccountID != 0 && txn.BankAccountID != filter.BankAccountID {
			continue
		}
		if filter.UnreconciledOnly && txn.IsReconciled {
			continue
		}
		if filter.From != nil && txn.TransactionDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && txn.TransactionDate.After(*filter.To) {
			continue
		}
		out = append(out, txn)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) MarkTransactionsReconciled(_ context.Context, bankAccountID int64, ids []int64, reconciliationID int64) (int, error) {
	marked := 0
	for _, id := range ids {
		txn, ok := t.st.bankTxns[id]
		if !ok || txn.BankAccountID != bankAccountID || txn.IsReconciled {
			continue
		}
		recID := reconciliationID
		txn.IsReconciled = true
		txn.ReconciliationID = &recID
		t.st.bankTxns[id] = txn
		marked++
	}
	return marked, nil
}

func (t *tx) InsertReconciliation(_ context.Context, rec reconciliation.Reconciliation) (reconciliation.Reconciliation, error) {
	rec.ID = t.st.nextID()
	t.st.reconciliations[rec.ID] = rec
	return rec, nil
}

func (t *tx) ListReconciliations(_ context.Context, bankAccountID int64) ([]reconciliation.Reconciliation, error) {
	var out []reconciliation.Reconciliation
	for _, rec := range t.st.reconciliations {
		if rec.BankAccountID == bankAccountID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StatementDate.Equal(out[j].StatementDate) {
			return out[i].StatementDate.After(out[j].StatementDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
