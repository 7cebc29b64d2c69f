package memory

import (
	"context"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func (t *tx) GetAccount(_ context.Context, id int64) (accounts.Account, error) {
	account, ok := t.st.accounts[id]
	if !ok || account.DeletedAt != nil {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return account, nil
}

func (t *tx) GetAccountByCode(_ context.Context, code string) (accounts.Account, error) {
	for _, account := range t.st.accounts {
		if account.Code == code && account.DeletedAt == nil {
			return account, nil
		}
	}
	return accounts.Account{}, shared.ErrAccountNotFound
}

// FindAccountBySubtype prefers system accounts, then the lowest code.
func (t *tx) FindAccountBySubtype(_ context.Context, subtype accounts.Subtype) (accounts.Account, bool, error) {
	var matches []accounts.Account
	for _, account := range t.st.accounts {
		if account.Subtype == subtype && account.IsActive && account.DeletedAt == nil {
			matches = append(matches, account)
		}
	}
	if len(matches) == 0 {
		return accounts.Account{}, false, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].IsSystem != matches[j].IsSystem {
			return matches[i].IsSystem
		}
		return matches[i].Code < matches[j].Code
	})
	return matches[0], true, nil
}

func (t *tx) ListAccounts(_ context.Context, filter accounts.ListFilter) ([]accounts.Account, error) {
	out := make([]accounts.Account, 0, len(t.st.accounts))
	for _, account := range t.st.accounts {
		if account.DeletedAt != nil {
			continue
		}
		if filter.Type != "" && account.Type != filter.Type {
			continue
		}
		if filter.ActiveOnly && !account.IsActive {
			continue
		}
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tx) ListChildAccounts(_ context.Context, parentID int64) ([]accounts.Account, error) {
	var out []accounts.Account
	for _, account := range t.st.accounts {
		if account.DeletedAt == nil && account.ParentID != nil && *account.ParentID == parentID {
			out = append(out, account)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tx) InsertAccount(ctx context.Context, account accounts.Account) (accounts.Account, error) {
	if _, err := t.GetAccountByCode(ctx, account.Code); err == nil {
		return accounts.Account{}, accounts.ErrAccountCodeTaken
	}
	now := t.now()
	account.ID = t.st.nextID()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	t.st.accounts[account.ID] = account
	return account, nil
}

func (t *tx) UpdateAccount(_ context.Context, account accounts.Account) error {
	current, ok := t.st.accounts[account.ID]
	if !ok || current.DeletedAt != nil {
		return shared.ErrAccountNotFound
	}
	for id, other := range t.st.accounts {
		if id != account.ID && other.DeletedAt == nil && other.Code == account.Code {
			return accounts.ErrAccountCodeTaken
		}
	}
	account.CreatedAt = current.CreatedAt
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = t.now()
	}
	t.st.accounts[account.ID] = account
	return nil
}

func (t *tx) SoftDeleteAccount(_ context.Context, id int64, at time.Time) error {
	account, ok := t.st.accounts[id]
	if !ok || account.DeletedAt != nil {
		return shared.ErrAccountNotFound
	}
	account.DeletedAt = &at
	account.IsActive = false
	account.UpdatedAt = at
	t.st.accounts[id] = account
	return nil
}

func (t *tx) AccountHasLines(_ context.Context, id int64) (bool, error) {
	for _, lines := range t.st.lines {
		for _, line := range lines {
			if line.AccountID == id {
				return true, nil
			}
		}
	}
	return false, nil
}
