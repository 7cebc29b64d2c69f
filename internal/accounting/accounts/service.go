package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records chart changes for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service maintains the chart of accounts.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the registry service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccount validates and inserts a new account.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Type, _ = ParseAccountType(string(in.Type))
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureCodeFree(ctx, tx, in.Code, 0); err != nil {
			return err
		}
		level, err := levelUnder(ctx, tx, in.ParentID, in.Type)
		if err != nil {
			return err
		}
		created, err = tx.InsertAccount(ctx, Account{
			Code:               in.Code,
			Name:               strings.TrimSpace(in.Name),
			LocalName:          strings.TrimSpace(in.LocalName),
			Type:               in.Type,
			Subtype:            in.Subtype,
			ParentID:           in.ParentID,
			Level:              level,
			OpeningBalance:     shared.Round2(in.OpeningBalance),
			OpeningBalanceDate: in.OpeningBalanceDate,
			IsSystem:           in.IsSystem,
			IsActive:           true,
		})
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.create", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

// UpdateAccount replaces mutable fields, re-parenting the subtree when needed.
func (s *Service) UpdateAccount(ctx context.Context, id int64, in UpdateAccountInput) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Type, _ = ParseAccountType(string(in.Type))
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	if in.ParentID != nil && *in.ParentID == id {
		return Account{}, shared.Validationf("account cannot be its own parent")
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if current.IsSystem {
			return ErrSystemAccount
		}
		if err := ensureCodeFree(ctx, tx, in.Code, id); err != nil {
			return err
		}
		if err := ensureNoCycle(ctx, tx, id, in.ParentID); err != nil {
			return err
		}
		if in.Type != current.Type {
			children, err := tx.ListChildAccounts(ctx, id)
			if err != nil {
				return err
			}
			if len(children) > 0 {
				return ErrTypeChangeWithChildren
			}
		}
		if current.IsActive && !in.IsActive {
			if err := ensureDeactivatable(ctx, tx, current); err != nil {
				return err
			}
		}
		level, err := levelUnder(ctx, tx, in.ParentID, in.Type)
		if err != nil {
			return err
		}
		updated = current
		updated.Code = in.Code
		updated.Name = strings.TrimSpace(in.Name)
		updated.LocalName = strings.TrimSpace(in.LocalName)
		updated.Type = in.Type
		updated.Subtype = in.Subtype
		updated.ParentID = in.ParentID
		updated.Level = level
		updated.OpeningBalance = shared.Round2(in.OpeningBalance)
		updated.OpeningBalanceDate = in.OpeningBalanceDate
		updated.IsActive = in.IsActive
		updated.UpdatedAt = s.now()
		if err := tx.UpdateAccount(ctx, updated); err != nil {
			return err
		}
		if level != current.Level {
			return relevelDescendants(ctx, tx, updated)
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, in.ActorID, "account.update", updated.ID, map[string]any{"code": updated.Code})
	return updated, nil
}

// ensureDeactivatable keeps balances out of reach of ledger-wide totals.
func ensureDeactivatable(ctx context.Context, tx TxRepository, account Account) error {
	if !account.OpeningBalance.IsZero() {
		return ErrAccountInUse
	}
	hasLines, err := tx.AccountHasLines(ctx, account.ID)
	if err != nil {
		return err
	}
	if hasLines {
		return ErrAccountInUse
	}
	return nil
}

// DeleteAccount soft-deletes an account without postings or children.
func (s *Service) DeleteAccount(ctx context.Context, in DeleteAccountInput) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccount(ctx, in.AccountID)
		if err != nil {
			return err
		}
		if current.IsSystem {
			return ErrSystemAccount
		}
		hasLines, err := tx.AccountHasLines(ctx, current.ID)
		if err != nil {
			return err
		}
		if hasLines {
			return ErrAccountHasLines
		}
		children, err := tx.ListChildAccounts(ctx, current.ID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return ErrAccountHasChildren
		}
		return tx.SoftDeleteAccount(ctx, current.ID, s.now())
	})
	if err != nil {
		return err
	}
	s.record(ctx, in.ActorID, "account.delete", in.AccountID, nil)
	return nil
}

// GetAccount returns a single live account.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccount(ctx, id)
		return err
	})
	return account, err
}

// ListAccounts retrieves chart of accounts entries ordered by code.
func (s *Service) ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, filter)
		return err
	})
	return accounts, err
}

// ResolveFunctional finds the active account playing the given role. A
// missing account is reported through the bool, never as an error.
func (s *Service) ResolveFunctional(ctx context.Context, subtype Subtype) (Account, bool, error) {
	var (
		account Account
		found   bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, found, err = tx.FindAccountBySubtype(ctx, subtype)
		return err
	})
	if err != nil {
		return Account{}, false, err
	}
	return account, found, nil
}

func ensureCodeFree(ctx context.Context, tx TxRepository, code string, selfID int64) error {
	existing, err := tx.GetAccountByCode(ctx, code)
	if err != nil {
		if shared.Kind(err) == shared.ErrNotFound {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return ErrAccountCodeTaken
	}
	return nil
}

func levelUnder(ctx context.Context, tx TxRepository, parentID *int64, t AccountType) (int, error) {
	if parentID == nil {
		return 0, nil
	}
	parent, err := tx.GetAccount(ctx, *parentID)
	if err != nil {
		if shared.Kind(err) == shared.ErrNotFound {
			return 0, ErrParentNotFound
		}
		return 0, err
	}
	if parent.Type != t {
		return 0, shared.Validationf("parent %s is %s, child must match", parent.Code, parent.Type)
	}
	return parent.Level + 1, nil
}

// ensureNoCycle walks the ancestors of the proposed parent looking for id.
func ensureNoCycle(ctx context.Context, tx TxRepository, id int64, parentID *int64) error {
	seen := map[int64]bool{}
	for cursor := parentID; cursor != nil; {
		if *cursor == id {
			return ErrParentCycle
		}
		if seen[*cursor] {
			return ErrParentCycle
		}
		seen[*cursor] = true
		ancestor, err := tx.GetAccount(ctx, *cursor)
		if err != nil {
			if shared.Kind(err) == shared.ErrNotFound {
				return ErrParentNotFound
			}
			return err
		}
		cursor = ancestor.ParentID
	}
	return nil
}

func relevelDescendants(ctx context.Context, tx TxRepository, root Account) error {
	queue := []Account{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		children, err := tx.ListChildAccounts(ctx, parent.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			child.Level = parent.Level + 1
			if err := tx.UpdateAccount(ctx, child); err != nil {
				return err
			}
			queue = append(queue, child)
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "account",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
