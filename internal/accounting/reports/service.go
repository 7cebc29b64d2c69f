package reports

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Service builds read-only financial statements from the balance calculator.
type Service struct {
	repo balances.Repository
}

// NewService constructs the report service.
func NewService(repo balances.Repository) *Service {
	return &Service{repo: repo}
}

// TrialBalance returns opening, movements and closing per account over
// [from, to].
func (s *Service) TrialBalance(ctx context.Context, from, to time.Time) (TrialBalance, error) {
	if to.Before(from) {
		return TrialBalance{}, shared.Validationf("period end before start")
	}
	from, to = shared.DateOnly(from), shared.DateOnly(to)
	rows, err := s.accountBalances(ctx, &from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := BuildTrialBalance(rows)
	tb.From, tb.To = from, to
	return tb, nil
}

// ProfitAndLoss returns the income statement over [from, to].
func (s *Service) ProfitAndLoss(ctx context.Context, from, to time.Time) (ProfitAndLoss, error) {
	if to.Before(from) {
		return ProfitAndLoss{}, shared.Validationf("period end before start")
	}
	from, to = shared.DateOnly(from), shared.DateOnly(to)
	rows, err := s.accountBalances(ctx, &from, to)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	pl := BuildProfitAndLoss(rows)
	pl.From, pl.To = from, to
	return pl, nil
}

// BalanceSheet returns the closing position as of asOf.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	asOf = shared.DateOnly(asOf)
	rows, err := s.accountBalances(ctx, nil, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	bs := BuildBalanceSheet(rows)
	bs.AsOf = asOf
	return bs, nil
}

// accountBalances loads every carried account with its opening balance before
// from and its movements up to to. A nil from folds all history into the
// movements.
func (s *Service) accountBalances(ctx context.Context, from *time.Time, to time.Time) ([]AccountBalance, error) {
	var out []AccountBalance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx balances.TxRepository) error {
		list, err := tx.ListAccounts(ctx, accounts.ListFilter{})
		if err != nil {
			return err
		}
		before := map[int64]balances.Totals{}
		window := balances.Through(to)
		if from != nil {
			if before, err = tx.SumPostedLinesByAccount(ctx, balances.Through(from.AddDate(0, 0, -1))); err != nil {
				return err
			}
			window = balances.Between(*from, to)
		}
		movements, err := tx.SumPostedLinesByAccount(ctx, window)
		if err != nil {
			return err
		}
		out = make([]AccountBalance, 0, len(list))
		for _, account := range list {
			prior := before[account.ID]
			moved := movements[account.ID]
			if !balances.Carried(account, prior, moved) {
				continue
			}
			out = append(out, AccountBalance{
				Code:    account.Code,
				Name:    account.Name,
				Type:    account.Type,
				Opening: account.OpeningBalanceOn(to).Add(accounts.Signed(account.NormalSide(), prior.Debit, prior.Credit)),
				Debit:   moved.Debit,
				Credit:  moved.Credit,
			})
		}
		return nil
	})
	return out, err
}
