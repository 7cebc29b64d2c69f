package balances

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Service derives balances from posted lines plus opening balances. Nothing is
// cached; every call recomputes from storage.
type Service struct {
	repo Repository
}

// NewService constructs the balance calculator.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// BalanceAsOf returns the signed balance of an account at the end of date.
func (s *Service) BalanceAsOf(ctx context.Context, accountID int64, date time.Time) (Balance, error) {
	var out Balance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		out, err = BalanceOf(ctx, tx, account, date)
		return err
	})
	return out, err
}

// PeriodActivity returns the signed movement over [from, to] without the
// opening balance.
func (s *Service) PeriodActivity(ctx context.Context, accountID int64, from, to time.Time) (Activity, error) {
	if to.Before(from) {
		return Activity{}, shared.Validationf("period end before start")
	}
	var out Activity
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		out, err = ActivityOf(ctx, tx, account, from, to)
		return err
	})
	return out, err
}

// TrialBalance lists every active account as of date, split into columns.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	var out TrialBalance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = TrialBalanceOf(ctx, tx, asOf)
		return err
	})
	return out, err
}

// AccountLedger lists posted lines of an account over [from, to] with the
// running balance.
func (s *Service) AccountLedger(ctx context.Context, accountID int64, from, to time.Time) (AccountLedger, error) {
	if to.Before(from) {
		return AccountLedger{}, shared.Validationf("period end before start")
	}
	from, to = shared.DateOnly(from), shared.DateOnly(to)
	var out AccountLedger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		opening, err := BalanceOf(ctx, tx, account, from.AddDate(0, 0, -1))
		if err != nil {
			return err
		}
		// An opening balance dated inside the window is folded into the start.
		start := opening.Balance
		if account.OpeningBalanceDate != nil && Between(from, to).Contains(*account.OpeningBalanceDate) {
			start = start.Add(account.OpeningBalance)
		}
		lines, err := tx.ListPostedLines(ctx, account.ID, Between(from, to))
		if err != nil {
			return err
		}
		side := account.NormalSide()
		running := start
		rows := make([]LedgerRow, 0, len(lines))
		for _, line := range lines {
			running = running.Add(accounts.Signed(side, line.Debit, line.Credit))
			rows = append(rows, LedgerRow{PostedLine: line, Running: running})
		}
		out = AccountLedger{Account: account, From: from, To: to, Opening: start, Rows: rows, Closing: running}
		return nil
	})
	return out, err
}

// BalanceOf computes a balance inside a caller-owned transaction.
func BalanceOf(ctx context.Context, tx TxRepository, account accounts.Account, date time.Time) (Balance, error) {
	date = shared.DateOnly(date)
	totals, err := tx.SumPostedLines(ctx, account.ID, Through(date))
	if err != nil {
		return Balance{}, err
	}
	opening := account.OpeningBalanceOn(date)
	return Balance{
		Account: account,
		AsOf:    date,
		Opening: opening,
		Debit:   totals.Debit,
		Credit:  totals.Credit,
		Balance: opening.Add(accounts.Signed(account.NormalSide(), totals.Debit, totals.Credit)),
	}, nil
}

// ActivityOf computes period activity inside a caller-owned transaction.
func ActivityOf(ctx context.Context, tx TxRepository, account accounts.Account, from, to time.Time) (Activity, error) {
	from, to = shared.DateOnly(from), shared.DateOnly(to)
	totals, err := tx.SumPostedLines(ctx, account.ID, Between(from, to))
	if err != nil {
		return Activity{}, err
	}
	return Activity{
		Account: account,
		From:    from,
		To:      to,
		Debit:   totals.Debit,
		Credit:  totals.Credit,
		Net:     accounts.Signed(account.NormalSide(), totals.Debit, totals.Credit),
	}, nil
}

// ActivityByType computes period activity for every carried account of type t.
func ActivityByType(ctx context.Context, tx TxRepository, t accounts.AccountType, from, to time.Time) ([]Activity, error) {
	from, to = shared.DateOnly(from), shared.DateOnly(to)
	list, err := tx.ListAccounts(ctx, accounts.ListFilter{Type: t})
	if err != nil {
		return nil, err
	}
	sums, err := tx.SumPostedLinesByAccount(ctx, Between(from, to))
	if err != nil {
		return nil, err
	}
	out := make([]Activity, 0, len(list))
	for _, account := range list {
		totals := sums[account.ID]
		if !Carried(account, totals) {
			continue
		}
		out = append(out, Activity{
			Account: account,
			From:    from,
			To:      to,
			Debit:   totals.Debit,
			Credit:  totals.Credit,
			Net:     accounts.Signed(account.NormalSide(), totals.Debit, totals.Credit),
		})
	}
	return out, nil
}

// TrialBalanceOf builds the trial balance inside a caller-owned transaction.
func TrialBalanceOf(ctx context.Context, tx TxRepository, asOf time.Time) (TrialBalance, error) {
	asOf = shared.DateOnly(asOf)
	list, err := tx.ListAccounts(ctx, accounts.ListFilter{})
	if err != nil {
		return TrialBalance{}, err
	}
	sums, err := tx.SumPostedLinesByAccount(ctx, Through(asOf))
	if err != nil {
		return TrialBalance{}, err
	}
	out := TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, account := range list {
		totals := sums[account.ID]
		if !Carried(account, totals) {
			continue
		}
		balance := account.OpeningBalanceOn(asOf).Add(accounts.Signed(account.NormalSide(), totals.Debit, totals.Credit))
		row := TrialBalanceRow{Account: account, Balance: balance, Debit: decimal.Zero, Credit: decimal.Zero}
		onNormalSide := !balance.IsNegative()
		switch {
		case account.NormalSide() == accounts.SideDebit && onNormalSide,
			account.NormalSide() == accounts.SideCredit && !onNormalSide:
			row.Debit = balance.Abs()
		default:
			row.Credit = balance.Abs()
		}
		out.TotalDebit = out.TotalDebit.Add(row.Debit)
		out.TotalCredit = out.TotalCredit.Add(row.Credit)
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
