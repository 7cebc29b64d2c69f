package reconciliation

import (
	"sort"
	"time"
)

// Match pairs a statement line with a book movement of the same amount.
type Match struct {
	Bank    BankTransaction
	Book    BookTransaction
	DayDiff int
}

// MatchResult is the outcome of a matching pass.
type MatchResult struct {
	Matches       []Match
	UnmatchedBank []BankTransaction
	UnmatchedBook []BookTransaction
}

// MatchTransactions pairs statement lines with book movements greedily in
// date order. A pair needs an equal amount and dates at most windowDays apart;
// the closest date wins and each book movement is used once.
func MatchTransactions(bank []BankTransaction, book []BookTransaction, windowDays int) MatchResult {
	bank = append([]BankTransaction(nil), bank...)
	sort.SliceStable(bank, func(i, j int) bool {
		if bank[i].TransactionDate.Equal(bank[j].TransactionDate) {
			return bank[i].ID < bank[j].ID
		}
		return bank[i].TransactionDate.Before(bank[j].TransactionDate)
	})

	used := make([]bool, len(book))
	var out MatchResult
	for _, txn := range bank {
		best, bestDiff := -1, 0
		for idx, mv := range book {
			if used[idx] || !mv.Amount.Equal(txn.Amount) {
				continue
			}
			diff := dayDiff(txn.TransactionDate, mv.Date)
			if diff > windowDays {
				continue
			}
			if best == -1 || diff < bestDiff {
				best, bestDiff = idx, diff
			}
		}
		if best == -1 {
			out.UnmatchedBank = append(out.UnmatchedBank, txn)
			continue
		}
		used[best] = true
		out.Matches = append(out.Matches, Match{Bank: txn, Book: book[best], DayDiff: bestDiff})
	}
	for idx, mv := range book {
		if !used[idx] {
			out.UnmatchedBook = append(out.UnmatchedBook, mv)
		}
	}
	return out
}

func dayDiff(a, b time.Time) int {
	days := int(a.Sub(b).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
