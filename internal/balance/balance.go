// Package balance computes who owes whom across unsettled shared expenses.
//
// The calculation is a pure function of the records passed in: given the same
// shared expenses it always produces the same output, so it is computed on
// read and never persisted.
package balance

import (
	"sort"

	"spendtrack/internal/core"
)

// Position is one participant's aggregate standing. Net is positive when the
// participant is owed money and negative when they owe.
type Position struct {
	Name string
	Net  core.Money
}

// Debt is a single netted pairwise obligation: From owes To Amount.
type Debt struct {
	From   string
	To     string
	Amount core.Money
}

// Calculate returns per-person net positions and the minimal set of pairwise
// debts for all unsettled shared expenses in the input. Settled expenses are
// skipped. Output ordering is stable: positions sorted by name, debts sorted
// by (From, To).
func Calculate(expenses []core.SharedExpense) ([]Position, []Debt) {
	nets := make(map[string]int64)
	// owed[debtor][creditor] accumulates gross per-expense obligations.
	owed := make(map[string]map[string]int64)

	for _, se := range expenses {
		if se.Settled() {
			continue
		}
		nets[se.PaidBy] += se.Total.Cents
		for _, p := range se.Participants {
			nets[p] -= se.PerPerson.Cents
			if p == se.PaidBy {
				continue
			}
			if owed[p] == nil {
				owed[p] = make(map[string]int64)
			}
			owed[p][se.PaidBy] += se.PerPerson.Cents
		}
	}

	positions := make([]Position, 0, len(nets))
	for name, cents := range nets {
		positions = append(positions, Position{Name: name, Net: core.Money{Cents: cents}})
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Name < positions[j].Name })

	return positions, netDebts(owed)
}

// netDebts collapses reciprocal obligations (A owes B and B owes A) into a
// single edge per unordered pair and drops zeroed pairs.
func netDebts(owed map[string]map[string]int64) []Debt {
	type pair struct{ low, high string }
	nets := make(map[pair]int64) // positive: low owes high

	for from, creditors := range owed {
		for to, cents := range creditors {
			if from < to {
				nets[pair{from, to}] += cents
			} else {
				nets[pair{to, from}] -= cents
			}
		}
	}

	var debts []Debt
	for p, cents := range nets {
		switch {
		case cents > 0:
			debts = append(debts, Debt{From: p.low, To: p.high, Amount: core.Money{Cents: cents}})
		case cents < 0:
			debts = append(debts, Debt{From: p.high, To: p.low, Amount: core.Money{Cents: -cents}})
		}
	}
	sort.Slice(debts, func(i, j int) bool {
		if debts[i].From != debts[j].From {
			return debts[i].From < debts[j].From
		}
		return debts[i].To < debts[j].To
	})
	return debts
}
