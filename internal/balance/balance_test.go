package balance

import (
	"reflect"
	"testing"

	"spendtrack/internal/core"
)

func shared(t *testing.T, title string, totalCents int64, paidBy string, participants []string) core.SharedExpense {
	t.Helper()
	se, err := core.NewSharedExpense(title, core.Money{Cents: totalCents}, paidBy, participants, core.NewDate(2024, 5, 1))
	if err != nil {
		t.Fatalf("NewSharedExpense(%s): %v", title, err)
	}
	return se
}

func TestCalculateSingleExpense(t *testing.T) {
	// total 30 paid by A among [A,B,C]: B owes A 10, C owes A 10, A nets +20.
	positions, debts := Calculate([]core.SharedExpense{
		shared(t, "dinner", 3000, "A", []string{"A", "B", "C"}),
	})

	wantPositions := []Position{
		{Name: "A", Net: core.Money{Cents: 2000}},
		{Name: "B", Net: core.Money{Cents: -1000}},
		{Name: "C", Net: core.Money{Cents: -1000}},
	}
	if !reflect.DeepEqual(positions, wantPositions) {
		t.Fatalf("positions = %+v, want %+v", positions, wantPositions)
	}

	wantDebts := []Debt{
		{From: "B", To: "A", Amount: core.Money{Cents: 1000}},
		{From: "C", To: "A", Amount: core.Money{Cents: 1000}},
	}
	if !reflect.DeepEqual(debts, wantDebts) {
		t.Fatalf("debts = %+v, want %+v", debts, wantDebts)
	}
}

func TestCalculateNetsReciprocalDebts(t *testing.T) {
	// A pays 20 for A+B (B owes A 10); B pays 8 for A+B (A owes B 4).
	// Netted: B owes A 6.
	_, debts := Calculate([]core.SharedExpense{
		shared(t, "lunch", 2000, "A", []string{"A", "B"}),
		shared(t, "coffee", 800, "B", []string{"A", "B"}),
	})

	want := []Debt{{From: "B", To: "A", Amount: core.Money{Cents: 600}}}
	if !reflect.DeepEqual(debts, want) {
		t.Fatalf("debts = %+v, want %+v", debts, want)
	}
}

func TestCalculateDropsZeroedPairs(t *testing.T) {
	// Symmetric expenses cancel out entirely.
	positions, debts := Calculate([]core.SharedExpense{
		shared(t, "one", 1000, "A", []string{"A", "B"}),
		shared(t, "two", 1000, "B", []string{"A", "B"}),
	})
	if len(debts) != 0 {
		t.Fatalf("expected no debts, got %+v", debts)
	}
	for _, p := range positions {
		if p.Net.Cents != 0 {
			t.Fatalf("expected zero net for %s, got %d", p.Name, p.Net.Cents)
		}
	}
}

func TestCalculateIgnoresSettled(t *testing.T) {
	settled := shared(t, "old", 3000, "A", []string{"A", "B", "C"})
	settled.Status = core.SharedSettled
	settled.SettledOn = core.NewDate(2024, 5, 2)

	positions, debts := Calculate([]core.SharedExpense{settled})
	if len(positions) != 0 || len(debts) != 0 {
		t.Fatalf("settled expenses must not contribute: positions=%+v debts=%+v", positions, debts)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	input := []core.SharedExpense{
		shared(t, "a", 3000, "A", []string{"A", "B", "C"}),
		shared(t, "b", 1500, "C", []string{"B", "C"}),
		shared(t, "c", 900, "B", []string{"A", "B", "C"}),
	}
	firstPos, firstDebts := Calculate(input)
	for i := 0; i < 20; i++ {
		pos, debts := Calculate(input)
		if !reflect.DeepEqual(pos, firstPos) || !reflect.DeepEqual(debts, firstDebts) {
			t.Fatalf("output not deterministic on run %d", i)
		}
	}
}

func TestCalculateEmpty(t *testing.T) {
	positions, debts := Calculate(nil)
	if len(positions) != 0 || len(debts) != 0 {
		t.Fatalf("empty input must yield empty output")
	}
}
