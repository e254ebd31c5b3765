package core

import (
	"errors"
	"strings"
	"testing"
)

func validExpense() Expense {
	return Expense{
		Amount:      Money{Cents: 1250},
		Category:    "Groceries",
		Description: "weekly shop",
		PaymentMode: PayCard,
		Date:        NewDate(2024, 1, 5),
		Status:      StatusActive,
	}
}

func TestExpenseValidate(t *testing.T) {
	if err := validExpense().Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"zero amount", func(e *Expense) { e.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(e *Expense) { e.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"empty category", func(e *Expense) { e.Category = "  " }, ErrEmptyCategory},
		{"empty description", func(e *Expense) { e.Description = "" }, ErrEmptyDescription},
		{"long description", func(e *Expense) { e.Description = strings.Repeat("x", 201) }, ErrDescriptionLong},
		{"empty payment mode", func(e *Expense) { e.PaymentMode = "" }, ErrEmptyPaymentMode},
		{"zero date", func(e *Expense) { e.Date = Date{} }, ErrInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validExpense()
			tc.mutate(&e)
			if err := e.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewSharedExpenseSplit(t *testing.T) {
	se, err := NewSharedExpense("dinner", Money{Cents: 3000}, "A", []string{"B", "C"}, NewDate(2024, 3, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(se.Participants) != 3 {
		t.Fatalf("expected 3 participants, got %v", se.Participants)
	}
	if se.Participants[0] != "A" {
		t.Fatalf("payer should be first participant, got %v", se.Participants)
	}
	if se.PerPerson.Cents != 1000 {
		t.Fatalf("per-person = %d, want 1000", se.PerPerson.Cents)
	}
	if se.Status != SharedPending {
		t.Fatalf("new shared expense should be pending, got %q", se.Status)
	}
	if !se.SettledOn.IsZero() {
		t.Fatalf("settled_on must be zero while pending")
	}
}

func TestNewSharedExpensePayerDeduplicated(t *testing.T) {
	se, err := NewSharedExpense("cab", Money{Cents: 900}, "A", []string{"A", "B", " ", "A"}, NewDate(2024, 3, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(se.Participants) != 2 {
		t.Fatalf("payer duplicates should be dropped, got %v", se.Participants)
	}
	if se.PerPerson.Cents != 450 {
		t.Fatalf("per-person = %d, want 450", se.PerPerson.Cents)
	}
}

func TestNewSharedExpenseRounding(t *testing.T) {
	// 10.00 across 3 people rounds to 3.33 each; the product may differ
	// from the total by at most participant-count/2 cents.
	se, err := NewSharedExpense("coffee", Money{Cents: 1000}, "A", []string{"B", "C"}, NewDate(2024, 3, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if se.PerPerson.Cents != 333 {
		t.Fatalf("per-person = %d, want 333", se.PerPerson.Cents)
	}
	diff := se.PerPerson.Cents*int64(len(se.Participants)) - se.Total.Cents
	if diff < -2 || diff > 2 {
		t.Fatalf("rounding drift too large: %d", diff)
	}
}

func TestNewSharedExpenseRejectsBadInput(t *testing.T) {
	date := NewDate(2024, 3, 10)

	if _, err := NewSharedExpense("t", Money{Cents: 0}, "A", []string{"B"}, date); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero total: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := NewSharedExpense("t", Money{Cents: -100}, "A", []string{"B"}, date); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative total: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := NewSharedExpense("", Money{Cents: 100}, "A", []string{"B"}, date); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("empty title: expected ErrEmptyTitle, got %v", err)
	}
	if _, err := NewSharedExpense("t", Money{Cents: 100}, "", []string{"B"}, date); !errors.Is(err, ErrEmptyPaidBy) {
		t.Fatalf("empty payer: expected ErrEmptyPaidBy, got %v", err)
	}
	if _, err := NewSharedExpense("t", Money{Cents: 100}, "A", nil, date); !errors.Is(err, ErrNoParticipants) {
		t.Fatalf("empty participants: expected ErrNoParticipants, got %v", err)
	}
	if _, err := NewSharedExpense("t", Money{Cents: 100}, "A", []string{" ", ""}, date); !errors.Is(err, ErrNoParticipants) {
		t.Fatalf("blank participants: expected ErrNoParticipants, got %v", err)
	}
	// The payer listed alone is a valid, if pointless, split.
	se, err := NewSharedExpense("t", Money{Cents: 100}, "A", []string{"A"}, date)
	if err != nil {
		t.Fatalf("solo shared expense should be allowed, got %v", err)
	}
	if se.PerPerson.Cents != 100 {
		t.Fatalf("solo per-person = %d, want 100", se.PerPerson.Cents)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2024 || d.Month() != 2 || d.Day() != 29 {
		t.Fatalf("parsed wrong date: %v", d)
	}
	if got := d.String(); got != "2024-02-29" {
		t.Fatalf("String() = %q", got)
	}
	for _, bad := range []string{"", "2024-13-01", "29/02/2024", "yesterday"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q: expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestIsInvalidInput(t *testing.T) {
	if !IsInvalidInput(ErrNoParticipants) {
		t.Fatal("ErrNoParticipants should classify as invalid input")
	}
	if !IsInvalidInput(ErrDescriptionLong) {
		t.Fatal("ErrDescriptionLong should classify as invalid input")
	}
	if IsInvalidInput(ErrNotFound) || IsInvalidInput(ErrAlreadySettled) {
		t.Fatal("lookup/state errors must not classify as invalid input")
	}
}
