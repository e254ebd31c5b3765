package core

import (
	"errors"
	"strings"
	"time"
)

// ExpenseStatus is the lifecycle state of a personal expense. Expenses are
// never hard-deleted; a delete marks the record StatusDeleted and hides it
// from listings and totals.
type ExpenseStatus string

// SharedStatus is the lifecycle state of a shared expense.
type SharedStatus string

const (
	StatusActive  ExpenseStatus = "active"
	StatusDeleted ExpenseStatus = "deleted"

	SharedPending SharedStatus = "pending"
	SharedSettled SharedStatus = "settled"
)

// Recognized payment modes. PaymentMode is free-form on input but the UI
// offers these.
const (
	PayCash     = "cash"
	PayCard     = "card"
	PayTransfer = "transfer"
)

type (
	// Date is a calendar date (time component always midnight UTC).
	Date struct {
		time.Time
	}

	// Money is an amount in cents. All arithmetic stays in cents to avoid
	// floating-point drift; formatting converts at the edge.
	Money struct {
		Cents int64
	}

	// Expense is a single personal expense record.
	Expense struct {
		ID          int64
		Amount      Money
		Category    string
		Description string
		PaymentMode string
		Date        Date
		Status      ExpenseStatus
		CreatedAt   time.Time
	}

	// SharedExpense is a cost paid by one person and split equally among
	// participants. PerPerson is recomputed from Total and the participant
	// count on create; the record is immutable apart from settlement.
	SharedExpense struct {
		ID           string
		Title        string
		Total        Money
		PaidBy       string
		Participants []string
		PerPerson    Money
		Date         Date
		Status       SharedStatus
		SettledOn    Date // zero while Status == SharedPending
		CreatedAt    time.Time
	}

	// Budget is a per-category monthly spending limit.
	Budget struct {
		ID           int64
		Category     string
		MonthlyLimit Money
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrEmptyPaymentMode = errors.New("empty payment mode")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyPaidBy      = errors.New("empty payer")
	ErrNoParticipants   = errors.New("participant set is empty")

	ErrNotFound       = errors.New("not found")
	ErrAlreadySettled = errors.New("already settled")
)

// NewDate builds a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// Month returns the month as 1-12.
func (d Date) Month() int { return int(d.Time.Month()) }

// Year returns the year.
func (d Date) Year() int { return d.Time.Year() }

// String renders the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLong
	}
	if strings.TrimSpace(e.PaymentMode) == "" {
		return ErrEmptyPaymentMode
	}
	return e.Date.Validate()
}

// NewSharedExpense assembles and validates a shared expense. The payer is
// always part of the split: it is moved to the front of the participant set
// and duplicate mentions are dropped. An empty participant set is invalid
// even when a payer is given. PerPerson is Total divided by the participant
// count, half-up rounded to the cent.
func NewSharedExpense(title string, total Money, paidBy string, participants []string, date Date) (SharedExpense, error) {
	paidBy = strings.TrimSpace(paidBy)

	set := make([]string, 0, len(participants)+1)
	seen := make(map[string]bool)
	if paidBy != "" {
		set = append(set, paidBy)
		seen[paidBy] = true
	}
	any := false
	for _, p := range participants {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		any = true
		if seen[p] {
			continue
		}
		seen[p] = true
		set = append(set, p)
	}
	if !any {
		// Nobody to split with, not even the payer listed alone.
		set = nil
	}

	se := SharedExpense{
		Title:        strings.TrimSpace(title),
		Total:        total,
		PaidBy:       paidBy,
		Participants: set,
		Date:         date,
		Status:       SharedPending,
	}
	if err := se.Validate(); err != nil {
		return SharedExpense{}, err
	}
	se.PerPerson = splitEqually(total, len(se.Participants))
	return se, nil
}

func splitEqually(total Money, n int) Money {
	// Half-up rounding on the per-person cent amount.
	return Money{Cents: (total.Cents + int64(n)/2) / int64(n)}
}

func (se SharedExpense) Validate() error {
	if se.Title == "" {
		return ErrEmptyTitle
	}
	if err := se.Total.Validate(); err != nil {
		return err
	}
	if se.PaidBy == "" {
		return ErrEmptyPaidBy
	}
	if len(se.Participants) == 0 {
		return ErrNoParticipants
	}
	return se.Date.Validate()
}

// Settled reports whether the expense has been reconciled.
func (se SharedExpense) Settled() bool {
	return se.Status == SharedSettled
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return b.MonthlyLimit.Validate()
}

// IsInvalidInput reports whether err is one of the input-validation
// sentinels. The HTTP layer maps these to 422 responses.
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidDate, ErrEmptyCategory, ErrEmptyDescription,
		ErrDescriptionLong, ErrEmptyPaymentMode, ErrEmptyTitle, ErrEmptyPaidBy,
		ErrNoParticipants,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
