package services

import (
	"context"
	"fmt"

	"spendtrack/internal/balance"
	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

// SharedExpenseService manages shared expenses and the balances derived
// from them.
type SharedExpenseService struct {
	storage *storage.SQLiteRepository
}

func NewSharedExpenseService(storage *storage.SQLiteRepository) *SharedExpenseService {
	return &SharedExpenseService{storage: storage}
}

// CreateSharedExpense validates and persists a new shared expense. The
// payer is always part of the split; duplicate participant names collapse.
func (s *SharedExpenseService) CreateSharedExpense(ctx context.Context, title string, total core.Money, paidBy string, participants []string, date core.Date) (core.SharedExpense, error) {
	se, err := core.NewSharedExpense(title, total, paidBy, participants, date)
	if err != nil {
		return core.SharedExpense{}, err
	}
	if err := s.storage.CreateSharedExpense(ctx, &se); err != nil {
		return core.SharedExpense{}, fmt.Errorf("save shared expense: %w", err)
	}
	return se, nil
}

// GetSharedExpense loads one shared expense with participants.
func (s *SharedExpenseService) GetSharedExpense(ctx context.Context, id string) (core.SharedExpense, error) {
	return s.storage.GetSharedExpense(ctx, id)
}

// ListSharedExpenses returns shared expenses matching the filter.
func (s *SharedExpenseService) ListSharedExpenses(ctx context.Context, f storage.SharedFilter) ([]core.SharedExpense, error) {
	return s.storage.ListSharedExpenses(ctx, f)
}

// SettleSharedExpense marks a pending shared expense settled on the given
// date. Settling an already settled expense fails.
func (s *SharedExpenseService) SettleSharedExpense(ctx context.Context, id string, settledOn core.Date) error {
	return s.storage.SettleSharedExpense(ctx, id, settledOn)
}

// Balances computes per-person net positions and netted pairwise debts
// from all unsettled shared expenses.
func (s *SharedExpenseService) Balances(ctx context.Context) ([]balance.Position, []balance.Debt, error) {
	shared, err := s.storage.ListSharedExpenses(ctx, storage.SharedFilter{Status: core.SharedPending})
	if err != nil {
		return nil, nil, fmt.Errorf("load shared expenses: %w", err)
	}
	positions, debts := balance.Calculate(shared)
	return positions, debts, nil
}

// Participants lists everyone who has ever appeared in a shared expense.
func (s *SharedExpenseService) Participants(ctx context.Context) ([]string, error) {
	return s.storage.DistinctParticipants(ctx)
}
