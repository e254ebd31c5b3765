package services

import (
	"context"
	"fmt"

	"spendtrack/internal/core"
	"spendtrack/internal/report"
	"spendtrack/internal/storage"
)

// ReportService assembles dashboard aggregates from stored expenses and
// budgets. All aggregation is pure and happens in the report package; this
// service only loads the inputs.
type ReportService struct {
	storage *storage.SQLiteRepository
}

func NewReportService(storage *storage.SQLiteRepository) *ReportService {
	return &ReportService{storage: storage}
}

// Overview returns the dashboard aggregates for a year, with month-scoped
// figures when month is 1-12 and skipped when month is 0. Soft-deleted
// expenses never contribute.
func (s *ReportService) Overview(ctx context.Context, year, month int) (core.YearOverview, error) {
	expenses, err := s.storage.ListExpenses(ctx, storage.ExpenseFilter{Year: year})
	if err != nil {
		return core.YearOverview{}, fmt.Errorf("load expenses: %w", err)
	}
	budgets, err := s.storage.ListBudgets(ctx)
	if err != nil {
		return core.YearOverview{}, fmt.Errorf("load budgets: %w", err)
	}
	return report.Overview(expenses, budgets, year, month), nil
}

// TrendChart returns the month-by-month totals for a year in a shape the
// dashboard chart consumes directly.
func (s *ReportService) TrendChart(ctx context.Context, year int) (core.ChartData, error) {
	expenses, err := s.storage.ListExpenses(ctx, storage.ExpenseFilter{Year: year})
	if err != nil {
		return core.ChartData{}, fmt.Errorf("load expenses: %w", err)
	}
	return report.TrendChart(report.MonthlyBreakdown(expenses, year)), nil
}

// CategoryChart returns per-category totals for a year (and optionally one
// month) in chart shape.
func (s *ReportService) CategoryChart(ctx context.Context, year, month int) (core.ChartData, error) {
	expenses, err := s.storage.ListExpenses(ctx, storage.ExpenseFilter{Year: year})
	if err != nil {
		return core.ChartData{}, fmt.Errorf("load expenses: %w", err)
	}
	return report.CategoryChart(report.CategoryTotals(expenses, year, month)), nil
}

// SetBudget creates or updates the monthly limit for a category.
func (s *ReportService) SetBudget(ctx context.Context, b core.Budget) (int64, error) {
	return s.storage.CreateBudget(ctx, b)
}

// Budgets lists all configured budgets.
func (s *ReportService) Budgets(ctx context.Context) ([]core.Budget, error) {
	return s.storage.ListBudgets(ctx)
}

// DeleteBudget removes a budget by ID.
func (s *ReportService) DeleteBudget(ctx context.Context, id int64) error {
	return s.storage.DeleteBudget(ctx, id)
}
