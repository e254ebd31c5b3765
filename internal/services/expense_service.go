// Package services orchestrates storage and messaging behind the HTTP layer.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

// EventPublisher is the slice of the AMQP client the services need.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, event amqp.EventType, id int64) error
}

// ExpenseService orchestrates expense operations across SQLite and AMQP.
// Publishing is best-effort: the expense is persisted locally first and a
// broker failure never fails the request.
type ExpenseService struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
}

// NewExpenseService wires the service. publisher may be nil when no broker
// is configured; events are then skipped.
func NewExpenseService(storage *storage.SQLiteRepository, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		storage:   storage,
		publisher: publisher,
	}
}

// CreateExpense saves an expense locally and publishes a created event.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	id, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.EventExpenseCreated, id)
	return id, nil
}

// GetExpense loads one expense by ID.
func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.storage.GetExpense(ctx, id)
}

// ListExpenses returns expenses matching the filter.
func (s *ExpenseService) ListExpenses(ctx context.Context, f storage.ExpenseFilter) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx, f)
}

// DeleteExpense soft deletes an expense locally and publishes a deleted event.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.storage.SoftDeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}

	s.publish(ctx, amqp.EventExpenseDeleted, id)
	return nil
}

// Categories lists distinct categories in use.
func (s *ExpenseService) Categories(ctx context.Context) ([]string, error) {
	return s.storage.DistinctCategories(ctx)
}

// Years lists years with at least one expense, ascending.
func (s *ExpenseService) Years(ctx context.Context) ([]int, error) {
	return s.storage.DistinctYears(ctx)
}

func (s *ExpenseService) publish(ctx context.Context, event amqp.EventType, id int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "No event publisher configured, skipping event",
			"event", event, "id", id)
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, event, id); err != nil {
		// The expense is already persisted; the periodic worker scan picks
		// up anything the broker missed.
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"event", event, "id", id, "error", err)
	}
}
