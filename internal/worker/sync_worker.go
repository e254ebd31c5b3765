// Package worker exports expenses to an external sheet, driven by AMQP
// events with a periodic database scan as backstop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
	"spendtrack/internal/sheets"
	"spendtrack/internal/storage"
)

// SyncWorker pushes expenses from SQLite to the configured sheet.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	sheets    sheets.ExpenseWriter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, sheets sheets.ExpenseWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		sheets:    sheets,
		batchSize: batchSize,
	}
}

// HandleExpenseEvent processes one expense event from AMQP. Deleted events
// are acknowledged without action: the sheet keeps history and the local
// row stays the source of truth.
func (w *SyncWorker) HandleExpenseEvent(ctx context.Context, event *amqp.ExpenseEvent) error {
	switch event.Event {
	case amqp.EventExpenseCreated:
		return w.exportExpense(ctx, event.ID)
	case amqp.EventExpenseDeleted:
		slog.InfoContext(ctx, "Expense deleted locally, sheet row kept", "id", event.ID)
		return nil
	default:
		// Unknown events are dropped rather than requeued forever.
		slog.WarnContext(ctx, "Ignoring unknown expense event", "event", event.Event, "id", event.ID)
		return nil
	}
}

// ProcessPendingExpenses exports expenses the event path missed. Called
// periodically and at startup.
func (w *SyncWorker) ProcessPendingExpenses(ctx context.Context) error {
	pending, err := w.storage.PendingSyncExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending expenses: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending expenses", "count", len(pending))

	for _, p := range pending {
		if err := w.exportExpense(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending expense", "id", p.ID, "error", err)
		}
	}
	return nil
}

func (w *SyncWorker) exportExpense(ctx context.Context, id int64) error {
	expense, err := w.storage.GetExpense(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Row is gone; nothing to export and nothing to retry.
		slog.WarnContext(ctx, "Expense no longer exists, skipping export", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	if expense.Status == core.StatusDeleted {
		slog.InfoContext(ctx, "Expense soft-deleted before export, skipping", "id", id)
		return w.storage.MarkSynced(ctx, id)
	}

	ref, err := w.sheets.Append(ctx, expense)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id); err != nil {
		// The export itself worked; only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark expense as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Exported expense",
		"id", id,
		"sheet_ref", ref,
		"amount_cents", expense.Amount.Cents)

	return nil
}
