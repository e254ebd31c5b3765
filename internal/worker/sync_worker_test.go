package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
	"spendtrack/internal/sheets/memory"
	"spendtrack/internal/storage"
)

type failingWriter struct{}

func (failingWriter) Append(context.Context, core.Expense) (string, error) {
	return "", errors.New("sheet unavailable")
}

func newTestStorage(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedExpense(t *testing.T, repo *storage.SQLiteRepository) int64 {
	t.Helper()
	d, err := core.ParseDate("2025-03-10")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	id, err := repo.CreateExpense(context.Background(), core.Expense{
		Amount:      core.Money{Cents: 1250},
		Category:    "groceries",
		Description: "weekly shop",
		PaymentMode: core.PayCard,
		Date:        d,
	})
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}
	return id
}

func TestHandleExpenseEventCreated(t *testing.T) {
	repo := newTestStorage(t)
	store := memory.New()
	w := NewSyncWorker(repo, store, 10)
	ctx := context.Background()

	id := seedExpense(t, repo)

	event := amqp.NewExpenseEvent(amqp.EventExpenseCreated, id)
	if err := w.HandleExpenseEvent(ctx, event); err != nil {
		t.Fatalf("HandleExpenseEvent() error = %v", err)
	}

	items := store.Items()
	if len(items) != 1 || items[0].Amount.Cents != 1250 {
		t.Errorf("exported items = %v, want one expense of 1250", items)
	}

	// Exported expense is no longer pending.
	pending, err := repo.PendingSyncExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSyncExpenses() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %v, want empty after export", pending)
	}
}

func TestHandleExpenseEventMissingExpense(t *testing.T) {
	w := NewSyncWorker(newTestStorage(t), memory.New(), 10)

	// A message for a vanished row must ack, not requeue forever.
	event := amqp.NewExpenseEvent(amqp.EventExpenseCreated, 999)
	if err := w.HandleExpenseEvent(context.Background(), event); err != nil {
		t.Errorf("HandleExpenseEvent(missing) error = %v, want nil", err)
	}
}

func TestHandleExpenseEventDeleted(t *testing.T) {
	repo := newTestStorage(t)
	store := memory.New()
	w := NewSyncWorker(repo, store, 10)

	id := seedExpense(t, repo)
	event := amqp.NewExpenseEvent(amqp.EventExpenseDeleted, id)
	if err := w.HandleExpenseEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleExpenseEvent(deleted) error = %v", err)
	}
	if len(store.Items()) != 0 {
		t.Errorf("delete event exported rows: %v", store.Items())
	}
}

func TestHandleExpenseEventSoftDeletedBeforeExport(t *testing.T) {
	repo := newTestStorage(t)
	store := memory.New()
	w := NewSyncWorker(repo, store, 10)
	ctx := context.Background()

	id := seedExpense(t, repo)
	if err := repo.SoftDeleteExpense(ctx, id); err != nil {
		t.Fatalf("SoftDeleteExpense() error = %v", err)
	}

	event := amqp.NewExpenseEvent(amqp.EventExpenseCreated, id)
	if err := w.HandleExpenseEvent(ctx, event); err != nil {
		t.Fatalf("HandleExpenseEvent() error = %v", err)
	}
	if len(store.Items()) != 0 {
		t.Errorf("soft-deleted expense was exported: %v", store.Items())
	}
}

func TestProcessPendingExpenses(t *testing.T) {
	repo := newTestStorage(t)
	store := memory.New()
	w := NewSyncWorker(repo, store, 10)
	ctx := context.Background()

	seedExpense(t, repo)
	seedExpense(t, repo)

	if err := w.ProcessPendingExpenses(ctx); err != nil {
		t.Fatalf("ProcessPendingExpenses() error = %v", err)
	}
	if len(store.Items()) != 2 {
		t.Errorf("exported %d items, want 2", len(store.Items()))
	}

	// A second scan finds nothing to do.
	if err := w.ProcessPendingExpenses(ctx); err != nil {
		t.Fatalf("second ProcessPendingExpenses() error = %v", err)
	}
	if len(store.Items()) != 2 {
		t.Errorf("second scan re-exported items: %d", len(store.Items()))
	}
}

func TestExportFailureRetriedByScan(t *testing.T) {
	repo := newTestStorage(t)
	ctx := context.Background()

	id := seedExpense(t, repo)

	// First attempt fails against an unavailable sheet.
	failing := NewSyncWorker(repo, failingWriter{}, 10)
	event := amqp.NewExpenseEvent(amqp.EventExpenseCreated, id)
	if err := failing.HandleExpenseEvent(ctx, event); err == nil {
		t.Fatal("HandleExpenseEvent() expected error from failing writer")
	}

	// The errored row stays visible to the scan.
	pending, err := repo.PendingSyncExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSyncExpenses() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("pending after failure = %v, want the errored expense", pending)
	}

	// Once the sheet recovers, the periodic scan exports it.
	store := memory.New()
	healthy := NewSyncWorker(repo, store, 10)
	if err := healthy.ProcessPendingExpenses(ctx); err != nil {
		t.Fatalf("ProcessPendingExpenses() error = %v", err)
	}
	if len(store.Items()) != 1 || store.Items()[0].Amount.Cents != 1250 {
		t.Errorf("exported items = %v, want the recovered expense", store.Items())
	}

	pending, err = repo.PendingSyncExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSyncExpenses() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after retry = %v, want empty", pending)
	}
}
