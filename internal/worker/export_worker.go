// Package worker mirrors expense changes into the spreadsheet export.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensegroups/internal/amqp"
	"expensegroups/internal/core"
	"expensegroups/internal/sheets"
	"expensegroups/internal/store"
)

// ExportWorker applies expense events to an Exporter.
type ExportWorker struct {
	exporter sheets.Exporter
	expenses store.ExpenseStore
	logger   *slog.Logger
}

// NewExportWorker builds a worker. expenses is optional; when set, events
// are resolved against the current stored record so that a late "updated"
// event cannot resurrect a deleted expense, and FullSync becomes available.
func NewExportWorker(exporter sheets.Exporter, expenses store.ExpenseStore, logger *slog.Logger) *ExportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportWorker{exporter: exporter, expenses: expenses, logger: logger}
}

// HandleEvent is an amqp.EventHandler.
func (w *ExportWorker) HandleEvent(ctx context.Context, event amqp.ExpenseEvent) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		"type", event.Type,
		"expense_id", event.Expense.ID)

	switch event.Type {
	case amqp.EventExpenseCreated, amqp.EventExpenseUpdated:
		e, found, err := w.current(ctx, event.Expense)
		if err != nil {
			return err
		}
		if !found {
			return w.remove(ctx, event.Expense.ID)
		}
		if err := w.exporter.Upsert(ctx, e); err != nil {
			return fmt.Errorf("export expense %s: %w", e.ID, err)
		}
		w.logger.InfoContext(ctx, "Exported expense",
			"expense_id", e.ID,
			"amount_cents", e.Amount.Cents,
			"group_id", e.GroupID)
		return nil
	case amqp.EventExpenseDeleted:
		return w.remove(ctx, event.Expense.ID)
	default:
		return fmt.Errorf("unsupported event type %q", event.Type)
	}
}

func (w *ExportWorker) current(ctx context.Context, fromEvent core.Expense) (core.Expense, bool, error) {
	if w.expenses == nil {
		return fromEvent, true, nil
	}
	e, err := w.expenses.GetExpense(ctx, fromEvent.ID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Expense{}, false, nil
	}
	if err != nil {
		return core.Expense{}, false, fmt.Errorf("load expense %s: %w", fromEvent.ID, err)
	}
	return e, true, nil
}

func (w *ExportWorker) remove(ctx context.Context, id string) error {
	if err := w.exporter.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove expense %s from export: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Removed expense from export", "expense_id", id)
	return nil
}

// FullSync upserts every stored expense. It recovers rows missed while the
// worker or the broker was down. Individual failures are logged and counted
// so one bad row does not block the rest.
func (w *ExportWorker) FullSync(ctx context.Context) error {
	if w.expenses == nil {
		return errors.New("full sync needs an expense store")
	}
	all, err := w.expenses.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("list expenses for full sync: %w", err)
	}

	synced, failed := 0, 0
	for _, e := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.exporter.Upsert(ctx, e); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export expense during full sync",
				"expense_id", e.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Full sync completed",
		"total", len(all),
		"synced", synced,
		"errors", failed)
	if failed > 0 {
		return fmt.Errorf("full sync: %d of %d expenses failed", failed, len(all))
	}
	return nil
}
