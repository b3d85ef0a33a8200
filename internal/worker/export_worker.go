// Package worker mirrors recorded group history to the export spreadsheet.
// It is driven by AMQP events, with a periodic scan of pending rows as the
// backup path when messages are lost.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"divvy/internal/amqp"
	"divvy/internal/core"
	"divvy/internal/sheets"
)

// HistoryStore is the slice of the repository the worker reads and marks.
// Satisfied by *storage.SQLiteRepository.
type HistoryStore interface {
	GetGroup(ctx context.Context, id string) (*core.Group, error)
	GetExpense(ctx context.Context, id string) (*core.GroupExpense, error)
	GetSettlement(ctx context.Context, id string) (*core.Settlement, error)

	PendingExportExpenses(ctx context.Context, limit int) ([]core.GroupExpense, error)
	PendingExportSettlements(ctx context.Context, limit int) ([]core.Settlement, error)

	MarkExpenseExported(ctx context.Context, id string) error
	MarkExpenseExportError(ctx context.Context, id string) error
	MarkSettlementExported(ctx context.Context, id string) error
	MarkSettlementExportError(ctx context.Context, id string) error
}

type ExportWorker struct {
	store     HistoryStore
	writer    sheets.HistoryWriter
	batchSize int
}

func NewExportWorker(store HistoryStore, writer sheets.HistoryWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleMessage processes one ledger event. A returned error requeues the
// delivery.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"kind", msg.Kind,
		"id", msg.ID,
		"group_id", msg.GroupID)

	switch msg.Kind {
	case amqp.KindExpenseRecorded:
		return w.exportExpense(ctx, msg.ID)
	case amqp.KindSettlementRecorded:
		return w.exportSettlement(ctx, msg.ID)
	default:
		// Drop unknown kinds instead of requeueing them forever.
		slog.WarnContext(ctx, "Unknown event kind, dropping", "kind", msg.Kind, "id", msg.ID)
		return nil
	}
}

func (w *ExportWorker) exportExpense(ctx context.Context, id string) error {
	expense, err := w.store.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	group, err := w.store.GetGroup(ctx, expense.GroupID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}

	ref, err := w.writer.AppendExpenseRow(ctx, group, expense)
	if err != nil {
		if markErr := w.store.MarkExpenseExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "expense_id", id, "error", markErr)
		}
		return fmt.Errorf("append expense row: %w", err)
	}

	if err := w.store.MarkExpenseExported(ctx, id); err != nil {
		return fmt.Errorf("mark expense exported: %w", err)
	}

	slog.InfoContext(ctx, "Expense exported",
		"expense_id", id,
		"group_id", expense.GroupID,
		"sheets_ref", ref)
	return nil
}

func (w *ExportWorker) exportSettlement(ctx context.Context, id string) error {
	settlement, err := w.store.GetSettlement(ctx, id)
	if err != nil {
		return fmt.Errorf("get settlement: %w", err)
	}
	group, err := w.store.GetGroup(ctx, settlement.GroupID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}

	ref, err := w.writer.AppendSettlementRow(ctx, group, settlement)
	if err != nil {
		if markErr := w.store.MarkSettlementExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "settlement_id", id, "error", markErr)
		}
		return fmt.Errorf("append settlement row: %w", err)
	}

	if err := w.store.MarkSettlementExported(ctx, id); err != nil {
		return fmt.Errorf("mark settlement exported: %w", err)
	}

	slog.InfoContext(ctx, "Settlement exported",
		"settlement_id", id,
		"group_id", settlement.GroupID,
		"sheets_ref", ref)
	return nil
}

// ProcessPendingExports drains up to batchSize pending expenses and
// settlements each. Individual failures are marked and skipped so one bad
// row cannot wedge the queue.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	expenses, err := w.store.PendingExportExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending expenses: %w", err)
	}
	settlements, err := w.store.PendingExportSettlements(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending settlements: %w", err)
	}

	if len(expenses) == 0 && len(settlements) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports",
		"expenses", len(expenses),
		"settlements", len(settlements))

	for i := range expenses {
		if err := w.exportExpense(ctx, expenses[i].ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending expense",
				"expense_id", expenses[i].ID, "error", err)
		}
	}
	for i := range settlements {
		if err := w.exportSettlement(ctx, settlements[i].ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending settlement",
				"settlement_id", settlements[i].ID, "error", err)
		}
	}

	return nil
}

// StartupExportCheck catches up on rows recorded while the worker was down.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) {
	slog.InfoContext(ctx, "Running startup export check")
	if err := w.ProcessPendingExports(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup export check failed", "error", err)
	}
}

// Run processes pending exports on a fixed interval until ctx is cancelled.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessPendingExports(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic export failed", "error", err)
			}
		}
	}
}
