// Package worker runs the background jobs of the household service:
// the monthly ledger rollover sweep and the settlement archive consumer.
package worker

import (
	"context"
	"fmt"
	"time"

	"casa/internal/amqp"
	"casa/internal/core"
	"casa/internal/log"
	"casa/internal/services"
	"casa/internal/storage"
)

// RolloverWorker periodically purges previous-month ledger entries and
// archives settlement events into durable storage.
type RolloverWorker struct {
	storage  *storage.Store
	ledger   *services.LedgerService
	logger   *log.Logger
	interval time.Duration
	nowFn    func() time.Time
}

func NewRolloverWorker(store *storage.Store, ledger *services.LedgerService, interval time.Duration) *RolloverWorker {
	return &RolloverWorker{
		storage:  store,
		ledger:   ledger,
		logger:   log.ForComponent(log.ComponentWorker),
		interval: interval,
		nowFn:    time.Now,
	}
}

// Run sweeps once at startup and then on every tick until the context
// is cancelled. A failed sweep is logged and retried on the next tick.
func (w *RolloverWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Rollover worker started", "interval", w.interval)

	if err := w.sweep(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup rollover sweep failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Rollover sweep failed", "error", err)
			}
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Rollover worker stopping")
			return ctx.Err()
		}
	}
}

func (w *RolloverWorker) sweep(ctx context.Context) error {
	deleted, err := w.ledger.Rollover(ctx, w.nowFn())
	if err != nil {
		return err
	}
	if deleted > 0 {
		w.logger.InfoContext(ctx, "Previous month purged", "entries_deleted", deleted)
	}
	return nil
}

// HandleEvent archives settlement events. Other event kinds are logged
// and acknowledged so the queue keeps draining.
func (w *RolloverWorker) HandleEvent(event *amqp.ExpenseEvent) error {
	ctx := context.Background()

	switch event.Kind {
	case amqp.KindExpenseSettled:
		return w.archiveSettlement(ctx, event)
	case amqp.KindPaymentRecorded:
		w.logger.InfoContext(ctx, "Payment recorded",
			"expense_id", event.ExpenseID,
			"user_id", event.UserID,
			"amount_cents", event.AmountCents)
		return nil
	default:
		w.logger.WarnContext(ctx, "Unknown event kind, dropping", "kind", event.Kind)
		return nil
	}
}

func (w *RolloverWorker) archiveSettlement(ctx context.Context, event *amqp.ExpenseEvent) error {
	settlement := &storage.Settlement{
		ExpenseID:   event.ExpenseID,
		HouseholdID: event.HouseholdID,
		Title:       event.Title,
		Total:       core.Money{Cents: event.AmountCents},
		Type:        core.ExpenseType(event.ExpenseType),
		SettledAt:   event.Timestamp,
	}
	if err := w.storage.RecordSettlement(ctx, settlement); err != nil {
		return fmt.Errorf("record settlement: %w", err)
	}

	w.logger.InfoContext(ctx, "Settlement archived",
		"expense_id", event.ExpenseID,
		"household_id", event.HouseholdID,
		"total_cents", event.AmountCents)
	return nil
}
