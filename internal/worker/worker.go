package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storebot/internal/broker"
	"storebot/internal/models"
	"storebot/internal/redisclient"
	"storebot/internal/service"
	"storebot/internal/util"
)

// AllocationWorker drives the allocation scheduler: one ticking loop, plus a
// wakeup channel so a restock triggers an immediate pass. Ticks that land
// while a pass is still running are skipped, both in-process (the allocator
// mutex) and across restarts (redis lock).
type AllocationWorker struct {
	allocator *service.Allocator
	redis     *redisclient.Client
	interval  time.Duration
	wakeup    chan struct{}
	logger    *zap.Logger
}

// NewAllocationWorker creates a new allocation worker
func NewAllocationWorker(allocator *service.Allocator, redis *redisclient.Client, interval time.Duration) *AllocationWorker {
	return &AllocationWorker{
		allocator: allocator,
		redis:     redis,
		interval:  interval,
		wakeup:    make(chan struct{}, 1),
		logger:    util.GetLogger(),
	}
}

// Notify requests an immediate allocation pass, called after a restock.
// Never blocks; a pending wakeup absorbs further requests.
func (w *AllocationWorker) Notify() {
	select {
	case w.wakeup <- struct{}{}:
	default:
	}
}

// Start runs the ticking loop until the context is cancelled.
func (w *AllocationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting allocation worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Allocation worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.runPass(ctx)
		case <-w.wakeup:
			w.runPass(ctx)
		}
	}
}

func (w *AllocationWorker) runPass(ctx context.Context) {
	acquired, err := w.redis.AcquireLock(ctx, "allocation", w.interval*3)
	if err != nil {
		w.logger.Warn("Allocation lock unavailable, running unguarded", zap.Error(err))
	} else if !acquired {
		util.AllocationSkippedTotal.Inc()
		return
	}
	if err == nil {
		defer func() {
			if relErr := w.redis.ReleaseLock(ctx, "allocation"); relErr != nil {
				w.logger.Warn("Failed to release allocation lock", zap.Error(relErr))
			}
		}()
	}

	if err := w.allocator.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("Allocation pass failed", zap.Error(err))
	}
}

// TopupWorker consumes deposit events from the payment gateway and credits
// them to the ledger.
type TopupWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger
}

// NewTopupWorker creates a new topup worker
func NewTopupWorker(consumer *broker.Consumer, ledgerService *service.LedgerService) *TopupWorker {
	handler := broker.NewEventHandler()
	logger := util.GetLogger()

	handler.OnTopupRequested(func(ctx context.Context, event *models.TopupRequestedEvent) error {
		_, _, err := ledgerService.Topup(ctx, event.GrowID, event.Amount)
		switch err {
		case nil:
			return nil
		case models.ErrNotRegistered, models.ErrInvalidGrowID, models.ErrInvalidAmount:
			// Unregistered or malformed deposits are dropped, not retried:
			// the gateway keeps the funds and support handles it manually.
			util.TopupsRejectedTotal.Inc()
			logger.Warn("Topup rejected",
				zap.String("growid", event.GrowID),
				zap.Int64("amount", event.Amount),
				zap.Error(err))
			return nil
		default:
			return err
		}
	})

	return &TopupWorker{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
	}
}

// Start starts consuming topup events
func (w *TopupWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting topup worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *TopupWorker) Stop() error {
	w.logger.Info("Stopping topup worker")
	return w.consumer.Close()
}
