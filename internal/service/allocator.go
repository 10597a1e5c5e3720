package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storebot/internal/models"
	"storebot/internal/notify"
	"storebot/internal/util"
)

// Allocator is the restock reconciliation pass: for every product code with
// outstanding deferred demand it redistributes available inventory to the
// waiting queue in arrival order, using the same reserve → notify → commit
// discipline as an immediate purchase. Running it twice with nothing new to
// allocate is a no-op.
type Allocator struct {
	inventory Inventory
	preorders Preorders
	orders    Orders
	gateway   notify.Gateway
	announcer Announcer
	cache     StockCache
	logger    *zap.Logger

	// Overlapping ticks are skipped rather than queued.
	mu sync.Mutex
}

// NewAllocator creates a new allocator
func NewAllocator(
	inventory Inventory,
	preorders Preorders,
	orders Orders,
	gateway notify.Gateway,
	announcer Announcer,
	cache StockCache,
) *Allocator {
	return &Allocator{
		inventory: inventory,
		preorders: preorders,
		orders:    orders,
		gateway:   gateway,
		announcer: announcer,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// RunOnce executes a single allocation pass over every product code with
// waiting preorders. If a pass is already in flight this call returns
// immediately.
func (a *Allocator) RunOnce(ctx context.Context) error {
	if !a.mu.TryLock() {
		util.AllocationSkippedTotal.Inc()
		return nil
	}
	defer a.mu.Unlock()

	ctx, span := util.StartSpan(ctx, "Allocator.RunOnce")
	defer span.End()

	start := time.Now()
	defer func() {
		util.AllocationPassDuration.Observe(time.Since(start).Seconds())
	}()
	util.AllocationPassesTotal.Inc()

	codes, err := a.preorders.DistinctWaitingCodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list waiting codes: %w", err)
	}

	for _, code := range codes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := a.allocateCode(ctx, code); err != nil {
			return fmt.Errorf("allocation for %s failed: %w", code, err)
		}
	}
	return nil
}

// allocateCode serves the waiting queue for one code until stock runs out.
func (a *Allocator) allocateCode(ctx context.Context, code string) error {
	available, err := a.inventory.CountItems(ctx, code)
	if err != nil {
		return err
	}
	if available <= 0 {
		return nil
	}

	product, err := a.inventory.GetProduct(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrInvalidProduct) {
			// Product deleted with demand still queued; its items are
			// gone too, nothing to distribute.
			a.logger.Warn("Waiting preorders reference a deleted product",
				zap.String("code", code))
			return nil
		}
		return err
	}

	queue, err := a.preorders.WaitingPreorders(ctx, code)
	if err != nil {
		return err
	}

	for _, po := range queue {
		if available <= 0 {
			break
		}

		allotment := po.Amount
		if allotment > available {
			allotment = available
		}
		if allotment <= 0 {
			continue
		}

		// reserve
		items, err := a.inventory.TakeItems(ctx, code, allotment)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientStock) {
				// Someone consumed stock under us; re-read and move on.
				if available, err = a.inventory.CountItems(ctx, code); err != nil {
					return err
				}
				continue
			}
			return err
		}

		// notify before commit; failure forfeits the slot, stock untouched
		dm := allocationReceiptDM(code, allotment, product.Price, items)
		if err := a.gateway.SendDirect(ctx, po.UserID, dm); err != nil {
			util.NotificationFailuresTotal.WithLabelValues("allocation").Inc()
			util.PreordersCancelledTotal.WithLabelValues("dm_failed").Inc()
			a.logger.Warn("Preorder cancelled, receipt undeliverable",
				zap.Int64("preorder_id", po.ID),
				zap.Int64("user_id", po.UserID),
				zap.Error(err))
			if cancelErr := a.preorders.CancelPreorder(ctx, po.ID); cancelErr != nil {
				return cancelErr
			}
			continue
		}

		remaining := po.Amount - allotment
		txnID, err := a.orders.CommitAllocation(ctx, models.AllocationCommit{
			PreorderID: po.ID,
			UserID:     po.UserID,
			Code:       code,
			Items:      items,
			UnitPrice:  product.Price,
			Remaining:  remaining,
		})
		if err != nil {
			if errors.Is(err, models.ErrStockChanged) {
				if available, err = a.inventory.CountItems(ctx, code); err != nil {
					return err
				}
				continue
			}
			return err
		}

		available -= allotment
		if err := a.cache.IncrStockCount(ctx, code, -allotment); err != nil {
			a.logger.Warn("Failed to shift stock cache", zap.String("code", code), zap.Error(err))
		}
		util.AllocatedUnitsTotal.Add(float64(allotment))
		a.logger.Info("Preorder allotment delivered",
			zap.Int64("preorder_id", po.ID),
			zap.Int64("transaction_id", txnID),
			zap.String("code", code),
			zap.Int("allotment", allotment),
			zap.Int("remaining", remaining))

		if remaining == 0 {
			util.PreordersFulfilledTotal.Inc()
			event := &models.PreorderFulfilledEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypePreorderFulfilled,
					Timestamp: time.Now(),
				},
				PreorderID:    po.ID,
				TransactionID: txnID,
				UserID:        po.UserID,
				GrowID:        po.GrowID,
				Code:          code,
				Quantity:      po.Amount,
				Total:         product.Price * int64(po.Amount),
			}
			if err := a.announcer.PublishPreorderFulfilled(ctx, event); err != nil {
				a.logger.Warn("Failed to publish PreorderFulfilled event", zap.Error(err))
			}
		}
	}
	return nil
}

func allocationReceiptDM(code string, allotment int, price int64, items []models.StockItem) string {
	var b strings.Builder
	b.WriteString("🛒 Pre Order Success!\n")
	b.WriteString("--------------------------\n")
	fmt.Fprintf(&b, "Code   : %s\n", code)
	fmt.Fprintf(&b, "Amount : %d\n", allotment)
	fmt.Fprintf(&b, "Price  : %s\n", util.FormatWL(price))
	fmt.Fprintf(&b, "Total  : %s\n\n", util.FormatWL(price*int64(allotment)))
	b.WriteString("📦 Items:\n")
	b.WriteString(strings.Join(payloads(items), "\n"))
	return b.String()
}
