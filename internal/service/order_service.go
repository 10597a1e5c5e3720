package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storebot/internal/models"
	"storebot/internal/notify"
	"storebot/internal/util"
)

// OrderService executes immediate purchases. Each attempt walks the
// validate → reserve → notify → commit protocol: inventory and balance are
// only mutated after the receipt has been delivered, so a failed delivery
// leaves nothing to roll back.
type OrderService struct {
	ledger    Ledger
	inventory Inventory
	orders    Orders
	gateway   notify.Gateway
	announcer Announcer
	cache     StockCache
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	ledger Ledger,
	inventory Inventory,
	orders Orders,
	gateway notify.Gateway,
	announcer Announcer,
	cache StockCache,
) *OrderService {
	return &OrderService{
		ledger:    ledger,
		inventory: inventory,
		orders:    orders,
		gateway:   gateway,
		announcer: announcer,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// Receipt reports a completed purchase back to the caller.
type Receipt struct {
	TransactionID int64    `json:"transaction_id"`
	Code          string   `json:"code"`
	Quantity      int      `json:"quantity"`
	UnitPrice     int64    `json:"unit_price"`
	Total         int64    `json:"total"`
	NewBalance    int64    `json:"new_balance"`
	PointsEarned  int64    `json:"points_earned"`
	PointsTotal   int64    `json:"points_total"`
	Items         []string `json:"items"`
}

// Purchase buys quantity units of a product for the given user.
func (os *OrderService) Purchase(ctx context.Context, userID int64, code string, quantity int) (*Receipt, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Purchase")
	defer span.End()

	// validate: no side effects past this block
	if quantity <= 0 {
		util.PurchasesFailedTotal.WithLabelValues("invalid_amount").Inc()
		return nil, models.ErrInvalidAmount
	}

	acc, err := os.ledger.GetAccountByUserID(ctx, userID)
	if err != nil {
		util.PurchasesFailedTotal.WithLabelValues("not_registered").Inc()
		return nil, err
	}

	product, err := os.inventory.GetProduct(ctx, code)
	if err != nil {
		util.PurchasesFailedTotal.WithLabelValues("invalid_product").Inc()
		return nil, err
	}

	available, err := os.inventory.CountItems(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to count stock: %w", err)
	}
	if available < quantity {
		util.PurchasesFailedTotal.WithLabelValues("insufficient_stock").Inc()
		return nil, models.ErrInsufficientStock
	}

	total := product.Price * int64(quantity)
	if acc.Balance < total {
		util.PurchasesFailedTotal.WithLabelValues("insufficient_funds").Inc()
		return nil, models.ErrInsufficientFunds
	}

	// reserve: read the oldest instances without deleting them
	start := time.Now()
	items, err := os.inventory.TakeItems(ctx, code, quantity)
	util.StockReserveLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			util.PurchasesFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	// notify: receipt DM must land before anything is mutated
	if err := os.gateway.SendDirect(ctx, userID, purchaseReceiptDM(code, quantity, product.Price, total, acc.Balance-total, items)); err != nil {
		util.PurchasesFailedTotal.WithLabelValues("dm_failed").Inc()
		util.NotificationFailuresTotal.WithLabelValues("purchase").Inc()
		os.logger.Warn("Purchase aborted, receipt undeliverable",
			zap.Int64("user_id", userID),
			zap.String("code", code),
			zap.Error(err))
		return nil, models.ErrNotificationFailed
	}

	// commit: one atomic unit, aborts whole if the reserved instances are gone
	result, err := os.orders.CommitPurchase(ctx, models.PurchaseCommit{
		UserID:       userID,
		Code:         code,
		Items:        items,
		UnitPrice:    product.Price,
		Debit:        total,
		AccruePoints: total,
	})
	if err != nil {
		if errors.Is(err, models.ErrStockChanged) {
			util.PurchasesFailedTotal.WithLabelValues("stock_changed").Inc()
			return nil, err
		}
		if errors.Is(err, models.ErrInsufficientFunds) {
			util.PurchasesFailedTotal.WithLabelValues("insufficient_funds").Inc()
			return nil, err
		}
		util.PurchasesFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	if err := os.cache.IncrStockCount(ctx, code, -quantity); err != nil {
		os.logger.Warn("Failed to shift stock cache", zap.String("code", code), zap.Error(err))
	}

	util.PurchasesTotal.Inc()
	os.logger.Info("Purchase completed",
		zap.Int64("transaction_id", result.TransactionID),
		zap.Int64("user_id", userID),
		zap.String("code", code),
		zap.Int("quantity", quantity),
		zap.Int64("total", total))

	event := &models.SaleCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSaleCompleted,
			Timestamp: time.Now(),
		},
		TransactionID: result.TransactionID,
		UserID:        userID,
		GrowID:        acc.GrowID,
		Code:          code,
		Quantity:      quantity,
		Total:         total,
	}
	if err := os.announcer.PublishSaleCompleted(ctx, event); err != nil {
		os.logger.Warn("Failed to publish SaleCompleted event", zap.Error(err))
	}

	return &Receipt{
		TransactionID: result.TransactionID,
		Code:          code,
		Quantity:      quantity,
		UnitPrice:     product.Price,
		Total:         total,
		NewBalance:    result.NewBalance,
		PointsEarned:  total,
		PointsTotal:   result.PointsTotal,
		Items:         payloads(items),
	}, nil
}

// Track returns a transaction with its delivered payloads
func (os *OrderService) Track(ctx context.Context, transactionID int64) (*models.Transaction, []models.TransactionItem, error) {
	txn, err := os.orders.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	items, err := os.orders.GetTransactionItems(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	return txn, items, nil
}

// Revenue sums sale totals for a reporting period, with the preceding window
// for comparison
func (os *OrderService) Revenue(ctx context.Context, period string) (*models.RevenueSummary, error) {
	switch period {
	case "today", "week", "month", "total":
	default:
		period = "total"
	}
	return os.orders.RevenueReport(ctx, period)
}

func purchaseReceiptDM(code string, quantity int, price, total, balance int64, items []models.StockItem) string {
	var b strings.Builder
	b.WriteString("🛒 Purchase Success!\n")
	b.WriteString("--------------------------\n")
	fmt.Fprintf(&b, "Code   : %s\n", code)
	fmt.Fprintf(&b, "Amount : %d\n", quantity)
	fmt.Fprintf(&b, "Price  : %s\n", util.FormatWL(price))
	fmt.Fprintf(&b, "Total  : %s\n", util.FormatWL(total))
	fmt.Fprintf(&b, "Balance: %s\n\n", util.FormatWL(balance))
	b.WriteString("📦 Items:\n")
	b.WriteString(strings.Join(payloads(items), "\n"))
	return b.String()
}

func payloads(items []models.StockItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Payload
	}
	return out
}
