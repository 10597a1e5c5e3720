package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storebot/internal/models"
	"storebot/internal/util"
)

// InventoryService covers the administrative side of the catalog: creating
// products, restocking, pricing and removal. A restock wakes the allocation
// scheduler so waiting preorders are served right away instead of on the
// next tick.
type InventoryService struct {
	inventory     Inventory
	cache         StockCache
	announcer     Announcer
	restockNotify func()
	logger        *zap.Logger
}

// NewInventoryService creates a new inventory service. restockNotify may be
// nil when no scheduler wakeup is wired.
func NewInventoryService(
	inventory Inventory,
	cache StockCache,
	announcer Announcer,
	restockNotify func(),
) *InventoryService {
	return &InventoryService{
		inventory:     inventory,
		cache:         cache,
		announcer:     announcer,
		restockNotify: restockNotify,
		logger:        util.GetLogger(),
	}
}

// RestockResult reports what a stock addition changed.
type RestockResult struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	Added int    `json:"added"`
	Total int    `json:"total"`
}

// AddStock creates the product when a title is given, then appends item
// payloads, deduplicated per code.
func (is *InventoryService) AddStock(ctx context.Context, rawCode, title string, items []string) (*RestockResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.AddStock")
	defer span.End()

	code := NormalizeGrowID(rawCode)
	if code == "" {
		return nil, models.ErrInvalidProduct
	}
	if len(items) == 0 {
		return nil, models.ErrInvalidAmount
	}

	if title != "" {
		if err := is.inventory.CreateProduct(ctx, code, title); err != nil {
			return nil, err
		}
	}

	product, err := is.inventory.GetProduct(ctx, code)
	if err != nil {
		return nil, err
	}

	added, err := is.inventory.AddItems(ctx, code, items)
	if err != nil {
		return nil, err
	}

	total, err := is.inventory.CountItems(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := is.cache.SetStockCount(ctx, code, total); err != nil {
		is.logger.Warn("Failed to refresh stock cache", zap.String("code", code), zap.Error(err))
	}

	is.logger.Info("Stock added",
		zap.String("code", code),
		zap.Int("added", added),
		zap.Int("total", total))

	event := &models.StockAddedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockAdded,
			Timestamp: time.Now(),
		},
		Code:  code,
		Title: product.Title,
		Added: added,
		Total: total,
	}
	if err := is.announcer.PublishStockAdded(ctx, event); err != nil {
		is.logger.Warn("Failed to publish StockAdded event", zap.Error(err))
	}

	// Wake the allocation scheduler instead of waiting for its next tick.
	if added > 0 && is.restockNotify != nil {
		is.restockNotify()
	}

	return &RestockResult{
		Code:  code,
		Title: product.Title,
		Added: added,
		Total: total,
	}, nil
}

// SetPrice updates a product's unit price
func (is *InventoryService) SetPrice(ctx context.Context, rawCode string, price int64) error {
	if price < 0 {
		return models.ErrInvalidAmount
	}
	code := NormalizeGrowID(rawCode)
	if code == "" {
		return models.ErrInvalidProduct
	}
	if err := is.inventory.SetPrice(ctx, code, price); err != nil {
		return err
	}
	is.logger.Info("Price updated", zap.String("code", code), zap.Int64("price", price))
	return nil
}

// DeleteProduct removes a product and its remaining item instances.
func (is *InventoryService) DeleteProduct(ctx context.Context, rawCode string) (int, error) {
	code := NormalizeGrowID(rawCode)
	if code == "" {
		return 0, models.ErrInvalidProduct
	}
	removed, err := is.inventory.DeleteProduct(ctx, code)
	if err != nil {
		return 0, err
	}
	if err := is.cache.DeleteStockCount(ctx, code); err != nil {
		is.logger.Warn("Failed to drop stock cache", zap.String("code", code), zap.Error(err))
	}
	is.logger.Info("Product deleted", zap.String("code", code), zap.Int("items_removed", removed))
	return removed, nil
}

// ListProducts returns the storefront listing
func (is *InventoryService) ListProducts(ctx context.Context) ([]models.ProductSummary, error) {
	return is.inventory.ListProducts(ctx)
}

// StockCount serves single-code availability lookups from the cache mirror,
// falling back to the database on a miss and re-seeding the mirror.
func (is *InventoryService) StockCount(ctx context.Context, rawCode string) (int, error) {
	code := NormalizeGrowID(rawCode)
	if code == "" {
		return 0, models.ErrInvalidProduct
	}

	count, hit, err := is.cache.GetStockCount(ctx, code)
	if err != nil {
		is.logger.Warn("Stock cache read failed", zap.String("code", code), zap.Error(err))
	} else if hit {
		return count, nil
	}

	if _, err := is.inventory.GetProduct(ctx, code); err != nil {
		return 0, err
	}
	count, err = is.inventory.CountItems(ctx, code)
	if err != nil {
		return 0, err
	}
	if err := is.cache.SetStockCount(ctx, code, count); err != nil {
		is.logger.Warn("Failed to seed stock cache", zap.String("code", code), zap.Error(err))
	}
	return count, nil
}

// SyncStockCache seeds the cached counts from the database, called once at
// startup.
func (is *InventoryService) SyncStockCache(ctx context.Context) error {
	products, err := is.inventory.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	for _, p := range products {
		if err := is.cache.SetStockCount(ctx, p.Code, p.Count); err != nil {
			is.logger.Warn("Failed to seed stock cache",
				zap.String("code", p.Code),
				zap.Error(err))
		}
	}
	is.logger.Info("Stock cache synced", zap.Int("products", len(products)))
	return nil
}
