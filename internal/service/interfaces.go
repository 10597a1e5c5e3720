package service

import (
	"context"

	"storebot/internal/models"
)

// Consumer-side views of the persistence layer. *store.Store satisfies all
// of them; tests swap in an in-memory fake.

// Ledger owns every balance mutation. Other components go through it
// instead of touching account rows from multiple call sites.
type Ledger interface {
	GetAccountByUserID(ctx context.Context, userID int64) (*models.Account, error)
	GetAccountByGrowID(ctx context.Context, growid string) (*models.Account, error)
	CreateAccount(ctx context.Context, userID int64, growid string) (*models.Account, error)
	RenameAccount(ctx context.Context, userID int64, growid string) error
	AdjustBalance(ctx context.Context, userID, delta int64) (int64, error)
	AdjustBalanceByGrowID(ctx context.Context, growid string, delta int64) (int64, error)
	AdjustPoints(ctx context.Context, userID, delta int64, rate int) (wlGained, pointsLeft int64, err error)
	TopBalances(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// Inventory is the multiset of item instances plus the product catalog.
type Inventory interface {
	GetProduct(ctx context.Context, code string) (*models.Product, error)
	CreateProduct(ctx context.Context, code, title string) error
	SetPrice(ctx context.Context, code string, price int64) error
	DeleteProduct(ctx context.Context, code string) (int, error)
	CountItems(ctx context.Context, code string) (int, error)
	TakeItems(ctx context.Context, code string, n int) ([]models.StockItem, error)
	AddItems(ctx context.Context, code string, payloads []string) (int, error)
	ListProducts(ctx context.Context) ([]models.ProductSummary, error)
}

// Orders is the transaction log and the two atomic commit units.
type Orders interface {
	CommitPurchase(ctx context.Context, commit models.PurchaseCommit) (*models.PurchaseResult, error)
	CommitAllocation(ctx context.Context, commit models.AllocationCommit) (int64, error)
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	GetTransactionItems(ctx context.Context, txnID int64) ([]models.TransactionItem, error)
	RevenueReport(ctx context.Context, period string) (*models.RevenueSummary, error)
}

// Preorders is the deferred-demand queue. The enqueue cap is enforced inside
// the insert itself, not by the caller's read.
type Preorders interface {
	EnqueuePreorder(ctx context.Context, userID int64, growid, code string, amount int, debit int64, cap int) (int64, error)
	GetPreorder(ctx context.Context, id int64) (*models.Preorder, error)
	WaitingTotal(ctx context.Context, userID int64, code string) (int, error)
	WaitingPreorders(ctx context.Context, code string) ([]models.Preorder, error)
	DistinctWaitingCodes(ctx context.Context) ([]string, error)
	QueuePosition(ctx context.Context, preorderID int64) (int, error)
	CancelPreorder(ctx context.Context, preorderID int64) error
}

// Announcer publishes storefront events, best-effort.
type Announcer interface {
	PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error
	PublishPreorderFulfilled(ctx context.Context, event *models.PreorderFulfilledEvent) error
	PublishStockAdded(ctx context.Context, event *models.StockAddedEvent) error
	PublishTopupCredited(ctx context.Context, event *models.TopupCreditedEvent) error
}

// StockCache mirrors available counts for cheap lookups. The database stays
// the source of truth; a miss falls back to a count query.
type StockCache interface {
	GetStockCount(ctx context.Context, code string) (int, bool, error)
	SetStockCount(ctx context.Context, code string, count int) error
	IncrStockCount(ctx context.Context, code string, delta int) error
	DeleteStockCount(ctx context.Context, code string) error
}
