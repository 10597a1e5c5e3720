package models

import "time"

// Account holds a user's ledger row: the WL balance and the point
// accumulator that converts into balance at a fixed exchange rate.
type Account struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	GrowID    string    `db:"growid" json:"growid"`
	Balance   int64     `db:"balance" json:"balance"`
	Points    int64     `db:"points" json:"points"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product maps a product code to its title and unit price.
type Product struct {
	Code      string    `db:"code" json:"code"`
	Title     string    `db:"title" json:"title"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StockItem is one unit of interchangeable inventory. Consumed (deleted)
// exactly once, by either a purchase or an allocation pass.
type StockItem struct {
	ID      int64  `db:"id" json:"id"`
	Code    string `db:"code" json:"code"`
	Payload string `db:"payload" json:"payload"`
}

// ProductSummary is the storefront listing row: live count plus units sold.
type ProductSummary struct {
	Code  string `db:"code" json:"code"`
	Title string `db:"title" json:"title"`
	Count int    `db:"count" json:"count"`
	Price int64  `db:"price" json:"price"`
	Sold  int64  `db:"sold" json:"sold"`
}

// Transaction is the immutable audit record of a completed sale.
type Transaction struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Code      string    `db:"code" json:"code"`
	Quantity  int       `db:"quantity" json:"quantity"`
	UnitPrice int64     `db:"unit_price" json:"unit_price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TransactionItem records one delivered payload of a transaction.
type TransactionItem struct {
	ID            int64  `db:"id" json:"id"`
	TransactionID int64  `db:"transaction_id" json:"transaction_id"`
	Payload       string `db:"payload" json:"payload"`
}

// Preorder is prepaid deferred demand, queued FIFO per product code.
// Amount only ever decreases; rows are never physically deleted.
type Preorder struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	GrowID    string    `db:"growid" json:"growid"`
	Code      string    `db:"code" json:"code"`
	Amount    int       `db:"amount" json:"amount"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Preorder statuses
const (
	PreorderStatusWaiting   = "waiting"
	PreorderStatusSuccess   = "success"
	PreorderStatusCancelled = "cancelled"
)

// RevenueSummary aggregates transaction totals for a reporting period.
type RevenueSummary struct {
	Period  string `json:"period"`
	Total   int64  `json:"total"`
	Prev    int64  `json:"prev"`
	Changed int64  `json:"changed"`
}

// LeaderboardEntry is one row of the top-balance listing.
type LeaderboardEntry struct {
	GrowID  string `db:"growid" json:"growid"`
	Balance int64  `db:"balance" json:"balance"`
}
