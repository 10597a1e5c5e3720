package models

import "time"

// Event types
const (
	EventTypeSaleCompleted     = "SALE_COMPLETED"
	EventTypePreorderFulfilled = "PREORDER_FULFILLED"
	EventTypeStockAdded        = "STOCK_ADDED"
	EventTypeTopupRequested    = "TOPUP_REQUESTED"
	EventTypeTopupCredited     = "TOPUP_CREDITED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCompletedEvent is the storefront announcement for an immediate purchase.
type SaleCompletedEvent struct {
	BaseEvent
	TransactionID int64  `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
	GrowID        string `json:"growid"`
	Code          string `json:"code"`
	Quantity      int    `json:"quantity"`
	Total         int64  `json:"total"`
}

// PreorderFulfilledEvent is announced when a waiting preorder is fully served.
type PreorderFulfilledEvent struct {
	BaseEvent
	PreorderID    int64  `json:"preorder_id"`
	TransactionID int64  `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
	GrowID        string `json:"growid"`
	Code          string `json:"code"`
	Quantity      int    `json:"quantity"`
	Total         int64  `json:"total"`
}

// StockAddedEvent is announced after a restock so followers see new inventory.
type StockAddedEvent struct {
	BaseEvent
	Code  string `json:"code"`
	Title string `json:"title"`
	Added int    `json:"added"`
	Total int    `json:"total"`
}

// TopupRequestedEvent is published by the payment gateway when a deposit
// clears. The growid is raw gateway input and is normalized on intake.
type TopupRequestedEvent struct {
	BaseEvent
	GrowID string `json:"growid"`
	Amount int64  `json:"amount"`
}

// TopupCreditedEvent is published once a topup has been applied to the ledger.
type TopupCreditedEvent struct {
	BaseEvent
	UserID     int64  `json:"user_id"`
	GrowID     string `json:"growid"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
}
