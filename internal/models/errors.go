package models

import "errors"

// Error taxonomy shared by the store and service layers. Validation-class
// errors are raised before any mutation; ErrStockChanged and
// ErrNotificationFailed are the two recoverable mid-protocol failures.
var (
	ErrNotRegistered       = errors.New("account not registered")
	ErrGrowIDTaken         = errors.New("growid already taken")
	ErrInvalidGrowID       = errors.New("invalid growid")
	ErrInvalidProduct      = errors.New("invalid product code")
	ErrProductExists       = errors.New("product code already exists")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrPreorderCapExceeded = errors.New("preorder cap exceeded")
	ErrStockChanged        = errors.New("stock changed, retry purchase")
	ErrNotificationFailed  = errors.New("notification delivery failed")
	ErrMaintenance         = errors.New("maintenance mode active")
	ErrNotFound            = errors.New("not found")
)
