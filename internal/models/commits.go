package models

// PurchaseCommit is the atomic commit unit of an immediate purchase: the
// reserved item deletes, the balance debit with raw point accrual, and the
// transaction rows either all land or none do. Accrued points stay in the
// accumulator until explicitly redeemed.
type PurchaseCommit struct {
	UserID       int64
	Code         string
	Items        []StockItem
	UnitPrice    int64
	Debit        int64
	AccruePoints int64
}

// PurchaseResult reports what the commit changed.
type PurchaseResult struct {
	TransactionID int64
	NewBalance    int64
	PointsTotal   int64
}

// AllocationCommit is the commit unit of one allocation step. Balance is not
// touched: preorders are prepaid at enqueue time.
type AllocationCommit struct {
	PreorderID int64
	UserID     int64
	Code       string
	Items      []StockItem
	UnitPrice  int64
	// Remaining is the preorder amount left after this step; zero flips the
	// row to success, anything else keeps it waiting.
	Remaining int
}
