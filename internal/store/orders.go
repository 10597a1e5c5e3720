package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storebot/internal/models"

	"github.com/jmoiron/sqlx"
)

// CommitPurchase runs the commit phase of an immediate purchase as one unit:
// delete the reserved instances, debit the balance with point accrual folded
// in, and write the transaction plus its detail rows. If any reserved
// instance vanished between reserve and commit the whole unit aborts with
// ErrStockChanged and nothing is mutated.
func (s *Store) CommitPurchase(ctx context.Context, commit models.PurchaseCommit) (*models.PurchaseResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	deleted, err := deleteItemsTx(ctx, tx, itemIDs(commit.Items))
	if err != nil {
		return nil, fmt.Errorf("failed to delete stock items: %w", err)
	}
	if deleted < int64(len(commit.Items)) {
		return nil, models.ErrStockChanged
	}

	// Debit and point accrual in one guarded relative-delta statement, so a
	// concurrent write can neither overdraw the balance nor clobber the
	// accumulator. Conversion to balance happens only in AdjustPoints.
	var row struct {
		Balance int64 `db:"balance"`
		Points  int64 `db:"points"`
	}
	err = tx.GetContext(ctx, &row,
		`UPDATE accounts SET balance = balance - $1, points = points + $2
		 WHERE user_id = $3 AND balance - $1 >= 0
		 RETURNING balance, points`,
		commit.Debit, commit.AccruePoints, commit.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrInsufficientFunds
	}
	if err != nil {
		return nil, err
	}

	txnID, err := insertTransactionTx(ctx, tx, commit.UserID, commit.Code, len(commit.Items), commit.UnitPrice)
	if err != nil {
		return nil, err
	}
	if err := insertTransactionItemsTx(ctx, tx, txnID, commit.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	return &models.PurchaseResult{
		TransactionID: txnID,
		NewBalance:    row.Balance,
		PointsTotal:   row.Points,
	}, nil
}

// CommitAllocation runs the commit phase of one allocation step. The balance
// is untouched: preorders are prepaid at enqueue time.
func (s *Store) CommitAllocation(ctx context.Context, commit models.AllocationCommit) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	deleted, err := deleteItemsTx(ctx, tx, itemIDs(commit.Items))
	if err != nil {
		return 0, fmt.Errorf("failed to delete stock items: %w", err)
	}
	if deleted < int64(len(commit.Items)) {
		return 0, models.ErrStockChanged
	}

	txnID, err := insertTransactionTx(ctx, tx, commit.UserID, commit.Code, len(commit.Items), commit.UnitPrice)
	if err != nil {
		return 0, err
	}
	if err := insertTransactionItemsTx(ctx, tx, txnID, commit.Items); err != nil {
		return 0, err
	}

	if commit.Remaining == 0 {
		_, err = tx.ExecContext(ctx,
			"UPDATE preorders SET status = $1 WHERE id = $2",
			models.PreorderStatusSuccess, commit.PreorderID)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE preorders SET amount = $1 WHERE id = $2",
			commit.Remaining, commit.PreorderID)
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit allocation: %w", err)
	}
	return txnID, nil
}

func itemIDs(items []models.StockItem) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func insertTransactionTx(ctx context.Context, tx *sqlx.Tx, userID int64, code string, quantity int, unitPrice int64) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id,
		`INSERT INTO transactions (user_id, code, quantity, unit_price)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		userID, code, quantity, unitPrice)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return id, nil
}

func insertTransactionItemsTx(ctx context.Context, tx *sqlx.Tx, txnID int64, items []models.StockItem) error {
	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO transaction_items (transaction_id, payload) VALUES ($1, $2)",
			txnID, item.Payload)
		if err != nil {
			return fmt.Errorf("failed to insert transaction item: %w", err)
		}
	}
	return nil
}

// GetTransaction retrieves a transaction by id
func (s *Store) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.GetContext(ctx, &txn, "SELECT * FROM transactions WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetTransactionItems retrieves the delivered payloads of a transaction
func (s *Store) GetTransactionItems(ctx context.Context, txnID int64) ([]models.TransactionItem, error) {
	var items []models.TransactionItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM transaction_items WHERE transaction_id = $1 ORDER BY id", txnID)
	return items, err
}

// revenueWindows maps a reporting period to its date_trunc unit and the
// interval spanning the preceding window.
var revenueWindows = map[string][2]string{
	"today": {"day", "1 day"},
	"week":  {"week", "1 week"},
	"month": {"month", "1 month"},
}

// RevenueReport sums quantity times recorded unit price over a period,
// alongside the preceding window for comparison. Supported periods: today,
// week, month, total (all-time, no preceding window).
func (s *Store) RevenueReport(ctx context.Context, period string) (*models.RevenueSummary, error) {
	window, ok := revenueWindows[period]
	if !ok {
		var total int64
		err := s.db.GetContext(ctx, &total,
			"SELECT COALESCE(SUM(quantity * unit_price), 0) FROM transactions")
		if err != nil {
			return nil, err
		}
		return &models.RevenueSummary{Period: "total", Total: total, Changed: total}, nil
	}

	unit, span := window[0], window[1]
	var total, prev int64
	err := s.db.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(quantity * unit_price), 0) FROM transactions WHERE created_at >= date_trunc('"+unit+"', NOW())")
	if err != nil {
		return nil, err
	}
	err = s.db.GetContext(ctx, &prev,
		"SELECT COALESCE(SUM(quantity * unit_price), 0) FROM transactions"+
			" WHERE created_at >= date_trunc('"+unit+"', NOW()) - interval '"+span+"'"+
			" AND created_at < date_trunc('"+unit+"', NOW())")
	if err != nil {
		return nil, err
	}

	return &models.RevenueSummary{
		Period:  period,
		Total:   total,
		Prev:    prev,
		Changed: total - prev,
	}, nil
}
