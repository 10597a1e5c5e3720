package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storebot/internal/models"
)

// EnqueuePreorder debits the prepaid total and inserts the waiting row in a
// single unit. Insufficient balance aborts before any row is written. The
// per-account-per-product cap is enforced inside the same statement as the
// insert, so two concurrent enqueues cannot both slip past a stale read of
// the waiting total.
func (s *Store) EnqueuePreorder(ctx context.Context, userID int64, growid, code string, amount int, debit int64, cap int) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.GetContext(ctx, &balance,
		`UPDATE accounts SET balance = balance - $1
		 WHERE user_id = $2 AND balance - $1 >= 0
		 RETURNING balance`, debit, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrInsufficientFunds
	}
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.GetContext(ctx, &id,
		`INSERT INTO preorders (user_id, growid, code, amount, status)
		 SELECT $1, $2, $3, $4, $5
		 WHERE (SELECT COALESCE(SUM(amount), 0) FROM preorders
		        WHERE user_id = $1 AND code = $3 AND status = $5) + $4 <= $6
		 RETURNING id`,
		userID, growid, code, amount, models.PreorderStatusWaiting, cap)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrPreorderCapExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert preorder: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit preorder: %w", err)
	}
	return id, nil
}

// GetPreorder retrieves a preorder by id
func (s *Store) GetPreorder(ctx context.Context, id int64) (*models.Preorder, error) {
	var po models.Preorder
	err := s.db.GetContext(ctx, &po, "SELECT * FROM preorders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// WaitingTotal sums the outstanding waiting amount for one account and code
func (s *Store) WaitingTotal(ctx context.Context, userID int64, code string) (int, error) {
	var total int
	err := s.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(amount), 0) FROM preorders
		 WHERE user_id = $1 AND code = $2 AND status = $3`,
		userID, code, models.PreorderStatusWaiting)
	return total, err
}

// WaitingPreorders returns the waiting queue for a code in strict FIFO
// order, created_at ascending with id as tiebreak.
func (s *Store) WaitingPreorders(ctx context.Context, code string) ([]models.Preorder, error) {
	var rows []models.Preorder
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM preorders
		 WHERE code = $1 AND status = $2
		 ORDER BY created_at ASC, id ASC`,
		code, models.PreorderStatusWaiting)
	return rows, err
}

// DistinctWaitingCodes lists every product code with outstanding demand
func (s *Store) DistinctWaitingCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := s.db.SelectContext(ctx, &codes,
		"SELECT DISTINCT code FROM preorders WHERE status = $1",
		models.PreorderStatusWaiting)
	return codes, err
}

// QueuePosition counts waiting rows for the code created at or before the
// given preorder, which is its 1-based place in line.
func (s *Store) QueuePosition(ctx context.Context, preorderID int64) (int, error) {
	var pos int
	err := s.db.GetContext(ctx, &pos,
		`SELECT COUNT(*) FROM preorders p
		 WHERE p.code = (SELECT code FROM preorders WHERE id = $1)
		   AND p.status = $2
		   AND (p.created_at, p.id) <= (SELECT created_at, id FROM preorders WHERE id = $1)`,
		preorderID, models.PreorderStatusWaiting)
	return pos, err
}

// CancelPreorder flips a preorder to cancelled. The prepaid balance stays
// where it is; undeliverable orders forfeit their slot.
func (s *Store) CancelPreorder(ctx context.Context, preorderID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE preorders SET status = $1 WHERE id = $2",
		models.PreorderStatusCancelled, preorderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
