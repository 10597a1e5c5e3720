package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storebot/internal/models"

	"github.com/lib/pq"
)

// GetAccountByUserID retrieves an account by its external user id
func (s *Store) GetAccountByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	var acc models.Account
	err := s.db.GetContext(ctx, &acc, "SELECT * FROM accounts WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetAccountByGrowID retrieves an account by its normalized growid
func (s *Store) GetAccountByGrowID(ctx context.Context, growid string) (*models.Account, error) {
	var acc models.Account
	err := s.db.GetContext(ctx, &acc, "SELECT * FROM accounts WHERE growid = $1", growid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// CreateAccount inserts a fresh ledger row with zero balance
func (s *Store) CreateAccount(ctx context.Context, userID int64, growid string) (*models.Account, error) {
	var acc models.Account
	err := s.db.GetContext(ctx, &acc,
		"INSERT INTO accounts (user_id, growid) VALUES ($1, $2) RETURNING *",
		userID, growid)
	if isUniqueViolation(err) {
		return nil, models.ErrGrowIDTaken
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// RenameAccount changes the growid of an existing account
func (s *Store) RenameAccount(ctx context.Context, userID int64, growid string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET growid = $1 WHERE user_id = $2", growid, userID)
	if isUniqueViolation(err) {
		return models.ErrGrowIDTaken
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotRegistered
	}
	return nil
}

// AdjustBalance applies a relative delta guarded against going negative.
// The guard lives in the statement itself so a concurrent purchase and an
// administrative edit can never race into a lost update.
func (s *Store) AdjustBalance(ctx context.Context, userID, delta int64) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance,
		`UPDATE accounts SET balance = balance + $1
		 WHERE user_id = $2 AND balance + $1 >= 0
		 RETURNING balance`, delta, userID)
	if errors.Is(err, sql.ErrNoRows) {
		if _, lookupErr := s.GetAccountByUserID(ctx, userID); lookupErr != nil {
			return 0, lookupErr
		}
		return 0, models.ErrInsufficientFunds
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// AdjustBalanceByGrowID is the growid-addressed variant used by topups and
// administrative credits.
func (s *Store) AdjustBalanceByGrowID(ctx context.Context, growid string, delta int64) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance,
		`UPDATE accounts SET balance = balance + $1
		 WHERE growid = $2 AND balance + $1 >= 0
		 RETURNING balance`, delta, growid)
	if errors.Is(err, sql.ErrNoRows) {
		if _, lookupErr := s.GetAccountByGrowID(ctx, growid); lookupErr != nil {
			return 0, lookupErr
		}
		return 0, models.ErrInsufficientFunds
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// AdjustPoints accumulates points and converts whole multiples of the
// exchange rate into balance. Floor division, remainder persisted, so no
// fractional points are ever lost across calls.
func (s *Store) AdjustPoints(ctx context.Context, userID, delta int64, rate int) (wlGained, pointsLeft int64, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	var points int64
	err = tx.GetContext(ctx, &points,
		"SELECT points FROM accounts WHERE user_id = $1 FOR UPDATE", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, models.ErrNotRegistered
	}
	if err != nil {
		return 0, 0, err
	}

	accrued := points + delta
	wlGained = accrued / int64(rate)
	pointsLeft = accrued % int64(rate)

	_, err = tx.ExecContext(ctx,
		"UPDATE accounts SET balance = balance + $1, points = $2 WHERE user_id = $3",
		wlGained, pointsLeft, userID)
	if err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit points adjustment: %w", err)
	}
	return wlGained, pointsLeft, nil
}

// TopBalances returns accounts with a positive balance, richest first.
func (s *Store) TopBalances(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	var rows []models.LeaderboardEntry
	err := s.db.SelectContext(ctx, &rows,
		"SELECT growid, balance FROM accounts WHERE balance > 0 ORDER BY balance DESC LIMIT $1",
		limit)
	return rows, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
