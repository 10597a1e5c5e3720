package store

import (
	"context"
	"database/sql"
	"errors"

	"storebot/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetProduct retrieves a product by code
func (s *Store) GetProduct(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE code = $1", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrInvalidProduct
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a new product with zero price
func (s *Store) CreateProduct(ctx context.Context, code, title string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products (code, title) VALUES ($1, $2)", code, title)
	if isUniqueViolation(err) {
		return models.ErrProductExists
	}
	return err
}

// SetPrice updates a product's unit price
func (s *Store) SetPrice(ctx context.Context, code string, price int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET price = $1 WHERE code = $2", price, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrInvalidProduct
	}
	return nil
}

// DeleteProduct removes a product; its item instances cascade away.
// Returns how many items were destroyed with it.
func (s *Store) DeleteProduct(ctx context.Context, code string) (int, error) {
	count, err := s.CountItems(ctx, code)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE code = $1", code)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, models.ErrInvalidProduct
	}
	return count, nil
}

// CountItems returns the number of unconsumed item instances for a code
func (s *Store) CountItems(ctx context.Context, code string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM stock_items WHERE code = $1", code)
	return count, err
}

// TakeItems returns the n oldest instances without removing them. Removal is
// a separate step so a failed delivery leaves inventory untouched.
func (s *Store) TakeItems(ctx context.Context, code string, n int) ([]models.StockItem, error) {
	var items []models.StockItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM stock_items WHERE code = $1 ORDER BY id LIMIT $2", code, n)
	if err != nil {
		return nil, err
	}
	if len(items) < n {
		return nil, models.ErrInsufficientStock
	}
	return items, nil
}

// AddItems appends item instances, skipping payloads already present for the
// code. Returns how many were actually inserted.
func (s *Store) AddItems(ctx context.Context, code string, payloads []string) (int, error) {
	if _, err := s.GetProduct(ctx, code); err != nil {
		return 0, err
	}

	added := 0
	seen := make(map[string]struct{}, len(payloads))
	for _, payload := range payloads {
		if _, dup := seen[payload]; dup {
			continue
		}
		seen[payload] = struct{}{}

		res, err := s.db.ExecContext(ctx,
			`INSERT INTO stock_items (code, payload)
			 SELECT $1, $2
			 WHERE NOT EXISTS (SELECT 1 FROM stock_items WHERE code = $1 AND payload = $2)`,
			code, payload)
		if err != nil {
			return added, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return added, err
		}
		added += int(n)
	}
	return added, nil
}

// ListProducts returns the storefront listing: live counts plus units sold.
func (s *Store) ListProducts(ctx context.Context) ([]models.ProductSummary, error) {
	var rows []models.ProductSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.code, p.title, COUNT(i.id) AS count, p.price,
		       COALESCE((SELECT SUM(t.quantity) FROM transactions t WHERE t.code = p.code), 0) AS sold
		FROM products p
		LEFT JOIN stock_items i ON i.code = p.code
		GROUP BY p.code, p.title, p.price
		ORDER BY p.title ASC`)
	return rows, err
}

// deleteItemsTx removes the given instances inside tx and reports how many
// rows actually went away. Deleting an already-removed id is a no-op.
func deleteItemsTx(ctx context.Context, tx *sqlx.Tx, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("DELETE FROM stock_items WHERE id IN (?)", ids)
	if err != nil {
		return 0, err
	}
	query = tx.Rebind(query)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
