package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// ProductCatalog читает цены и остатки из таблицы products.
type ProductCatalog struct {
	db *sql.DB
}

// NewProductCatalog создаёт каталог поверх store.
func NewProductCatalog(store *Store) *ProductCatalog {
	return &ProductCatalog{db: store.DB()}
}

// FindAllByID возвращает записи для известных id. Порядок ответа не гарантируется.
func (r *ProductCatalog) FindAllByID(ctx context.Context, ids []string) ([]domain.CatalogEntry, error) {
	if len(ids) == 0 {
		return []domain.CatalogEntry{}, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(queryCtx, `
		SELECT id, price::TEXT, quantity
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.CatalogEntry, 0, len(ids))
	for rows.Next() {
		var (
			entry domain.CatalogEntry
			price string
		)
		if err := rows.Scan(&entry.ID, &price, &entry.Quantity); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		entry.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price of product %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return entries, nil
}

// UpdateQuantity записывает новые остатки в одной транзакции.
// Неизвестный id откатывает всю пачку.
func (r *ProductCatalog) UpdateQuantity(ctx context.Context, adjustments []domain.QuantityAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	txCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return withTx(txCtx, r.db, func(tx *sql.Tx) error {
		for _, adj := range adjustments {
			res, err := tx.ExecContext(txCtx, `
				UPDATE products
				SET quantity = $2, updated_at = NOW()
				WHERE id = $1
			`, adj.ID, adj.Quantity)
			if err != nil {
				if pgErrorCode(err) == pgCheckViolation {
					return fmt.Errorf("update quantity of %s to %d: %w", adj.ID, adj.Quantity, domain.ErrInsufficientStock)
				}
				return fmt.Errorf("update quantity of %s: %w", adj.ID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("update quantity of %s: rows affected: %w", adj.ID, err)
			}
			if affected == 0 {
				return &domain.ProductError{Err: domain.ErrProductNotFound, ProductID: adj.ID}
			}
		}
		return nil
	})
}

// Upsert добавляет товар или обновляет цену и остаток существующего.
// Цена точнее двух знаков отклоняется, колонка NUMERIC(14, 2) округлила бы её.
func (r *ProductCatalog) Upsert(ctx context.Context, name string, entry domain.CatalogEntry) error {
	if err := domain.ValidatePrice(entry.Price); err != nil {
		return fmt.Errorf("upsert product %s: %w", entry.ID, err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(queryCtx, `
		INSERT INTO products (id, name, price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3::NUMERIC, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, quantity = EXCLUDED.quantity, updated_at = NOW()
	`, entry.ID, name, entry.Price.String(), entry.Quantity); err != nil {
		return fmt.Errorf("upsert product %s: %w", entry.ID, err)
	}
	return nil
}

var _ domain.ProductCatalog = (*ProductCatalog)(nil)
