package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// OrderStore хранит заказы в таблицах orders и order_products.
type OrderStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewOrderStore создаёт хранилище заказов поверх store.
func NewOrderStore(store *Store) *OrderStore {
	return &OrderStore{
		db:  store.DB(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create сохраняет заказ и его позиции в одной транзакции.
func (r *OrderStore) Create(ctx context.Context, input domain.NewOrder) (domain.Order, error) {
	// Postgres хранит время с точностью до микросекунд.
	now := r.now().Truncate(time.Microsecond)
	order := domain.Order{
		ID:        uuid.NewString(),
		Customer:  input.Customer,
		Products:  make([]domain.PricedLineItem, len(input.Products)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	copy(order.Products, input.Products)

	txCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := withTx(txCtx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(txCtx, `
			INSERT INTO orders (id, customer_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
		`, order.ID, order.Customer.ID, order.CreatedAt, order.UpdatedAt); err != nil {
			return mapWriteError("insert order", err)
		}

		for i, line := range order.Products {
			if _, err := tx.ExecContext(txCtx, `
				INSERT INTO order_products (id, order_id, product_id, position, quantity, price, created_at)
				VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7)
			`, uuid.NewString(), order.ID, line.ProductID, i, line.Quantity, line.Price.String(), now); err != nil {
				return mapWriteError("insert order product", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Get возвращает заказ с клиентом и позициями или ErrOrderNotFound.
func (r *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var order domain.Order
	err := r.db.QueryRowContext(queryCtx, `
		SELECT o.id, o.created_at, o.updated_at,
		       c.id, c.name, c.email, c.created_at, c.updated_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1
	`, id).Scan(
		&order.ID, &order.CreatedAt, &order.UpdatedAt,
		&order.Customer.ID, &order.Customer.Name, &order.Customer.Email,
		&order.Customer.CreatedAt, &order.Customer.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(queryCtx, `
		SELECT product_id, quantity, price::TEXT
		FROM order_products
		WHERE order_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order products %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line  domain.PricedLineItem
			price string
		)
		if err := rows.Scan(&line.ProductID, &line.Quantity, &price); err != nil {
			return domain.Order{}, fmt.Errorf("scan order product: %w", err)
		}
		if line.Price, err = decimal.NewFromString(price); err != nil {
			return domain.Order{}, fmt.Errorf("parse order product price: %w", err)
		}
		order.Products = append(order.Products, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("iterate order products: %w", err)
	}

	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func mapWriteError(op string, err error) error {
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		return fmt.Errorf("%s: %w", op, domain.ErrOrderConflict)
	case pgForeignKeyViolation:
		return fmt.Errorf("%s: referenced customer or product does not exist: %w", op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

var (
	_ domain.OrderStore  = (*OrderStore)(nil)
	_ domain.OrderReader = (*OrderStore)(nil)
)
