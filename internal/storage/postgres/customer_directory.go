package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// CustomerDirectory читает клиентов из таблицы customers.
type CustomerDirectory struct {
	db *sql.DB
}

// NewCustomerDirectory создаёт справочник клиентов поверх store.
func NewCustomerDirectory(store *Store) *CustomerDirectory {
	return &CustomerDirectory{db: store.DB()}
}

// FindByID возвращает клиента или ErrCustomerNotFound.
func (r *CustomerDirectory) FindByID(ctx context.Context, id string) (domain.Customer, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var customer domain.Customer
	err := r.db.QueryRowContext(queryCtx, `
		SELECT id, name, email, created_at, updated_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Email, &customer.CreatedAt, &customer.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	if err != nil {
		return domain.Customer{}, fmt.Errorf("select customer %s: %w", id, err)
	}
	return customer, nil
}

// Upsert добавляет клиента или обновляет имя и email существующего.
func (r *CustomerDirectory) Upsert(ctx context.Context, customer domain.Customer) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(queryCtx, `
		INSERT INTO customers (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = NOW()
	`, customer.ID, customer.Name, customer.Email); err != nil {
		return fmt.Errorf("upsert customer %s: %w", customer.ID, err)
	}
	return nil
}

var _ domain.CustomerDirectory = (*CustomerDirectory)(nil)
