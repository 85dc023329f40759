package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// CustomerDirectory in-memory справочник клиентов для разработки и тестов.
type CustomerDirectory struct {
	mu    sync.RWMutex
	items map[string]domain.Customer
}

// NewCustomerDirectory создаёт пустой справочник.
func NewCustomerDirectory() *CustomerDirectory {
	return &CustomerDirectory{items: make(map[string]domain.Customer)}
}

// Put добавляет или заменяет клиента.
func (r *CustomerDirectory) Put(customer domain.Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[customer.ID] = customer
}

// FindByID возвращает клиента или ErrCustomerNotFound.
func (r *CustomerDirectory) FindByID(_ context.Context, id string) (domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	customer, ok := r.items[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

var _ domain.CustomerDirectory = (*CustomerDirectory)(nil)
