package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// OrderStore простое in-memory хранилище заказов.
type OrderStore struct {
	mu    sync.RWMutex
	items map[string]domain.Order
	now   func() time.Time
}

// NewOrderStore возвращает in-memory хранилище для локальной разработки и тестов.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		items: make(map[string]domain.Order),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create назначает заказу ID и временные метки и сохраняет копию.
func (r *OrderStore) Create(_ context.Context, input domain.NewOrder) (domain.Order, error) {
	now := r.now()
	order := domain.Order{
		ID:        uuid.NewString(),
		Customer:  input.Customer,
		Products:  copyLines(input.Products),
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.Order{}, domain.ErrOrderConflict
	}
	r.items[order.ID] = order

	stored := order
	stored.Products = copyLines(order.Products)
	return stored, nil
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *OrderStore) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Products = copyLines(order.Products)
	return order, nil
}

func copyLines(lines []domain.PricedLineItem) []domain.PricedLineItem {
	if lines == nil {
		return nil
	}
	out := make([]domain.PricedLineItem, len(lines))
	copy(out, lines)
	return out
}

var (
	_ domain.OrderStore  = (*OrderStore)(nil)
	_ domain.OrderReader = (*OrderStore)(nil)
)
